package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/bitfantasy/stitchquote/internal/quote/entity"
)

type ItemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Create(ctx context.Context, item *entity.QuoteItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *ItemRepository) BatchCreate(ctx context.Context, items []entity.QuoteItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *ItemRepository) ListByQuoteID(ctx context.Context, quoteID string) ([]entity.QuoteItem, error) {
	var items []entity.QuoteItem
	err := r.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("line_number ASC").
		Find(&items).Error
	return items, err
}

func (r *ItemRepository) CountByQuoteID(ctx context.Context, quoteID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.QuoteItem{}).
		Where("quote_id = ?", quoteID).
		Count(&count).Error
	return count, err
}

func (r *ItemRepository) DeleteByQuoteID(ctx context.Context, quoteID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("quote_id = ?", quoteID).Delete(&entity.QuoteItem{})
	return res.RowsAffected, res.Error
}
