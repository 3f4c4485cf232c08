package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/stitchquote/internal/quote/entity"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) DB() *gorm.DB {
	return r.db
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.QuoteSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) FindByQuoteID(ctx context.Context, quoteID string) (*entity.QuoteSession, error) {
	var session entity.QuoteSession
	err := r.db.WithContext(ctx).First(&session, "quote_id = ?", quoteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) FindByQuoteIDWithItems(ctx context.Context, quoteID string) (*entity.QuoteSession, error) {
	var session entity.QuoteSession
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		}).
		First(&session, "quote_id = ?", quoteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) DeleteByQuoteID(ctx context.Context, quoteID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("quote_id = ?", quoteID).Delete(&entity.QuoteSession{})
	return res.RowsAffected, res.Error
}

// ========== 报价单号序列 ==========

type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// NextQuoteID 按 前缀-年份 递增序列并格式化报价单号（如 EMB-2026-001）
func (r *SequenceRepository) NextQuoteID(ctx context.Context, prefix string, now time.Time) (string, error) {
	year := now.Year()
	var seq entity.QuoteSequence

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&seq, "prefix = ? AND year = ?", prefix, year).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seq = entity.QuoteSequence{Prefix: prefix, Year: year, LastSeq: 1}
			return tx.Create(&seq).Error
		}
		if err != nil {
			return err
		}
		seq.LastSeq++
		return tx.Save(&seq).Error
	})
	if err != nil {
		return "", fmt.Errorf("分配报价单号失败: %w", err)
	}

	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq.LastSeq), nil
}
