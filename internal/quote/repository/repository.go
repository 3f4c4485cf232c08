package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Session  *SessionRepository
	Item     *ItemRepository
	Sequence *SequenceRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Session:  NewSessionRepository(db),
		Item:     NewItemRepository(db),
		Sequence: NewSequenceRepository(db),
	}
}
