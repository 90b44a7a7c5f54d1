package database

import (
	"context"

	"gorm.io/gorm"
)

// TxFunc runs inside a database transaction. The passed handle must be used
// for every statement that belongs to the transaction.
type TxFunc func(tx *gorm.DB) error

// TxManager wraps multi-entity write paths in a single ACID transaction.
// Returning an error from the function rolls the whole transaction back.
type TxManager interface {
	Do(ctx context.Context, fn TxFunc) error
}

type GormTxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) Do(ctx context.Context, fn TxFunc) error {
	return m.db.WithContext(ctx).Transaction(fn)
}
