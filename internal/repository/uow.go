package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// UnitOfWork is the explicit transaction value threaded through every
// multi-write repository call. The outermost caller begins it, hands it down,
// and commits or rolls back; repositories never open transactions themselves.
type UnitOfWork struct {
	tx *sqlx.Tx
}

// Begin opens a new unit of work on the given database.
func Begin(ctx context.Context, db *sqlx.DB) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit finalizes all writes performed through the unit of work.
func (u *UnitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

// Rollback discards all writes. Safe to call after Commit.
func (u *UnitOfWork) Rollback() error {
	return u.tx.Rollback()
}

// TxManager begins units of work for services.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs the manager.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// RunInUnitOfWork executes fn inside one unit of work, committing on success
// and rolling back on error or panic. All writes inside fn land atomically.
func (m *TxManager) RunInUnitOfWork(ctx context.Context, fn func(uow *UnitOfWork) error) error {
	uow, err := Begin(ctx, m.db)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback()
			panic(p)
		}
	}()
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}
