// Package repository is the only path to the relational store. Every
// statement runs on a *Tx handed out by Store.WithTx, which holds the
// store's guard for the whole unit of work.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Tx is a scoped handle valid only inside the WithTx callback. Never make
// network calls while holding one.
type Tx struct {
	tx  *sqlx.Tx
	now func() time.Time
}

// WithTx serialises access to the store: it takes the guard, runs fn in a
// transaction, commits when fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: tx, now: utcNow}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the connection under the guard.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.PingContext(ctx)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
