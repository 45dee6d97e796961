package repositories

import (
	"context"
	"errors"
	"fmt"

	"cellarledger/internal/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner is a DBTX that can open transactions.
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store groups the repositories that take part in one unit of work.
type Store interface {
	Locations() LocationRepository
	Bottles() BottleRepository
	Cases() CaseRepository
	Movements() MovementRepository
	Exceptions() ExceptionRepository
	Allocations() AllocationRepository

	// WithTx runs fn against a transactional Store. The transaction is
	// committed when fn returns nil and rolled back otherwise. Calling
	// WithTx on a transactional Store reuses the open transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	db       DBTX
	beginner TxBeginner
}

func NewStore(db TxBeginner) Store {
	return &pgStore{db: db, beginner: db}
}

func (s *pgStore) Locations() LocationRepository {
	return NewLocationRepo(s.db)
}

func (s *pgStore) Bottles() BottleRepository {
	return NewBottleRepo(s.db)
}

func (s *pgStore) Cases() CaseRepository {
	return NewCaseRepo(s.db)
}

func (s *pgStore) Movements() MovementRepository {
	return NewMovementRepo(s.db)
}

func (s *pgStore) Exceptions() ExceptionRepository {
	return NewExceptionRepo(s.db)
}

func (s *pgStore) Allocations() AllocationRepository {
	return NewAllocationRepo(s.db)
}

func (s *pgStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.beginner == nil {
		return fn(s)
	}

	tx, err := s.beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const uniqueViolation = "23505"

// mapError translates driver errors into the common taxonomy.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return common.Invalidf("%s already exists", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
