package repository

import (
	"context"
	"fmt"

	"github.com/fitsync/lesson-scheduler/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store aggregates the postgres repositories and implements service.Store.
// A root store runs each call on the pool; InTx hands the callback a store
// whose repositories are bound to one transaction.
type Store struct {
	pool *pgxpool.Pool
	tx   pgx.Tx

	schedules *ScheduleRepository
	waitings  *WaitingRepository
	courses   *CourseRepository
	mappings  *MappingRepository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return newStore(pool, nil, pool)
}

func newStore(pool *pgxpool.Pool, tx pgx.Tx, db DBTX) *Store {
	return &Store{
		pool:      pool,
		tx:        tx,
		schedules: NewScheduleRepository(db),
		waitings:  NewWaitingRepository(db),
		courses:   NewCourseRepository(db),
		mappings:  NewMappingRepository(db),
	}
}

func (s *Store) Schedules() service.ScheduleRepository {
	return s.schedules
}

func (s *Store) Waitings() service.WaitingRepository {
	return s.waitings
}

func (s *Store) Courses() service.CourseRepository {
	return s.courses
}

func (s *Store) Mappings() service.MappingRepository {
	return s.mappings
}

// InTx runs fn against a transaction-bound store. The transaction commits
// when fn returns nil and rolls back wholly on any error. A store already
// inside a transaction reuses it, so nested InTx calls stay in one unit of
// work.
func (s *Store) InTx(ctx context.Context, fn func(service.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newStore(s.pool, tx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
