package repository

import (
	"context"
	"fmt"

	"github.com/fitsync/lesson-scheduler/internal/model"
	"github.com/jackc/pgx/v5"
)

type WaitingRepository struct {
	db DBTX
}

func NewWaitingRepository(db DBTX) *WaitingRepository {
	return &WaitingRepository{db: db}
}

const waitingColumns = `id, schedule_id, member_id, del_yn, created_at`

func scanWaiting(row pgx.Row) (*model.ScheduleWaiting, error) {
	var w model.ScheduleWaiting
	err := row.Scan(
		&w.ID,
		&w.ScheduleID,
		&w.MemberID,
		&w.DelYn,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WaitingRepository) queryMany(ctx context.Context, query string, args ...any) ([]*model.ScheduleWaiting, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query waiting entries: %w", err)
	}
	defer rows.Close()

	var waitings []*model.ScheduleWaiting
	for rows.Next() {
		w, err := scanWaiting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waiting entry: %w", err)
		}
		waitings = append(waitings, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate waiting entries: %w", err)
	}

	return waitings, nil
}

// Create appends a waiting entry. CreatedAt is supplied by the caller so the
// FIFO stamp comes from the injected clock, not the database.
func (r *WaitingRepository) Create(ctx context.Context, w *model.ScheduleWaiting) error {
	query := `
		INSERT INTO schedule_waitings (schedule_id, member_id, del_yn, created_at)
		VALUES ($1, $2, false, $3)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query, w.ScheduleID, w.MemberID, w.CreatedAt).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("create waiting entry: %w", err)
	}

	return nil
}

// ActiveByScheduleAndMember returns the member's live entry for the slot, or
// nil.
func (r *WaitingRepository) ActiveByScheduleAndMember(ctx context.Context, scheduleID, memberID int64) (*model.ScheduleWaiting, error) {
	query := `
		SELECT ` + waitingColumns + `
		FROM schedule_waitings
		WHERE schedule_id = $1
		  AND member_id = $2
		  AND del_yn = false
	`

	w, err := scanWaiting(r.db.QueryRow(ctx, query, scheduleID, memberID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get waiting entry: %w", err)
	}

	return w, nil
}

// ListActiveBySchedule returns the slot's live queue, earliest entry first.
// Entry ID breaks created_at ties so the order is total.
func (r *WaitingRepository) ListActiveBySchedule(ctx context.Context, scheduleID int64) ([]*model.ScheduleWaiting, error) {
	query := `
		SELECT ` + waitingColumns + `
		FROM schedule_waitings
		WHERE schedule_id = $1
		  AND del_yn = false
		ORDER BY created_at, id
	`

	return r.queryMany(ctx, query, scheduleID)
}

// ListActiveByMember returns every queue the member currently waits in.
func (r *WaitingRepository) ListActiveByMember(ctx context.Context, memberID int64) ([]*model.ScheduleWaiting, error) {
	query := `
		SELECT ` + waitingColumns + `
		FROM schedule_waitings
		WHERE member_id = $1
		  AND del_yn = false
		ORDER BY created_at, id
	`

	return r.queryMany(ctx, query, memberID)
}

// CountActiveBySchedules returns live-entry counts keyed by schedule ID.
// Slots with no waiters are absent from the map.
func (r *WaitingRepository) CountActiveBySchedules(ctx context.Context, scheduleIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(scheduleIDs))
	if len(scheduleIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT schedule_id, count(*)
		FROM schedule_waitings
		WHERE schedule_id = ANY($1)
		  AND del_yn = false
		GROUP BY schedule_id
	`

	rows, err := r.db.Query(ctx, query, scheduleIDs)
	if err != nil {
		return nil, fmt.Errorf("count waiting entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			scheduleID int64
			count      int
		)
		if err := rows.Scan(&scheduleID, &count); err != nil {
			return nil, fmt.Errorf("scan waiting count: %w", err)
		}
		counts[scheduleID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate waiting counts: %w", err)
	}

	return counts, nil
}

// SoftDelete consumes an entry. Consumed entries keep their row for history.
func (r *WaitingRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `
		UPDATE schedule_waitings
		SET del_yn = true
		WHERE id = $1
		  AND del_yn = false
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete waiting entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("waiting entry %d not found or already deleted", id)
	}

	return nil
}
