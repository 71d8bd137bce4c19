package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fitsync/lesson-scheduler/internal/model"
	"github.com/jackc/pgx/v5"
)

type ScheduleRepository struct {
	db DBTX
}

func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, trainer_id, start_time, end_time, status, applicant_id, created_at`

func scanSchedule(row pgx.Row) (*model.Schedule, error) {
	var (
		sched       model.Schedule
		status      string
		applicantID *int64
	)
	err := row.Scan(
		&sched.ID,
		&sched.TrainerID,
		&sched.StartTime,
		&sched.EndTime,
		&status,
		&applicantID,
		&sched.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	state, err := model.StateFromRow(model.SlotStatus(status), applicantID)
	if err != nil {
		return nil, fmt.Errorf("schedule %d: %w", sched.ID, err)
	}
	sched.State = state

	return &sched, nil
}

func (r *ScheduleRepository) queryMany(ctx context.Context, query string, args ...any) ([]*model.Schedule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}

	return schedules, nil
}

// Create registers a trainer's slot. New slots always start open.
func (r *ScheduleRepository) Create(ctx context.Context, sched *model.Schedule) error {
	query := `
		INSERT INTO schedules (trainer_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		sched.TrainerID,
		sched.StartTime,
		sched.EndTime,
		model.SlotStatusOpen,
	).Scan(&sched.ID, &sched.CreatedAt)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}

	sched.State = model.Open()
	return nil
}

// GetForUpdate loads a slot and takes a row lock on it when running inside a
// transaction, serializing concurrent reserve/cancel calls on the same slot.
func (r *ScheduleRepository) GetForUpdate(ctx context.Context, scheduleID int64) (*model.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE id = $1
		FOR UPDATE
	`

	sched, err := scanSchedule(r.db.QueryRow(ctx, query, scheduleID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule for update: %w", err)
	}

	return sched, nil
}

// UpdateState persists a slot's occupancy state.
func (r *ScheduleRepository) UpdateState(ctx context.Context, scheduleID int64, state model.SlotState) error {
	query := `
		UPDATE schedules
		SET status = $1, applicant_id = $2
		WHERE id = $3
	`

	tag, err := r.db.Exec(ctx, query, state.Status(), state.ApplicantID(), scheduleID)
	if err != nil {
		return fmt.Errorf("update schedule state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schedule %d not found", scheduleID)
	}

	return nil
}

// ListByTrainer lists a trainer's non-deleted slots, earliest lesson first.
func (r *ScheduleRepository) ListByTrainer(ctx context.Context, trainerID int64, cond model.ScheduleSearchCond) ([]*model.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE trainer_id = $1
		  AND status <> 'deleted'
	`
	args := []any{trainerID}
	query, args = applySearchCond(query, args, cond)
	query += ` ORDER BY start_time`

	return r.queryMany(ctx, query, args...)
}

// ListByApplicant lists the non-deleted slots the member currently holds.
func (r *ScheduleRepository) ListByApplicant(ctx context.Context, memberID int64) ([]*model.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE applicant_id = $1
		  AND status = 'reserved'
		ORDER BY start_time
	`

	return r.queryMany(ctx, query, memberID)
}

// ListUpcomingByApplicant lists the member's reservations starting on or
// after from, earliest first.
func (r *ScheduleRepository) ListUpcomingByApplicant(ctx context.Context, memberID int64, from time.Time, cond model.ScheduleSearchCond) ([]*model.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE applicant_id = $1
		  AND status = 'reserved'
		  AND start_time >= $2
	`
	args := []any{memberID, from}
	query, args = applySearchCond(query, args, cond)
	query += ` ORDER BY start_time`

	return r.queryMany(ctx, query, args...)
}

// FirstUpcomingByApplicant returns the member's closest reservation on or
// after from, or nil.
func (r *ScheduleRepository) FirstUpcomingByApplicant(ctx context.Context, memberID int64, from time.Time) (*model.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE applicant_id = $1
		  AND status = 'reserved'
		  AND start_time >= $2
		ORDER BY start_time
		LIMIT 1
	`

	sched, err := scanSchedule(r.db.QueryRow(ctx, query, memberID, from))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get first upcoming schedule: %w", err)
	}

	return sched, nil
}

// SoftDelete retires a slot. History stays behind for lesson logs.
func (r *ScheduleRepository) SoftDelete(ctx context.Context, scheduleID int64) error {
	return r.UpdateState(ctx, scheduleID, model.Deleted())
}

func applySearchCond(query string, args []any, cond model.ScheduleSearchCond) (string, []any) {
	if cond.LessonMonth != "" {
		args = append(args, cond.LessonMonth)
		query += fmt.Sprintf(" AND to_char(start_time, 'YYYYMM') = $%d", len(args))
	}
	if cond.StartDt != nil && cond.EndDt != nil {
		args = append(args, *cond.StartDt)
		query += fmt.Sprintf(" AND start_time::date >= $%d::date", len(args))
		args = append(args, *cond.EndDt)
		query += fmt.Sprintf(" AND start_time::date <= $%d::date", len(args))
	}
	return query, args
}
