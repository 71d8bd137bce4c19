package repository

import (
	"context"
	"fmt"

	"github.com/fitsync/lesson-scheduler/internal/model"
	"github.com/jackc/pgx/v5"
)

// CourseRepository is the credit ledger over the courses table. The engine
// only ever reads and moves the remaining-lesson count.
type CourseRepository struct {
	db DBTX
}

func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, member_id, remain_lesson_cnt, created_at`

func scanCourse(row pgx.Row) (*model.Course, error) {
	var c model.Course
	err := row.Scan(
		&c.ID,
		&c.MemberID,
		&c.RemainLessonCnt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CurrentByMember picks the member's authoritative course: the most recently
// created one whose remaining count is above the usable floor. Nil when none
// qualifies.
func (r *CourseRepository) CurrentByMember(ctx context.Context, memberID int64) (*model.Course, error) {
	query := `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE member_id = $1
		  AND remain_lesson_cnt > $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	course, err := scanCourse(r.db.QueryRow(ctx, query, memberID, model.UsableFloor))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get current course: %w", err)
	}

	return course, nil
}

// LatestByMember returns the member's most recent course regardless of
// balance. Refunds land here even when the balance fell below the floor.
func (r *CourseRepository) LatestByMember(ctx context.Context, memberID int64) (*model.Course, error) {
	query := `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	course, err := scanCourse(r.db.QueryRow(ctx, query, memberID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest course: %w", err)
	}

	return course, nil
}

// Debit takes one lesson credit. The floor check repeats inside the UPDATE so
// a concurrent debit on the same course cannot overdraw: false means the
// balance was gone by write time.
func (r *CourseRepository) Debit(ctx context.Context, courseID int64) (bool, error) {
	query := `
		UPDATE courses
		SET remain_lesson_cnt = remain_lesson_cnt - 1
		WHERE id = $1
		  AND remain_lesson_cnt > $2
	`

	tag, err := r.db.Exec(ctx, query, courseID, model.UsableFloor)
	if err != nil {
		return false, fmt.Errorf("debit course: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Credit returns one lesson credit. No upper bound is enforced.
func (r *CourseRepository) Credit(ctx context.Context, courseID int64) error {
	query := `
		UPDATE courses
		SET remain_lesson_cnt = remain_lesson_cnt + 1
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, courseID)
	if err != nil {
		return fmt.Errorf("credit course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("course %d not found", courseID)
	}

	return nil
}
