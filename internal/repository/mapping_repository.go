package repository

import (
	"context"
	"fmt"

	"github.com/fitsync/lesson-scheduler/internal/model"
)

// MappingRepository reads the trainer-member relationship maintained by the
// membership system. The engine never writes it.
type MappingRepository struct {
	db DBTX
}

func NewMappingRepository(db DBTX) *MappingRepository {
	return &MappingRepository{db: db}
}

// CurrentByMember returns the member's most recent trainer mapping, or nil
// when the member has no trainer.
func (r *MappingRepository) CurrentByMember(ctx context.Context, memberID int64) (*model.TrainerMemberMapping, error) {
	query := `
		SELECT id, trainer_id, member_id, created_at
		FROM trainer_member_mappings
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var m model.TrainerMemberMapping
	err := r.db.QueryRow(ctx, query, memberID).Scan(
		&m.ID,
		&m.TrainerID,
		&m.MemberID,
		&m.CreatedAt,
	)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get trainer mapping: %w", err)
	}

	return &m, nil
}
