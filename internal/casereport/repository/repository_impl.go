package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jkvis/donateflow/internal/casereport/domain"
	"github.com/jkvis/donateflow/pkg/repository"
	"gorm.io/gorm"
)

// Repository adds the constrained assignment transition on top of the
// generic store. No other writes to case reports happen in this subsystem.
type Repository interface {
	repository.Repository[domain.CaseReport]
	Assign(ctx context.Context, caseID, donorID snowflake.ID) (bool, error)
}

type caseRepository struct {
	repository.Repository[domain.CaseReport]
	db *gorm.DB
}

func Provide(db *gorm.DB) Repository {
	return &caseRepository{
		Repository: repository.ProvideStore[domain.CaseReport](db),
		db:         db,
	}
}

// Assign transitions an approved, unassigned case to assigned with the
// given donor. The WHERE clause is the concurrency guard: a raced
// assignment leaves RowsAffected at zero and the caller decides what to
// do with the lost race.
func (r *caseRepository) Assign(ctx context.Context, caseID, donorID snowflake.ID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.CaseReport{}).
		Where("id = ? AND status = ? AND donor_id IS NULL", caseID, domain.CaseStatusApproved).
		Updates(map[string]any{
			"status":     domain.CaseStatusAssigned,
			"donor_id":   donorID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
