package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

type quotaRepository interface {
	ListByPlan(ctx context.Context, planID string) ([]models.EnrollmentQuota, error)
	Find(ctx context.Context, planID, classID string) (*models.EnrollmentQuota, error)
	Reserve(ctx context.Context, planID, classID string, n int, override bool) (*models.QuotaState, error)
	Release(ctx context.Context, planID, classID string, n int) (*models.QuotaState, error)
	UsedByPlan(ctx context.Context, planID string) (int, error)
	Delete(ctx context.Context, planID, classID string) (bool, error)
}

// QuotaService is the single mutation path for class seat quotas.
// Class caps are hard: a reservation past total fails unless the caller
// holds an explicit override.
type QuotaService struct {
	repo   quotaRepository
	logger *zap.Logger
}

// NewQuotaService constructs the quota service.
func NewQuotaService(repo quotaRepository, logger *zap.Logger) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{repo: repo, logger: logger}
}

// ListByPlan returns quota rows for a plan.
func (s *QuotaService) ListByPlan(ctx context.Context, planID string) ([]models.EnrollmentQuota, error) {
	quotas, err := s.repo.ListByPlan(ctx, planID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quotas")
	}
	return quotas, nil
}

// Reserve consumes n seats on a (plan, class) quota. A full class yields
// ErrQuotaExceeded; an unknown pair yields ErrNotFound.
func (s *QuotaService) Reserve(ctx context.Context, planID, classID string, n int, override bool) (*models.QuotaState, error) {
	if n <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "seat count must be positive")
	}
	state, err := s.repo.Reserve(ctx, planID, classID, n, override)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The conditional update cannot tell a missing row from a
			// full class; a follow-up read disambiguates.
			if _, findErr := s.repo.Find(ctx, planID, classID); errors.Is(findErr, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "quota not found for class")
			}
			return nil, appErrors.Clone(appErrors.ErrQuotaExceeded, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve seats")
	}
	s.logger.Sugar().Infow("seats reserved", "plan_id", planID, "class_id", classID, "count", n, "remaining", state.Remaining)
	return state, nil
}

// Release returns n seats to the pool.
func (s *QuotaService) Release(ctx context.Context, planID, classID string, n int) (*models.QuotaState, error) {
	if n <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "seat count must be positive")
	}
	state, err := s.repo.Release(ctx, planID, classID, n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, findErr := s.repo.Find(ctx, planID, classID); errors.Is(findErr, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "quota not found for class")
			}
			return nil, appErrors.Clone(appErrors.ErrConflict, "release exceeds seats in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seats")
	}
	s.logger.Sugar().Infow("seats released", "plan_id", planID, "class_id", classID, "count", n, "remaining", state.Remaining)
	return state, nil
}

// Remaining reports available seats for a (plan, class) pair.
func (s *QuotaService) Remaining(ctx context.Context, planID, classID string) (int, error) {
	quota, err := s.repo.Find(ctx, planID, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "quota not found for class")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quota")
	}
	return quota.Remaining, nil
}

// Delete removes an unused quota row.
func (s *QuotaService) Delete(ctx context.Context, planID, classID string) error {
	ok, err := s.repo.Delete(ctx, planID, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quota")
	}
	if !ok {
		if _, findErr := s.repo.Find(ctx, planID, classID); errors.Is(findErr, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "quota not found for class")
		}
		return appErrors.Clone(appErrors.ErrConflict, "quota has seats in use and cannot be removed")
	}
	return nil
}
