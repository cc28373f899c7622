package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

type quotaRepoStub struct {
	quotas map[string]*models.EnrollmentQuota
}

func quotaKey(planID, classID string) string { return planID + "/" + classID }

func newQuotaRepoStub() *quotaRepoStub {
	return &quotaRepoStub{quotas: make(map[string]*models.EnrollmentQuota)}
}

func (s *quotaRepoStub) ListByPlan(ctx context.Context, planID string) ([]models.EnrollmentQuota, error) {
	var out []models.EnrollmentQuota
	for _, q := range s.quotas {
		if q.PlanID == planID {
			q.Remaining = q.Total - q.Used
			out = append(out, *q)
		}
	}
	return out, nil
}

func (s *quotaRepoStub) Find(ctx context.Context, planID, classID string) (*models.EnrollmentQuota, error) {
	if q, ok := s.quotas[quotaKey(planID, classID)]; ok {
		q.Remaining = q.Total - q.Used
		return q, nil
	}
	return nil, sql.ErrNoRows
}

func (s *quotaRepoStub) Reserve(ctx context.Context, planID, classID string, n int, override bool) (*models.QuotaState, error) {
	q, ok := s.quotas[quotaKey(planID, classID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if !override && q.Used+n > q.Total {
		return nil, sql.ErrNoRows
	}
	q.Used += n
	return &models.QuotaState{PlanID: planID, ClassID: classID, Total: q.Total, Used: q.Used, Remaining: q.Total - q.Used}, nil
}

func (s *quotaRepoStub) Release(ctx context.Context, planID, classID string, n int) (*models.QuotaState, error) {
	q, ok := s.quotas[quotaKey(planID, classID)]
	if !ok || q.Used-n < 0 {
		return nil, sql.ErrNoRows
	}
	q.Used -= n
	return &models.QuotaState{PlanID: planID, ClassID: classID, Total: q.Total, Used: q.Used, Remaining: q.Total - q.Used}, nil
}

func (s *quotaRepoStub) UsedByPlan(ctx context.Context, planID string) (int, error) {
	var used int
	for _, q := range s.quotas {
		if q.PlanID == planID {
			used += q.Used
		}
	}
	return used, nil
}

func (s *quotaRepoStub) Delete(ctx context.Context, planID, classID string) (bool, error) {
	q, ok := s.quotas[quotaKey(planID, classID)]
	if !ok || q.Used > 0 {
		return false, nil
	}
	delete(s.quotas, quotaKey(planID, classID))
	return true, nil
}

func newQuotaFixture() (*QuotaService, *quotaRepoStub) {
	repo := newQuotaRepoStub()
	repo.quotas[quotaKey("plan-1", "class-1")] = &models.EnrollmentQuota{
		ID: "q-1", PlanID: "plan-1", ClassID: "class-1", ClassName: "Sunflower", Total: 30, Used: 28,
	}
	return NewQuotaService(repo, nil), repo
}

func TestQuotaReserveConservesSeats(t *testing.T) {
	svc, _ := newQuotaFixture()

	state, err := svc.Reserve(context.Background(), "plan-1", "class-1", 2, false)
	require.NoError(t, err)
	require.Equal(t, 30, state.Used)
	require.Equal(t, 0, state.Remaining)
	require.Equal(t, state.Total, state.Used+state.Remaining)
}

func TestQuotaReserveFullClass(t *testing.T) {
	svc, _ := newQuotaFixture()

	_, err := svc.Reserve(context.Background(), "plan-1", "class-1", 3, false)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrQuotaExceeded.Code, appErrors.FromError(err).Code)
}

func TestQuotaReserveOverride(t *testing.T) {
	svc, repo := newQuotaFixture()

	state, err := svc.Reserve(context.Background(), "plan-1", "class-1", 3, true)
	require.NoError(t, err)
	require.Equal(t, 31, state.Used)
	require.Equal(t, -1, state.Remaining)
	require.Equal(t, 31, repo.quotas[quotaKey("plan-1", "class-1")].Used)
}

func TestQuotaReserveUnknownClass(t *testing.T) {
	svc, _ := newQuotaFixture()

	_, err := svc.Reserve(context.Background(), "plan-1", "class-missing", 1, false)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestQuotaReserveRejectsNonPositive(t *testing.T) {
	svc, _ := newQuotaFixture()

	_, err := svc.Reserve(context.Background(), "plan-1", "class-1", 0, false)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestQuotaReleaseUnderflow(t *testing.T) {
	svc, _ := newQuotaFixture()

	_, err := svc.Release(context.Background(), "plan-1", "class-1", 29)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestQuotaRelease(t *testing.T) {
	svc, _ := newQuotaFixture()

	state, err := svc.Release(context.Background(), "plan-1", "class-1", 5)
	require.NoError(t, err)
	require.Equal(t, 23, state.Used)
	require.Equal(t, 7, state.Remaining)
}

func TestQuotaDeleteInUse(t *testing.T) {
	svc, _ := newQuotaFixture()

	err := svc.Delete(context.Background(), "plan-1", "class-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestQuotaDeleteUnused(t *testing.T) {
	svc, repo := newQuotaFixture()
	repo.quotas[quotaKey("plan-1", "class-1")].Used = 0

	err := svc.Delete(context.Background(), "plan-1", "class-1")
	require.NoError(t, err)
	require.Empty(t, repo.quotas)
}
