package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

type planRepoStub struct {
	plans map[string]*models.EnrollmentPlan
	seq   int
}

func newPlanRepoStub() *planRepoStub {
	return &planRepoStub{plans: make(map[string]*models.EnrollmentPlan)}
}

func (s *planRepoStub) List(ctx context.Context, filter models.PlanFilter) ([]models.EnrollmentPlan, int, error) {
	return nil, 0, nil
}

func (s *planRepoStub) FindByID(ctx context.Context, id string) (*models.EnrollmentPlan, error) {
	if plan, ok := s.plans[id]; ok {
		return plan, nil
	}
	return nil, sql.ErrNoRows
}

func (s *planRepoStub) Create(ctx context.Context, plan *models.EnrollmentPlan) error {
	s.seq++
	plan.ID = "plan-" + string(rune('0'+s.seq))
	s.plans[plan.ID] = plan
	return nil
}

func (s *planRepoStub) Update(ctx context.Context, plan *models.EnrollmentPlan) error {
	s.plans[plan.ID] = plan
	return nil
}

func (s *planRepoStub) UpdateStatusIf(ctx context.Context, id string, from []models.PlanStatus, to models.PlanStatus) (bool, error) {
	plan, ok := s.plans[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if plan.Status == status {
			plan.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *planRepoStub) CloseFinished(ctx context.Context, now time.Time) (int, error) {
	count := 0
	for _, plan := range s.plans {
		if plan.Status != models.PlanStatusActive {
			continue
		}
		if plan.EndDate.Before(now) || plan.EnrolledCount >= plan.TargetCount {
			plan.Status = models.PlanStatusCompleted
			count++
		}
	}
	return count, nil
}

type planQuotaRepoStub struct {
	created []models.EnrollmentQuota
}

func (s *planQuotaRepoStub) ListByPlan(ctx context.Context, planID string) ([]models.EnrollmentQuota, error) {
	var out []models.EnrollmentQuota
	for _, q := range s.created {
		if q.PlanID == planID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *planQuotaRepoStub) CreateBatch(ctx context.Context, quotas []models.EnrollmentQuota) error {
	s.created = append(s.created, quotas...)
	return nil
}

func newPlanFixture() (*PlanService, *planRepoStub, *planQuotaRepoStub) {
	repo := newPlanRepoStub()
	quotas := &planQuotaRepoStub{}
	return NewPlanService(repo, quotas, nil, nil), repo, quotas
}

func autumnPlanRequest() CreatePlanRequest {
	return CreatePlanRequest{
		Code:         "P2026A",
		Name:         "Autumn Intake",
		AcademicYear: "2026-2027",
		Term:         "autumn",
		StartDate:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		TargetCount:  60,
		AgeRange:     "3-6",
		Quotas: []PlanQuotaRequest{
			{ClassID: "class-1", ClassName: "Sunflower", AgeBand: "3-4", Total: 30},
			{ClassID: "class-2", ClassName: "Rose", AgeBand: "4-5", Total: 35},
		},
	}
}

func TestPlanCreateStartsDraft(t *testing.T) {
	svc, _, quotas := newPlanFixture()

	plan, err := svc.Create(context.Background(), autumnPlanRequest())
	require.NoError(t, err)
	require.Equal(t, models.PlanStatusDraft, plan.Status)
	require.Len(t, quotas.created, 2)
	require.Equal(t, plan.ID, quotas.created[0].PlanID)
}

func TestPlanCreateRejectsInvertedDates(t *testing.T) {
	svc, _, _ := newPlanFixture()

	req := autumnPlanRequest()
	req.EndDate = req.StartDate.AddDate(0, 0, -1)
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPlanLifecycle(t *testing.T) {
	svc, repo, _ := newPlanFixture()
	plan, err := svc.Create(context.Background(), autumnPlanRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Publish(context.Background(), plan.ID))
	require.Equal(t, models.PlanStatusActive, repo.plans[plan.ID].Status)

	require.NoError(t, svc.Pause(context.Background(), plan.ID))
	require.Equal(t, models.PlanStatusPaused, repo.plans[plan.ID].Status)

	require.NoError(t, svc.Publish(context.Background(), plan.ID))
	require.NoError(t, svc.Complete(context.Background(), plan.ID))
	require.Equal(t, models.PlanStatusCompleted, repo.plans[plan.ID].Status)
}

func TestPlanPauseRequiresActive(t *testing.T) {
	svc, _, _ := newPlanFixture()
	plan, err := svc.Create(context.Background(), autumnPlanRequest())
	require.NoError(t, err)

	err = svc.Pause(context.Background(), plan.ID)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestPlanCancelCompletedPlan(t *testing.T) {
	svc, repo, _ := newPlanFixture()
	plan, err := svc.Create(context.Background(), autumnPlanRequest())
	require.NoError(t, err)
	repo.plans[plan.ID].Status = models.PlanStatusCompleted

	err = svc.Cancel(context.Background(), plan.ID)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestPlanCloseFinishedClosesExpiredWindow(t *testing.T) {
	svc, repo, _ := newPlanFixture()
	plan, err := svc.Create(context.Background(), autumnPlanRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Publish(context.Background(), plan.ID))

	svc.now = func() time.Time { return plan.EndDate.AddDate(0, 0, 1) }
	count, err := svc.CloseFinished(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, models.PlanStatusCompleted, repo.plans[plan.ID].Status)
}

func TestPlanCloseFinishedClosesAtTarget(t *testing.T) {
	svc, repo, _ := newPlanFixture()
	plan, err := svc.Create(context.Background(), autumnPlanRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Publish(context.Background(), plan.ID))
	repo.plans[plan.ID].EnrolledCount = 60

	// Still inside the window, but the target headcount is reached.
	svc.now = func() time.Time { return plan.StartDate.AddDate(0, 0, 10) }
	count, err := svc.CloseFinished(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, models.PlanStatusCompleted, repo.plans[plan.ID].Status)
}

func TestPlanCloseFinishedLeavesOpenPlans(t *testing.T) {
	svc, repo, _ := newPlanFixture()
	plan, err := svc.Create(context.Background(), autumnPlanRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Publish(context.Background(), plan.ID))

	svc.now = func() time.Time { return plan.StartDate.AddDate(0, 0, 10) }
	count, err := svc.CloseFinished(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
	require.Equal(t, models.PlanStatusActive, repo.plans[plan.ID].Status)
}

func TestPlanTransitionUnknownID(t *testing.T) {
	svc, _, _ := newPlanFixture()

	err := svc.Publish(context.Background(), "plan-missing")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPlanUpdateClosedPlan(t *testing.T) {
	svc, repo, _ := newPlanFixture()
	plan, err := svc.Create(context.Background(), autumnPlanRequest())
	require.NoError(t, err)
	repo.plans[plan.ID].Status = models.PlanStatusCancelled

	_, err = svc.Update(context.Background(), plan.ID, UpdatePlanRequest{
		Name: "Renamed", AcademicYear: "2026-2027", Term: "autumn",
		StartDate: plan.StartDate, EndDate: plan.EndDate, TargetCount: 50,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}
