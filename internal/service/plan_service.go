package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

type planRepository interface {
	List(ctx context.Context, filter models.PlanFilter) ([]models.EnrollmentPlan, int, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentPlan, error)
	Create(ctx context.Context, plan *models.EnrollmentPlan) error
	Update(ctx context.Context, plan *models.EnrollmentPlan) error
	UpdateStatusIf(ctx context.Context, id string, from []models.PlanStatus, to models.PlanStatus) (bool, error)
	CloseFinished(ctx context.Context, now time.Time) (int, error)
}

type planQuotaRepository interface {
	ListByPlan(ctx context.Context, planID string) ([]models.EnrollmentQuota, error)
	CreateBatch(ctx context.Context, quotas []models.EnrollmentQuota) error
}

// CreatePlanRequest holds payload for creating enrollment plans.
type CreatePlanRequest struct {
	Code         string             `json:"code" validate:"required"`
	Name         string             `json:"name" validate:"required"`
	AcademicYear string             `json:"academicYear" validate:"required"`
	Term         string             `json:"term" validate:"required"`
	StartDate    time.Time          `json:"startDate" validate:"required"`
	EndDate      time.Time          `json:"endDate" validate:"required"`
	TargetCount  int                `json:"targetCount" validate:"required,gt=0"`
	AgeRange     string             `json:"ageRange"`
	Quotas       []PlanQuotaRequest `json:"quotas" validate:"dive"`
}

// PlanQuotaRequest is one class allocation inside a plan.
type PlanQuotaRequest struct {
	ClassID   string `json:"classId" validate:"required"`
	ClassName string `json:"className" validate:"required"`
	AgeBand   string `json:"ageBand"`
	Total     int    `json:"total" validate:"required,gt=0"`
}

// UpdatePlanRequest holds payload for updating plans.
type UpdatePlanRequest struct {
	Name         string    `json:"name" validate:"required"`
	AcademicYear string    `json:"academicYear" validate:"required"`
	Term         string    `json:"term" validate:"required"`
	StartDate    time.Time `json:"startDate" validate:"required"`
	EndDate      time.Time `json:"endDate" validate:"required"`
	TargetCount  int       `json:"targetCount" validate:"required,gt=0"`
	AgeRange     string    `json:"ageRange"`
}

// PlanService handles enrollment plan use-cases: lifecycle transitions and
// the per-class quota allocations created alongside a plan.
type PlanService struct {
	repo      planRepository
	quotas    planQuotaRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPlanService constructs the plan service.
func NewPlanService(repo planRepository, quotas planQuotaRepository, validate *validator.Validate, logger *zap.Logger) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{
		repo:      repo,
		quotas:    quotas,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns plans and pagination metadata.
func (s *PlanService) List(ctx context.Context, filter models.PlanFilter) ([]models.EnrollmentPlan, *models.Pagination, error) {
	plans, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return plans, pagination, nil
}

// Get returns a plan with its quota allocations.
func (s *PlanService) Get(ctx context.Context, id string) (*models.EnrollmentPlan, []models.EnrollmentQuota, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment plan not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	quotas, err := s.quotas.ListByPlan(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan quotas")
	}
	return plan, quotas, nil
}

// Create stores a new DRAFT plan and its quota rows. The sum of class quotas
// may exceed the plan target; the target is advisory, class caps are hard.
func (s *PlanService) Create(ctx context.Context, req CreatePlanRequest) (*models.EnrollmentPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}

	plan := &models.EnrollmentPlan{
		Code:         req.Code,
		Name:         req.Name,
		AcademicYear: req.AcademicYear,
		Term:         req.Term,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		TargetCount:  req.TargetCount,
		AgeRange:     req.AgeRange,
		Status:       models.PlanStatusDraft,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan")
	}

	if len(req.Quotas) > 0 {
		quotas := make([]models.EnrollmentQuota, len(req.Quotas))
		for i, q := range req.Quotas {
			quotas[i] = models.EnrollmentQuota{
				PlanID:    plan.ID,
				ClassID:   q.ClassID,
				ClassName: q.ClassName,
				AgeBand:   q.AgeBand,
				Total:     q.Total,
			}
		}
		if err := s.quotas.CreateBatch(ctx, quotas); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan quotas")
		}
	}
	return plan, nil
}

// AddQuotas appends class allocations to an existing open plan.
func (s *PlanService) AddQuotas(ctx context.Context, planID string, reqs []PlanQuotaRequest) ([]models.EnrollmentQuota, error) {
	if len(reqs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one quota is required")
	}
	for _, q := range reqs {
		if err := s.validator.Struct(q); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quota payload")
		}
	}
	plan, err := s.repo.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if plan.Status == models.PlanStatusCompleted || plan.Status == models.PlanStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "plan is closed and cannot be edited")
	}

	quotas := make([]models.EnrollmentQuota, len(reqs))
	for i, q := range reqs {
		quotas[i] = models.EnrollmentQuota{
			PlanID:    planID,
			ClassID:   q.ClassID,
			ClassName: q.ClassName,
			AgeBand:   q.AgeBand,
			Total:     q.Total,
		}
	}
	if err := s.quotas.CreateBatch(ctx, quotas); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan quotas")
	}
	return quotas, nil
}

// Update rewrites mutable attributes of a plan.
func (s *PlanService) Update(ctx context.Context, id string, req UpdatePlanRequest) (*models.EnrollmentPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if plan.Status == models.PlanStatusCompleted || plan.Status == models.PlanStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "plan is closed and cannot be edited")
	}

	plan.Name = req.Name
	plan.AcademicYear = req.AcademicYear
	plan.Term = req.Term
	plan.StartDate = req.StartDate
	plan.EndDate = req.EndDate
	plan.TargetCount = req.TargetCount
	plan.AgeRange = req.AgeRange
	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update plan")
	}
	return plan, nil
}

// Publish activates a DRAFT or PAUSED plan so applications may be accepted.
func (s *PlanService) Publish(ctx context.Context, id string) error {
	return s.transition(ctx, id, []models.PlanStatus{models.PlanStatusDraft, models.PlanStatusPaused}, models.PlanStatusActive)
}

// Pause suspends an ACTIVE plan.
func (s *PlanService) Pause(ctx context.Context, id string) error {
	return s.transition(ctx, id, []models.PlanStatus{models.PlanStatusActive}, models.PlanStatusPaused)
}

// Complete closes an ACTIVE or PAUSED plan.
func (s *PlanService) Complete(ctx context.Context, id string) error {
	return s.transition(ctx, id, []models.PlanStatus{models.PlanStatusActive, models.PlanStatusPaused}, models.PlanStatusCompleted)
}

// Cancel voids a plan from any non-terminal state.
func (s *PlanService) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, []models.PlanStatus{models.PlanStatusDraft, models.PlanStatusActive, models.PlanStatusPaused}, models.PlanStatusCancelled)
}

// CloseFinished moves ACTIVE plans past their end date, or at their target
// headcount, to COMPLETED. Invoked by the background sweep; Complete remains
// for closing a plan ahead of schedule.
func (s *PlanService) CloseFinished(ctx context.Context) (int, error) {
	count, err := s.repo.CloseFinished(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close finished plans")
	}
	if count > 0 {
		s.logger.Sugar().Infow("plans completed by sweep", "count", count)
	}
	return count, nil
}

func (s *PlanService) transition(ctx context.Context, id string, from []models.PlanStatus, to models.PlanStatus) error {
	ok, err := s.repo.UpdateStatusIf(ctx, id, from, to)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition plan")
	}
	if !ok {
		if _, findErr := s.repo.FindByID(ctx, id); errors.Is(findErr, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment plan not found")
		}
		return appErrors.Clone(appErrors.ErrInvalidTransition, "plan cannot move to "+string(to)+" from its current status")
	}
	s.logger.Sugar().Infow("plan status changed", "plan_id", id, "status", to)
	return nil
}
