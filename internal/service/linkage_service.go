package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	"github.com/yyup-edu/enrollment-finance-api/pkg/config"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

const (
	statsCacheKey = "finance:stats"
	// statsBackupKey holds the last-known-good snapshot without a TTL, so an
	// outage that outlives the cache window still has something to serve.
	statsBackupKey   = "finance:stats:last"
	settingsCacheKey = "finance:settings"
)

type linkageReader interface {
	List(ctx context.Context, filter models.LinkageFilter) ([]models.Linkage, int, error)
	Statistics(ctx context.Context) (*models.FinanceStats, error)
}

type linkageEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentApplication, error)
}

type linkageBillStore interface {
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.BillDetail, error)
}

type billGenerator interface {
	Generate(ctx context.Context, req GenerateBillRequest) (*models.PaymentBill, error)
}

type templateCatalog interface {
	List(ctx context.Context, filter models.FeePackageFilter) ([]models.FeePackageTemplate, int, error)
}

type financeCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LinkageService ties the enrollment pipeline to the billing side: it reacts
// to approval events, serves the joined linkage list, the dashboard
// statistics and the per-enrollment payment process projection.
type LinkageService struct {
	linkages    linkageReader
	enrollments linkageEnrollmentStore
	bills       linkageBillStore
	billing     billGenerator
	templates   templateCatalog
	cache       financeCache
	finance     config.FinanceConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewLinkageService constructs the linkage service.
func NewLinkageService(linkages linkageReader, enrollments linkageEnrollmentStore, bills linkageBillStore, billing billGenerator, templates templateCatalog, cache financeCache, finance config.FinanceConfig, logger *zap.Logger) *LinkageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkageService{
		linkages:    linkages,
		enrollments: enrollments,
		bills:       bills,
		billing:     billing,
		templates:   templates,
		cache:       cache,
		finance:     finance,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Linkages returns the joined enrollment-finance rows.
func (s *LinkageService) Linkages(ctx context.Context, filter models.LinkageFilter) ([]models.Linkage, int, error) {
	rows, total, err := s.linkages.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list linkages")
	}
	return rows, total, nil
}

// Statistics returns the dashboard aggregates. Fresh numbers are cached
// briefly; when the database is unavailable the last cached snapshot is
// served instead, flagged via the stale return.
func (s *LinkageService) Statistics(ctx context.Context) (*models.FinanceStats, bool, error) {
	var cached models.FinanceStats
	if err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil {
		return &cached, false, nil
	}

	stats, err := s.linkages.Statistics(ctx)
	if err != nil {
		// Database down: the short-lived entry already missed above, so fall
		// back to the unexpiring backup snapshot.
		if cacheErr := s.cache.Get(ctx, statsBackupKey, &cached); cacheErr == nil {
			s.logger.Sugar().Warnw("serving stale finance stats", "error", err)
			return &cached, true, nil
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate finance stats")
	}

	if stats.TotalEnrollments > 0 {
		stats.CollectionRate = float64(stats.PaidEnrollments) / float64(stats.TotalEnrollments) * 100
	}
	if err := s.cache.Set(ctx, statsCacheKey, stats, s.finance.StatsCacheTTL); err != nil {
		s.logger.Sugar().Warnw("failed to cache finance stats", "error", err)
	}
	if err := s.cache.Set(ctx, statsBackupKey, stats, 0); err != nil {
		s.logger.Sugar().Warnw("failed to store stats backup", "error", err)
	}
	return stats, false, nil
}

// OnEnrollmentApproved reacts to an approval: when auto-generation is on, a
// bill is issued from the default template for the student's grade. The hook
// is idempotent, repeated delivery of the same approval returns the
// existing bill.
func (s *LinkageService) OnEnrollmentApproved(ctx context.Context, enrollmentID, templateID string) (*models.PaymentBill, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if existing, err := s.bills.FindByEnrollment(ctx, enrollmentID); err == nil {
		return &existing.PaymentBill, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing bill")
	}

	if !s.finance.AutoGenerateBill && templateID == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "automatic bill generation is disabled")
	}
	if templateID == "" {
		templateID, err = s.defaultTemplate(ctx, enrollment.ClassName)
		if err != nil {
			return nil, err
		}
	}

	bill, err := s.billing.Generate(ctx, GenerateBillRequest{
		EnrollmentID: enrollmentID,
		TemplateID:   templateID,
	})
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return bill, nil
}

// Process projects an enrollment's admission progress: application, review,
// interview, payment, enrollment. The view is derived from stored state and
// is never written back.
func (s *LinkageService) Process(ctx context.Context, enrollmentID string) (*models.PaymentProcess, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	var bill *models.BillDetail
	if found, err := s.bills.FindByEnrollment(ctx, enrollmentID); err == nil {
		bill = found
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bill")
	}

	return projectProcess(enrollment, bill, s.now()), nil
}

// Settings serves the workflow configuration. The resolved settings are kept
// in the cache as a last-known-good copy; when everything else fails the
// compiled-in defaults are returned with the defaults flag set.
func (s *LinkageService) Settings(ctx context.Context) (*models.FinanceSettings, bool, error) {
	settings := &models.FinanceSettings{
		AutoGenerateBill:       s.finance.AutoGenerateBill,
		DefaultPaymentDays:     s.finance.DefaultPaymentDays,
		ReminderDays:           s.finance.ReminderDays,
		OverdueGraceDays:       s.finance.OverdueGraceDays,
		RequirePaymentToEnroll: s.finance.RequirePaymentToEnroll,
	}

	var cached models.FinanceSettings
	if err := s.cache.Get(ctx, settingsCacheKey, &cached); err == nil {
		return &cached, false, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		// Cache unreachable: serve defaults and say so.
		return settings, true, nil
	}

	if err := s.cache.Set(ctx, settingsCacheKey, settings, s.finance.ConfigCacheTTL); err != nil {
		s.logger.Sugar().Warnw("failed to cache finance settings", "error", err)
	}
	return settings, false, nil
}

func (s *LinkageService) defaultTemplate(ctx context.Context, targetGrade string) (string, error) {
	templates, _, err := s.templates.List(ctx, models.FeePackageFilter{TargetGrade: targetGrade, ActiveOnly: true, PageSize: 1})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve default fee package")
	}
	if len(templates) == 0 {
		// Fall back to any active template when none targets the grade.
		templates, _, err = s.templates.List(ctx, models.FeePackageFilter{ActiveOnly: true, PageSize: 1})
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve default fee package")
		}
	}
	if len(templates) == 0 {
		return "", appErrors.Clone(appErrors.ErrTemplateNotFound, "no active fee package template available")
	}
	return templates[0].ID, nil
}

func (s *LinkageService) invalidateStats(ctx context.Context) {
	// The backup snapshot stays until the next successful aggregation
	// overwrites it.
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		s.logger.Sugar().Warnw("failed to invalidate stats cache", "error", err)
	}
}

func projectProcess(enrollment *models.EnrollmentApplication, bill *models.BillDetail, now time.Time) *models.PaymentProcess {
	steps := []models.ProcessStep{
		{Step: "application", Status: models.StepCompleted, CompletedAt: ptrTime(enrollment.CreatedAt), Description: "Application submitted"},
	}

	review := models.ProcessStep{Step: "review", Status: models.StepPending, Description: "Application review"}
	if enrollment.ReviewedAt != nil {
		review.Status = models.StepCompleted
		review.CompletedAt = enrollment.ReviewedAt
	} else if enrollment.Status != models.EnrollmentStatusCancelled {
		review.Status = models.StepInProgress
	}
	steps = append(steps, review)

	interview := models.ProcessStep{Step: "interview", Status: models.StepPending, Description: "Admission interview"}
	if enrollment.InterviewAt != nil {
		interview.Status = models.StepCompleted
		interview.CompletedAt = enrollment.InterviewAt
	} else if review.Status == models.StepCompleted {
		interview.Status = models.StepInProgress
	}
	steps = append(steps, interview)

	payment := models.ProcessStep{Step: "payment", Status: models.StepPending, Description: "Tuition payment"}
	if bill != nil {
		switch bill.Status {
		case models.BillStatusPaid:
			payment.Status = models.StepCompleted
			payment.CompletedAt = bill.PaidAt
		case models.BillStatusPending, models.BillStatusOverdue:
			payment.Status = models.StepInProgress
		}
	}
	steps = append(steps, payment)

	enrolled := models.ProcessStep{Step: "enrollment", Status: models.StepPending, Description: "Enrollment confirmed"}
	if enrollment.Status == models.EnrollmentStatusEnrolled {
		enrolled.Status = models.StepCompleted
		enrolled.CompletedAt = enrollment.EnrolledAt
	} else if payment.Status == models.StepCompleted {
		enrolled.Status = models.StepInProgress
	}
	steps = append(steps, enrolled)

	current := "application"
	for _, step := range steps {
		if step.Status != models.StepCompleted {
			current = step.Step
			break
		}
		current = step.Step
	}

	process := &models.PaymentProcess{
		EnrollmentID: enrollment.ID,
		StudentName:  enrollment.StudentName,
		ClassName:    enrollment.ClassName,
		CurrentStep:  current,
		Steps:        steps,
	}

	if bill != nil && (bill.Status == models.BillStatusPending || bill.Status == models.BillStatusOverdue) {
		action := &models.NextAction{
			Type:        "pay_bill",
			Description: "Pay bill " + bill.BillNo,
			DueDate:     bill.DueDate,
		}
		if bill.Status == models.BillStatusOverdue || bill.DueDate.Before(now) {
			action.Type = "pay_overdue_bill"
			action.Description = "Bill " + bill.BillNo + " is overdue"
		}
		process.NextAction = action
	}
	return process
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
