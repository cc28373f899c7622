package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	"github.com/yyup-edu/enrollment-finance-api/pkg/config"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

type billWriter interface {
	NextBillNo(ctx context.Context, now time.Time) (string, error)
	List(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.BillDetail, error)
	FindByEnrollment(ctx context.Context, enrollmentID string) (*models.BillDetail, error)
	Create(ctx context.Context, bill *models.PaymentBill) error
	Cancel(ctx context.Context, billID string) (bool, error)
	MarkOverdue(ctx context.Context, deadline time.Time) (int, error)
}

type billingEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentApplication, error)
	UnbilledForSemester(ctx context.Context, semester string) ([]models.EnrollmentApplication, error)
}

type billingTemplateStore interface {
	FindByID(ctx context.Context, id string) (*models.FeePackageTemplate, error)
}

// GenerateBillRequest holds payload for issuing a single bill. CustomItems,
// when present, replace the template's item list for this one bill (extra
// per-student charges such as a school bus fee).
type GenerateBillRequest struct {
	EnrollmentID   string           `json:"enrollmentId" validate:"required"`
	TemplateID     string           `json:"templateId" validate:"required"`
	CustomItems    []FeeItemRequest `json:"customItems" validate:"omitempty,min=1,dive"`
	DiscountAmount *float64         `json:"discountAmount" validate:"omitempty,gte=0"`
	DueDate        *time.Time       `json:"dueDate"`
}

// BatchGenerateBillsRequest holds payload for a batch run. Targets are either
// an explicit enrollment list or every unbilled application in a semester.
type BatchGenerateBillsRequest struct {
	Semester      string     `json:"semester" validate:"required_without=EnrollmentIDs"`
	EnrollmentIDs []string   `json:"enrollmentIds"`
	TemplateID    string     `json:"templateId" validate:"required"`
	DueDate       *time.Time `json:"dueDate"`
}

// BillingService issues payment bills from fee package templates. Items and
// amounts are snapshotted at issue time; later template versions never
// affect a bill that already exists.
type BillingService struct {
	bills       billWriter
	enrollments billingEnrollmentStore
	templates   billingTemplateStore
	finance     config.FinanceConfig
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewBillingService constructs the billing service.
func NewBillingService(bills billWriter, enrollments billingEnrollmentStore, templates billingTemplateStore, finance config.FinanceConfig, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if finance.DefaultPaymentDays <= 0 {
		finance.DefaultPaymentDays = 7
	}
	return &BillingService{
		bills:       bills,
		enrollments: enrollments,
		templates:   templates,
		finance:     finance,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns bill details and pagination metadata.
func (s *BillingService) List(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, *models.Pagination, error) {
	bills, total, err := s.bills.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bills")
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
	return bills, pagination, nil
}

// Get returns one bill with student context.
func (s *BillingService) Get(ctx context.Context, id string) (*models.BillDetail, error) {
	bill, err := s.bills.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment bill not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bill")
	}
	return bill, nil
}

// Generate issues a bill for an enrollment from a template snapshot.
// Generation is idempotent per enrollment: an existing live bill is
// returned as-is instead of issuing a duplicate.
func (s *BillingService) Generate(ctx context.Context, req GenerateBillRequest) (*models.PaymentBill, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bill payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment is cancelled")
	}

	if existing, err := s.bills.FindByEnrollment(ctx, req.EnrollmentID); err == nil {
		return &existing.PaymentBill, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing bill")
	}

	return s.issue(ctx, enrollment, req.TemplateID, req.CustomItems, req.DiscountAmount, req.DueDate)
}

// BatchGenerate issues bills for every unbilled APPLIED enrollment in a
// semester. Failures are isolated per target; the counts always add up to
// the candidate set size.
func (s *BillingService) BatchGenerate(ctx context.Context, req BatchGenerateBillsRequest) (*models.BatchBillResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	result := &models.BatchBillResult{}
	var targets []models.EnrollmentApplication
	if len(req.EnrollmentIDs) > 0 {
		for _, id := range req.EnrollmentIDs {
			enrollment, err := s.enrollments.FindByID(ctx, id)
			if err != nil {
				result.FailedCount++
				reason := "enrollment not found"
				if !errors.Is(err, sql.ErrNoRows) {
					reason = "failed to load enrollment"
				}
				result.Failures = append(result.Failures, models.BatchBillError{EnrollmentID: id, Reason: reason})
				continue
			}
			targets = append(targets, *enrollment)
		}
	} else {
		var err error
		targets, err = s.enrollments.UnbilledForSemester(ctx, req.Semester)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batch targets")
		}
	}

	for i := range targets {
		target := &targets[i]
		bill, issueErr := s.issue(ctx, target, req.TemplateID, nil, nil, req.DueDate)
		if issueErr != nil {
			result.FailedCount++
			result.Failures = append(result.Failures, models.BatchBillError{
				EnrollmentID: target.ID,
				Reason:       appErrors.FromError(issueErr).Message,
			})
			s.logger.Sugar().Warnw("batch bill generation failed", "enrollment_id", target.ID, "error", issueErr)
			continue
		}
		result.GeneratedCount++
		result.Bills = append(result.Bills, models.BatchBillTarget{
			EnrollmentID: target.ID,
			BillID:       bill.ID,
			BillNo:       bill.BillNo,
			StudentName:  target.StudentName,
			Amount:       bill.FinalAmount,
		})
	}
	s.logger.Sugar().Infow("batch bill generation finished",
		"semester", req.Semester, "generated", result.GeneratedCount, "failed", result.FailedCount)
	return result, nil
}

// Cancel voids a pending bill.
func (s *BillingService) Cancel(ctx context.Context, billID string) error {
	ok, err := s.bills.Cancel(ctx, billID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel bill")
	}
	if !ok {
		bill, findErr := s.bills.FindByID(ctx, billID)
		if errors.Is(findErr, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment bill not found")
		}
		if findErr == nil && bill.Status == models.BillStatusPaid {
			return appErrors.Clone(appErrors.ErrBillAlreadyPaid, "paid bills cannot be cancelled")
		}
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending bills can be cancelled")
	}
	return nil
}

// SweepOverdue marks pending bills past due date plus the grace window as
// overdue and reports how many were flipped.
func (s *BillingService) SweepOverdue(ctx context.Context) (int, error) {
	deadline := s.now().AddDate(0, 0, -s.finance.OverdueGraceDays)
	count, err := s.bills.MarkOverdue(ctx, deadline)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep overdue bills")
	}
	if count > 0 {
		s.logger.Sugar().Infow("overdue sweep completed", "bills", count)
	}
	return count, nil
}

func (s *BillingService) issue(ctx context.Context, enrollment *models.EnrollmentApplication, templateID string, customItems []FeeItemRequest, discountAmount *float64, dueDate *time.Time) (*models.PaymentBill, error) {
	tpl, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTemplateNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee package")
	}
	if !tpl.Active {
		return nil, appErrors.Clone(appErrors.ErrTemplateNotFound, "fee package template is inactive")
	}

	var items models.BillItems
	if len(customItems) > 0 {
		items = make(models.BillItems, len(customItems))
		for i, item := range customItems {
			items[i] = models.BillItem{
				FeeID:   item.FeeID,
				FeeName: item.FeeName,
				Amount:  item.Amount,
				Period:  item.Period,
			}
		}
	} else {
		items = make(models.BillItems, len(tpl.Items))
		for i, item := range tpl.Items {
			items[i] = models.BillItem{
				FeeID:   item.FeeID,
				FeeName: item.FeeName,
				Amount:  item.Amount,
				Period:  item.Period,
			}
		}
	}
	total := items.Total()

	discount := total * tpl.DiscountRate
	if discountAmount != nil {
		discount = *discountAmount
	}
	if discount < 0 || discount > total {
		return nil, appErrors.Clone(appErrors.ErrInvalidDiscount, "")
	}

	now := s.now()
	due := now.AddDate(0, 0, s.finance.DefaultPaymentDays)
	if dueDate != nil {
		if dueDate.Before(now) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "due date cannot be in the past")
		}
		due = *dueDate
	}

	billNo, err := s.bills.NextBillNo(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate bill number")
	}

	bill := &models.PaymentBill{
		BillNo:         billNo,
		EnrollmentID:   enrollment.ID,
		StudentID:      enrollment.StudentID,
		TemplateID:     tpl.ID,
		Items:          items,
		TotalAmount:    total,
		DiscountAmount: discount,
		FinalAmount:    total - discount,
		DueDate:        due,
	}
	if err := s.bills.Create(ctx, bill); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bill")
	}
	s.logger.Sugar().Infow("bill generated",
		"bill_no", bill.BillNo, "enrollment_id", enrollment.ID, "final_amount", bill.FinalAmount)
	return bill, nil
}
