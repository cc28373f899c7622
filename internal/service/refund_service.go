package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

type refundRepository interface {
	List(ctx context.Context, filter models.RefundFilter) ([]models.RefundApplication, int, error)
	FindByID(ctx context.Context, id string) (*models.RefundApplication, error)
	HasOpenForBill(ctx context.Context, billID string) (bool, error)
	Create(ctx context.Context, refund *models.RefundApplication) error
	Transition(ctx context.Context, id string, from, to models.RefundStatus, processedBy, remarks string) (bool, error)
}

type refundBillStore interface {
	FindByID(ctx context.Context, id string) (*models.BillDetail, error)
}

// ApplyRefundRequest holds payload for opening a refund application.
type ApplyRefundRequest struct {
	BillID       string  `json:"billId" validate:"required"`
	RefundAmount float64 `json:"refundAmount" validate:"required,gt=0"`
	Reason       string  `json:"reason" validate:"required"`
}

// ProcessRefundRequest captures the reviewer decision.
type ProcessRefundRequest struct {
	Approve bool   `json:"approve"`
	Remarks string `json:"remarks"`
}

// RefundService runs the refund state machine: pending applications are
// approved or rejected by a reviewer, approved ones are settled once the
// money has actually been returned.
type RefundService struct {
	repo      refundRepository
	bills     refundBillStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRefundService constructs the refund service.
func NewRefundService(repo refundRepository, bills refundBillStore, validate *validator.Validate, logger *zap.Logger) *RefundService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefundService{repo: repo, bills: bills, validator: validate, logger: logger}
}

// List returns refund applications and pagination metadata.
func (s *RefundService) List(ctx context.Context, filter models.RefundFilter) ([]models.RefundApplication, *models.Pagination, error) {
	refunds, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list refunds")
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
	return refunds, pagination, nil
}

// Get returns one refund application.
func (s *RefundService) Get(ctx context.Context, id string) (*models.RefundApplication, error) {
	refund, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "refund application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refund")
	}
	return refund, nil
}

// Apply opens a pending application against a paid bill. The requested
// amount may not exceed what was actually collected, and a bill can hold at
// most one open application at a time.
func (s *RefundService) Apply(ctx context.Context, req ApplyRefundRequest) (*models.RefundApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refund payload")
	}

	bill, err := s.bills.FindByID(ctx, req.BillID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment bill not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bill")
	}
	if bill.Status != models.BillStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only paid bills are refundable")
	}
	if req.RefundAmount > bill.FinalAmount {
		return nil, appErrors.Clone(appErrors.ErrValidation, "refund amount exceeds amount paid")
	}

	open, err := s.repo.HasOpenForBill(ctx, req.BillID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open refunds")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "bill already has an open refund application")
	}

	refund := &models.RefundApplication{
		BillID:         req.BillID,
		BillNo:         bill.BillNo,
		StudentName:    bill.StudentName,
		OriginalAmount: bill.FinalAmount,
		RefundAmount:   req.RefundAmount,
		Reason:         req.Reason,
	}
	if err := s.repo.Create(ctx, refund); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refund")
	}
	s.logger.Sugar().Infow("refund application opened",
		"refund_id", refund.ID, "bill_no", refund.BillNo, "amount", refund.RefundAmount)
	return refund, nil
}

// Process approves or rejects a pending application. A second decision on
// the same application loses the conditional update and surfaces as an
// invalid transition.
func (s *RefundService) Process(ctx context.Context, id string, req ProcessRefundRequest, processedBy string) (*models.RefundApplication, error) {
	to := models.RefundStatusRejected
	if req.Approve {
		to = models.RefundStatusApproved
	}
	ok, err := s.repo.Transition(ctx, id, models.RefundStatusPending, to, processedBy, req.Remarks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to process refund")
	}
	if !ok {
		if _, findErr := s.repo.FindByID(ctx, id); errors.Is(findErr, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "refund application not found")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "refund application is not pending")
	}
	s.logger.Sugar().Infow("refund processed", "refund_id", id, "status", to, "processed_by", processedBy)
	return s.Get(ctx, id)
}

// Settle marks an approved application completed after disbursement.
func (s *RefundService) Settle(ctx context.Context, id string, processedBy string) (*models.RefundApplication, error) {
	ok, err := s.repo.Transition(ctx, id, models.RefundStatusApproved, models.RefundStatusCompleted, processedBy, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle refund")
	}
	if !ok {
		if _, findErr := s.repo.FindByID(ctx, id); errors.Is(findErr, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "refund application not found")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only approved refunds can be settled")
	}
	s.logger.Sugar().Infow("refund settled", "refund_id", id, "processed_by", processedBy)
	return s.Get(ctx, id)
}
