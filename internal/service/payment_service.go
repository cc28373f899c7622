package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	"github.com/yyup-edu/enrollment-finance-api/pkg/export"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

// amountTolerance absorbs float representation noise on wire amounts.
const amountTolerance = 0.005

type paymentBillStore interface {
	FindByID(ctx context.Context, id string) (*models.BillDetail, error)
	ConfirmPayment(ctx context.Context, billID string, record *models.PaymentRecord) (bool, error)
	ConfirmPaymentAndEnroll(ctx context.Context, billID string, record *models.PaymentRecord) (bool, error)
	ListRecordsByBill(ctx context.Context, billID string) ([]models.PaymentRecord, error)
}

// ConfirmPaymentRequest holds payload for recording a payment.
type ConfirmPaymentRequest struct {
	Amount    float64              `json:"amount" validate:"required,gt=0"`
	Method    models.PaymentMethod `json:"paymentMethod" validate:"required"`
	ReceiptNo string               `json:"receiptNo"`
}

// PaymentService records payments against bills. The full bill amount must
// be paid in one transaction; partial payments are rejected with an amount
// mismatch.
type PaymentService struct {
	bills     paymentBillStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(bills paymentBillStore, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{bills: bills, validator: validate, logger: logger}
}

// Confirm records a successful payment against a pending bill.
func (s *PaymentService) Confirm(ctx context.Context, billID string, req ConfirmPaymentRequest, confirmedBy string) (*models.PaymentRecord, error) {
	record, err := s.confirm(ctx, billID, req, confirmedBy, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ConfirmAndEnroll records a payment and completes enrollment in one
// transaction: the application moves to ENROLLED and one quota seat is
// consumed. Used when payment is the final admission step.
func (s *PaymentService) ConfirmAndEnroll(ctx context.Context, billID string, req ConfirmPaymentRequest, confirmedBy string) (*models.PaymentRecord, error) {
	record, err := s.confirm(ctx, billID, req, confirmedBy, true)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *PaymentService) confirm(ctx context.Context, billID string, req ConfirmPaymentRequest, confirmedBy string, enroll bool) (*models.PaymentRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !models.ValidPaymentMethod(req.Method) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported payment method")
	}

	bill, err := s.bills.FindByID(ctx, billID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment bill not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bill")
	}
	switch bill.Status {
	case models.BillStatusPaid:
		return nil, appErrors.Clone(appErrors.ErrBillAlreadyPaid, "")
	case models.BillStatusCancelled:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "bill is cancelled")
	}
	if math.Abs(req.Amount-bill.FinalAmount) > amountTolerance {
		return nil, appErrors.Clone(appErrors.ErrAmountMismatch, "")
	}

	record := &models.PaymentRecord{
		Amount:      req.Amount,
		Method:      req.Method,
		ReceiptNo:   req.ReceiptNo,
		ConfirmedBy: confirmedBy,
		PaidAt:      time.Now().UTC(),
	}

	var ok bool
	if enroll {
		ok, err = s.bills.ConfirmPaymentAndEnroll(ctx, billID, record)
	} else {
		ok, err = s.bills.ConfirmPayment(ctx, billID, record)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrQuotaExceeded, "class is full, payment not recorded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm payment")
	}
	if !ok {
		// Lost the race against a concurrent confirmation.
		return nil, appErrors.Clone(appErrors.ErrBillAlreadyPaid, "")
	}

	s.logger.Sugar().Infow("payment confirmed",
		"bill_id", billID, "bill_no", bill.BillNo, "amount", req.Amount, "method", req.Method, "enrolled", enroll)
	return record, nil
}

// Records lists payment attempts for a bill.
func (s *PaymentService) Records(ctx context.Context, billID string) ([]models.PaymentRecord, error) {
	records, err := s.bills.ListRecordsByBill(ctx, billID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payment records")
	}
	return records, nil
}

// Receipt assembles the printable receipt for a paid bill.
func (s *PaymentService) Receipt(ctx context.Context, billID string) (*export.Receipt, error) {
	bill, err := s.bills.FindByID(ctx, billID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment bill not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bill")
	}
	if bill.Status != models.BillStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "receipt is only available for paid bills")
	}

	records, err := s.bills.ListRecordsByBill(ctx, billID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payment records")
	}
	receipt := &export.Receipt{
		BillNo:      bill.BillNo,
		StudentName: bill.StudentName,
		ClassName:   bill.ClassName,
		TotalAmount: bill.TotalAmount,
		Discount:    bill.DiscountAmount,
		FinalAmount: bill.FinalAmount,
	}
	if bill.PaidAt != nil {
		receipt.PaidAt = bill.PaidAt.Format("2006-01-02 15:04")
	}
	for _, rec := range records {
		if rec.Status == models.PaymentStatusSuccess {
			receipt.ReceiptNo = rec.ReceiptNo
			receipt.Method = string(rec.Method)
			receipt.ConfirmedBy = rec.ConfirmedBy
			break
		}
	}
	for _, item := range bill.Items {
		receipt.Items = append(receipt.Items, export.ReceiptItem{
			Name:   item.FeeName,
			Period: item.Period,
			Amount: item.Amount,
		})
	}
	return receipt, nil
}
