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

type paymentStoreStub struct {
	bills       map[string]*models.BillDetail
	records     map[string][]models.PaymentRecord
	confirmOK   bool
	enrollErr   error
	enrollCalls int
}

func newPaymentStoreStub() *paymentStoreStub {
	return &paymentStoreStub{
		bills:     make(map[string]*models.BillDetail),
		records:   make(map[string][]models.PaymentRecord),
		confirmOK: true,
	}
}

func (s *paymentStoreStub) FindByID(ctx context.Context, id string) (*models.BillDetail, error) {
	if bill, ok := s.bills[id]; ok {
		return bill, nil
	}
	return nil, sql.ErrNoRows
}

func (s *paymentStoreStub) ConfirmPayment(ctx context.Context, billID string, record *models.PaymentRecord) (bool, error) {
	if !s.confirmOK {
		return false, nil
	}
	record.BillID = billID
	record.Status = models.PaymentStatusSuccess
	s.records[billID] = append(s.records[billID], *record)
	return true, nil
}

func (s *paymentStoreStub) ConfirmPaymentAndEnroll(ctx context.Context, billID string, record *models.PaymentRecord) (bool, error) {
	s.enrollCalls++
	if s.enrollErr != nil {
		return false, s.enrollErr
	}
	return s.ConfirmPayment(ctx, billID, record)
}

func (s *paymentStoreStub) ListRecordsByBill(ctx context.Context, billID string) ([]models.PaymentRecord, error) {
	return s.records[billID], nil
}

func pendingBill() *models.BillDetail {
	return &models.BillDetail{
		PaymentBill: models.PaymentBill{
			ID:             "bill-1",
			BillNo:         "BILL202609010001",
			EnrollmentID:   "enr-1",
			TotalAmount:    4800,
			DiscountAmount: 30,
			FinalAmount:    4770,
			Status:         models.BillStatusPending,
		},
		StudentName: "Li Hua",
		ClassName:   "Sunflower",
	}
}

func TestPaymentConfirm(t *testing.T) {
	store := newPaymentStoreStub()
	store.bills["bill-1"] = pendingBill()
	svc := NewPaymentService(store, nil, nil)

	record, err := svc.Confirm(context.Background(), "bill-1", ConfirmPaymentRequest{
		Amount: 4770, Method: models.PaymentMethodWechat, ReceiptNo: "R-001",
	}, "principal-1")
	require.NoError(t, err)
	require.Equal(t, "bill-1", record.BillID)
	require.Equal(t, models.PaymentStatusSuccess, record.Status)
	require.Equal(t, "principal-1", record.ConfirmedBy)
}

func TestPaymentConfirmAmountMismatch(t *testing.T) {
	store := newPaymentStoreStub()
	store.bills["bill-1"] = pendingBill()
	svc := NewPaymentService(store, nil, nil)

	_, err := svc.Confirm(context.Background(), "bill-1", ConfirmPaymentRequest{
		Amount: 4800, Method: models.PaymentMethodWechat,
	}, "principal-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrAmountMismatch.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfirmWithinTolerance(t *testing.T) {
	store := newPaymentStoreStub()
	store.bills["bill-1"] = pendingBill()
	svc := NewPaymentService(store, nil, nil)

	_, err := svc.Confirm(context.Background(), "bill-1", ConfirmPaymentRequest{
		Amount: 4770.004, Method: models.PaymentMethodAlipay,
	}, "principal-1")
	require.NoError(t, err)
}

func TestPaymentConfirmAlreadyPaid(t *testing.T) {
	store := newPaymentStoreStub()
	paid := pendingBill()
	paid.Status = models.BillStatusPaid
	store.bills["bill-1"] = paid
	svc := NewPaymentService(store, nil, nil)

	_, err := svc.Confirm(context.Background(), "bill-1", ConfirmPaymentRequest{
		Amount: 4770, Method: models.PaymentMethodCash,
	}, "principal-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrBillAlreadyPaid.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfirmLostRace(t *testing.T) {
	store := newPaymentStoreStub()
	store.bills["bill-1"] = pendingBill()
	store.confirmOK = false
	svc := NewPaymentService(store, nil, nil)

	_, err := svc.Confirm(context.Background(), "bill-1", ConfirmPaymentRequest{
		Amount: 4770, Method: models.PaymentMethodCash,
	}, "principal-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrBillAlreadyPaid.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfirmUnsupportedMethod(t *testing.T) {
	store := newPaymentStoreStub()
	store.bills["bill-1"] = pendingBill()
	svc := NewPaymentService(store, nil, nil)

	_, err := svc.Confirm(context.Background(), "bill-1", ConfirmPaymentRequest{
		Amount: 4770, Method: "cheque",
	}, "principal-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentConfirmAndEnrollQuotaExhausted(t *testing.T) {
	store := newPaymentStoreStub()
	store.bills["bill-1"] = pendingBill()
	store.enrollErr = sql.ErrNoRows
	svc := NewPaymentService(store, nil, nil)

	_, err := svc.ConfirmAndEnroll(context.Background(), "bill-1", ConfirmPaymentRequest{
		Amount: 4770, Method: models.PaymentMethodWechat,
	}, "principal-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrQuotaExceeded.Code, appErrors.FromError(err).Code)
	require.Equal(t, 1, store.enrollCalls)
}

func TestPaymentReceiptOnlyForPaidBills(t *testing.T) {
	store := newPaymentStoreStub()
	store.bills["bill-1"] = pendingBill()
	svc := NewPaymentService(store, nil, nil)

	_, err := svc.Receipt(context.Background(), "bill-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestPaymentReceipt(t *testing.T) {
	store := newPaymentStoreStub()
	paid := pendingBill()
	paid.Status = models.BillStatusPaid
	paidAt := time.Date(2026, 9, 3, 14, 30, 0, 0, time.UTC)
	paid.PaidAt = &paidAt
	paid.Items = models.BillItems{
		{FeeID: "fee-1", FeeName: "Tuition", Amount: 4500, Period: "semester"},
		{FeeID: "fee-2", FeeName: "Meals", Amount: 300, Period: "semester"},
	}
	store.bills["bill-1"] = paid
	store.records["bill-1"] = []models.PaymentRecord{
		{BillID: "bill-1", Status: models.PaymentStatusFailed, Method: models.PaymentMethodAlipay},
		{BillID: "bill-1", Status: models.PaymentStatusSuccess, Method: models.PaymentMethodWechat,
			ReceiptNo: "R-007", ConfirmedBy: "principal-1"},
	}
	svc := NewPaymentService(store, nil, nil)

	receipt, err := svc.Receipt(context.Background(), "bill-1")
	require.NoError(t, err)
	require.Equal(t, "BILL202609010001", receipt.BillNo)
	require.Equal(t, "R-007", receipt.ReceiptNo)
	require.Equal(t, "wechat", receipt.Method)
	require.Equal(t, "principal-1", receipt.ConfirmedBy)
	require.Equal(t, "2026-09-03 14:30", receipt.PaidAt)
	require.Len(t, receipt.Items, 2)
}
