package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	"github.com/yyup-edu/enrollment-finance-api/pkg/config"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

type billStoreStub struct {
	bills    map[string]*models.PaymentBill
	byEnroll map[string]*models.BillDetail
	seq      int
	failFor  map[string]error
}

func newBillStoreStub() *billStoreStub {
	return &billStoreStub{
		bills:    make(map[string]*models.PaymentBill),
		byEnroll: make(map[string]*models.BillDetail),
		failFor:  make(map[string]error),
	}
}

func (s *billStoreStub) NextBillNo(ctx context.Context, now time.Time) (string, error) {
	s.seq++
	return "BILL" + now.Format("20060102") + "000" + string(rune('0'+s.seq)), nil
}

func (s *billStoreStub) List(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, int, error) {
	return nil, 0, nil
}

func (s *billStoreStub) FindByID(ctx context.Context, id string) (*models.BillDetail, error) {
	if bill, ok := s.bills[id]; ok {
		return &models.BillDetail{PaymentBill: *bill}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *billStoreStub) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.BillDetail, error) {
	if bill, ok := s.byEnroll[enrollmentID]; ok {
		return bill, nil
	}
	return nil, sql.ErrNoRows
}

func (s *billStoreStub) Create(ctx context.Context, bill *models.PaymentBill) error {
	if err, ok := s.failFor[bill.EnrollmentID]; ok {
		return err
	}
	bill.ID = "bill-" + bill.EnrollmentID
	bill.Status = models.BillStatusPending
	s.bills[bill.ID] = bill
	s.byEnroll[bill.EnrollmentID] = &models.BillDetail{PaymentBill: *bill}
	return nil
}

func (s *billStoreStub) Cancel(ctx context.Context, billID string) (bool, error) {
	bill, ok := s.bills[billID]
	if !ok || bill.Status != models.BillStatusPending {
		return false, nil
	}
	bill.Status = models.BillStatusCancelled
	return true, nil
}

func (s *billStoreStub) MarkOverdue(ctx context.Context, deadline time.Time) (int, error) {
	return 0, nil
}

type enrollmentStoreStub struct {
	apps     map[string]*models.EnrollmentApplication
	unbilled []models.EnrollmentApplication
}

func newEnrollmentStoreStub() *enrollmentStoreStub {
	return &enrollmentStoreStub{apps: make(map[string]*models.EnrollmentApplication)}
}

func (s *enrollmentStoreStub) FindByID(ctx context.Context, id string) (*models.EnrollmentApplication, error) {
	if app, ok := s.apps[id]; ok {
		return app, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentStoreStub) UnbilledForSemester(ctx context.Context, semester string) ([]models.EnrollmentApplication, error) {
	return s.unbilled, nil
}

type templateStoreStub struct {
	templates map[string]*models.FeePackageTemplate
}

func newTemplateStoreStub() *templateStoreStub {
	return &templateStoreStub{templates: make(map[string]*models.FeePackageTemplate)}
}

func (s *templateStoreStub) FindByID(ctx context.Context, id string) (*models.FeePackageTemplate, error) {
	if tpl, ok := s.templates[id]; ok {
		return tpl, nil
	}
	return nil, sql.ErrNoRows
}

func standardTemplate() *models.FeePackageTemplate {
	return &models.FeePackageTemplate{
		ID:   "tpl-1",
		Code: "STANDARD",
		Name: "Standard Package",
		Items: models.FeeLineItems{
			{FeeID: "fee-1", FeeName: "Tuition", Amount: 3000, Period: "semester", Required: true},
			{FeeID: "fee-2", FeeName: "Meals", Amount: 600, Period: "semester", Required: true},
			{FeeID: "fee-3", FeeName: "Materials", Amount: 300, Period: "semester"},
		},
		TotalAmount: 3900,
		Active:      true,
	}
}

func newBillingFixture() (*BillingService, *billStoreStub, *enrollmentStoreStub, *templateStoreStub) {
	bills := newBillStoreStub()
	enrollments := newEnrollmentStoreStub()
	templates := newTemplateStoreStub()
	templates.templates["tpl-1"] = standardTemplate()
	enrollments.apps["enr-1"] = &models.EnrollmentApplication{
		ID: "enr-1", StudentID: "stu-1", StudentName: "Li Hua",
		PlanID: "plan-1", ClassID: "class-1", Semester: "2026-autumn",
		Status: models.EnrollmentStatusApplied,
	}
	svc := NewBillingService(bills, enrollments, templates, config.FinanceConfig{DefaultPaymentDays: 7, OverdueGraceDays: 3}, nil, nil)
	return svc, bills, enrollments, templates
}

func TestBillingGenerateSnapshotsTemplate(t *testing.T) {
	svc, _, _, _ := newBillingFixture()

	bill, err := svc.Generate(context.Background(), GenerateBillRequest{EnrollmentID: "enr-1", TemplateID: "tpl-1"})
	require.NoError(t, err)
	require.Equal(t, 3900.0, bill.TotalAmount)
	require.Equal(t, 0.0, bill.DiscountAmount)
	require.Equal(t, 3900.0, bill.FinalAmount)
	require.Len(t, bill.Items, 3)
	require.Equal(t, models.BillStatusPending, bill.Status)
}

func TestBillingGenerateAppliesDiscount(t *testing.T) {
	svc, _, _, _ := newBillingFixture()

	discount := 130.0
	bill, err := svc.Generate(context.Background(), GenerateBillRequest{
		EnrollmentID: "enr-1", TemplateID: "tpl-1", DiscountAmount: &discount,
	})
	require.NoError(t, err)
	require.Equal(t, 3900.0, bill.TotalAmount)
	require.Equal(t, 3770.0, bill.FinalAmount)
}

func TestBillingGenerateTemplateDiscountRate(t *testing.T) {
	svc, _, _, templates := newBillingFixture()
	templates.templates["tpl-1"].DiscountRate = 0.1

	bill, err := svc.Generate(context.Background(), GenerateBillRequest{EnrollmentID: "enr-1", TemplateID: "tpl-1"})
	require.NoError(t, err)
	require.InDelta(t, 390.0, bill.DiscountAmount, 0.001)
	require.InDelta(t, 3510.0, bill.FinalAmount, 0.001)
}

func TestBillingGenerateRejectsExcessDiscount(t *testing.T) {
	svc, _, _, _ := newBillingFixture()

	discount := 4000.0
	_, err := svc.Generate(context.Background(), GenerateBillRequest{
		EnrollmentID: "enr-1", TemplateID: "tpl-1", DiscountAmount: &discount,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidDiscount.Code, appErrors.FromError(err).Code)
}

func TestBillingGenerateUnknownTemplate(t *testing.T) {
	svc, _, _, _ := newBillingFixture()

	_, err := svc.Generate(context.Background(), GenerateBillRequest{EnrollmentID: "enr-1", TemplateID: "tpl-missing"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrTemplateNotFound.Code, appErrors.FromError(err).Code)
}

func TestBillingGenerateDefaultDueDate(t *testing.T) {
	svc, _, _, _ := newBillingFixture()
	fixed := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	bill, err := svc.Generate(context.Background(), GenerateBillRequest{EnrollmentID: "enr-1", TemplateID: "tpl-1"})
	require.NoError(t, err)
	require.Equal(t, fixed.AddDate(0, 0, 7), bill.DueDate)
}

func TestBillingGenerateIdempotentPerEnrollment(t *testing.T) {
	svc, _, _, _ := newBillingFixture()

	first, err := svc.Generate(context.Background(), GenerateBillRequest{EnrollmentID: "enr-1", TemplateID: "tpl-1"})
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), GenerateBillRequest{EnrollmentID: "enr-1", TemplateID: "tpl-1"})
	require.NoError(t, err)
	require.Equal(t, first.BillNo, second.BillNo)
}

func TestBillingGenerateCustomItems(t *testing.T) {
	svc, _, _, _ := newBillingFixture()

	bill, err := svc.Generate(context.Background(), GenerateBillRequest{
		EnrollmentID: "enr-1", TemplateID: "tpl-1",
		CustomItems: []FeeItemRequest{
			{FeeID: "fee-1", FeeName: "Tuition", Amount: 3000, Period: "semester", Required: true},
			{FeeID: "fee-9", FeeName: "School Bus", Amount: 500, Period: "semester"},
		},
	})
	require.NoError(t, err)
	require.Len(t, bill.Items, 2)
	require.Equal(t, 3500.0, bill.TotalAmount)
	require.Equal(t, 3500.0, bill.FinalAmount)
}

func TestBillingBatchGenerateByEnrollmentIDs(t *testing.T) {
	svc, _, enrollments, _ := newBillingFixture()
	enrollments.apps["enr-2"] = &models.EnrollmentApplication{
		ID: "enr-2", StudentID: "stu-2", StudentName: "Wang Lei",
		Status: models.EnrollmentStatusApplied,
	}

	result, err := svc.BatchGenerate(context.Background(), BatchGenerateBillsRequest{
		EnrollmentIDs: []string{"enr-1", "enr-2", "enr-missing"},
		TemplateID:    "tpl-1",
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.GeneratedCount)
	require.Equal(t, 1, result.FailedCount)
	require.Equal(t, "enr-missing", result.Failures[0].EnrollmentID)
	require.Equal(t, "enrollment not found", result.Failures[0].Reason)
}

func TestBillingBatchGenerateCountsAddUp(t *testing.T) {
	svc, bills, enrollments, _ := newBillingFixture()
	enrollments.unbilled = []models.EnrollmentApplication{
		{ID: "enr-10", StudentID: "stu-10", StudentName: "A", Status: models.EnrollmentStatusApplied},
		{ID: "enr-11", StudentID: "stu-11", StudentName: "B", Status: models.EnrollmentStatusApplied},
		{ID: "enr-12", StudentID: "stu-12", StudentName: "C", Status: models.EnrollmentStatusApplied},
	}
	bills.failFor["enr-11"] = sql.ErrConnDone

	result, err := svc.BatchGenerate(context.Background(), BatchGenerateBillsRequest{Semester: "2026-autumn", TemplateID: "tpl-1"})
	require.NoError(t, err)
	require.Equal(t, 2, result.GeneratedCount)
	require.Equal(t, 1, result.FailedCount)
	require.Equal(t, len(enrollments.unbilled), result.GeneratedCount+result.FailedCount)
	require.Len(t, result.Failures, 1)
	require.Equal(t, "enr-11", result.Failures[0].EnrollmentID)
}
