package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	"github.com/yyup-edu/enrollment-finance-api/pkg/config"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

type linkageReaderStub struct {
	stats    *models.FinanceStats
	statsErr error
}

func (s *linkageReaderStub) List(ctx context.Context, filter models.LinkageFilter) ([]models.Linkage, int, error) {
	return nil, 0, nil
}

func (s *linkageReaderStub) Statistics(ctx context.Context) (*models.FinanceStats, error) {
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	stats := *s.stats
	return &stats, nil
}

type linkageEnrollmentStub struct {
	apps map[string]*models.EnrollmentApplication
}

func (s *linkageEnrollmentStub) FindByID(ctx context.Context, id string) (*models.EnrollmentApplication, error) {
	if app, ok := s.apps[id]; ok {
		return app, nil
	}
	return nil, sql.ErrNoRows
}

type linkageBillStub struct {
	byEnroll map[string]*models.BillDetail
}

func (s *linkageBillStub) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.BillDetail, error) {
	if bill, ok := s.byEnroll[enrollmentID]; ok {
		return bill, nil
	}
	return nil, sql.ErrNoRows
}

type billGeneratorStub struct {
	calls int
	bill  *models.PaymentBill
	err   error
}

func (s *billGeneratorStub) Generate(ctx context.Context, req GenerateBillRequest) (*models.PaymentBill, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	bill := *s.bill
	bill.EnrollmentID = req.EnrollmentID
	bill.TemplateID = req.TemplateID
	return &bill, nil
}

type templateCatalogStub struct {
	templates []models.FeePackageTemplate
}

func (s *templateCatalogStub) List(ctx context.Context, filter models.FeePackageFilter) ([]models.FeePackageTemplate, int, error) {
	var out []models.FeePackageTemplate
	for _, tpl := range s.templates {
		if filter.ActiveOnly && !tpl.Active {
			continue
		}
		if filter.TargetGrade != "" && tpl.TargetGrade != filter.TargetGrade {
			continue
		}
		out = append(out, tpl)
	}
	return out, len(out), nil
}

// cacheStub mimics the round-trip through the real cache by storing JSON.
type cacheStub struct {
	entries map[string][]byte
	getErr  error
	setErr  error
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: make(map[string][]byte)}
}

func (s *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	data, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (s *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = data
	return nil
}

func (s *cacheStub) Delete(ctx context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

type linkageFixture struct {
	svc         *LinkageService
	reader      *linkageReaderStub
	enrollments *linkageEnrollmentStub
	bills       *linkageBillStub
	billing     *billGeneratorStub
	templates   *templateCatalogStub
	cache       *cacheStub
}

func newLinkageFixture() *linkageFixture {
	f := &linkageFixture{
		reader: &linkageReaderStub{stats: &models.FinanceStats{
			TotalEnrollments: 40, PaidEnrollments: 30, PendingPayments: 8, OverduePayments: 2, TotalRevenue: 143100,
		}},
		enrollments: &linkageEnrollmentStub{apps: map[string]*models.EnrollmentApplication{
			"enr-1": {
				ID: "enr-1", StudentID: "stu-1", StudentName: "Li Hua", ClassName: "Sunflower",
				Status: models.EnrollmentStatusApplied, CreatedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
			},
		}},
		bills:     &linkageBillStub{byEnroll: make(map[string]*models.BillDetail)},
		billing:   &billGeneratorStub{bill: &models.PaymentBill{ID: "bill-new", BillNo: "BILL202609010001"}},
		templates: &templateCatalogStub{templates: []models.FeePackageTemplate{{ID: "tpl-1", Code: "STANDARD", Active: true}}},
		cache:     newCacheStub(),
	}
	cfg := config.FinanceConfig{
		AutoGenerateBill:   true,
		DefaultPaymentDays: 7,
		ReminderDays:       []int{3, 1, 0},
		OverdueGraceDays:   3,
		StatsCacheTTL:      time.Minute,
		ConfigCacheTTL:     time.Hour,
	}
	f.svc = NewLinkageService(f.reader, f.enrollments, f.bills, f.billing, f.templates, f.cache, cfg, nil)
	return f
}

func TestLinkageStatisticsComputesCollectionRate(t *testing.T) {
	f := newLinkageFixture()

	stats, stale, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)
	require.False(t, stale)
	require.InDelta(t, 75.0, stats.CollectionRate, 0.001)
	require.Contains(t, f.cache.entries, "finance:stats")
	require.Contains(t, f.cache.entries, "finance:stats:last")
}

func TestLinkageStatisticsServesStaleOnDBFailure(t *testing.T) {
	f := newLinkageFixture()

	// Warm the cache, then break the database.
	_, _, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)
	f.reader.statsErr = sql.ErrConnDone

	// First read still hits the fresh cache entry.
	stats, stale, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)
	require.False(t, stale)
	require.Equal(t, 30, stats.PaidEnrollments)
}

func TestLinkageStatisticsServesBackupAfterTTLExpiry(t *testing.T) {
	f := newLinkageFixture()

	// Warm the cache, let the short-lived entry expire, then break the
	// database. The unexpiring backup snapshot still serves.
	_, _, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)
	delete(f.cache.entries, "finance:stats")
	f.reader.statsErr = sql.ErrConnDone

	stats, stale, err := f.svc.Statistics(context.Background())
	require.NoError(t, err)
	require.True(t, stale)
	require.Equal(t, 30, stats.PaidEnrollments)
	require.InDelta(t, 75.0, stats.CollectionRate, 0.001)
}

func TestLinkageStatisticsFailsWithEmptyCache(t *testing.T) {
	f := newLinkageFixture()
	f.reader.statsErr = sql.ErrConnDone

	_, _, err := f.svc.Statistics(context.Background())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestLinkageOnEnrollmentApprovedIdempotent(t *testing.T) {
	f := newLinkageFixture()
	f.bills.byEnroll["enr-1"] = &models.BillDetail{
		PaymentBill: models.PaymentBill{ID: "bill-existing", BillNo: "BILL202608010001", EnrollmentID: "enr-1"},
	}

	bill, err := f.svc.OnEnrollmentApproved(context.Background(), "enr-1", "")
	require.NoError(t, err)
	require.Equal(t, "bill-existing", bill.ID)
	require.Zero(t, f.billing.calls)
}

func TestLinkageOnEnrollmentApprovedGenerates(t *testing.T) {
	f := newLinkageFixture()

	bill, err := f.svc.OnEnrollmentApproved(context.Background(), "enr-1", "")
	require.NoError(t, err)
	require.Equal(t, "tpl-1", bill.TemplateID)
	require.Equal(t, 1, f.billing.calls)
}

func TestLinkageOnEnrollmentApprovedDisabled(t *testing.T) {
	f := newLinkageFixture()
	f.svc.finance.AutoGenerateBill = false

	_, err := f.svc.OnEnrollmentApproved(context.Background(), "enr-1", "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	require.Zero(t, f.billing.calls)

	// An explicit template override bypasses the auto-generation switch.
	_, err = f.svc.OnEnrollmentApproved(context.Background(), "enr-1", "tpl-1")
	require.NoError(t, err)
	require.Equal(t, 1, f.billing.calls)
}

func TestLinkageOnEnrollmentApprovedNoTemplates(t *testing.T) {
	f := newLinkageFixture()
	f.templates.templates = nil

	_, err := f.svc.OnEnrollmentApproved(context.Background(), "enr-1", "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrTemplateNotFound.Code, appErrors.FromError(err).Code)
}

func TestLinkageProcessProjection(t *testing.T) {
	f := newLinkageFixture()
	reviewed := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	f.enrollments.apps["enr-1"].ReviewedAt = &reviewed
	f.bills.byEnroll["enr-1"] = &models.BillDetail{
		PaymentBill: models.PaymentBill{
			ID: "bill-1", BillNo: "BILL202608050001", EnrollmentID: "enr-1",
			Status: models.BillStatusPending, DueDate: time.Now().UTC().AddDate(0, 0, 5),
		},
	}

	process, err := f.svc.Process(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, process.Steps, 5)
	require.Equal(t, models.StepCompleted, process.Steps[0].Status)
	require.Equal(t, models.StepCompleted, process.Steps[1].Status)
	require.Equal(t, models.StepInProgress, process.Steps[2].Status)
	require.Equal(t, models.StepInProgress, process.Steps[3].Status)
	require.Equal(t, models.StepPending, process.Steps[4].Status)
	require.Equal(t, "interview", process.CurrentStep)
	require.NotNil(t, process.NextAction)
	require.Equal(t, "pay_bill", process.NextAction.Type)
}

func TestLinkageProcessOverdueAction(t *testing.T) {
	f := newLinkageFixture()
	f.bills.byEnroll["enr-1"] = &models.BillDetail{
		PaymentBill: models.PaymentBill{
			ID: "bill-1", BillNo: "BILL202608050001", EnrollmentID: "enr-1",
			Status: models.BillStatusOverdue, DueDate: time.Now().UTC().AddDate(0, 0, -2),
		},
	}

	process, err := f.svc.Process(context.Background(), "enr-1")
	require.NoError(t, err)
	require.NotNil(t, process.NextAction)
	require.Equal(t, "pay_overdue_bill", process.NextAction.Type)
}

func TestLinkageProcessEnrolled(t *testing.T) {
	f := newLinkageFixture()
	reviewed := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	interviewed := reviewed.AddDate(0, 0, 2)
	enrolled := reviewed.AddDate(0, 0, 10)
	paidAt := reviewed.AddDate(0, 0, 9)
	app := f.enrollments.apps["enr-1"]
	app.ReviewedAt = &reviewed
	app.InterviewAt = &interviewed
	app.EnrolledAt = &enrolled
	app.Status = models.EnrollmentStatusEnrolled
	f.bills.byEnroll["enr-1"] = &models.BillDetail{
		PaymentBill: models.PaymentBill{
			ID: "bill-1", EnrollmentID: "enr-1", Status: models.BillStatusPaid, PaidAt: &paidAt,
		},
	}

	process, err := f.svc.Process(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, "enrollment", process.CurrentStep)
	for _, step := range process.Steps {
		require.Equal(t, models.StepCompleted, step.Status)
	}
	require.Nil(t, process.NextAction)
}

func TestLinkageSettingsDefaultsWhenCacheUnreachable(t *testing.T) {
	f := newLinkageFixture()
	f.cache.getErr = errors.New("connection refused")

	settings, fromDefaults, err := f.svc.Settings(context.Background())
	require.NoError(t, err)
	require.True(t, fromDefaults)
	require.Equal(t, 7, settings.DefaultPaymentDays)
	require.Equal(t, []int{3, 1, 0}, settings.ReminderDays)
}

func TestLinkageSettingsCached(t *testing.T) {
	f := newLinkageFixture()

	settings, fromDefaults, err := f.svc.Settings(context.Background())
	require.NoError(t, err)
	require.False(t, fromDefaults)
	require.True(t, settings.AutoGenerateBill)
	require.Contains(t, f.cache.entries, "finance:settings")
}
