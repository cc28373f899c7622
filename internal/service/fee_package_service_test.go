package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
)

type feePackageRepoStub struct {
	byID     map[string]*models.FeePackageTemplate
	latest   map[string]*models.FeePackageTemplate
	versions int
}

func newFeePackageRepoStub() *feePackageRepoStub {
	return &feePackageRepoStub{
		byID:   make(map[string]*models.FeePackageTemplate),
		latest: make(map[string]*models.FeePackageTemplate),
	}
}

func (s *feePackageRepoStub) List(ctx context.Context, filter models.FeePackageFilter) ([]models.FeePackageTemplate, int, error) {
	return nil, 0, nil
}

func (s *feePackageRepoStub) FindByID(ctx context.Context, id string) (*models.FeePackageTemplate, error) {
	if tpl, ok := s.byID[id]; ok {
		return tpl, nil
	}
	return nil, sql.ErrNoRows
}

func (s *feePackageRepoStub) FindLatestByCode(ctx context.Context, code string) (*models.FeePackageTemplate, error) {
	if tpl, ok := s.latest[code]; ok {
		return tpl, nil
	}
	return nil, sql.ErrNoRows
}

func (s *feePackageRepoStub) Create(ctx context.Context, tpl *models.FeePackageTemplate) error {
	tpl.ID = "tpl-" + tpl.Code
	tpl.Version = 1
	s.byID[tpl.ID] = tpl
	s.latest[tpl.Code] = tpl
	return nil
}

func (s *feePackageRepoStub) CreateVersion(ctx context.Context, tpl *models.FeePackageTemplate) error {
	prev := s.latest[tpl.Code]
	tpl.Version = 1
	if prev != nil {
		tpl.Version = prev.Version + 1
		prev.Active = false
	}
	tpl.ID = "tpl-" + tpl.Code + "-v2"
	s.versions++
	s.byID[tpl.ID] = tpl
	s.latest[tpl.Code] = tpl
	return nil
}

func standardItems() []FeeItemRequest {
	return []FeeItemRequest{
		{FeeID: "fee-1", FeeName: "Tuition", Amount: 3000, Period: "semester", Required: true},
		{FeeID: "fee-2", FeeName: "Meals", Amount: 600, Period: "semester", Required: true},
		{FeeID: "fee-3", FeeName: "Materials", Amount: 300, Period: "semester"},
	}
}

func TestFeePackageCreateRecomputesTotal(t *testing.T) {
	repo := newFeePackageRepoStub()
	svc := NewFeePackageService(repo, nil, nil)

	tpl, err := svc.Create(context.Background(), CreateFeePackageRequest{
		Code: "STANDARD", Name: "Standard Package", Items: standardItems(), Active: true,
	})
	require.NoError(t, err)
	require.Equal(t, 3900.0, tpl.TotalAmount)
	require.Equal(t, 1, tpl.Version)
}

func TestFeePackageCreateDuplicateCode(t *testing.T) {
	repo := newFeePackageRepoStub()
	svc := NewFeePackageService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateFeePackageRequest{
		Code: "STANDARD", Name: "Standard Package", Items: standardItems(), Active: true,
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateFeePackageRequest{
		Code: "STANDARD", Name: "Another", Items: standardItems(), Active: true,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFeePackageCreateRejectsBadPeriod(t *testing.T) {
	repo := newFeePackageRepoStub()
	svc := NewFeePackageService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateFeePackageRequest{
		Code: "STANDARD", Name: "Standard Package",
		Items: []FeeItemRequest{{FeeID: "fee-1", FeeName: "Tuition", Amount: 3000, Period: "weekly"}},
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFeePackageUpdatePublishesNewVersion(t *testing.T) {
	repo := newFeePackageRepoStub()
	svc := NewFeePackageService(repo, nil, nil)

	first, err := svc.Create(context.Background(), CreateFeePackageRequest{
		Code: "STANDARD", Name: "Standard Package", Items: standardItems(), Active: true,
	})
	require.NoError(t, err)

	items := standardItems()
	items[0].Amount = 3200
	second, err := svc.Update(context.Background(), first.ID, UpdateFeePackageRequest{
		Name: "Standard Package", Items: items, Active: true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)
	require.Equal(t, 4100.0, second.TotalAmount)
	// The original version keeps its snapshot but is no longer active.
	require.Equal(t, 3900.0, first.TotalAmount)
	require.False(t, first.Active)
}

func TestFeePackageDeactivate(t *testing.T) {
	repo := newFeePackageRepoStub()
	svc := NewFeePackageService(repo, nil, nil)

	first, err := svc.Create(context.Background(), CreateFeePackageRequest{
		Code: "STANDARD", Name: "Standard Package", Items: standardItems(), Active: true,
	})
	require.NoError(t, err)

	retired, err := svc.Deactivate(context.Background(), first.ID)
	require.NoError(t, err)
	require.False(t, retired.Active)
	require.Equal(t, first.TotalAmount, retired.TotalAmount)
}

func TestFeePackageGetUnknown(t *testing.T) {
	repo := newFeePackageRepoStub()
	svc := NewFeePackageService(repo, nil, nil)

	_, err := svc.Get(context.Background(), "tpl-missing")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrTemplateNotFound.Code, appErrors.FromError(err).Code)
}
