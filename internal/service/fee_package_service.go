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

type feePackageRepository interface {
	List(ctx context.Context, filter models.FeePackageFilter) ([]models.FeePackageTemplate, int, error)
	FindByID(ctx context.Context, id string) (*models.FeePackageTemplate, error)
	FindLatestByCode(ctx context.Context, code string) (*models.FeePackageTemplate, error)
	Create(ctx context.Context, tpl *models.FeePackageTemplate) error
	CreateVersion(ctx context.Context, tpl *models.FeePackageTemplate) error
}

// FeeItemRequest is one line of a fee package payload.
type FeeItemRequest struct {
	FeeID    string  `json:"feeId" validate:"required"`
	FeeName  string  `json:"feeName" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Period   string  `json:"period" validate:"required,oneof=semester month year once"`
	Required bool    `json:"isRequired"`
}

// CreateFeePackageRequest holds payload for creating templates.
type CreateFeePackageRequest struct {
	Code         string           `json:"code" validate:"required"`
	Name         string           `json:"name" validate:"required"`
	Description  string           `json:"description"`
	TargetGrade  string           `json:"targetGrade"`
	Items        []FeeItemRequest `json:"items" validate:"required,min=1,dive"`
	DiscountRate float64          `json:"discountRate" validate:"gte=0,lte=1"`
	Active       bool             `json:"active"`
}

// UpdateFeePackageRequest holds payload for publishing a new version.
type UpdateFeePackageRequest struct {
	Name         string           `json:"name" validate:"required"`
	Description  string           `json:"description"`
	TargetGrade  string           `json:"targetGrade"`
	Items        []FeeItemRequest `json:"items" validate:"required,min=1,dive"`
	DiscountRate float64          `json:"discountRate" validate:"gte=0,lte=1"`
	Active       bool             `json:"active"`
}

// FeePackageService manages the versioned fee template catalog. Templates
// are immutable once created; an update publishes the next version so bills
// issued from an older version keep their snapshots intact.
type FeePackageService struct {
	repo      feePackageRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeePackageService constructs the fee package service.
func NewFeePackageService(repo feePackageRepository, validate *validator.Validate, logger *zap.Logger) *FeePackageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeePackageService{repo: repo, validator: validate, logger: logger}
}

// List returns the latest template versions and pagination metadata.
func (s *FeePackageService) List(ctx context.Context, filter models.FeePackageFilter) ([]models.FeePackageTemplate, *models.Pagination, error) {
	templates, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee packages")
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
	return templates, pagination, nil
}

// Get returns one template version.
func (s *FeePackageService) Get(ctx context.Context, id string) (*models.FeePackageTemplate, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTemplateNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee package")
	}
	return tpl, nil
}

// Create publishes version 1 of a new template. The stored total is always
// recomputed from the items, never taken from the payload.
func (s *FeePackageService) Create(ctx context.Context, req CreateFeePackageRequest) (*models.FeePackageTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee package payload")
	}
	if existing, err := s.repo.FindLatestByCode(ctx, req.Code); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "fee package code already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check fee package code")
	}

	tpl := buildTemplate(req.Code, req.Name, req.Description, req.TargetGrade, req.Items, req.DiscountRate, req.Active)
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee package")
	}
	s.logger.Sugar().Infow("fee package created", "code", tpl.Code, "total", tpl.TotalAmount)
	return tpl, nil
}

// Update publishes version n+1 under the same code.
func (s *FeePackageService) Update(ctx context.Context, id string, req UpdateFeePackageRequest) (*models.FeePackageTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee package payload")
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTemplateNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee package")
	}

	tpl := buildTemplate(current.Code, req.Name, req.Description, req.TargetGrade, req.Items, req.DiscountRate, req.Active)
	if err := s.repo.CreateVersion(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish fee package version")
	}
	s.logger.Sugar().Infow("fee package version published", "code", tpl.Code, "version", tpl.Version)
	return tpl, nil
}

// Deactivate publishes a new version with the active flag cleared, so the
// template disappears from billing without touching historical rows.
func (s *FeePackageService) Deactivate(ctx context.Context, id string) (*models.FeePackageTemplate, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTemplateNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee package")
	}

	tpl := &models.FeePackageTemplate{
		Code:         current.Code,
		Name:         current.Name,
		Description:  current.Description,
		TargetGrade:  current.TargetGrade,
		Items:        current.Items,
		TotalAmount:  current.TotalAmount,
		DiscountRate: current.DiscountRate,
		Active:       false,
	}
	if err := s.repo.CreateVersion(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate fee package")
	}
	return tpl, nil
}

func buildTemplate(code, name, description, targetGrade string, items []FeeItemRequest, discountRate float64, active bool) *models.FeePackageTemplate {
	lineItems := make(models.FeeLineItems, len(items))
	for i, item := range items {
		lineItems[i] = models.FeeLineItem{
			FeeID:    item.FeeID,
			FeeName:  item.FeeName,
			Amount:   item.Amount,
			Period:   item.Period,
			Required: item.Required,
		}
	}
	return &models.FeePackageTemplate{
		Code:         code,
		Name:         name,
		Description:  description,
		TargetGrade:  targetGrade,
		Items:        lineItems,
		TotalAmount:  lineItems.Total(),
		DiscountRate: discountRate,
		Active:       active,
	}
}
