package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	"github.com/yyup-edu/enrollment-finance-api/internal/service"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
	"github.com/yyup-edu/enrollment-finance-api/pkg/response"
)

// FeePackageHandler exposes the fee package template catalog.
type FeePackageHandler struct {
	packages *service.FeePackageService
}

// NewFeePackageHandler constructs FeePackageHandler.
func NewFeePackageHandler(packages *service.FeePackageService) *FeePackageHandler {
	return &FeePackageHandler{packages: packages}
}

// List godoc
// @Summary List fee package templates
// @Tags FeePackages
// @Produce json
// @Param targetGrade query string false "Filter by target grade"
// @Param active query bool false "Only active templates"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /finance/fee-package-templates [get]
func (h *FeePackageHandler) List(c *gin.Context) {
	var filter models.FeePackageFilter
	filter.TargetGrade = c.Query("targetGrade")
	filter.ActiveOnly = c.Query("active") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	templates, pagination, err := h.packages.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, templates, pagination)
}

// Get godoc
// @Summary Get fee package template
// @Tags FeePackages
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /finance/fee-package-templates/{id} [get]
func (h *FeePackageHandler) Get(c *gin.Context) {
	tpl, err := h.packages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Create godoc
// @Summary Create fee package template
// @Tags FeePackages
// @Accept json
// @Produce json
// @Param payload body service.CreateFeePackageRequest true "Template payload"
// @Success 201 {object} response.Envelope
// @Router /finance/fee-package-templates [post]
func (h *FeePackageHandler) Create(c *gin.Context) {
	var req service.CreateFeePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tpl, err := h.packages.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tpl)
}

// Update godoc
// @Summary Publish a new template version
// @Tags FeePackages
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body service.UpdateFeePackageRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Router /finance/fee-package-templates/{id} [put]
func (h *FeePackageHandler) Update(c *gin.Context) {
	var req service.UpdateFeePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tpl, err := h.packages.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Deactivate godoc
// @Summary Deactivate a template
// @Tags FeePackages
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Router /finance/fee-package-templates/{id} [delete]
func (h *FeePackageHandler) Deactivate(c *gin.Context) {
	tpl, err := h.packages.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}
