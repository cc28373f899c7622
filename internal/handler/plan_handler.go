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

// PlanHandler exposes enrollment plan endpoints.
type PlanHandler struct {
	plans  *service.PlanService
	quotas *service.QuotaService
}

// NewPlanHandler constructs PlanHandler.
func NewPlanHandler(plans *service.PlanService, quotas *service.QuotaService) *PlanHandler {
	return &PlanHandler{plans: plans, quotas: quotas}
}

// List godoc
// @Summary List enrollment plans
// @Tags EnrollmentPlans
// @Produce json
// @Param academicYear query string false "Filter by academic year"
// @Param term query string false "Filter by term"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollment-plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	var filter models.PlanFilter
	filter.AcademicYear = c.Query("academicYear")
	filter.Term = c.Query("term")
	filter.Status = models.PlanStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	plans, pagination, err := h.plans.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get plan detail with quotas
// @Tags EnrollmentPlans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-plans/{id} [get]
func (h *PlanHandler) Get(c *gin.Context) {
	plan, quotas, err := h.plans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"plan": plan, "quotas": quotas}, nil)
}

// Create godoc
// @Summary Create enrollment plan
// @Tags EnrollmentPlans
// @Accept json
// @Produce json
// @Param payload body service.CreatePlanRequest true "Plan payload"
// @Success 201 {object} response.Envelope
// @Router /enrollment-plans [post]
func (h *PlanHandler) Create(c *gin.Context) {
	var req service.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	plan, err := h.plans.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Update godoc
// @Summary Update enrollment plan
// @Tags EnrollmentPlans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body service.UpdatePlanRequest true "Plan payload"
// @Success 200 {object} response.Envelope
// @Router /enrollment-plans/{id} [put]
func (h *PlanHandler) Update(c *gin.Context) {
	var req service.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	plan, err := h.plans.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Publish godoc
// @Summary Publish a plan
// @Tags EnrollmentPlans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 204
// @Router /enrollment-plans/{id}/publish [post]
func (h *PlanHandler) Publish(c *gin.Context) {
	if err := h.plans.Publish(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Pause godoc
// @Summary Pause a plan
// @Tags EnrollmentPlans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 204
// @Router /enrollment-plans/{id}/pause [post]
func (h *PlanHandler) Pause(c *gin.Context) {
	if err := h.plans.Pause(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Complete godoc
// @Summary Complete a plan
// @Tags EnrollmentPlans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 204
// @Router /enrollment-plans/{id}/complete [post]
func (h *PlanHandler) Complete(c *gin.Context) {
	if err := h.plans.Complete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Cancel godoc
// @Summary Cancel a plan
// @Tags EnrollmentPlans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 204
// @Router /enrollment-plans/{id}/cancel [post]
func (h *PlanHandler) Cancel(c *gin.Context) {
	if err := h.plans.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Quotas godoc
// @Summary List class quotas for a plan
// @Tags EnrollmentPlans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-plans/{id}/quotas [get]
func (h *PlanHandler) Quotas(c *gin.Context) {
	quotas, err := h.quotas.ListByPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quotas, nil)
}

// CreateQuotas godoc
// @Summary Add class quotas to a plan
// @Tags EnrollmentPlans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body []service.PlanQuotaRequest true "Quota payload"
// @Success 201 {object} response.Envelope
// @Router /enrollment-plans/{id}/quotas [post]
func (h *PlanHandler) CreateQuotas(c *gin.Context) {
	var reqs []service.PlanQuotaRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quotas, err := h.plans.AddQuotas(c.Request.Context(), c.Param("id"), reqs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quotas)
}

// DeleteQuota godoc
// @Summary Remove an unused class quota
// @Tags EnrollmentPlans
// @Produce json
// @Param id path string true "Plan ID"
// @Param classId path string true "Class ID"
// @Success 204
// @Router /enrollment-plans/{id}/quotas/{classId} [delete]
func (h *PlanHandler) DeleteQuota(c *gin.Context) {
	if err := h.quotas.Delete(c.Request.Context(), c.Param("id"), c.Param("classId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type adjustSeatsRequest struct {
	Count    int  `json:"count" binding:"required,gt=0"`
	Override bool `json:"override"`
}

// ReserveSeats godoc
// @Summary Manually hold seats on a class quota
// @Tags EnrollmentPlans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param classId path string true "Class ID"
// @Param payload body adjustSeatsRequest true "Seat count"
// @Success 200 {object} response.Envelope
// @Router /enrollment-plans/{id}/quotas/{classId}/reserve [post]
func (h *PlanHandler) ReserveSeats(c *gin.Context) {
	var req adjustSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	state, err := h.quotas.Reserve(c.Request.Context(), c.Param("id"), c.Param("classId"), req.Count, req.Override)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// ReleaseSeats godoc
// @Summary Return held seats to a class quota
// @Tags EnrollmentPlans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param classId path string true "Class ID"
// @Param payload body adjustSeatsRequest true "Seat count"
// @Success 200 {object} response.Envelope
// @Router /enrollment-plans/{id}/quotas/{classId}/release [post]
func (h *PlanHandler) ReleaseSeats(c *gin.Context) {
	var req adjustSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	state, err := h.quotas.Release(c.Request.Context(), c.Param("id"), c.Param("classId"), req.Count)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}
