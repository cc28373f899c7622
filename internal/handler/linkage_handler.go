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

// LinkageHandler exposes the historical enrollment-finance endpoints. These
// keep the legacy `{success, data, message}` envelope the admin frontend
// still depends on.
type LinkageHandler struct {
	linkages  *service.LinkageService
	billing   *service.BillingService
	payments  *service.PaymentService
	reminders *service.ReminderService
	packages  *service.FeePackageService
}

// NewLinkageHandler constructs LinkageHandler.
func NewLinkageHandler(linkages *service.LinkageService, billing *service.BillingService, payments *service.PaymentService, reminders *service.ReminderService, packages *service.FeePackageService) *LinkageHandler {
	return &LinkageHandler{
		linkages:  linkages,
		billing:   billing,
		payments:  payments,
		reminders: reminders,
		packages:  packages,
	}
}

// Linkages godoc
// @Summary List enrollment-finance linkages
// @Tags EnrollmentFinance
// @Produce json
// @Param status query string false "Filter by enrollment status"
// @Param className query string false "Filter by class name"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/linkages [get]
func (h *LinkageHandler) Linkages(c *gin.Context) {
	var filter models.LinkageFilter
	filter.Status = models.EnrollmentStatus(c.Query("status"))
	filter.ClassName = c.Query("className")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "20")); err == nil {
		filter.PageSize = size
	}

	rows, total, err := h.linkages.Linkages(c.Request.Context(), filter)
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.Legacy(c, response.LegacyList{List: rows, Total: total}, "")
}

// Statistics godoc
// @Summary Enrollment-finance dashboard statistics
// @Tags EnrollmentFinance
// @Produce json
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/statistics [get]
func (h *LinkageHandler) Statistics(c *gin.Context) {
	stats, stale, err := h.linkages.Statistics(c.Request.Context())
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	message := ""
	if stale {
		message = "showing cached statistics"
	}
	response.Legacy(c, stats, message)
}

// FeePackageTemplates godoc
// @Summary List fee package templates (legacy shape)
// @Tags EnrollmentFinance
// @Produce json
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/fee-package-templates [get]
func (h *LinkageHandler) FeePackageTemplates(c *gin.Context) {
	var filter models.FeePackageFilter
	filter.TargetGrade = c.Query("targetGrade")
	filter.ActiveOnly = c.DefaultQuery("active", "true") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "20")); err == nil {
		filter.PageSize = size
	}

	templates, pagination, err := h.packages.List(c.Request.Context(), filter)
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.Legacy(c, response.LegacyList{List: templates, Total: pagination.TotalCount}, "")
}

// GenerateBill godoc
// @Summary Generate a bill for an enrollment
// @Tags EnrollmentFinance
// @Accept json
// @Produce json
// @Param payload body service.GenerateBillRequest true "Bill payload"
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/generate-bill [post]
func (h *LinkageHandler) GenerateBill(c *gin.Context) {
	var req service.GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.LegacyError(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bill, err := h.billing.Generate(c.Request.Context(), req)
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.Legacy(c, bill, "bill generated")
}

// EnrollmentApproved godoc
// @Summary Approval hook: issue a bill for an approved enrollment
// @Tags EnrollmentFinance
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param templateId query string false "Fee package template override"
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/enrollment-approved/{id} [post]
func (h *LinkageHandler) EnrollmentApproved(c *gin.Context) {
	bill, err := h.linkages.OnEnrollmentApproved(c.Request.Context(), c.Param("id"), c.Query("templateId"))
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.Legacy(c, bill, "bill ready")
}

type confirmPaymentEnrollRequest struct {
	BillID string `json:"billId" binding:"required"`
	service.ConfirmPaymentRequest
}

// ConfirmPaymentEnroll godoc
// @Summary Confirm payment and finish enrollment in one step
// @Tags EnrollmentFinance
// @Accept json
// @Produce json
// @Param payload body confirmPaymentEnrollRequest true "Payment payload"
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/confirm-payment-enroll [post]
func (h *LinkageHandler) ConfirmPaymentEnroll(c *gin.Context) {
	var req confirmPaymentEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.LegacyError(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.payments.ConfirmAndEnroll(c.Request.Context(), req.BillID, req.ConfirmPaymentRequest, actorID(c))
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.Legacy(c, record, "payment confirmed and student enrolled")
}

// BatchGenerateSemesterBills godoc
// @Summary Generate bills for all unbilled enrollments in a semester
// @Tags EnrollmentFinance
// @Accept json
// @Produce json
// @Param payload body service.BatchGenerateBillsRequest true "Batch payload"
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/batch-generate-semester-bills [post]
func (h *LinkageHandler) BatchGenerateSemesterBills(c *gin.Context) {
	var req service.BatchGenerateBillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.LegacyError(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.billing.BatchGenerate(c.Request.Context(), req)
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.Legacy(c, result, "batch generation finished")
}

type sendReminderRequest struct {
	BillIDs []string `json:"billIds"`
	// BillID keeps the older single-bill payload working.
	BillID string `json:"billId"`
}

// SendPaymentReminder godoc
// @Summary Send collection reminders for one or more bills
// @Tags EnrollmentFinance
// @Accept json
// @Produce json
// @Param payload body sendReminderRequest true "Reminder payload"
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/send-payment-reminder [post]
func (h *LinkageHandler) SendPaymentReminder(c *gin.Context) {
	var req sendReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.LegacyError(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	billIDs := req.BillIDs
	if req.BillID != "" {
		billIDs = append(billIDs, req.BillID)
	}
	result, err := h.reminders.SendBatch(c.Request.Context(), billIDs)
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	message := "reminders dispatched"
	if result.NotifiedCount == 0 {
		message = "no new reminders to send"
	}
	response.Legacy(c, result, message)
}

// Process godoc
// @Summary Payment process projection for an enrollment
// @Tags EnrollmentFinance
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/process/{id} [get]
func (h *LinkageHandler) Process(c *gin.Context) {
	process, err := h.linkages.Process(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	response.Legacy(c, process, "")
}

// Config godoc
// @Summary Finance workflow configuration
// @Tags EnrollmentFinance
// @Produce json
// @Success 200 {object} response.LegacyEnvelope
// @Router /enrollment-finance/config [get]
func (h *LinkageHandler) Config(c *gin.Context) {
	settings, fromDefaults, err := h.linkages.Settings(c.Request.Context())
	if err != nil {
		response.LegacyError(c, err)
		return
	}
	message := ""
	if fromDefaults {
		message = "using default configuration"
	}
	response.Legacy(c, settings, message)
}
