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

// RefundHandler exposes refund application endpoints.
type RefundHandler struct {
	refunds *service.RefundService
}

// NewRefundHandler constructs RefundHandler.
func NewRefundHandler(refunds *service.RefundService) *RefundHandler {
	return &RefundHandler{refunds: refunds}
}

// List godoc
// @Summary List refund applications
// @Tags Refunds
// @Produce json
// @Param billId query string false "Filter by bill"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /finance/refund-applications [get]
func (h *RefundHandler) List(c *gin.Context) {
	var filter models.RefundFilter
	filter.BillID = c.Query("billId")
	filter.Status = models.RefundStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	refunds, pagination, err := h.refunds.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, refunds, pagination)
}

// Get godoc
// @Summary Get refund application
// @Tags Refunds
// @Produce json
// @Param id path string true "Refund ID"
// @Success 200 {object} response.Envelope
// @Router /finance/refund-applications/{id} [get]
func (h *RefundHandler) Get(c *gin.Context) {
	refund, err := h.refunds.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, refund, nil)
}

// Apply godoc
// @Summary Open a refund application
// @Tags Refunds
// @Accept json
// @Produce json
// @Param payload body service.ApplyRefundRequest true "Refund payload"
// @Success 201 {object} response.Envelope
// @Router /finance/refund-applications [post]
func (h *RefundHandler) Apply(c *gin.Context) {
	var req service.ApplyRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	refund, err := h.refunds.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, refund)
}

// Process godoc
// @Summary Approve or reject a refund application
// @Tags Refunds
// @Accept json
// @Produce json
// @Param id path string true "Refund ID"
// @Param payload body service.ProcessRefundRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /finance/refund-applications/{id}/process [post]
func (h *RefundHandler) Process(c *gin.Context) {
	var req service.ProcessRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	refund, err := h.refunds.Process(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, refund, nil)
}

// Settle godoc
// @Summary Mark an approved refund as disbursed
// @Tags Refunds
// @Produce json
// @Param id path string true "Refund ID"
// @Success 200 {object} response.Envelope
// @Router /finance/refund-applications/{id}/settle [post]
func (h *RefundHandler) Settle(c *gin.Context) {
	refund, err := h.refunds.Settle(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, refund, nil)
}
