package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	"github.com/yyup-edu/enrollment-finance-api/internal/service"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
	"github.com/yyup-edu/enrollment-finance-api/pkg/export"
	"github.com/yyup-edu/enrollment-finance-api/pkg/response"
)

// BillHandler exposes payment bill endpoints.
type BillHandler struct {
	billing  *service.BillingService
	payments *service.PaymentService
	csv      *export.CSVExporter
	pdf      *export.ReceiptPDF
}

// NewBillHandler constructs BillHandler.
func NewBillHandler(billing *service.BillingService, payments *service.PaymentService) *BillHandler {
	return &BillHandler{
		billing:  billing,
		payments: payments,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewReceiptPDF(),
	}
}

func billFilterFromQuery(c *gin.Context) models.BillFilter {
	var filter models.BillFilter
	filter.StudentID = c.Query("studentId")
	filter.EnrollmentID = c.Query("enrollmentId")
	filter.Status = models.BillStatus(c.Query("status"))
	if raw := c.Query("dueBefore"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DueBefore = &t
		}
	}
	if raw := c.Query("dueAfter"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DueAfter = &t
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

// List godoc
// @Summary List payment bills
// @Tags PaymentBills
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param enrollmentId query string false "Filter by enrollment"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /finance/payment-bills [get]
func (h *BillHandler) List(c *gin.Context) {
	filter := billFilterFromQuery(c)
	bills, pagination, err := h.billing.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Historical list shape: items plus flat paging fields.
	response.JSON(c, http.StatusOK, gin.H{
		"items":    bills,
		"total":    pagination.TotalCount,
		"page":     pagination.Page,
		"pageSize": pagination.PageSize,
	}, nil)
}

// Get godoc
// @Summary Get payment bill detail
// @Tags PaymentBills
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Router /finance/payment-bills/{id} [get]
func (h *BillHandler) Get(c *gin.Context) {
	bill, err := h.billing.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bill, nil)
}

// Generate godoc
// @Summary Generate a payment bill
// @Tags PaymentBills
// @Accept json
// @Produce json
// @Param payload body service.GenerateBillRequest true "Bill payload"
// @Success 201 {object} response.Envelope
// @Router /finance/payment-bills [post]
func (h *BillHandler) Generate(c *gin.Context) {
	var req service.GenerateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bill, err := h.billing.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bill)
}

// Confirm godoc
// @Summary Confirm payment for a bill
// @Tags PaymentBills
// @Accept json
// @Produce json
// @Param id path string true "Bill ID"
// @Param payload body service.ConfirmPaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Router /finance/payment-bills/{id}/confirm [post]
func (h *BillHandler) Confirm(c *gin.Context) {
	var req service.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.payments.Confirm(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Cancel godoc
// @Summary Cancel a pending bill
// @Tags PaymentBills
// @Produce json
// @Param id path string true "Bill ID"
// @Success 204
// @Router /finance/payment-bills/{id}/cancel [post]
func (h *BillHandler) Cancel(c *gin.Context) {
	if err := h.billing.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Records godoc
// @Summary List payment records for a bill
// @Tags PaymentBills
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Router /finance/payment-bills/{id}/records [get]
func (h *BillHandler) Records(c *gin.Context) {
	records, err := h.payments.Records(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Receipt godoc
// @Summary Download the payment receipt PDF
// @Tags PaymentBills
// @Produce application/pdf
// @Param id path string true "Bill ID"
// @Success 200 {file} binary
// @Router /finance/payment-bills/{id}/receipt [get]
func (h *BillHandler) Receipt(c *gin.Context) {
	receipt, err := h.payments.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.pdf.Render(*receipt)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", receipt.BillNo))
	c.Data(http.StatusOK, "application/pdf", payload)
}

// Export godoc
// @Summary Export bills as CSV
// @Tags PaymentBills
// @Produce text/csv
// @Param status query string false "Filter by status"
// @Success 200 {file} binary
// @Router /finance/payment-bills/export [get]
func (h *BillHandler) Export(c *gin.Context) {
	filter := billFilterFromQuery(c)
	filter.Page = 1
	filter.PageSize = 100

	headers := []string{"Bill No", "Student", "Class", "Total", "Discount", "Final", "Status", "Due Date", "Paid At"}
	var rows []map[string]string
	for {
		bills, pagination, err := h.billing.List(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		for _, bill := range bills {
			row := map[string]string{
				"Bill No":  bill.BillNo,
				"Student":  bill.StudentName,
				"Class":    bill.ClassName,
				"Total":    fmt.Sprintf("%.2f", bill.TotalAmount),
				"Discount": fmt.Sprintf("%.2f", bill.DiscountAmount),
				"Final":    fmt.Sprintf("%.2f", bill.FinalAmount),
				"Status":   string(bill.Status),
				"Due Date": bill.DueDate.Format("2006-01-02"),
			}
			if bill.PaidAt != nil {
				row["Paid At"] = bill.PaidAt.Format("2006-01-02 15:04")
			}
			rows = append(rows, row)
		}
		if filter.Page*filter.PageSize >= pagination.TotalCount {
			break
		}
		filter.Page++
	}

	payload, err := h.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=payment-bills.csv")
	c.Data(http.StatusOK, "text/csv", payload)
}
