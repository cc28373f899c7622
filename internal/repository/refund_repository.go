package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
)

// RefundRepository persists refund applications. Status moves only through
// Transition, which guards on the expected current status so concurrent
// reviewers cannot both win.
type RefundRepository struct {
	db *sqlx.DB
}

// NewRefundRepository constructs the repository.
func NewRefundRepository(db *sqlx.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

const refundColumns = `id, bill_id, bill_no, student_name, original_amount, refund_amount, reason,
        status, processed_by, processed_at, remarks, created_at, updated_at`

// List returns refund applications matching the filter.
func (r *RefundRepository) List(ctx context.Context, filter models.RefundFilter) ([]models.RefundApplication, int, error) {
	var conditions []string
	var args []interface{}

	if filter.BillID != "" {
		conditions = append(conditions, fmt.Sprintf("bill_id = $%d", len(args)+1))
		args = append(args, filter.BillID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM refund_applications%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		refundColumns, clause, size, offset)

	var refunds []models.RefundApplication
	if err := r.db.SelectContext(ctx, &refunds, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list refunds: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM refund_applications%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count refunds: %w", err)
	}
	return refunds, total, nil
}

// FindByID returns one refund application.
func (r *RefundRepository) FindByID(ctx context.Context, id string) (*models.RefundApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM refund_applications WHERE id = $1`, refundColumns)
	var refund models.RefundApplication
	if err := r.db.GetContext(ctx, &refund, query, id); err != nil {
		return nil, err
	}
	return &refund, nil
}

// HasOpenForBill reports whether the bill already has a pending or approved
// application. Rejected and completed applications do not block a new one.
func (r *RefundRepository) HasOpenForBill(ctx context.Context, billID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM refund_applications WHERE bill_id = $1 AND status IN ('pending', 'approved')`
	var count int
	if err := r.db.GetContext(ctx, &count, query, billID); err != nil {
		return false, fmt.Errorf("check open refunds: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new pending application.
func (r *RefundRepository) Create(ctx context.Context, refund *models.RefundApplication) error {
	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}
	refund.Status = models.RefundStatusPending
	now := time.Now().UTC()
	refund.CreatedAt = now
	refund.UpdatedAt = now
	const query = `INSERT INTO refund_applications (id, bill_id, bill_no, student_name, original_amount, refund_amount, reason, status, processed_by, processed_at, remarks, created_at, updated_at)
        VALUES (:id, :bill_id, :bill_no, :student_name, :original_amount, :refund_amount, :reason, :status, :processed_by, :processed_at, :remarks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, refund); err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

// Transition moves an application from one status to another. Zero rows
// affected means the application was not in the expected state.
func (r *RefundRepository) Transition(ctx context.Context, id string, from, to models.RefundStatus, processedBy, remarks string) (bool, error) {
	const query = `UPDATE refund_applications SET status = $3, processed_by = $4, processed_at = NOW(),
        remarks = $5, updated_at = NOW() WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, processedBy, remarks)
	if err != nil {
		return false, fmt.Errorf("transition refund: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition refund result: %w", err)
	}
	return affected > 0, nil
}
