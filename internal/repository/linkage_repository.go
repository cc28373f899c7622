package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
)

// LinkageRepository serves the read side of the enrollment-to-finance join:
// the linkage list and the dashboard statistics. It never writes.
type LinkageRepository struct {
	db *sqlx.DB
}

// NewLinkageRepository constructs the repository.
func NewLinkageRepository(db *sqlx.DB) *LinkageRepository {
	return &LinkageRepository{db: db}
}

// latestBill picks one live bill per enrollment so the join cannot fan out.
const linkageBase = `FROM enrollment_applications e
LEFT JOIN LATERAL (
    SELECT bill_no, total_amount, due_date, status FROM payment_bills
    WHERE enrollment_id = e.id AND status != 'cancelled'
    ORDER BY created_at DESC LIMIT 1
) b ON TRUE`

const linkageColumns = `e.id AS enrollment_id, e.student_name, e.class_name, e.status AS enrollment_status,
        CASE
            WHEN b.bill_no IS NULL THEN 'not_generated'
            WHEN b.status = 'paid' THEN 'paid'
            WHEN b.status = 'overdue' THEN 'overdue'
            ELSE 'pending_payment'
        END AS financial_status,
        COALESCE(b.bill_no, '') AS bill_no, COALESCE(b.total_amount, 0) AS total_amount,
        e.created_at AS enrollment_date, b.due_date AS payment_due_date`

// List returns linkage rows matching the filter.
func (r *LinkageRepository) List(ctx context.Context, filter models.LinkageFilter) ([]models.Linkage, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.ClassName != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_name = $%d", len(args)+1))
		args = append(args, filter.ClassName)
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d`,
		linkageColumns, linkageBase+clause, size, offset)

	var rows []models.Linkage
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list linkages: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", linkageBase+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count linkages: %w", err)
	}
	return rows, total, nil
}

// Statistics aggregates the dashboard numbers in one pass. The collection
// rate is computed by the caller from the returned counts.
func (r *LinkageRepository) Statistics(ctx context.Context) (*models.FinanceStats, error) {
	const query = `SELECT
        COUNT(*) AS total_enrollments,
        COUNT(*) FILTER (WHERE b.status = 'paid') AS paid_enrollments,
        COUNT(*) FILTER (WHERE b.status = 'pending') AS pending_payments,
        COUNT(*) FILTER (WHERE b.status = 'overdue') AS overdue_payments,
        COALESCE(SUM(b.final_amount) FILTER (WHERE b.status = 'paid'), 0) AS total_revenue
    FROM enrollment_applications e
    LEFT JOIN LATERAL (
        SELECT status, final_amount FROM payment_bills
        WHERE enrollment_id = e.id AND status != 'cancelled'
        ORDER BY created_at DESC LIMIT 1
    ) b ON TRUE
    WHERE e.status != 'CANCELLED'`
	var stats models.FinanceStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("aggregate finance stats: %w", err)
	}
	return &stats, nil
}
