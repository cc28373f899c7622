package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
)

// BillRepository persists payment bills and their payment records. The
// transactional methods ConfirmPayment and ConfirmPaymentAndEnroll are the
// only writers of the paid status; both guard on status = 'pending' so a
// bill can never be paid twice.
type BillRepository struct {
	db *sqlx.DB
}

// NewBillRepository constructs the repository.
func NewBillRepository(db *sqlx.DB) *BillRepository {
	return &BillRepository{db: db}
}

const billColumns = `b.id, b.bill_no, b.enrollment_id, b.student_id, b.template_id, b.items,
        b.total_amount, b.discount_amount, b.final_amount, b.due_date, b.status, b.paid_at,
        b.created_at, b.updated_at`

const billDetailColumns = billColumns + `, e.student_name, e.class_name`

const billBase = `FROM payment_bills b
JOIN enrollment_applications e ON e.id = b.enrollment_id`

// NextBillNo allocates a bill number: BILL + yyyymmdd + zero-padded 4-digit
// daily counter from a sequence. The sequence is shared across days; the
// counter wraps at 10000, which comfortably exceeds daily volume.
func (r *BillRepository) NextBillNo(ctx context.Context, now time.Time) (string, error) {
	var seq int64
	if err := r.db.GetContext(ctx, &seq, `SELECT nextval('payment_bill_no_seq')`); err != nil {
		return "", fmt.Errorf("allocate bill sequence: %w", err)
	}
	return fmt.Sprintf("BILL%s%04d", now.Format("20060102"), seq%10000), nil
}

// List returns bill details matching the filter.
func (r *BillRepository) List(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("b.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("b.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, fmt.Sprintf("b.due_date < $%d", len(args)+1))
		args = append(args, *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		conditions = append(conditions, fmt.Sprintf("b.due_date >= $%d", len(args)+1))
		args = append(args, *filter.DueAfter)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "b.created_at",
		"due_date":   "b.due_date",
		"bill_no":    "b.bill_no",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "b.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		billDetailColumns, billBase+clause, orderBy, order, size, offset)

	var bills []models.BillDetail
	if err := r.db.SelectContext(ctx, &bills, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", billBase+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}
	return bills, total, nil
}

// FindByID returns a bill with student and class context.
func (r *BillRepository) FindByID(ctx context.Context, id string) (*models.BillDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE b.id = $1`, billDetailColumns, billBase)
	var bill models.BillDetail
	if err := r.db.GetContext(ctx, &bill, query, id); err != nil {
		return nil, err
	}
	return &bill, nil
}

// FindByEnrollment returns the most recent non-cancelled bill for an
// enrollment, or sql.ErrNoRows if none exists.
func (r *BillRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.BillDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE b.enrollment_id = $1 AND b.status != 'cancelled'
        ORDER BY b.created_at DESC LIMIT 1`, billDetailColumns, billBase)
	var bill models.BillDetail
	if err := r.db.GetContext(ctx, &bill, query, enrollmentID); err != nil {
		return nil, err
	}
	return &bill, nil
}

// Create inserts a new pending bill and flips the enrollment to BILLED in
// one transaction so a crash cannot leave a bill without its status change.
func (r *BillRepository) Create(ctx context.Context, bill *models.PaymentBill) error {
	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	bill.Status = models.BillStatusPending
	bill.CreatedAt = now
	bill.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bill create: %w", err)
	}
	const insert = `INSERT INTO payment_bills (id, bill_no, enrollment_id, student_id, template_id, items,
        total_amount, discount_amount, final_amount, due_date, status, paid_at, created_at, updated_at)
        VALUES (:id, :bill_no, :enrollment_id, :student_id, :template_id, :items,
        :total_amount, :discount_amount, :final_amount, :due_date, :status, :paid_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, bill); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert bill: %w", err)
	}
	const flip = `UPDATE enrollment_applications SET status = 'BILLED', updated_at = NOW()
        WHERE id = $1 AND status = 'APPLIED'`
	if _, err := tx.ExecContext(ctx, flip, bill.EnrollmentID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("mark enrollment billed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bill create: %w", err)
	}
	return nil
}

// ConfirmPayment marks a pending bill paid and records the payment in one
// transaction. Returns false when the bill exists but is not pending.
func (r *BillRepository) ConfirmPayment(ctx context.Context, billID string, record *models.PaymentRecord) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin payment: %w", err)
	}
	ok, err := markPaid(ctx, tx, billID, record)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, err
	}
	if !ok {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit payment: %w", err)
	}
	return true, nil
}

// ConfirmPaymentAndEnroll confirms payment, moves the enrollment to ENROLLED
// and consumes one quota seat, all atomically. Returns false without error
// when the bill was not pending; quota exhaustion surfaces as
// sql.ErrNoRows from the conditional quota update.
func (r *BillRepository) ConfirmPaymentAndEnroll(ctx context.Context, billID string, record *models.PaymentRecord) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin payment enroll: %w", err)
	}
	ok, err := markPaid(ctx, tx, billID, record)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, err
	}
	if !ok {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}

	var enrollment struct {
		ID      string `db:"id"`
		PlanID  string `db:"plan_id"`
		ClassID string `db:"class_id"`
	}
	const lookup = `SELECT e.id, e.plan_id, e.class_id FROM enrollment_applications e
        JOIN payment_bills b ON b.enrollment_id = e.id WHERE b.id = $1`
	if err := tx.GetContext(ctx, &enrollment, lookup, billID); err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("resolve enrollment for bill: %w", err)
	}

	const enroll = `UPDATE enrollment_applications SET status = 'ENROLLED', enrolled_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND status IN ('BILLED', 'OVERDUE')`
	res, err := tx.ExecContext(ctx, enroll, enrollment.ID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("mark enrolled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("mark enrolled result: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return false, nil
	}

	const reserve = `UPDATE enrollment_quotas SET used = used + 1, updated_at = NOW()
        WHERE plan_id = $1 AND class_id = $2 AND used < total`
	res, err = tx.ExecContext(ctx, reserve, enrollment.PlanID, enrollment.ClassID)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("reserve seat result: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return false, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit payment enroll: %w", err)
	}
	return true, nil
}

func markPaid(ctx context.Context, tx *sqlx.Tx, billID string, record *models.PaymentRecord) (bool, error) {
	const pay = `UPDATE payment_bills SET status = 'paid', paid_at = $2, updated_at = NOW()
        WHERE id = $1 AND status = 'pending'`
	res, err := tx.ExecContext(ctx, pay, billID, record.PaidAt)
	if err != nil {
		return false, fmt.Errorf("mark bill paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark bill paid result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.BillID = billID
	record.Status = models.PaymentStatusSuccess
	record.CreatedAt = time.Now().UTC()
	const insert = `INSERT INTO payment_records (id, bill_id, amount, method, status, receipt_no, confirmed_by, paid_at, created_at)
        VALUES (:id, :bill_id, :amount, :method, :status, :receipt_no, :confirmed_by, :paid_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, record); err != nil {
		return false, fmt.Errorf("insert payment record: %w", err)
	}
	return true, nil
}

// Cancel voids a pending bill. Returns false when the bill is not pending.
func (r *BillRepository) Cancel(ctx context.Context, billID string) (bool, error) {
	const query = `UPDATE payment_bills SET status = 'cancelled', updated_at = NOW()
        WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, billID)
	if err != nil {
		return false, fmt.Errorf("cancel bill: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel bill result: %w", err)
	}
	return affected > 0, nil
}

// MarkOverdue flips pending bills past their grace window to overdue, along
// with the owning enrollments, and reports how many bills were swept.
func (r *BillRepository) MarkOverdue(ctx context.Context, deadline time.Time) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin overdue sweep: %w", err)
	}
	const sweep = `UPDATE payment_bills SET status = 'overdue', updated_at = NOW()
        WHERE status = 'pending' AND due_date < $1`
	res, err := tx.ExecContext(ctx, sweep, deadline)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("sweep bills: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("sweep bills result: %w", err)
	}
	const flip = `UPDATE enrollment_applications SET status = 'OVERDUE', updated_at = NOW()
        WHERE status = 'BILLED' AND id IN (SELECT enrollment_id FROM payment_bills WHERE status = 'overdue')`
	if _, err := tx.ExecContext(ctx, flip); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("sweep enrollments: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit overdue sweep: %w", err)
	}
	return int(affected), nil
}

// ListRecordsByBill returns payment attempts for a bill, newest first.
func (r *BillRepository) ListRecordsByBill(ctx context.Context, billID string) ([]models.PaymentRecord, error) {
	const query = `SELECT id, bill_id, amount, method, status, receipt_no, confirmed_by, paid_at, created_at
        FROM payment_records WHERE bill_id = $1 ORDER BY created_at DESC`
	var records []models.PaymentRecord
	if err := r.db.SelectContext(ctx, &records, query, billID); err != nil {
		return nil, fmt.Errorf("list payment records: %w", err)
	}
	return records, nil
}
