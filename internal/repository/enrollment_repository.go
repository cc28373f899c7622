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

// EnrollmentRepository persists admission applications.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, student_name, contact_phone, plan_id, class_id, class_name,
        semester, status, reviewed_at, interview_at, enrolled_at, created_at, updated_at`

// List returns applications matching the filter.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentApplication, int, error) {
	var conditions []string
	var args []interface{}

	if filter.PlanID != "" {
		conditions = append(conditions, fmt.Sprintf("plan_id = $%d", len(args)+1))
		args = append(args, filter.PlanID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "created_at",
		"student_name": "student_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "created_at"
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

	query := fmt.Sprintf(`SELECT %s FROM enrollment_applications%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		enrollmentColumns, clause, orderBy, order, size, offset)

	var apps []models.EnrollmentApplication
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM enrollment_applications%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return apps, total, nil
}

// FindByID returns one application.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_applications WHERE id = $1`, enrollmentColumns)
	var app models.EnrollmentApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// Create inserts a new application in APPLIED status.
func (r *EnrollmentRepository) Create(ctx context.Context, app *models.EnrollmentApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = models.EnrollmentStatusApplied
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	const query = `INSERT INTO enrollment_applications (id, student_id, student_name, contact_phone, plan_id, class_id, class_name, semester, status, reviewed_at, interview_at, enrolled_at, created_at, updated_at)
        VALUES (:id, :student_id, :student_name, :contact_phone, :plan_id, :class_id, :class_name, :semester, :status, :reviewed_at, :interview_at, :enrolled_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatusIf transitions status only when the current status matches one
// of the expected values. Zero rows affected means it did not.
func (r *EnrollmentRepository) UpdateStatusIf(ctx context.Context, id string, from []models.EnrollmentStatus, to models.EnrollmentStatus) (bool, error) {
	placeholders := make([]string, len(from))
	args := []interface{}{id, to}
	for i, status := range from {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, status)
	}
	query := fmt.Sprintf(`UPDATE enrollment_applications SET status = $2, updated_at = NOW() WHERE id = $1 AND status IN (%s)`,
		strings.Join(placeholders, ","))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition enrollment result: %w", err)
	}
	return affected > 0, nil
}

// UnbilledForSemester returns APPLIED applications in a semester that have
// no live bill, the candidate set for batch generation.
func (r *EnrollmentRepository) UnbilledForSemester(ctx context.Context, semester string) ([]models.EnrollmentApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_applications e WHERE semester = $1 AND status = 'APPLIED'
        AND NOT EXISTS (SELECT 1 FROM payment_bills b WHERE b.enrollment_id = e.id AND b.status != 'cancelled')
        ORDER BY created_at`, enrollmentColumns)
	var apps []models.EnrollmentApplication
	if err := r.db.SelectContext(ctx, &apps, query, semester); err != nil {
		return nil, fmt.Errorf("list unbilled enrollments: %w", err)
	}
	return apps, nil
}
