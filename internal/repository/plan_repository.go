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

// PlanRepository handles persistence of enrollment plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs the repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `p.id, p.code, p.name, p.academic_year, p.term, p.start_date, p.end_date, p.target_count,
        COALESCE(q.enrolled, 0) AS enrolled_count, p.age_range, p.status, p.created_at, p.updated_at`

const planBase = `FROM enrollment_plans p
LEFT JOIN (SELECT plan_id, SUM(used) AS enrolled FROM enrollment_quotas GROUP BY plan_id) q ON q.plan_id = p.id`

// List returns plans filtered by the provided criteria.
func (r *PlanRepository) List(ctx context.Context, filter models.PlanFilter) ([]models.EnrollmentPlan, int, error) {
	var conditions []string
	var args []interface{}

	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("p.academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.Term != "" {
		conditions = append(conditions, fmt.Sprintf("p.term = $%d", len(args)+1))
		args = append(args, filter.Term)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "p.created_at",
		"start_date": "p.start_date",
		"name":       "p.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "p.created_at"
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
		planColumns, planBase+clause, orderBy, order, size, offset)

	var plans []models.EnrollmentPlan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", planBase+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count plans: %w", err)
	}
	return plans, total, nil
}

// FindByID returns a plan with derived enrolled headcount.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentPlan, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE p.id = $1`, planColumns, planBase)
	var plan models.EnrollmentPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Create persists a new plan in DRAFT status.
func (r *PlanRepository) Create(ctx context.Context, plan *models.EnrollmentPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Status == "" {
		plan.Status = models.PlanStatusDraft
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	const query = `INSERT INTO enrollment_plans (id, code, name, academic_year, term, start_date, end_date, target_count, age_range, status, created_at, updated_at)
        VALUES (:id, :code, :name, :academic_year, :term, :start_date, :end_date, :target_count, :age_range, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

// Update rewrites mutable plan attributes.
func (r *PlanRepository) Update(ctx context.Context, plan *models.EnrollmentPlan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollment_plans SET name = :name, academic_year = :academic_year, term = :term,
        start_date = :start_date, end_date = :end_date, target_count = :target_count, age_range = :age_range,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return nil
}

// CloseFinished completes ACTIVE plans whose application window has passed
// or whose enrolled headcount reached the target, and reports how many plans
// were closed.
func (r *PlanRepository) CloseFinished(ctx context.Context, now time.Time) (int, error) {
	const query = `UPDATE enrollment_plans p SET status = 'COMPLETED', updated_at = NOW()
        WHERE p.status = 'ACTIVE' AND (p.end_date < $1
            OR p.target_count <= (SELECT COALESCE(SUM(used), 0) FROM enrollment_quotas WHERE plan_id = p.id))`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("close finished plans: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close finished plans result: %w", err)
	}
	return int(affected), nil
}

// UpdateStatusIf transitions status only when the current status matches.
// Zero rows affected means the plan was not in the expected state.
func (r *PlanRepository) UpdateStatusIf(ctx context.Context, id string, from []models.PlanStatus, to models.PlanStatus) (bool, error) {
	placeholders := make([]string, len(from))
	args := []interface{}{id, to}
	for i, status := range from {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, status)
	}
	query := fmt.Sprintf(`UPDATE enrollment_plans SET status = $2, updated_at = NOW() WHERE id = $1 AND status IN (%s)`,
		strings.Join(placeholders, ","))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition plan status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition plan status result: %w", err)
	}
	return affected > 0, nil
}
