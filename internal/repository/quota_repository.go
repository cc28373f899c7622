package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
)

// QuotaRepository persists per-class seat quotas. All quota mutation in the
// system funnels through Reserve and Release; no other component writes the
// used column.
type QuotaRepository struct {
	db *sqlx.DB
}

// NewQuotaRepository constructs the repository.
func NewQuotaRepository(db *sqlx.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

const quotaColumns = `id, plan_id, class_id, class_name, age_band, total, used, total - used AS remaining, created_at, updated_at`

// ListByPlan returns quotas for a plan.
func (r *QuotaRepository) ListByPlan(ctx context.Context, planID string) ([]models.EnrollmentQuota, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_quotas WHERE plan_id = $1 ORDER BY class_name`, quotaColumns)
	var quotas []models.EnrollmentQuota
	if err := r.db.SelectContext(ctx, &quotas, query, planID); err != nil {
		return nil, fmt.Errorf("list quotas: %w", err)
	}
	return quotas, nil
}

// Find returns the quota row for a (plan, class) pair.
func (r *QuotaRepository) Find(ctx context.Context, planID, classID string) (*models.EnrollmentQuota, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollment_quotas WHERE plan_id = $1 AND class_id = $2`, quotaColumns)
	var quota models.EnrollmentQuota
	if err := r.db.GetContext(ctx, &quota, query, planID, classID); err != nil {
		return nil, err
	}
	return &quota, nil
}

// CreateBatch inserts quota rows alongside a plan.
func (r *QuotaRepository) CreateBatch(ctx context.Context, quotas []models.EnrollmentQuota) error {
	if len(quotas) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quota batch: %w", err)
	}
	const query = `INSERT INTO enrollment_quotas (id, plan_id, class_id, class_name, age_band, total, used, created_at, updated_at)
        VALUES (:id, :plan_id, :class_id, :class_name, :age_band, :total, :used, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range quotas {
		if quotas[i].ID == "" {
			quotas[i].ID = uuid.NewString()
		}
		quotas[i].CreatedAt = now
		quotas[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, quotas[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert quota: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quota batch: %w", err)
	}
	return nil
}

// Reserve atomically consumes n seats. The conditional update serialises
// concurrent reservations on the same (plan, class) row; zero rows affected
// means the quota would be exceeded. With override the cap check is skipped.
func (r *QuotaRepository) Reserve(ctx context.Context, planID, classID string, n int, override bool) (*models.QuotaState, error) {
	query := `UPDATE enrollment_quotas SET used = used + $3, updated_at = NOW()
        WHERE plan_id = $1 AND class_id = $2 AND used + $3 <= total
        RETURNING plan_id, class_id, total, used, total - used AS remaining`
	if override {
		query = `UPDATE enrollment_quotas SET used = used + $3, updated_at = NOW()
        WHERE plan_id = $1 AND class_id = $2
        RETURNING plan_id, class_id, total, used, total - used AS remaining`
	}
	var state models.QuotaState
	err := r.db.GetContext(ctx, &state, query, planID, classID, n)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("reserve quota: %w", err)
	}
	return &state, nil
}

// Release returns n seats to the pool. Usage never drops below zero; zero
// rows affected means the release would underflow.
func (r *QuotaRepository) Release(ctx context.Context, planID, classID string, n int) (*models.QuotaState, error) {
	const query = `UPDATE enrollment_quotas SET used = used - $3, updated_at = NOW()
        WHERE plan_id = $1 AND class_id = $2 AND used >= $3
        RETURNING plan_id, class_id, total, used, total - used AS remaining`
	var state models.QuotaState
	err := r.db.GetContext(ctx, &state, query, planID, classID, n)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("release quota: %w", err)
	}
	return &state, nil
}

// UsedByPlan sums consumed seats across a plan's quotas. The plan's enrolled
// headcount is always derived from this, never stored.
func (r *QuotaRepository) UsedByPlan(ctx context.Context, planID string) (int, error) {
	const query = `SELECT COALESCE(SUM(used), 0) FROM enrollment_quotas WHERE plan_id = $1`
	var used int
	if err := r.db.GetContext(ctx, &used, query, planID); err != nil {
		return 0, fmt.Errorf("sum plan quota usage: %w", err)
	}
	return used, nil
}

// Delete removes a quota row unless seats are in use.
func (r *QuotaRepository) Delete(ctx context.Context, planID, classID string) (bool, error) {
	const query = `DELETE FROM enrollment_quotas WHERE plan_id = $1 AND class_id = $2 AND used = 0`
	res, err := r.db.ExecContext(ctx, query, planID, classID)
	if err != nil {
		return false, fmt.Errorf("delete quota: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete quota result: %w", err)
	}
	return affected > 0, nil
}
