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

// FeePackageRepository persists versioned fee package templates. Rows are
// append-only: an edit inserts version n+1 under the same code and retires
// the previous version's active flag.
type FeePackageRepository struct {
	db *sqlx.DB
}

// NewFeePackageRepository constructs the repository.
func NewFeePackageRepository(db *sqlx.DB) *FeePackageRepository {
	return &FeePackageRepository{db: db}
}

const feePackageColumns = `id, code, version, name, description, target_grade, items, total_amount, discount_rate, active, created_at`

// List returns the latest template versions matching the filter.
func (r *FeePackageRepository) List(ctx context.Context, filter models.FeePackageFilter) ([]models.FeePackageTemplate, int, error) {
	base := `FROM fee_package_templates t
WHERE t.version = (SELECT MAX(version) FROM fee_package_templates WHERE code = t.code)`
	var conditions []string
	var args []interface{}

	if filter.TargetGrade != "" {
		conditions = append(conditions, fmt.Sprintf("t.target_grade = $%d", len(args)+1))
		args = append(args, filter.TargetGrade)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "t.active = TRUE")
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT t.id, t.code, t.version, t.name, t.description, t.target_grade, t.items,
        t.total_amount, t.discount_rate, t.active, t.created_at
        %s ORDER BY t.code LIMIT %d OFFSET %d`, base+clause, size, offset)

	var templates []models.FeePackageTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee packages: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee packages: %w", err)
	}
	return templates, total, nil
}

// FindByID returns a specific template version by row id.
func (r *FeePackageRepository) FindByID(ctx context.Context, id string) (*models.FeePackageTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_package_templates WHERE id = $1`, feePackageColumns)
	var tpl models.FeePackageTemplate
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// FindLatestByCode returns the newest version for a template code.
func (r *FeePackageRepository) FindLatestByCode(ctx context.Context, code string) (*models.FeePackageTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_package_templates WHERE code = $1 ORDER BY version DESC LIMIT 1`, feePackageColumns)
	var tpl models.FeePackageTemplate
	if err := r.db.GetContext(ctx, &tpl, query, code); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Create inserts version 1 of a new template.
func (r *FeePackageRepository) Create(ctx context.Context, tpl *models.FeePackageTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	tpl.Version = 1
	tpl.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO fee_package_templates (id, code, version, name, description, target_grade, items, total_amount, discount_rate, active, created_at)
        VALUES (:id, :code, :version, :name, :description, :target_grade, :items, :total_amount, :discount_rate, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("create fee package: %w", err)
	}
	return nil
}

// CreateVersion inserts the next version of an existing code and deactivates
// prior versions in the same transaction. Issued bills keep their snapshots,
// so old versions stay queryable but stop matching new bills.
func (r *FeePackageRepository) CreateVersion(ctx context.Context, tpl *models.FeePackageTemplate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fee package version: %w", err)
	}

	var latest int
	if err := tx.GetContext(ctx, &latest, `SELECT COALESCE(MAX(version), 0) FROM fee_package_templates WHERE code = $1`, tpl.Code); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("resolve latest version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE fee_package_templates SET active = FALSE WHERE code = $1`, tpl.Code); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("retire prior versions: %w", err)
	}

	tpl.ID = uuid.NewString()
	tpl.Version = latest + 1
	tpl.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO fee_package_templates (id, code, version, name, description, target_grade, items, total_amount, discount_rate, active, created_at)
        VALUES (:id, :code, :version, :name, :description, :target_grade, :items, :total_amount, :discount_rate, :active, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, tpl); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert fee package version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fee package version: %w", err)
	}
	return nil
}
