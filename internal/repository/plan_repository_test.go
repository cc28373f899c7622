package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
)

func TestPlanRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "name", "academic_year", "term", "start_date", "end_date",
		"target_count", "enrolled_count", "age_range", "status", "created_at", "updated_at"}).
		AddRow("plan-1", "P2026A", "Autumn Intake", "2026-2027", "autumn", now, now.AddDate(0, 3, 0),
			60, 14, "3-6", models.PlanStatusActive, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(q.enrolled, 0) AS enrolled_count")).
		WithArgs("plan-1").
		WillReturnRows(rows)

	plan, err := repo.FindByID(context.Background(), "plan-1")
	require.NoError(t, err)
	require.Equal(t, 14, plan.EnrolledCount)
	require.Equal(t, models.PlanStatusActive, plan.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryUpdateStatusIf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_plans SET status = $2")).
		WithArgs("plan-1", models.PlanStatusActive, models.PlanStatusDraft, models.PlanStatusPaused).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatusIf(context.Background(), "plan-1",
		[]models.PlanStatus{models.PlanStatusDraft, models.PlanStatusPaused}, models.PlanStatusActive)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryCloseFinished(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_plans p SET status = 'COMPLETED'")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := repo.CloseFinished(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryUpdateStatusIfWrongState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_plans SET status = $2")).
		WithArgs("plan-1", models.PlanStatusPaused, models.PlanStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatusIf(context.Background(), "plan-1",
		[]models.PlanStatus{models.PlanStatusActive}, models.PlanStatusPaused)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
