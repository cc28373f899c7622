package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
)

func TestRefundRepositoryTransition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRefundRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refund_applications SET status = $3")).
		WithArgs("ref-1", models.RefundStatusPending, models.RefundStatusApproved, "principal-1", "ok").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Transition(context.Background(), "ref-1",
		models.RefundStatusPending, models.RefundStatusApproved, "principal-1", "ok")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepositoryTransitionGuarded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRefundRepository(db)

	// Second decision on the same application finds no pending row.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refund_applications SET status = $3")).
		WithArgs("ref-1", models.RefundStatusPending, models.RefundStatusRejected, "principal-2", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Transition(context.Background(), "ref-1",
		models.RefundStatusPending, models.RefundStatusRejected, "principal-2", "")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
