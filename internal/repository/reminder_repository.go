package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
)

// ReminderRepository logs collection reminders. The log row doubles as an
// idempotency key: one reminder per bill per calendar day.
type ReminderRepository struct {
	db *sqlx.DB
}

// NewReminderRepository constructs the repository.
func NewReminderRepository(db *sqlx.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// MarkNotified records a reminder for (bill, day). Returns false when a
// reminder was already logged for that day, so repeated triggers skip the
// bill instead of re-notifying.
func (r *ReminderRepository) MarkNotified(ctx context.Context, billID string, day time.Time) (bool, error) {
	const query = `INSERT INTO payment_reminders (id, bill_id, reminder_date, created_at)
        VALUES ($1, $2, $3, NOW()) ON CONFLICT (bill_id, reminder_date) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, uuid.NewString(), billID, day.Format("2006-01-02"))
	if err != nil {
		return false, fmt.Errorf("log reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("log reminder result: %w", err)
	}
	return affected > 0, nil
}

// DueForReminder returns unpaid bills whose due date falls exactly offset
// days from today, with the contact details needed for the notification.
func (r *ReminderRepository) DueForReminder(ctx context.Context, offsetDays int) ([]models.BillDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s
        WHERE b.status = 'pending' AND b.due_date::date = (CURRENT_DATE + INTERVAL '%d days')::date`,
		billDetailColumns, billBase, offsetDays)
	var bills []models.BillDetail
	if err := r.db.SelectContext(ctx, &bills, query); err != nil {
		return nil, fmt.Errorf("list bills due for reminder: %w", err)
	}
	return bills, nil
}
