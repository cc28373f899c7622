package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yyup-edu/enrollment-finance-api/internal/models"
	appErrors "github.com/yyup-edu/enrollment-finance-api/pkg/errors"
	"github.com/yyup-edu/enrollment-finance-api/pkg/jobs"
)

// ReminderJobType labels reminder dispatch jobs on the queue.
const ReminderJobType = "payment_reminder"

// ReminderPayload is the queued notification payload.
type ReminderPayload struct {
	BillID      string  `json:"billId"`
	BillNo      string  `json:"billNo"`
	StudentName string  `json:"studentName"`
	Amount      float64 `json:"amount"`
	DueDate     string  `json:"dueDate"`
}

type reminderLog interface {
	MarkNotified(ctx context.Context, billID string, day time.Time) (bool, error)
	DueForReminder(ctx context.Context, offsetDays int) ([]models.BillDetail, error)
}

type reminderBillStore interface {
	FindByID(ctx context.Context, id string) (*models.BillDetail, error)
}

type reminderQueue interface {
	Enqueue(job jobs.Job) error
}

// ReminderService dispatches collection reminders for unpaid bills. The
// reminder log makes dispatch idempotent per bill per day, so the scheduled
// run and the manual trigger can overlap safely.
type ReminderService struct {
	log          reminderLog
	bills        reminderBillStore
	queue        reminderQueue
	reminderDays []int
	logger       *zap.Logger
	now          func() time.Time
}

// NewReminderService constructs the reminder service.
func NewReminderService(log reminderLog, bills reminderBillStore, queue reminderQueue, reminderDays []int, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(reminderDays) == 0 {
		reminderDays = []int{7, 3, 1}
	}
	return &ReminderService{
		log:          log,
		bills:        bills,
		queue:        queue,
		reminderDays: reminderDays,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Send dispatches a reminder for a single bill. Returns a skipped result
// when the bill already got a reminder today or is no longer pending.
func (s *ReminderService) Send(ctx context.Context, billID string) (*models.ReminderResult, error) {
	bill, err := s.bills.FindByID(ctx, billID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment bill not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bill")
	}
	if bill.Status != models.BillStatusPending && bill.Status != models.BillStatusOverdue {
		return &models.ReminderResult{Success: true, SkippedCount: 1}, nil
	}

	notified, err := s.dispatch(ctx, bill)
	if err != nil {
		return nil, err
	}
	result := &models.ReminderResult{Success: true}
	if notified {
		result.NotifiedCount = 1
	} else {
		result.SkippedCount = 1
	}
	return result, nil
}

// SendBatch dispatches reminders for a list of bills. Bills are handled
// independently: a missing bill or a failed dispatch counts as skipped and
// never aborts the rest of the batch.
func (s *ReminderService) SendBatch(ctx context.Context, billIDs []string) (*models.ReminderResult, error) {
	if len(billIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one bill id is required")
	}
	result := &models.ReminderResult{Success: true}
	for _, billID := range billIDs {
		single, err := s.Send(ctx, billID)
		if err != nil {
			s.logger.Sugar().Warnw("reminder failed for bill", "bill_id", billID, "error", err)
			result.SkippedCount++
			continue
		}
		result.NotifiedCount += single.NotifiedCount
		result.SkippedCount += single.SkippedCount
	}
	return result, nil
}

// RunScheduled sends reminders for every bill whose due date falls on one of
// the configured offsets. Intended to be invoked by the daily scheduler.
func (s *ReminderService) RunScheduled(ctx context.Context) (*models.ReminderResult, error) {
	result := &models.ReminderResult{Success: true}
	for _, offset := range s.reminderDays {
		bills, err := s.log.DueForReminder(ctx, offset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bills due for reminder")
		}
		for i := range bills {
			notified, err := s.dispatch(ctx, &bills[i])
			if err != nil {
				s.logger.Sugar().Warnw("reminder dispatch failed", "bill_id", bills[i].ID, "error", err)
				result.SkippedCount++
				continue
			}
			if notified {
				result.NotifiedCount++
			} else {
				result.SkippedCount++
			}
		}
	}
	s.logger.Sugar().Infow("reminder run finished",
		"notified", result.NotifiedCount, "skipped", result.SkippedCount)
	return result, nil
}

func (s *ReminderService) dispatch(ctx context.Context, bill *models.BillDetail) (bool, error) {
	fresh, err := s.log.MarkNotified(ctx, bill.ID, s.now())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to log reminder")
	}
	if !fresh {
		return false, nil
	}

	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: ReminderJobType,
		Payload: ReminderPayload{
			BillID:      bill.ID,
			BillNo:      bill.BillNo,
			StudentName: bill.StudentName,
			Amount:      bill.FinalAmount,
			DueDate:     bill.DueDate.Format("2006-01-02"),
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		// The log entry stays; a re-run today will skip this bill. Better a
		// missed reminder than a duplicate one.
		s.logger.Sugar().Warnw("reminder enqueue failed", "bill_id", bill.ID, "error", err)
		return false, nil
	}
	return true, nil
}
