package models

import "time"

// RefundStatus represents the refund application state machine:
// pending -> approved -> completed, pending -> rejected (terminal).
type RefundStatus string

// Possible refund statuses.
const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusCompleted RefundStatus = "completed"
)

// RefundApplication requests reversal of part or all of a paid bill.
// A bill may accumulate multiple applications only if prior ones were
// rejected.
type RefundApplication struct {
	ID             string       `db:"id" json:"id"`
	BillID         string       `db:"bill_id" json:"billId"`
	BillNo         string       `db:"bill_no" json:"billNo"`
	StudentName    string       `db:"student_name" json:"studentName"`
	OriginalAmount float64      `db:"original_amount" json:"originalAmount"`
	RefundAmount   float64      `db:"refund_amount" json:"refundAmount"`
	Reason         string       `db:"reason" json:"reason"`
	Status         RefundStatus `db:"status" json:"status"`
	ProcessedBy    string       `db:"processed_by" json:"processedBy,omitempty"`
	ProcessedAt    *time.Time   `db:"processed_at" json:"processedAt,omitempty"`
	Remarks        string       `db:"remarks" json:"remarks,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updatedAt"`
}

// RefundFilter provides filters for listing refund applications.
type RefundFilter struct {
	BillID   string
	Status   RefundStatus
	Page     int
	PageSize int
}
