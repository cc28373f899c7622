package models

import "time"

// FinancialStatus summarises the billing side of a linkage row.
type FinancialStatus string

// Possible financial statuses on the linkage list.
const (
	FinancialStatusNotGenerated   FinancialStatus = "not_generated"
	FinancialStatusPendingPayment FinancialStatus = "pending_payment"
	FinancialStatusPaid           FinancialStatus = "paid"
	FinancialStatusOverdue        FinancialStatus = "overdue"
)

// Linkage is one row of the enrollment-to-finance join list.
type Linkage struct {
	EnrollmentID     string           `db:"enrollment_id" json:"enrollmentId"`
	StudentName      string           `db:"student_name" json:"studentName"`
	ClassName        string           `db:"class_name" json:"className"`
	EnrollmentStatus EnrollmentStatus `db:"enrollment_status" json:"enrollmentStatus"`
	FinancialStatus  FinancialStatus  `db:"financial_status" json:"financialStatus"`
	BillNo           string           `db:"bill_no" json:"billNo,omitempty"`
	TotalAmount      float64          `db:"total_amount" json:"totalAmount"`
	EnrollmentDate   time.Time        `db:"enrollment_date" json:"enrollmentDate"`
	PaymentDueDate   *time.Time       `db:"payment_due_date" json:"paymentDueDate,omitempty"`
}

// LinkageFilter provides filters for the linkage list.
type LinkageFilter struct {
	Status    EnrollmentStatus
	ClassName string
	Page      int
	PageSize  int
}

// FinanceStats aggregates the enrollment-finance dashboard numbers.
// CollectionRate is a 0-100 percentage on this endpoint.
type FinanceStats struct {
	TotalEnrollments int     `db:"total_enrollments" json:"totalEnrollments"`
	PaidEnrollments  int     `db:"paid_enrollments" json:"paidEnrollments"`
	PendingPayments  int     `db:"pending_payments" json:"pendingPayments"`
	OverduePayments  int     `db:"overdue_payments" json:"overduePayments"`
	TotalRevenue     float64 `db:"total_revenue" json:"totalRevenue"`
	CollectionRate   float64 `json:"collectionRate"`
}

// ProcessStepStatus tags a step of the payment process projection.
type ProcessStepStatus string

// Step statuses.
const (
	StepCompleted  ProcessStepStatus = "completed"
	StepInProgress ProcessStepStatus = "in_progress"
	StepPending    ProcessStepStatus = "pending"
)

// ProcessStep is one entry of the ordered payment process view.
type ProcessStep struct {
	Step        string            `json:"step"`
	Status      ProcessStepStatus `json:"status"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Description string            `json:"description"`
}

// NextAction describes the suggested follow-up for a process.
type NextAction struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
}

// PaymentProcess is the read-only projection of an enrollment's progress.
// It is derived from application and bill state, never a source of truth.
type PaymentProcess struct {
	EnrollmentID string        `json:"enrollmentId"`
	StudentName  string        `json:"studentName"`
	ClassName    string        `json:"className"`
	CurrentStep  string        `json:"currentStep"`
	Steps        []ProcessStep `json:"steps"`
	NextAction   *NextAction   `json:"nextAction,omitempty"`
}

// FinanceSettings is the configuration payload served by the config endpoint.
type FinanceSettings struct {
	AutoGenerateBill       bool  `json:"autoGenerateBill"`
	DefaultPaymentDays     int   `json:"defaultPaymentDays"`
	ReminderDays           []int `json:"reminderDays"`
	OverdueGraceDays       int   `json:"overdueGraceDays"`
	RequirePaymentToEnroll bool  `json:"requirePaymentBeforeEnrollment"`
}

// BatchBillResult reports per-target outcomes of a batch generation run.
type BatchBillResult struct {
	GeneratedCount int               `json:"generatedCount"`
	FailedCount    int               `json:"failedCount"`
	Failures       []BatchBillError  `json:"failures,omitempty"`
	Bills          []BatchBillTarget `json:"bills,omitempty"`
}

// BatchBillTarget is a successfully generated bill within a batch.
type BatchBillTarget struct {
	EnrollmentID string  `json:"enrollmentId"`
	BillID       string  `json:"billId"`
	BillNo       string  `json:"billNo"`
	StudentName  string  `json:"studentName"`
	Amount       float64 `json:"amount"`
}

// BatchBillError is a failed target within a batch.
type BatchBillError struct {
	EnrollmentID string `json:"enrollmentId"`
	Reason       string `json:"reason"`
}

// ReminderResult summarises a collection reminder dispatch.
type ReminderResult struct {
	Success       bool `json:"success"`
	NotifiedCount int  `json:"notifiedCount"`
	SkippedCount  int  `json:"skippedCount"`
}
