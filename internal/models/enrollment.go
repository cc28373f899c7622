package models

import "time"

// EnrollmentStatus tracks an application through the finance linkage flow.
type EnrollmentStatus string

// State machine: APPLIED -> BILLED -> ENROLLED, with BILLED -> OVERDUE on
// due-date passage. Overdue enrollments never move back to BILLED
// automatically.
const (
	EnrollmentStatusApplied   EnrollmentStatus = "APPLIED"
	EnrollmentStatusBilled    EnrollmentStatus = "BILLED"
	EnrollmentStatusOverdue   EnrollmentStatus = "OVERDUE"
	EnrollmentStatusEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// EnrollmentApplication is an admission application under a plan.
type EnrollmentApplication struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	StudentName  string           `db:"student_name" json:"student_name"`
	ContactPhone string           `db:"contact_phone" json:"contact_phone"`
	PlanID       string           `db:"plan_id" json:"plan_id"`
	ClassID      string           `db:"class_id" json:"class_id"`
	ClassName    string           `db:"class_name" json:"class_name"`
	Semester     string           `db:"semester" json:"semester"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	ReviewedAt   *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	InterviewAt  *time.Time       `db:"interview_at" json:"interview_at,omitempty"`
	EnrolledAt   *time.Time       `db:"enrolled_at" json:"enrolled_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing applications.
type EnrollmentFilter struct {
	PlanID    string
	ClassID   string
	Semester  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
