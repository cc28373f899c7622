package models

import "time"

// PlanStatus represents the lifecycle of an enrollment plan.
type PlanStatus string

// Possible plan statuses.
const (
	PlanStatusDraft     PlanStatus = "DRAFT"
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusPaused    PlanStatus = "PAUSED"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// EnrollmentPlan is a time-boxed admissions campaign with a target headcount.
// EnrolledCount is derived from quota usage and never written directly.
type EnrollmentPlan struct {
	ID            string     `db:"id" json:"id"`
	Code          string     `db:"code" json:"code"`
	Name          string     `db:"name" json:"name"`
	AcademicYear  string     `db:"academic_year" json:"academic_year"`
	Term          string     `db:"term" json:"term"`
	StartDate     time.Time  `db:"start_date" json:"start_date"`
	EndDate       time.Time  `db:"end_date" json:"end_date"`
	TargetCount   int        `db:"target_count" json:"target_count"`
	EnrolledCount int        `db:"enrolled_count" json:"enrolled_count"`
	AgeRange      string     `db:"age_range" json:"age_range"`
	Status        PlanStatus `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// PlanFilter provides filters for listing plans.
type PlanFilter struct {
	AcademicYear string
	Term         string
	Status       PlanStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// EnrollmentQuota is the per-class seat allocation under a plan.
// Remaining is always computed as total - used in queries, never stored.
type EnrollmentQuota struct {
	ID        string    `db:"id" json:"id"`
	PlanID    string    `db:"plan_id" json:"plan_id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	ClassName string    `db:"class_name" json:"class_name"`
	AgeBand   string    `db:"age_band" json:"age_band"`
	Total     int       `db:"total" json:"total"`
	Used      int       `db:"used" json:"used"`
	Remaining int       `db:"remaining" json:"remaining"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// QuotaState is the ledger view returned by reserve/release operations.
type QuotaState struct {
	PlanID    string `db:"plan_id" json:"plan_id"`
	ClassID   string `db:"class_id" json:"class_id"`
	Total     int    `db:"total" json:"total"`
	Used      int    `db:"used" json:"used"`
	Remaining int    `db:"remaining" json:"remaining"`
}
