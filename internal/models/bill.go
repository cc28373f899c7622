package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BillStatus represents the payment bill lifecycle.
type BillStatus string

// pending -> paid, pending -> overdue (sweep), pending -> cancelled.
// Paid bills are immutable.
const (
	BillStatusPending   BillStatus = "pending"
	BillStatusPaid      BillStatus = "paid"
	BillStatusOverdue   BillStatus = "overdue"
	BillStatusCancelled BillStatus = "cancelled"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

// Accepted methods.
const (
	PaymentMethodWechat       PaymentMethod = "wechat"
	PaymentMethodAlipay       PaymentMethod = "alipay"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// ValidPaymentMethod reports whether m is one of the accepted channels.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodWechat, PaymentMethodAlipay, PaymentMethodCash, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// BillItem is a billed line frozen at issue time. It references the fee id
// from the template but snapshots name and amount so later template versions
// cannot change an issued bill.
type BillItem struct {
	FeeID   string  `json:"feeId"`
	FeeName string  `json:"feeName"`
	Amount  float64 `json:"amount"`
	Period  string  `json:"period"`
}

// BillItems stores the snapshot as a JSON column.
type BillItems []BillItem

// Value marshals items to JSON for persistence.
func (items BillItems) Value() (driver.Value, error) {
	if items == nil {
		items = BillItems{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal bill items: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON payload into the item list.
func (items *BillItems) Scan(value interface{}) error {
	if value == nil {
		*items = BillItems{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for BillItems", value)
	}
	if len(data) == 0 {
		*items = BillItems{}
		return nil
	}
	if err := json.Unmarshal(data, items); err != nil {
		return fmt.Errorf("unmarshal bill items: %w", err)
	}
	return nil
}

// Total sums the snapshot amounts.
func (items BillItems) Total() float64 {
	var total float64
	for _, item := range items {
		total += item.Amount
	}
	return total
}

// PaymentBill is a frozen, student-specific charge derived from a template.
type PaymentBill struct {
	ID             string     `db:"id" json:"id"`
	BillNo         string     `db:"bill_no" json:"billNo"`
	EnrollmentID   string     `db:"enrollment_id" json:"enrollmentId"`
	StudentID      string     `db:"student_id" json:"studentId"`
	TemplateID     string     `db:"template_id" json:"templateId"`
	Items          BillItems  `db:"items" json:"items"`
	TotalAmount    float64    `db:"total_amount" json:"totalAmount"`
	DiscountAmount float64    `db:"discount_amount" json:"discountAmount"`
	FinalAmount    float64    `db:"final_amount" json:"finalAmount"`
	DueDate        time.Time  `db:"due_date" json:"dueDate"`
	Status         BillStatus `db:"status" json:"status"`
	PaidAt         *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// BillDetail enriches a bill with student and class context.
type BillDetail struct {
	PaymentBill
	StudentName string `db:"student_name" json:"studentName"`
	ClassName   string `db:"class_name" json:"className"`
}

// BillFilter provides filters for listing bills.
type BillFilter struct {
	StudentID    string
	EnrollmentID string
	Status       BillStatus
	DueBefore    *time.Time
	DueAfter     *time.Time
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// PaymentStatus marks the outcome of a payment attempt.
type PaymentStatus string

// Payment record statuses.
const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentRecord is one row per payment attempt against a bill. At most one
// success record may exist per bill.
type PaymentRecord struct {
	ID          string        `db:"id" json:"id"`
	BillID      string        `db:"bill_id" json:"billId"`
	Amount      float64       `db:"amount" json:"amount"`
	Method      PaymentMethod `db:"method" json:"method"`
	Status      PaymentStatus `db:"status" json:"status"`
	ReceiptNo   string        `db:"receipt_no" json:"receiptNo"`
	ConfirmedBy string        `db:"confirmed_by" json:"confirmedBy"`
	PaidAt      time.Time     `db:"paid_at" json:"paidAt"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}
