package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FeeLineItem is a single chargeable entry in a fee package template.
type FeeLineItem struct {
	FeeID    string  `json:"feeId"`
	FeeName  string  `json:"feeName"`
	Amount   float64 `json:"amount"`
	Period   string  `json:"period"`
	Required bool    `json:"isRequired"`
}

// FeeLineItems stores the ordered item list as a JSON column.
type FeeLineItems []FeeLineItem

// Value marshals items to JSON for persistence.
func (items FeeLineItems) Value() (driver.Value, error) {
	if items == nil {
		items = FeeLineItems{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal fee items: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON payload into the item list.
func (items *FeeLineItems) Scan(value interface{}) error {
	if value == nil {
		*items = FeeLineItems{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for FeeLineItems", value)
	}
	if len(data) == 0 {
		*items = FeeLineItems{}
		return nil
	}
	if err := json.Unmarshal(data, items); err != nil {
		return fmt.Errorf("unmarshal fee items: %w", err)
	}
	return nil
}

// Total sums the item amounts.
func (items FeeLineItems) Total() float64 {
	var total float64
	for _, item := range items {
		total += item.Amount
	}
	return total
}

// FeePackageTemplate is a reusable, versioned bundle of fee line items.
// Rows are immutable after creation; edits insert a new version sharing the
// template code, so bills issued against old versions keep their references.
type FeePackageTemplate struct {
	ID           string       `db:"id" json:"id"`
	Code         string       `db:"code" json:"code"`
	Version      int          `db:"version" json:"version"`
	Name         string       `db:"name" json:"name"`
	Description  string       `db:"description" json:"description"`
	TargetGrade  string       `db:"target_grade" json:"targetGrade"`
	Items        FeeLineItems `db:"items" json:"items"`
	TotalAmount  float64      `db:"total_amount" json:"totalAmount"`
	DiscountRate float64      `db:"discount_rate" json:"discountRate"`
	Active       bool         `db:"active" json:"isActive"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

// FeePackageFilter provides filters for listing templates.
type FeePackageFilter struct {
	TargetGrade string
	ActiveOnly  bool
	Page        int
	PageSize    int
}
