package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Receipt describes the printable payment receipt for a paid bill.
type Receipt struct {
	BillNo      string
	StudentName string
	ClassName   string
	Items       []ReceiptItem
	TotalAmount float64
	Discount    float64
	FinalAmount float64
	Method      string
	ReceiptNo   string
	PaidAt      string
	ConfirmedBy string
}

// ReceiptItem is a single billed line on the receipt.
type ReceiptItem struct {
	Name   string
	Period string
	Amount float64
}

// ReceiptPDF renders payment receipts.
type ReceiptPDF struct{}

// NewReceiptPDF builds a receipt renderer.
func NewReceiptPDF() *ReceiptPDF {
	return &ReceiptPDF{}
}

// Render creates a single-page receipt document.
func (e *ReceiptPDF) Render(r Receipt) ([]byte, error) {
	if r.BillNo == "" {
		return nil, fmt.Errorf("receipt requires a bill number")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "PAYMENT RECEIPT", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	meta := [][2]string{
		{"Bill No", r.BillNo},
		{"Receipt No", r.ReceiptNo},
		{"Student", r.StudentName},
		{"Class", r.ClassName},
		{"Paid At", r.PaidAt},
		{"Method", r.Method},
		{"Confirmed By", r.ConfirmedBy},
	}
	for _, kv := range meta {
		if kv[1] == "" {
			continue
		}
		pdf.CellFormat(40, 6, kv[0], "", 0, "", false, 0, "")
		pdf.CellFormat(0, 6, kv[1], "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 8, "Item", "1", 0, "", false, 0, "")
	pdf.CellFormat(45, 8, "Period", "1", 0, "", false, 0, "")
	pdf.CellFormat(45, 8, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, item := range r.Items {
		pdf.CellFormat(90, 7, item.Name, "1", 0, "", false, 0, "")
		pdf.CellFormat(45, 7, item.Period, "1", 0, "", false, 0, "")
		pdf.CellFormat(45, 7, fmt.Sprintf("%.2f", item.Amount), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(135, 7, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(45, 7, fmt.Sprintf("%.2f", r.TotalAmount), "", 1, "R", false, 0, "")
	if r.Discount > 0 {
		pdf.CellFormat(135, 7, "Discount", "", 0, "R", false, 0, "")
		pdf.CellFormat(45, 7, fmt.Sprintf("-%.2f", r.Discount), "", 1, "R", false, 0, "")
	}
	pdf.CellFormat(135, 7, "Amount Paid", "", 0, "R", false, 0, "")
	pdf.CellFormat(45, 7, fmt.Sprintf("%.2f", r.FinalAmount), "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
