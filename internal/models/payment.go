package models

// PlannedPaymentNote marks zero-amount payments created from a schedule
const PlannedPaymentNote = "Запланированный платеж"

// Payment represents one transaction recorded against a customer's debt.
// Planned payments carry a zero amount and PlannedPaymentNote.
type Payment struct {
	ID        string  `json:"id"`
	StudentID string  `json:"studentId"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"` // RFC3339
	Note      string  `json:"note"`
}
