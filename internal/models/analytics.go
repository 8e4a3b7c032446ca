package models

// LedgerStats represents aggregate totals over all customers
type LedgerStats struct {
	Customers          int     `json:"customers"`
	Payments           int     `json:"payments"`
	TotalDebt          float64 `json:"total_debt"`
	TotalPaid          float64 `json:"total_paid"`
	OutstandingBalance float64 `json:"outstanding_balance"` // TotalDebt - TotalPaid
}
