package models

// Customer represents a debtor record for one product sale
type Customer struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Phone           *string `json:"phone,omitempty"`
	ProductName     string  `json:"productName"`
	DebtAmount      float64 `json:"debtAmount"`
	PaidAmount      float64 `json:"paidAmount"`
	PaymentDate     string  `json:"paymentDate"` // RFC3339, set at creation
	NextPaymentDate *string `json:"nextPaymentDate,omitempty"`
}

// Balance returns the outstanding amount still owed by the customer
func (c *Customer) Balance() float64 {
	return c.DebtAmount - c.PaidAmount
}
