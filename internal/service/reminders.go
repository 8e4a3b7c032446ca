package service

import (
	"time"

	"github.com/dkurbatov/kassa-ledger/internal/models"
	"github.com/dkurbatov/kassa-ledger/internal/utils"
)

// DueCustomers returns customers whose next payment date is today or
// already past. Records with no date set, or with operator-edited text that
// no longer parses, are skipped.
func (s *Service) DueCustomers(today time.Time) []models.Customer {
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []models.Customer
	for _, c := range s.customers {
		if c.NextPaymentDate == nil {
			continue
		}
		date, ok := utils.ParseDate(*c.NextPaymentDate)
		if !ok {
			continue
		}
		if !date.After(midnight) {
			due = append(due, c)
		}
	}
	return due
}
