package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkurbatov/kassa-ledger/internal/models"
	"github.com/dkurbatov/kassa-ledger/internal/repository"
	"github.com/dkurbatov/kassa-ledger/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrPaymentNotFound  = errors.New("payment not found")
)

// Service is the single source of truth for customers and payments. Every
// mutation keeps a customer's paidAmount equal to the sum of its payment
// amounts and triggers a debounced save of the full snapshot. A mutex keeps
// the single-writer model intact under a concurrent caller.
type Service struct {
	repo *repository.Repository
	log  *logrus.Logger

	validate *validator.Validate

	mu        sync.Mutex
	customers []models.Customer
	payments  []models.Payment
}

// NewService initializes a new service with the state restored from the
// repository.
func NewService(repo *repository.Repository, log *logrus.Logger) *Service {
	customers, payments := repo.Load()
	log.Infof("Ledger loaded: %d customers, %d payments", len(customers), len(payments))
	return &Service{
		repo:      repo,
		log:       log,
		validate:  validator.New(),
		customers: customers,
		payments:  payments,
	}
}

// CreateCustomerInput carries the operator-entered fields for a new
// customer record.
type CreateCustomerInput struct {
	Name        string  `json:"name" validate:"required"`
	Phone       string  `json:"phone"`
	ProductName string  `json:"productName" validate:"required"`
	DebtAmount  float64 `json:"debtAmount" validate:"required,gt=0"`
}

// CreateCustomer registers a new customer with zero paid amount and one
// zero-amount planned payment per scheduled date. The next payment date is
// resolved from the schedule once, at creation; afterwards the field is
// operator-owned free text.
func (s *Service) CreateCustomer(input CreateCustomerInput, scheduledDates []string) (*models.Customer, []models.Payment, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, nil, fmt.Errorf("invalid customer fields: %w", err)
	}

	now := time.Now()
	customer := models.Customer{
		ID:          uuid.NewString(),
		Name:        input.Name,
		ProductName: input.ProductName,
		DebtAmount:  input.DebtAmount,
		PaidAmount:  0,
		PaymentDate: now.Format(time.RFC3339),
	}
	if input.Phone != "" {
		phone := input.Phone
		customer.Phone = &phone
	}
	if next, ok := utils.NextPaymentDate(scheduledDates, now); ok {
		customer.NextPaymentDate = &next
	}

	planned := make([]models.Payment, 0, len(scheduledDates))
	for _, dateStr := range scheduledDates {
		planned = append(planned, models.Payment{
			ID:        uuid.NewString(),
			StudentID: customer.ID,
			Amount:    0,
			Date:      utils.ConvertToISOString(dateStr),
			Note:      models.PlannedPaymentNote,
		})
	}

	s.mu.Lock()
	s.customers = append(s.customers, customer)
	s.payments = append(s.payments, planned...)
	s.persistLocked(false)
	s.mu.Unlock()

	s.log.Infof("Customer created: %s (%s)", customer.Name, customer.ID)
	return &customer, planned, nil
}

// RecordPayment appends a payment for the customer and raises the paid
// amount by the same value. An empty dateText means "now"; otherwise the
// text is converted from DD.MM.YYYY form.
func (s *Service) RecordPayment(customerID string, amount float64, note, dateText string) (*models.Payment, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %v", amount)
	}

	date := time.Now().Format(time.RFC3339)
	if dateText != "" {
		date = utils.ConvertToISOString(dateText)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.customerIndex(customerID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
	}

	payment := models.Payment{
		ID:        uuid.NewString(),
		StudentID: customerID,
		Amount:    amount,
		Date:      date,
		Note:      note,
	}
	s.payments = append(s.payments, payment)
	s.customers[idx].PaidAmount += amount
	s.persistLocked(false)

	s.log.Infof("Payment recorded for customer %s: %.2f", customerID, amount)
	return &payment, nil
}

// EditPayment overwrites a payment's amount and adjusts the customer's paid
// amount by the difference. The delta is derived from the amount the store
// itself holds; a caller-supplied oldAmount that disagrees is logged and
// not trusted.
func (s *Service) EditPayment(paymentID, customerID string, oldAmount, newAmount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pIdx := s.paymentIndex(paymentID)
	if pIdx < 0 {
		return fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}

	stored := s.payments[pIdx].Amount
	if oldAmount != stored {
		s.log.Warnf("Stale oldAmount %.2f for payment %s, using stored %.2f", oldAmount, paymentID, stored)
	}

	s.payments[pIdx].Amount = newAmount
	if cIdx := s.customerIndex(customerID); cIdx >= 0 {
		s.customers[cIdx].PaidAmount += newAmount - stored
	}
	s.persistLocked(false)
	return nil
}

// CustomerUpdate carries a partial edit of a customer record. Nil fields
// are left untouched; an empty phone or next payment date clears the field
// back to "not set".
type CustomerUpdate struct {
	Name            *string  `json:"name"`
	Phone           *string  `json:"phone"`
	ProductName     *string  `json:"productName"`
	DebtAmount      *float64 `json:"debtAmount"`
	NextPaymentDate *string  `json:"nextPaymentDate"`
}

// EditCustomer merges the supplied fields into the customer record. The id,
// paid amount and creation date are never touched.
func (s *Service) EditCustomer(customerID string, updates CustomerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.customerIndex(customerID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
	}

	c := &s.customers[idx]
	if updates.Name != nil {
		c.Name = *updates.Name
	}
	if updates.ProductName != nil {
		c.ProductName = *updates.ProductName
	}
	if updates.DebtAmount != nil {
		c.DebtAmount = *updates.DebtAmount
	}
	if updates.Phone != nil {
		if *updates.Phone == "" {
			c.Phone = nil
		} else {
			phone := *updates.Phone
			c.Phone = &phone
		}
	}
	if updates.NextPaymentDate != nil {
		if *updates.NextPaymentDate == "" {
			c.NextPaymentDate = nil
		} else {
			next := *updates.NextPaymentDate
			c.NextPaymentDate = &next
		}
	}
	s.persistLocked(false)
	return nil
}

// DeletePayment removes the payment and lowers the customer's paid amount
// by the supplied value, clamped at zero to tolerate drift.
func (s *Service) DeletePayment(paymentID, customerID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pIdx := s.paymentIndex(paymentID)
	if pIdx < 0 {
		return fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}

	s.payments = append(s.payments[:pIdx], s.payments[pIdx+1:]...)
	if cIdx := s.customerIndex(customerID); cIdx >= 0 {
		s.customers[cIdx].PaidAmount -= amount
		if s.customers[cIdx].PaidAmount < 0 {
			s.customers[cIdx].PaidAmount = 0
		}
	}
	s.persistLocked(false)
	return nil
}

// DeleteCustomer removes the customer and every payment referencing it.
func (s *Service) DeleteCustomer(customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.customerIndex(customerID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
	}

	s.customers = append(s.customers[:idx], s.customers[idx+1:]...)
	remaining := s.payments[:0]
	for _, p := range s.payments {
		if p.StudentID != customerID {
			remaining = append(remaining, p)
		}
	}
	s.payments = remaining
	s.persistLocked(false)

	s.log.Infof("Customer deleted: %s", customerID)
	return nil
}

// Snapshot returns copies of both collections for the presentation layer.
func (s *Service) Snapshot() ([]models.Customer, []models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customers := append([]models.Customer{}, s.customers...)
	payments := append([]models.Payment{}, s.payments...)
	return customers, payments
}

// Stats aggregates ledger totals over all customers.
func (s *Service) Stats() models.LedgerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.LedgerStats{
		Customers: len(s.customers),
		Payments:  len(s.payments),
	}
	for _, c := range s.customers {
		stats.TotalDebt += c.DebtAmount
		stats.TotalPaid += c.PaidAmount
	}
	stats.OutstandingBalance = stats.TotalDebt - stats.TotalPaid
	return stats
}

// Flush writes the current snapshot synchronously. Called on teardown so a
// pending debounced save is never lost.
func (s *Service) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked(true)
}

// persistLocked hands the current snapshot to the repository. Must be
// called with s.mu held; the repository copies the slices before returning.
func (s *Service) persistLocked(immediate bool) {
	s.repo.Save(s.customers, s.payments, immediate)
}

func (s *Service) customerIndex(id string) int {
	for i := range s.customers {
		if s.customers[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) paymentIndex(id string) int {
	for i := range s.payments {
		if s.payments[i].ID == id {
			return i
		}
	}
	return -1
}
