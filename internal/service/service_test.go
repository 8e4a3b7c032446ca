package service

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dkurbatov/kassa-ledger/internal/models"
	"github.com/dkurbatov/kassa-ledger/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// memStore keeps service tests off the filesystem.
type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *memStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newTestService() *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	repo := repository.NewRepository(&memStore{data: map[string]string{}}, logger, time.Minute)
	return NewService(repo, logger)
}

// paidSum recomputes the invariant's right-hand side from the payment
// collection.
func paidSum(s *Service, customerID string) float64 {
	_, payments := s.Snapshot()
	var sum float64
	for _, p := range payments {
		if p.StudentID == customerID {
			sum += p.Amount
		}
	}
	return sum
}

func requireInvariant(t *testing.T, s *Service) {
	t.Helper()
	customers, _ := s.Snapshot()
	for _, c := range customers {
		require.InDelta(t, paidSum(s, c.ID), c.PaidAmount, 1e-9,
			"paidAmount of %s must equal the sum of its payments", c.Name)
	}
}

func TestCreateCustomerValidation(t *testing.T) {
	s := newTestService()

	_, _, err := s.CreateCustomer(CreateCustomerInput{ProductName: "Касса", DebtAmount: 100}, nil)
	require.Error(t, err, "name is required")

	_, _, err = s.CreateCustomer(CreateCustomerInput{Name: "Иванов", DebtAmount: 100}, nil)
	require.Error(t, err, "productName is required")

	_, _, err = s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса"}, nil)
	require.Error(t, err, "debtAmount must be positive")

	_, _, err = s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: -5}, nil)
	require.Error(t, err)

	customers, payments := s.Snapshot()
	require.Empty(t, customers, "failed creates must not mutate state")
	require.Empty(t, payments)
}

func TestCreateCustomerWithSchedule(t *testing.T) {
	s := newTestService()

	customer, planned, err := s.CreateCustomer(CreateCustomerInput{
		Name:        "Иванов",
		Phone:       "+7 900 000-00-00",
		ProductName: "Касса",
		DebtAmount:  50000,
	}, []string{"01.01.2030"})
	require.NoError(t, err)

	require.NotEmpty(t, customer.ID)
	require.Zero(t, customer.PaidAmount)
	require.NotNil(t, customer.NextPaymentDate)
	require.Equal(t, "01.01.2030", *customer.NextPaymentDate)
	require.NotNil(t, customer.Phone)

	_, err = time.Parse(time.RFC3339, customer.PaymentDate)
	require.NoError(t, err, "creation timestamp must be canonical")

	require.Len(t, planned, 1)
	require.Zero(t, planned[0].Amount)
	require.Equal(t, customer.ID, planned[0].StudentID)
	require.Equal(t, models.PlannedPaymentNote, planned[0].Note)

	requireInvariant(t, s)
}

func TestCreateCustomerWithoutOptionalFields(t *testing.T) {
	s := newTestService()

	customer, planned, err := s.CreateCustomer(CreateCustomerInput{
		Name:        "Петров",
		ProductName: "Терминал",
		DebtAmount:  10000,
	}, nil)
	require.NoError(t, err)
	require.Nil(t, customer.Phone)
	require.Nil(t, customer.NextPaymentDate)
	require.Empty(t, planned)
}

func TestLedgerScenario(t *testing.T) {
	s := newTestService()

	customer, _, err := s.CreateCustomer(CreateCustomerInput{
		Name:        "Иванов",
		ProductName: "Касса",
		DebtAmount:  50000,
	}, []string{"01.01.2030"})
	require.NoError(t, err)

	payment, err := s.RecordPayment(customer.ID, 20000, "cash", "")
	require.NoError(t, err)
	requireInvariant(t, s)

	customers, payments := s.Snapshot()
	require.Len(t, payments, 2, "planned payment plus the recorded one")
	require.InDelta(t, 20000, customers[0].PaidAmount, 1e-9)
	require.InDelta(t, 30000, customers[0].Balance(), 1e-9)

	require.NoError(t, s.EditPayment(payment.ID, customer.ID, 20000, 25000))
	requireInvariant(t, s)
	customers, _ = s.Snapshot()
	require.InDelta(t, 25000, customers[0].PaidAmount, 1e-9)
	require.InDelta(t, 25000, customers[0].Balance(), 1e-9)

	require.NoError(t, s.DeletePayment(payment.ID, customer.ID, 25000))
	requireInvariant(t, s)
	customers, payments = s.Snapshot()
	require.Zero(t, customers[0].PaidAmount)
	require.Len(t, payments, 1)
	require.Equal(t, models.PlannedPaymentNote, payments[0].Note)
}

func TestRecordPaymentRejections(t *testing.T) {
	s := newTestService()
	customer, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: 1000}, nil)
	require.NoError(t, err)

	_, err = s.RecordPayment("no-such-customer", 100, "", "")
	require.ErrorIs(t, err, ErrCustomerNotFound)

	_, err = s.RecordPayment(customer.ID, 0, "", "")
	require.Error(t, err)
	_, err = s.RecordPayment(customer.ID, -10, "", "")
	require.Error(t, err)

	_, payments := s.Snapshot()
	require.Empty(t, payments, "rejected operations must not mutate state")
}

func TestRecordPaymentWithDateText(t *testing.T) {
	s := newTestService()
	customer, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: 1000}, nil)
	require.NoError(t, err)

	payment, err := s.RecordPayment(customer.ID, 500, "перевод", "15.06.2026")
	require.NoError(t, err)

	parsed, err := time.Parse(time.RFC3339, payment.Date)
	require.NoError(t, err)
	require.Equal(t, 2026, parsed.Year())
	require.Equal(t, time.June, parsed.Month())
	require.Equal(t, 15, parsed.Day())
}

func TestEditPaymentDerivesDeltaFromStoredAmount(t *testing.T) {
	s := newTestService()
	customer, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: 1000}, nil)
	require.NoError(t, err)
	payment, err := s.RecordPayment(customer.ID, 100, "", "")
	require.NoError(t, err)

	// stale caller view of the old amount must not corrupt the invariant
	require.NoError(t, s.EditPayment(payment.ID, customer.ID, 42, 150))
	requireInvariant(t, s)

	customers, _ := s.Snapshot()
	require.InDelta(t, 150, customers[0].PaidAmount, 1e-9)
}

func TestEditPaymentUnknown(t *testing.T) {
	s := newTestService()
	err := s.EditPayment("missing", "whatever", 0, 10)
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestDeletePaymentClampsAtZero(t *testing.T) {
	s := newTestService()
	customer, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: 1000}, nil)
	require.NoError(t, err)
	payment, err := s.RecordPayment(customer.ID, 100, "", "")
	require.NoError(t, err)

	require.NoError(t, s.DeletePayment(payment.ID, customer.ID, 500))

	customers, payments := s.Snapshot()
	require.Zero(t, customers[0].PaidAmount, "paidAmount is clamped at zero")
	require.Empty(t, payments)
}

func TestEditCustomerPartialMerge(t *testing.T) {
	s := newTestService()
	customer, _, err := s.CreateCustomer(CreateCustomerInput{
		Name:        "Иванов",
		Phone:       "+7 900 000-00-00",
		ProductName: "Касса",
		DebtAmount:  1000,
	}, []string{"01.01.2030"})
	require.NoError(t, err)
	_, err = s.RecordPayment(customer.ID, 300, "", "")
	require.NoError(t, err)

	name := "Иванов И. И."
	debt := 2000.0
	require.NoError(t, s.EditCustomer(customer.ID, CustomerUpdate{Name: &name, DebtAmount: &debt}))

	customers, _ := s.Snapshot()
	got := customers[0]
	require.Equal(t, name, got.Name)
	require.InDelta(t, debt, got.DebtAmount, 1e-9)
	require.InDelta(t, 300, got.PaidAmount, 1e-9, "paidAmount is never edited directly")
	require.Equal(t, customer.ID, got.ID)
	require.Equal(t, customer.PaymentDate, got.PaymentDate)
	require.NotNil(t, got.Phone, "untouched fields keep their values")

	// an empty string clears an optional field back to "not set"
	empty := ""
	require.NoError(t, s.EditCustomer(customer.ID, CustomerUpdate{Phone: &empty, NextPaymentDate: &empty}))
	customers, _ = s.Snapshot()
	require.Nil(t, customers[0].Phone)
	require.Nil(t, customers[0].NextPaymentDate)

	require.ErrorIs(t, s.EditCustomer("missing", CustomerUpdate{Name: &name}), ErrCustomerNotFound)
}

func TestDeleteCustomerCascades(t *testing.T) {
	s := newTestService()
	first, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: 1000}, []string{"01.01.2030", "01.02.2030"})
	require.NoError(t, err)
	second, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Петров", ProductName: "Терминал", DebtAmount: 500}, nil)
	require.NoError(t, err)
	_, err = s.RecordPayment(first.ID, 100, "", "")
	require.NoError(t, err)
	_, err = s.RecordPayment(second.ID, 50, "", "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteCustomer(first.ID))

	customers, payments := s.Snapshot()
	require.Len(t, customers, 1)
	require.Equal(t, second.ID, customers[0].ID)
	require.Len(t, payments, 1, "exactly the deleted customer's payments are removed")
	require.Equal(t, second.ID, payments[0].StudentID)

	require.ErrorIs(t, s.DeleteCustomer(first.ID), ErrCustomerNotFound)
}

func TestInvariantAcrossOperationSequence(t *testing.T) {
	s := newTestService()
	customer, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: 100000}, []string{"01.01.2030"})
	require.NoError(t, err)
	requireInvariant(t, s)

	var ids []string
	for _, amount := range []float64{100, 250.50, 999.99, 1} {
		p, err := s.RecordPayment(customer.ID, amount, "", "")
		require.NoError(t, err)
		ids = append(ids, p.ID)
		requireInvariant(t, s)
	}

	require.NoError(t, s.EditPayment(ids[1], customer.ID, 250.50, 300))
	requireInvariant(t, s)
	require.NoError(t, s.EditPayment(ids[2], customer.ID, 999.99, 0.01))
	requireInvariant(t, s)

	require.NoError(t, s.DeletePayment(ids[0], customer.ID, 100))
	requireInvariant(t, s)
	require.NoError(t, s.DeletePayment(ids[3], customer.ID, 1))
	requireInvariant(t, s)
}

func TestStats(t *testing.T) {
	s := newTestService()
	first, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: 50000}, nil)
	require.NoError(t, err)
	_, _, err = s.CreateCustomer(CreateCustomerInput{Name: "Петров", ProductName: "Терминал", DebtAmount: 10000}, []string{"01.01.2030"})
	require.NoError(t, err)
	_, err = s.RecordPayment(first.ID, 20000, "", "")
	require.NoError(t, err)

	stats := s.Stats()
	require.Equal(t, 2, stats.Customers)
	require.Equal(t, 2, stats.Payments)
	require.InDelta(t, 60000, stats.TotalDebt, 1e-9)
	require.InDelta(t, 20000, stats.TotalPaid, 1e-9)
	require.InDelta(t, 40000, stats.OutstandingBalance, 1e-9)
}

func TestDueCustomers(t *testing.T) {
	s := newTestService()
	today := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.Local)

	overdue, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Просроченный", ProductName: "Касса", DebtAmount: 100}, nil)
	require.NoError(t, err)
	dueToday, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Сегодня", ProductName: "Касса", DebtAmount: 100}, nil)
	require.NoError(t, err)
	upcoming, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Потом", ProductName: "Касса", DebtAmount: 100}, nil)
	require.NoError(t, err)
	_, _, err = s.CreateCustomer(CreateCustomerInput{Name: "Без даты", ProductName: "Касса", DebtAmount: 100}, nil)
	require.NoError(t, err)

	set := func(id, date string) {
		require.NoError(t, s.EditCustomer(id, CustomerUpdate{NextPaymentDate: &date}))
	}
	set(overdue.ID, "01.03.2025")
	set(dueToday.ID, "10.03.2025")
	set(upcoming.ID, "11.03.2025")

	// operator-owned free text that no longer parses is skipped
	garbage := "позвонить в апреле"
	free, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Свободный текст", ProductName: "Касса", DebtAmount: 100}, nil)
	require.NoError(t, err)
	set(free.ID, garbage)

	due := s.DueCustomers(today)
	require.Len(t, due, 2)
	names := []string{due[0].Name, due[1].Name}
	require.ElementsMatch(t, []string{"Просроченный", "Сегодня"}, names)
}

func TestImportExportThroughService(t *testing.T) {
	s := newTestService()
	customer, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: 50000}, []string{"01.01.2030"})
	require.NoError(t, err)
	_, err = s.RecordPayment(customer.ID, 20000, "cash", "")
	require.NoError(t, err)
	s.Flush()

	exported := s.Export("json")
	require.NotEmpty(t, exported)

	fresh := newTestService()
	require.True(t, fresh.Import(exported, "json"))
	customers, payments := fresh.Snapshot()
	require.Len(t, customers, 1)
	require.Len(t, payments, 2)
	requireInvariant(t, fresh)

	require.False(t, fresh.Import("garbage", "json"))
	customers, _ = fresh.Snapshot()
	require.Len(t, customers, 1, "a failed import leaves the ledger untouched")

	fresh.Clear()
	customers, payments = fresh.Snapshot()
	require.Empty(t, customers)
	require.Empty(t, payments)
}

func TestFlushPersistsForRestart(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := &memStore{data: map[string]string{}}

	repo := repository.NewRepository(store, logger, time.Hour)
	s := NewService(repo, logger)
	customer, _, err := s.CreateCustomer(CreateCustomerInput{Name: "Иванов", ProductName: "Касса", DebtAmount: 50000}, nil)
	require.NoError(t, err)
	_, err = s.RecordPayment(customer.ID, 20000, "", "")
	require.NoError(t, err)

	// nothing hit storage yet: the debounce window is an hour
	s.Flush()

	restarted := NewService(repository.NewRepository(store, logger, time.Hour), logger)
	customers, payments := restarted.Snapshot()
	require.Len(t, customers, 1)
	require.Len(t, payments, 1)
	require.InDelta(t, 20000, customers[0].PaidAmount, 1e-9)
}
