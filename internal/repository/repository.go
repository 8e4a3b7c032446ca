package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkurbatov/kassa-ledger/internal/models"
	"github.com/dkurbatov/kassa-ledger/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDebounceWindow is how long a non-immediate save waits before
	// hitting storage, so bursts of mutations coalesce into one write.
	DefaultDebounceWindow = 300 * time.Millisecond

	// MaxStoredPayments bounds the payment history kept on a quota-exceeded
	// retry. Customers are never truncated.
	MaxStoredPayments = 100
)

type snapshot struct {
	Students []models.Customer `json:"students"`
	Payments []models.Payment  `json:"payments"`
}

// Repository persists ledger snapshots through the key-value storage
// boundary. Saves are debounced: only the newest pending snapshot is
// written, a superseded one is simply redundant because every write
// carries the full state.
type Repository struct {
	store  storage.Store
	log    *logrus.Logger
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *snapshot
}

// NewRepository initializes a new repository. A window of zero selects
// DefaultDebounceWindow.
func NewRepository(store storage.Store, log *logrus.Logger, window time.Duration) *Repository {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Repository{store: store, log: log, window: window}
}

// Load restores both collections from storage. Absent keys, malformed
// content and read errors all degrade to empty collections; Load never
// fails outward.
func (r *Repository) Load() ([]models.Customer, []models.Payment) {
	customers := []models.Customer{}
	payments := []models.Payment{}

	if data, ok, err := r.store.Get(storage.KeyStudents); err != nil {
		r.log.Errorf("Failed to load customers: %v", err)
	} else if ok {
		if err := json.Unmarshal([]byte(data), &customers); err != nil {
			r.log.Errorf("Malformed customer data, starting empty: %v", err)
			customers = []models.Customer{}
		}
	}

	if data, ok, err := r.store.Get(storage.KeyPayments); err != nil {
		r.log.Errorf("Failed to load payments: %v", err)
	} else if ok {
		if err := json.Unmarshal([]byte(data), &payments); err != nil {
			r.log.Errorf("Malformed payment data, starting empty: %v", err)
			payments = []models.Payment{}
		}
	}

	return customers, payments
}

// Save schedules a write of the full snapshot. Within the debounce window a
// newer Save supersedes the pending one. With immediate set, any pending
// write is cancelled and the snapshot is written synchronously (used on
// teardown). Failures are logged, never returned: persistence must not
// block the operator's workflow.
func (r *Repository) Save(customers []models.Customer, payments []models.Payment, immediate bool) {
	snap := &snapshot{
		Students: append([]models.Customer{}, customers...),
		Payments: append([]models.Payment{}, payments...),
	}

	r.mu.Lock()
	if immediate {
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
		r.pending = nil
		r.mu.Unlock()
		r.write(snap)
		return
	}

	r.pending = snap
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.window, r.flushPending)
	r.mu.Unlock()
}

// Flush writes any pending debounced snapshot right away. Safe to call when
// nothing is pending.
func (r *Repository) Flush() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
	r.flushPending()
}

func (r *Repository) flushPending() {
	r.mu.Lock()
	snap := r.pending
	r.pending = nil
	r.timer = nil
	r.mu.Unlock()

	if snap != nil {
		r.write(snap)
	}
}

func (r *Repository) write(snap *snapshot) {
	err := r.writeSnapshot(snap.Students, snap.Payments)
	if err == nil {
		r.log.Infof("Data saved: %d customers, %d payments", len(snap.Students), len(snap.Payments))
		return
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		r.log.Errorf("Failed to save data: %v", err)
		return
	}

	// Quota exceeded: keep the full customer ledger, trade away old
	// payment history.
	r.log.Warnf("Storage quota exceeded, retrying with the last %d payments", MaxStoredPayments)
	truncated := snap.Payments
	if len(truncated) > MaxStoredPayments {
		truncated = truncated[len(truncated)-MaxStoredPayments:]
	}
	if err := r.writeSnapshot(snap.Students, truncated); err != nil {
		r.log.Errorf("Failed to save even after truncation: %v", err)
	}
}

func (r *Repository) writeSnapshot(customers []models.Customer, payments []models.Payment) error {
	customerData, err := json.Marshal(customers)
	if err != nil {
		return fmt.Errorf("failed to serialize customers: %w", err)
	}
	paymentData, err := json.Marshal(payments)
	if err != nil {
		return fmt.Errorf("failed to serialize payments: %w", err)
	}

	if err := r.store.Set(storage.KeyStudents, string(customerData)); err != nil {
		return err
	}
	if err := r.store.Set(storage.KeyPayments, string(paymentData)); err != nil {
		return err
	}
	return nil
}

// Clear deletes both stored collections.
func (r *Repository) Clear() {
	if err := r.store.Remove(storage.KeyStudents); err != nil {
		r.log.Errorf("Failed to clear customers: %v", err)
	}
	if err := r.store.Remove(storage.KeyPayments); err != nil {
		r.log.Errorf("Failed to clear payments: %v", err)
	}
	r.log.Info("Storage cleared")
}

// Export returns the persisted snapshot as indented JSON for backup.
func (r *Repository) Export() string {
	customers, payments := r.Load()
	data, err := json.MarshalIndent(snapshot{Students: customers, Payments: payments}, "", "  ")
	if err != nil {
		r.log.Errorf("Failed to export data: %v", err)
		return ""
	}
	return string(data)
}

// Import replaces the persisted state with the given JSON snapshot. Both
// collections must be present; malformed or incomplete input leaves storage
// untouched and reports failure.
func (r *Repository) Import(jsonText string) bool {
	var incoming struct {
		Students *[]models.Customer `json:"students"`
		Payments *[]models.Payment  `json:"payments"`
	}
	if err := json.Unmarshal([]byte(jsonText), &incoming); err != nil {
		r.log.Errorf("Failed to import data: %v", err)
		return false
	}
	if incoming.Students == nil || incoming.Payments == nil {
		return false
	}

	r.Save(*incoming.Students, *incoming.Payments, true)
	return true
}
