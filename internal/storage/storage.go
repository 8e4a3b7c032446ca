package storage

import "errors"

// Storage keys for the two persisted collections. The names match the
// snapshot produced by earlier versions of the ledger so old exports
// import cleanly.
const (
	KeyStudents = "students"
	KeyPayments = "payments"
)

// ErrQuotaExceeded is returned by Set when a write would exceed the
// store's capacity.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is the key-value boundary the ledger persists through. Values are
// opaque text; no transactional guarantee is made across keys.
type Store interface {
	// Get returns the value at key, or ok=false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	// Set writes value at key. Returns ErrQuotaExceeded when the write
	// does not fit the store's capacity.
	Set(key, value string) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(key string) error
}
