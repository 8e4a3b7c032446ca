package service

import "github.com/dkurbatov/kassa-ledger/internal/models"

// Export returns the persisted snapshot serialized for backup.
// Supported formats are "json" (default) and "xml".
func (s *Service) Export(format string) string {
	if format == "xml" {
		return s.repo.ExportXML()
	}
	return s.repo.Export()
}

// Import replaces the persisted state with the given snapshot and reloads
// the in-memory ledger from it. Returns false, leaving both storage and the
// ledger untouched, when the input is malformed or incomplete.
func (s *Service) Import(text, format string) bool {
	var ok bool
	if format == "xml" {
		ok = s.repo.ImportXML(text)
	} else {
		ok = s.repo.Import(text)
	}
	if !ok {
		return false
	}

	customers, payments := s.repo.Load()
	s.mu.Lock()
	s.customers = customers
	s.payments = payments
	s.mu.Unlock()

	s.log.Infof("Ledger imported: %d customers, %d payments", len(customers), len(payments))
	return true
}

// Clear wipes both the persisted and the in-memory state.
func (s *Service) Clear() {
	s.repo.Clear()
	s.mu.Lock()
	s.customers = []models.Customer{}
	s.payments = []models.Payment{}
	s.mu.Unlock()
}
