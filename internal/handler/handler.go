package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dkurbatov/kassa-ledger/internal/models"
	"github.com/dkurbatov/kassa-ledger/internal/service"
	"github.com/gorilla/mux"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// customerView adds the derived outstanding balance to a customer record
// for display.
type customerView struct {
	models.Customer
	Balance float64 `json:"balance"`
}

// ListCustomers returns all customers with their balances
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, _ := h.svc.Snapshot()
	views := make([]customerView, 0, len(customers))
	for _, c := range customers {
		views = append(views, customerView{Customer: c, Balance: c.Balance()})
	}
	respondJSON(w, http.StatusOK, views)
}

// CreateCustomer handles customer registration
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		service.CreateCustomerInput
		ScheduledDates []string `json:"scheduledDates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	customer, planned, err := h.svc.CreateCustomer(req.CreateCustomerInput, req.ScheduledDates)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"customer": customer,
		"payments": planned,
	})
}

// UpdateCustomer handles partial customer edits
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var updates service.CustomerUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.svc.EditCustomer(mux.Vars(r)["id"], updates); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCustomer removes a customer and all of its payments
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCustomer(mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPayments returns payments, optionally filtered by studentId
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	_, payments := h.svc.Snapshot()
	if studentID := r.URL.Query().Get("studentId"); studentID != "" {
		filtered := make([]models.Payment, 0, len(payments))
		for _, p := range payments {
			if p.StudentID == studentID {
				filtered = append(filtered, p)
			}
		}
		payments = filtered
	}
	respondJSON(w, http.StatusOK, payments)
}

// RecordPayment handles recording a payment against a customer's debt
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string  `json:"studentId"`
		Amount    float64 `json:"amount"`
		Note      string  `json:"note"`
		Date      string  `json:"date"` // DD.MM.YYYY, optional
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := h.svc.RecordPayment(req.StudentID, req.Amount, req.Note, req.Date)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, payment)
}

// UpdatePayment handles editing a payment's amount
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string  `json:"studentId"`
		OldAmount float64 `json:"oldAmount"`
		NewAmount float64 `json:"newAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.svc.EditPayment(mux.Vars(r)["id"], req.StudentID, req.OldAmount, req.NewAmount); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeletePayment removes a payment and lowers the customer's paid amount
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	amount, err := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	if err != nil {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	if err := h.svc.DeletePayment(mux.Vars(r)["id"], studentID, amount); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats returns aggregate ledger totals
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Stats())
}

// Export returns the persisted snapshot for backup (json or xml)
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "xml" {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	io.WriteString(w, h.svc.Export(format))
}

// Import replaces the ledger with an uploaded snapshot (json or xml)
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if !h.svc.Import(string(body), r.URL.Query().Get("format")) {
		http.Error(w, "Invalid snapshot", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Clear wipes the ledger and its persisted state
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.svc.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, service.ErrCustomerNotFound) || errors.Is(err, service.ErrPaymentNotFound) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}
