package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/ledger"
)

// transactionRequest is the JSON body of create and patch requests.
// Dates are YYYY-MM-DD; amounts may be JSON strings or numbers.
type transactionRequest struct {
	Date        *string          `json:"date"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
}

func (req transactionRequest) date() (*time.Time, error) {
	if req.Date == nil {
		return nil, nil
	}
	d, err := domain.ParseDate(*req.Date)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decodeTransactionRequest(r *http.Request) (transactionRequest, *time.Time, error) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	date, err := req.date()
	if err != nil {
		return req, nil, err
	}
	return req, date, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreateTransaction handles POST /api/cards/{cardId}/transactions
func (h *APIHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, date, err := decodeTransactionRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if date == nil || req.Amount == nil {
		http.Error(w, "date and amount are required", http.StatusBadRequest)
		return
	}

	txn, err := h.ledger.Create(r.Context(), userID, ledger.CreateInput{
		CardID:      r.PathValue("cardId"),
		Date:        *date,
		Amount:      *req.Amount,
		Description: deref(req.Description),
		Category:    deref(req.Category),
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to create transaction")
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// UpdateTransaction handles PATCH /api/transactions/{id}
func (h *APIHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, date, err := decodeTransactionRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	txn, err := h.ledger.Update(r.Context(), userID, r.PathValue("id"), ledger.UpdateInput{
		Date:        date,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		h.writeError(w, r, err, "Failed to update transaction")
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *APIHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.ledger.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		h.writeError(w, r, err, "Failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
