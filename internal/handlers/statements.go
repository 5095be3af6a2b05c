package handlers

import (
	"net/http"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

// ListStatements handles GET /api/cards/{cardId}/statements
func (h *APIHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	cardID := r.PathValue("cardId")

	if _, err := h.statements.GetCard(r.Context(), userID, cardID); err != nil {
		h.writeError(w, r, err, "Failed to fetch card")
		return
	}
	statements, err := h.statements.ListStatements(r.Context(), userID, cardID)
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch statements")
		return
	}
	if statements == nil {
		statements = []*domain.Statement{}
	}
	writeJSON(w, http.StatusOK, statements)
}

// ListStatementTransactions handles GET /api/statements/{id}/transactions
func (h *APIHandler) ListStatementTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	statementID := r.PathValue("id")

	if _, err := h.statements.GetStatement(r.Context(), userID, statementID); err != nil {
		h.writeError(w, r, err, "Failed to fetch statement")
		return
	}
	transactions, err := h.statements.ListTransactionsByStatement(r.Context(), statementID)
	if err != nil {
		h.writeError(w, r, err, "Failed to fetch transactions")
		return
	}
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}
