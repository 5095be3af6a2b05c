package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/importer"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/ledger"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/middleware"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store"
)

// defaultMaxUpload caps multipart uploads when no limit is configured
const defaultMaxUpload = 10 << 20

// Import history page size bounds
const (
	defaultImportLimit = 20
	maxImportLimit     = 100
)

// Importer parses and imports statement files
type Importer interface {
	ImportFile(ctx context.Context, userID string, req importer.FileRequest) (*domain.ImportResult, error)
	Preview(ctx context.Context, fileName string, content []byte) (*importer.Preview, error)
}

// Ledger applies manual transaction edits
type Ledger interface {
	Create(ctx context.Context, userID string, in ledger.CreateInput) (*domain.Transaction, error)
	Update(ctx context.Context, userID, transactionID string, in ledger.UpdateInput) (*domain.Transaction, error)
	Delete(ctx context.Context, userID, transactionID string) error
}

// StatementReader reads statements, their transactions and the import history
type StatementReader interface {
	GetCard(ctx context.Context, userID, cardID string) (*domain.CreditCard, error)
	ListStatements(ctx context.Context, userID, cardID string) ([]*domain.Statement, error)
	GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error)
	ListTransactionsByStatement(ctx context.Context, statementID string) ([]*domain.Transaction, error)
	ListImports(ctx context.Context, userID string, limit int) ([]*domain.Import, error)
}

// APIHandler handles API requests
type APIHandler struct {
	importer   Importer
	ledger     Ledger
	statements StatementReader
	maxUpload  int64
	logger     zerolog.Logger
}

// NewAPIHandler creates a new API handler. maxUpload <= 0 uses a 10 MB limit.
func NewAPIHandler(im Importer, l Ledger, statements StatementReader, maxUpload int64, logger zerolog.Logger) *APIHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &APIHandler{
		importer:   im,
		ledger:     l,
		statements: statements,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireUser writes a 401 and returns false when the request is unauthenticated
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, importer.ErrMappingRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrEmptyFile),
		errors.Is(err, importer.ErrInvalidClosingDay),
		errors.Is(err, ledger.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with a JSON error body. Server errors are logged and
// their details withheld from the client.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg(message)
		writeJSON(w, status, map[string]string{"error": message})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
