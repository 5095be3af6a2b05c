package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/config"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/firestore"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/handlers"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/importer"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/ledger"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/middleware"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/rules"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/store/sqlite"
)

// Server represents the card statements API server
type Server struct {
	mux     *http.ServeMux
	closers []io.Closer
}

// New creates a server backed by Firestore, or by SQLite when SQLITE_PATH is set.
// Firebase Auth verifies tokens in both cases.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	fsClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	closers := []io.Closer{fsClient}

	var st store.Store = fsClient.Store()
	if cfg.UsesSQLite() {
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			fsClient.Close()
			return nil, err
		}
		st = db
		closers = append(closers, db)
		logger.Info().Str("path", cfg.SQLitePath).Msg("using sqlite store")
	}

	s, err := newServer(st, fsClient.Auth, cfg, logger)
	if err != nil {
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}
	s.closers = closers
	return s, nil
}

// newServer wires handlers over st. Tests pass an in-memory store and a stub verifier.
func newServer(st store.Store, verifier middleware.TokenVerifier, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	engine, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load category rules: %w", err)
	}

	im := importer.New(st, importer.WithRules(engine), importer.WithLogger(logger))
	api := handlers.NewAPIHandler(im, ledger.New(st, logger), st, cfg.MaxUploadBytes(), logger)
	auth := middleware.NewAuthMiddleware(verifier, logger)

	s := &Server{mux: http.NewServeMux()}
	s.setupRoutes(api, auth)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(api *handlers.APIHandler, auth *middleware.AuthMiddleware) {
	// Health check (no auth required)
	s.mux.HandleFunc("GET /health", handlers.HealthCheck)

	protect := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, auth.RequireAuth(h))
	}

	protect("GET /api/imports", api.ListImports)
	protect("POST /api/imports/preview", api.PreviewImport)
	protect("POST /api/cards/{cardId}/imports", api.ImportStatement)
	protect("GET /api/cards/{cardId}/statements", api.ListStatements)
	protect("GET /api/statements/{id}/transactions", api.ListStatementTransactions)

	protect("POST /api/cards/{cardId}/transactions", api.CreateTransaction)
	protect("PATCH /api/transactions/{id}", api.UpdateTransaction)
	protect("DELETE /api/transactions/{id}", api.DeleteTransaction)

	// Static files for frontend (when deployed together)
	s.mux.Handle("GET /", http.FileServer(http.Dir("./dist")))
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return middleware.CORS(s.mux)
}

// Close closes the server resources
func (s *Server) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
