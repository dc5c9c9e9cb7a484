// Package http hosts the dashboard JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fluxo/internal/core"
	"fluxo/internal/freshness"
	"fluxo/internal/invoice"
	"fluxo/internal/log"
	"fluxo/internal/middleware/ratelimit"
	"fluxo/internal/middleware/security"
	"fluxo/internal/middleware/trace"
)

// Dashboard is the read side the API serves.
type Dashboard interface {
	Projection(ctx context.Context) ([]core.MonthBucket, error)
	MonthDetail(ctx context.Context, month, year int) (core.MonthDetail, error)
	Invoices(ctx context.Context) (invoice.Summary, error)
	Refresh(ctx context.Context) error
	Invalidate(urgency freshness.Urgency) error
}

// Events receives the lifecycle triggers reported by clients.
type Events interface {
	ReturnedFrom(screen string) int
	Foregrounded()
	MutationObserved(entity string) int
}

const entityTransaction = "transaction"

// Ledger stores realized transactions.
type Ledger interface {
	AddTransaction(ctx context.Context, tx core.TransactionRecord) error
}

// Publisher forwards mutation notifications to other instances.
type Publisher interface {
	PublishMutation(ctx context.Context, entity, action string) error
}

type Server struct {
	http.Server
	dash      Dashboard
	events    Events
	publisher Publisher
	ledger    Ledger
	ready     func(context.Context) error
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware

	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithPublisher publishes mutations instead of applying them locally.
func WithPublisher(p Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithLedger enables POST /api/transactions.
func WithLedger(l Ledger) Option {
	return func(s *Server) { s.ledger = l }
}

// WithReadiness sets the check behind /readyz.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRateLimit overrides the limiter applied to POST routes.
func WithRateLimit(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, dash Dashboard, events Events, opts ...Option) *Server {
	s := &Server{dash: dash, events: events, logger: log.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)
	s.tracer = trace.NewMiddleware(s.logger, extractClientIP)

	r := mux.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.limiter.Middleware(extractClientIP))

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard/projection", s.handleProjection).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/months/{year}/{month}", s.handleMonthDetail).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/invoices", s.handleInvoices).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/dashboard/invalidate", s.handleInvalidate).Methods(http.MethodPost)
	api.HandleFunc("/navigation/return", s.handleNavigationReturn).Methods(http.MethodPost)
	api.HandleFunc("/events/focus", s.handleFocus).Methods(http.MethodPost)
	api.HandleFunc("/mutations", s.handleMutation).Methods(http.MethodPost)
	if s.ledger != nil {
		api.HandleFunc("/transactions", s.handleAddTransaction).Methods(http.MethodPost)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Kind: "not_found"})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	months, err := s.dash.Projection(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectionOf(months))
}

func (s *Server) handleMonthDetail(w http.ResponseWriter, r *http.Request) {
	month, year, err := parsePeriod(mux.Vars(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := s.dash.MonthDetail(r.Context(), month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailOf(detail))
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	sum, err := s.dash.Invoices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoicesOf(sum))
}

// handleRefresh waits for a fresh load; any failure is reported as 503.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Refresh(r.Context()); err != nil {
		_, kind := statusFor(err)
		writeErrorStatus(w, r, http.StatusServiceUnavailable, kind, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "refreshed", At: time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	urgency, ok := freshness.ParseUrgency(r.URL.Query().Get("urgency"))
	if !ok {
		writeError(w, r, &core.InputValidationError{Field: "urgency", Reason: "must be soft or hard"})
		return
	}
	if err := s.dash.Invalidate(urgency); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "invalidated"})
}

func (s *Server) handleNavigationReturn(w http.ResponseWriter, r *http.Request) {
	screen := sanitizeName(r.URL.Query().Get("screen"))
	if screen == "" {
		writeError(w, r, &core.InputValidationError{Field: "screen", Reason: "is required"})
		return
	}
	n := s.events.ReturnedFrom(screen)
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Keys: n})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	s.events.Foregrounded()
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// handleMutation announces a changed entity. With a publisher every instance
// learns about it through the bus; otherwise it is applied locally.
func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request) {
	var req mutationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, &core.InputValidationError{Field: "body", Reason: err.Error()})
		return
	}
	entity := sanitizeName(req.Entity)
	if entity == "" {
		writeError(w, r, &core.InputValidationError{Field: "entity", Reason: "is required"})
		return
	}
	switch req.Action {
	case "", "created", "updated", "deleted":
	default:
		writeError(w, r, &core.InputValidationError{Field: "action", Reason: "must be created, updated or deleted"})
		return
	}

	if s.publisher != nil {
		err := s.publisher.PublishMutation(r.Context(), entity, req.Action)
		if err == nil {
			writeJSON(w, http.StatusAccepted, ackResponse{Status: "published"})
			return
		}
		if errors.Is(err, context.Canceled) {
			writeError(w, r, err)
			return
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Publishing mutation failed, applying locally",
			log.FieldEntity, entity, log.FieldError, err.Error())
	}

	n := s.events.MutationObserved(entity)
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "applied", Keys: n})
}

// handleAddTransaction stores a realized transaction and invalidates what
// depends on it. Other instances are told through the bus when there is one.
func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, &core.InputValidationError{Field: "body", Reason: err.Error()})
		return
	}
	tx, err := req.record()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.AddTransaction(r.Context(), tx); err != nil {
		writeError(w, r, fmt.Errorf("add transaction: %w", err))
		return
	}

	n := s.events.MutationObserved(entityTransaction)
	if s.publisher != nil {
		if err := s.publisher.PublishMutation(r.Context(), entityTransaction, "created"); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Publishing transaction mutation failed",
				log.FieldEntity, entityTransaction, log.FieldError, err.Error())
		}
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "created", ID: tx.ID, Keys: n})
}
