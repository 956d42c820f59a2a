// Package http serves the JSON API: accounts, groups, expenses and
// settlement plans.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"splitsmart/internal/auth"
	"splitsmart/internal/log"
	"splitsmart/internal/middleware/ratelimit"
	"splitsmart/internal/middleware/security"
	"splitsmart/internal/middleware/trace"
	"splitsmart/internal/services"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the use cases the handlers call.
type Services struct {
	Accounts    *services.AccountService
	Groups      *services.GroupService
	Expenses    *services.ExpenseService
	Settlements *services.SettlementService
}

// Options tunes the middleware chain.
type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	// Ready is checked by /readyz; nil means always ready.
	Ready Pinger
}

type Server struct {
	http.Server
	router   *mux.Router
	svc      Services
	ready    Pinger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		router:   mux.NewRouter(),
		svc:      svc,
		ready:    opts.Ready,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		logger:   logger,
	}
	s.setupRoutes()

	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// Bearer tokens travel in a header, so credentials stay off even for listed origins.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
	})

	var handler http.Handler = s.router
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = corsHandler.Handler(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusNotFound, "not found").Write(w)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	}))

	// Auth endpoints
	api.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	// Protected endpoints
	protected := api.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)

	protected.HandleFunc("/me/summary", s.handleMySummary).Methods(http.MethodGet)
	protected.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	protected.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	protected.HandleFunc("/groups/{group_id}", s.handleGetGroup).Methods(http.MethodGet)
	protected.HandleFunc("/groups/{group_id}/members", s.handleAddMember).Methods(http.MethodPost)
	protected.HandleFunc("/groups/{group_id}/members/{user_id}/tags", s.handleSetMemberTags).Methods(http.MethodPut)
	protected.HandleFunc("/groups/{group_id}/expenses", s.handleAddExpense).Methods(http.MethodPost)
	protected.HandleFunc("/groups/{group_id}/expenses", s.handleListExpenses).Methods(http.MethodGet)
	protected.HandleFunc("/groups/{group_id}/expenses/{expense_id}", s.handleGetExpense).Methods(http.MethodGet)
	protected.HandleFunc("/groups/{group_id}/balances", s.handleBalances).Methods(http.MethodGet)
	protected.HandleFunc("/groups/{group_id}/simplify", s.handleSimplify).Methods(http.MethodGet)
}

// authMiddleware requires a valid bearer token and stores its claims in the context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			ErrorResponse(http.StatusUnauthorized, "missing bearer token").Write(w)
			return
		}
		claims, err := s.svc.Accounts.Authenticate(token)
		if err != nil {
			writeError(w, r, err)
			return
		}

		logger := log.FromContext(r.Context()).With(log.FieldUserID, string(claims.UserID))
		ctx := auth.WithClaims(r.Context(), claims)
		ctx = context.WithValue(ctx, log.LoggerContextKey, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Shutdown gracefully shuts down the server and the limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Close releases background resources without serving; used by tests.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.Server.Close()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
