package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nhbenergy/core"
	coreerrors "nhbenergy/core/errors"
	"nhbenergy/gateway/middleware"
	"nhbenergy/native/common"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// EpochAdvancer is implemented by clocks the operator may move by hand.
type EpochAdvancer interface {
	Advance(n uint64) uint64
}

// Deps are the collaborators the handlers drive.
type Deps struct {
	Processor *core.Processor
	Auth      *middleware.Authenticator
	Limiter   *middleware.RateLimiter
	Pauses    *common.PauseSet
	Events    *EventLog
	// Advancer is nil unless the ledger runs on a manual clock.
	Advancer EpochAdvancer
	Logger   *slog.Logger
}

// Server exposes the energy ledger over HTTP.
type Server struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	router http.Handler
}

// New validates deps and builds the router.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Processor == nil {
		return nil, fmt.Errorf("processor required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewRateLimiter(nil, deps.Logger)
	}
	if deps.Pauses == nil {
		deps.Pauses = common.NewPauseSet()
	}
	if deps.Events == nil {
		deps.Events = NewEventLog(deps.Logger, 0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{cfg: cfg, deps: deps, logger: deps.Logger}
	s.router = s.buildRouter()
	return s, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Observe("energyd", s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	limit := s.deps.Limiter.Middleware
	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			read.Use(limit("read"))
			read.Get("/params", s.handleParams)
			read.Get("/energy/{addr}", s.handleEnergy)
			read.Get("/claims/{addr}", s.handleClaimProgress)
			read.Get("/balances/{addr}/{token}", s.handleBalance)
			read.Get("/lots/{nonce}", s.handleLot)
			read.Get("/weeks/{week}", s.handleWeek)
			read.Get("/penalty", s.handlePenaltyQuote)
			read.Get("/events", s.handleEvents)
		})

		v1.Group(func(user chi.Router) {
			user.Use(s.deps.Auth.Middleware())
			user.With(limit("lock")).Post("/lock", s.handleLock)
			user.With(limit("lock")).Post("/unlock", s.handleUnlock)
			user.With(limit("lock")).Post("/unlock-early", s.handleUnlockEarly)
			user.With(limit("lock")).Post("/reduce-lock", s.handleReduceLock)
			user.With(limit("fees")).Post("/fees/send", s.handleSendFees)
			user.With(limit("fees")).Post("/fees/deposit", s.handleDepositFees)
			user.With(limit("claim")).Post("/claim", s.handleClaim)
		})

		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(s.deps.Auth.Middleware(middleware.AdminScope))
			admin.Use(limit("admin"))
			admin.Post("/penalty", s.handleSetPenalty)
			admin.Post("/fees-burn", s.handleSetFeesBurn)
			admin.Post("/fees-collector", s.handleSetFeesCollector)
			admin.Post("/mint", s.handleMint)
			admin.Post("/pause", s.handlePause)
			admin.Post("/epoch/advance", s.handleAdvanceEpoch)
		})
	})

	return otelhttp.NewHandler(r, "energyd")
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", slog.String("addr", s.cfg.ListenAddress))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusFor maps ledger error classes onto HTTP status codes.
func statusFor(err error) int {
	switch coreerrors.Class(err) {
	case coreerrors.ErrValidation:
		return http.StatusBadRequest
	case coreerrors.ErrPrecondition:
		return http.StatusConflict
	case coreerrors.ErrPermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("ledger fault",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		message = "internal ledger error"
	}
	middleware.WriteError(w, status, message)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"epoch":  s.deps.Processor.CurrentEpoch(),
	})
}
