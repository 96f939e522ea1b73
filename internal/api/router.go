package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/structa-ai/verdict/internal/api/handlers"
	mw "github.com/structa-ai/verdict/internal/api/middleware"
	"github.com/structa-ai/verdict/internal/config"
	"github.com/structa-ai/verdict/internal/domain"
	"github.com/structa-ai/verdict/internal/ledger"
	"github.com/structa-ai/verdict/internal/service"
	"github.com/structa-ai/verdict/internal/store"
	"go.uber.org/zap"
)

// App wires the ledger, resolution services, and HTTP surface together.
type App struct {
	Router *chi.Mux
	Ledger *ledger.Ledger

	startTime    time.Time
	requestCount atomic.Int64
}

// NewApp builds the application. db may be nil: the engine then runs with
// the in-memory ledger only and archive-backed endpoints return 503.
func NewApp(db *pgxpool.Pool, policy *domain.Policy, logger *zap.Logger) *App {
	led := ledger.New(logger)

	resolver := service.NewConflictResolver(policy, led, logger)
	stage := service.NewResolutionStage(resolver, led, logger)
	audit := service.NewAuditService(led, logger)

	if db != nil {
		audit.SetArchives(
			store.NewEvidenceStore(db),
			store.NewAssumptionStore(db),
			store.NewInferenceStore(db),
			store.NewDecisionStore(db),
			store.NewFlagStore(db),
		)
	}

	runHandler := handlers.NewRunHandler(stage, audit, led)
	ledgerHandler := handlers.NewLedgerHandler(led, audit)
	flagHandler := handlers.NewFlagHandler(led, audit)
	evidenceHandler := handlers.NewEvidenceHandler(led, audit)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Ledger:    led,
		startTime: time.Now(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.countRequests)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Post("/runs/resolve", runHandler.Resolve)

		r.Route("/evidence", func(r chi.Router) {
			r.Post("/", evidenceHandler.Create)
			r.Get("/{id}", evidenceHandler.GetEvidence)
			r.Get("/{id}/similar", evidenceHandler.Similar)
		})
		r.Post("/assumptions", evidenceHandler.CreateAssumption)
		r.Post("/inferences", evidenceHandler.CreateInference)
		r.Get("/inferences", ledgerHandler.ListInferences)
		r.Get("/inferences/{id}", ledgerHandler.GetInference)

		r.Route("/decisions", func(r chi.Router) {
			r.Get("/", ledgerHandler.ListDecisions)
			r.Get("/{id}", ledgerHandler.GetDecision)
			r.Get("/{id}/audit", ledgerHandler.AuditBundle)
		})

		r.Route("/flags", func(r chi.Router) {
			r.Get("/", flagHandler.List)
			r.Post("/{id}/resolve", flagHandler.Resolve)
		})

		r.Get("/ledger/summary", ledgerHandler.Summary)
	})

	return app
}

func (a *App) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.requestCount.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (a *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := a.Ledger.Summary()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"uptime_seconds": int64(time.Since(a.startTime).Seconds()),
			"request_count":  a.requestCount.Load(),
			"ledger":         summary,
		})
	}
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "archive": "disabled"}
		code := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status["status"] = "degraded"
				status["archive"] = "unreachable"
				code = http.StatusServiceUnavailable
			} else {
				status["archive"] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
