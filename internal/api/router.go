package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/voiceover/internal/api/handlers"
	"github.com/nikhilbhutani/voiceover/internal/api/middleware"
	"github.com/nikhilbhutani/voiceover/internal/auth"
	"github.com/nikhilbhutani/voiceover/internal/config"
	"github.com/nikhilbhutani/voiceover/internal/metrics"
	"github.com/nikhilbhutani/voiceover/internal/tempfiles"
)

// Deps are the collaborators the router wires into handlers. Optional ones
// (Audit, AuditReader, Jobs, Queue, Checks) are left nil when the backing
// store is not configured.
type Deps struct {
	Transcriber handlers.Transcriber
	Synthesizer handlers.Synthesizer
	TempDir     *tempfiles.Dir
	Audit       handlers.AuditLogger
	AuditReader handlers.AuditReader
	Jobs        handlers.JobStore
	Queue       handlers.Enqueuer
	Checks      map[string]handlers.Check
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
	jwt  *auth.JWTMiddleware
	rbac *auth.RBAC
	rl   *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	jwt := auth.NewJWTMiddleware(cfg.Auth.JWTSecret)
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
		jwt:  jwt,
		rbac: auth.NewRBAC(jwt),
		rl:   middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
}

// Close stops background work owned by the router.
func (rt *Router) Close(context.Context) error {
	rt.rl.Stop()
	return nil
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(rt.deps.Metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORS.AllowedOrigins))

	// Health endpoints (no auth, no rate limit)
	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/", health.Root)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.HandlerFor(rt.deps.Gatherer, promhttp.HandlerOpts{}))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.rl.Limit)
		r.Use(rt.jwt.Authenticate)

		listenH := handlers.NewListenHandler(rt.deps.Transcriber, rt.deps.Audit, rt.deps.Metrics)
		r.With(rt.rbac.RequirePermission(auth.PermTranscribe)).Get("/listen", listenH.Listen)

		speechH := handlers.NewSpeechHandler(rt.deps.Synthesizer, rt.deps.TempDir, rt.deps.Audit, rt.deps.Metrics)
		r.With(rt.rbac.RequirePermission(auth.PermSynthesize)).Post("/tts", speechH.Synthesize)

		alignH := handlers.NewAlignHandler(handlers.AlignOptions{
			Workers:       rt.cfg.Align.Workers,
			MaxCells:      rt.cfg.Align.MaxCells,
			CallbackHosts: rt.cfg.Align.CallbackHosts,
		}, rt.deps.Jobs, rt.deps.Queue, rt.deps.Audit, rt.deps.Metrics)
		r.Route("/align", func(r chi.Router) {
			r.Use(rt.rbac.RequirePermission(auth.PermAlign))
			r.Post("/", alignH.Solve)
			r.Post("/jobs", alignH.SubmitJob)
			r.Get("/jobs/{id}", alignH.GetJob)
		})

		// Admin routes
		adminH := handlers.NewAdminHandler(rt.deps.AuditReader)
		r.Route("/admin", func(r chi.Router) {
			r.Use(rt.rbac.RequirePermission(auth.PermAdminRead))
			r.Get("/usage", adminH.Usage)
			r.Get("/audit", adminH.AuditLogs)
		})
	})

	return r
}
