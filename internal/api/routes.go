package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zysolutions/octodash/internal/config"
	"github.com/zysolutions/octodash/internal/metrics"
)

// SetupRoutes configures all API routes. Routes under /api require a
// session when opts.Auth is set.
func SetupRoutes(h *Handlers, cfg config.ServerConfig, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(instrument)

	// CORS - allow credentials for the session cookie
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if opts.Health != nil {
		r.Get("/health", opts.Health.HandleHealth)
		r.Get("/health/live", opts.Health.HandleLiveness)
		r.Get("/health/ready", opts.Health.HandleReadiness)
	}

	if opts.Metrics.Enabled {
		r.Handle(opts.Metrics.Path, metrics.Handler())
	}

	// Auth routes (no auth required)
	if opts.Auth != nil {
		r.Post("/auth/login", opts.Auth.HandleLogin)
		r.Post("/auth/logout", opts.Auth.HandleLogout)
		r.Get("/auth/user", opts.Auth.HandleUserInfo)
	}

	r.Route("/api", func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth.RequireAuth)
		}

		// Usage dashboard
		r.Get("/usage", h.GetUsage)
		r.Post("/usage/refresh", h.RefreshUsage)
		r.Get("/usage/limits", h.GetUsageLimits)
		r.Get("/performance", h.GetPerformance)

		// Lists and contacts
		r.Route("/lists", func(r chi.Router) {
			r.Get("/", h.GetLists)
			r.Post("/", h.CreateList)
			r.Get("/{listID}/contacts", h.GetContacts)
			r.Post("/{listID}/contacts", h.CreateContact)
			r.Delete("/{listID}/contacts/{contactID}", h.DeleteContact)
			r.Post("/{listID}/import", h.ImportContacts)
		})

		// Campaigns
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.GetCampaigns)
			r.Get("/{campaignID}", h.GetCampaign)
			r.Get("/{campaignID}/report", h.GetCampaignReport)
			r.Get("/{campaignID}/report.csv", h.DownloadCampaignReport)
			r.Post("/{campaignID}/send", h.SendCampaign)
		})

		// Templates
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/{templateID}", h.GetTemplate)
			r.Put("/{templateID}", h.UpdateTemplate)
			r.Delete("/{templateID}", h.DeleteTemplate)
			r.Post("/{templateID}/preview", h.PreviewTemplate)
		})

		r.Post("/images", h.UploadImage)
		r.Post("/proxy", h.Proxy)
		r.Get("/sheets/campaigns", h.GetSheetCampaigns)
	})

	return r
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
