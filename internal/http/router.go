package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/festlabs/festreg/internal/cache"
	"github.com/festlabs/festreg/internal/config"
	"github.com/festlabs/festreg/internal/http/handlers"
	"github.com/festlabs/festreg/internal/http/middlewares"
	"github.com/festlabs/festreg/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps carries the wired components the router mounts. Everything arrives as
// an interface so cmd/api decides the concrete stores.
type Deps struct {
	Ping func() error

	Events        handlers.EventsStore
	Admission     handlers.Admitter
	Endpoints     handlers.EndpointReader
	Registrations handlers.RegistrationsLister
	Settings      handlers.SettingsStore
	Reconciler    handlers.EventReconciler

	JWT interface {
		handlers.TokenIssuer
		middlewares.TokenVerifier
	}

	Prom    *observability.Prom
	Metrics http.Handler
}

func NewRouter(cfg config.Config, log *slog.Logger, d Deps) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(otelgin.Middleware("festreg"))

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	// health + metrics
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	authMW := middlewares.NewAuthMiddleware(d.JWT)

	loginLimiter := middlewares.NewRateLimiter(5, time.Minute)
	registerLimiter := middlewares.NewRateLimiter(cfg.RegisterRateLimit, cfg.RegisterRateWindow)

	// handlers
	eventsHandler := handlers.NewEventsHandler(d.Events, cache.New(5*time.Second), log)
	registrationsHandler := handlers.NewRegistrationsHandler(d.Admission, d.Endpoints, d.Registrations, log)
	settingsHandler := handlers.NewAdminSettingsHandler(d.Settings, d.Reconciler, log)
	authHandler := handlers.NewAuthHandler(d.JWT, cfg.AdminEmail, cfg.AdminPassword, log)

	// public
	r.GET("/events", eventsHandler.List)
	r.GET("/events/:id", eventsHandler.Get)
	r.POST("/auth/login",
		middlewares.RequireJSON(),
		loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		authHandler.Login,
	)

	// authenticated participants
	user := r.Group("/")
	user.Use(authMW.RequireAuth())
	{
		user.POST("/events/:id/register",
			middlewares.RequireJSON(),
			registerLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP),
			registrationsHandler.Register,
		)
		user.GET("/events/:id/payment-endpoint", registrationsHandler.ActiveEndpoint)
		user.GET("/registrations/:registrationId", registrationsHandler.GetStatus)
		user.DELETE("/registrations/:registrationId", registrationsHandler.Cancel)
	}

	// admin
	admin := r.Group("/")
	admin.Use(authMW.RequireAuth(), authMW.RequireRole("admin"))
	{
		admin.POST("/events", middlewares.RequireJSON(), eventsHandler.Create)
		admin.PUT("/events/:id", middlewares.RequireJSON(), eventsHandler.Update)
		admin.DELETE("/events/:id", eventsHandler.Delete)
		admin.GET("/admin/events/:id", eventsHandler.AdminGet)
		admin.GET("/admin/events/:id/registrations", registrationsHandler.ListByEvent)

		admin.POST("/registrations/:registrationId/payment-result",
			middlewares.RequireJSON(), registrationsHandler.PaymentResult)

		admin.GET("/admin/settings/scheduler", settingsHandler.GetScheduler)
		admin.PUT("/admin/settings/scheduler", middlewares.RequireJSON(), settingsHandler.ConfigureScheduler)
		admin.PUT("/admin/settings/registration-open", middlewares.RequireJSON(), settingsHandler.SetRegistrationOpen)

		admin.POST("/admin/reconcile", settingsHandler.ReconcileAll)
		admin.POST("/admin/events/:id/reconcile", settingsHandler.ReconcileEvent)
	}

	return r
}
