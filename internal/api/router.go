package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/englishadventure/user-service/docs"
	"github.com/englishadventure/user-service/internal/api/handler"
	"github.com/englishadventure/user-service/internal/api/metrics"
	"github.com/englishadventure/user-service/internal/api/middleware"
	"github.com/englishadventure/user-service/internal/core/ports"
)

// Deps carries everything the router needs to wire handlers.
type Deps struct {
	Log            zerolog.Logger
	APIPrefix      string
	AuthService    ports.AuthService
	AccountService ports.AccountService
	Tokens         middleware.TokenParser
	LoginLimiter   *middleware.RateLimiter
	Readiness      []handler.DependencyCheck

	// Registerer and Gatherer default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "http",
		Registerer: d.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.AuthService)
	accountHandler := handler.NewAccountHandler(d.AccountService)
	requireAuth := middleware.Auth(d.Tokens)
	throttleLogin := middleware.RateLimit(d.LoginLimiter, func(echo.Context) {
		metrics.LoginsTotal.WithLabelValues("throttled").Inc()
	})

	// --- Account routes ---
	users := e.Group(strings.TrimRight(d.APIPrefix, "/") + "/users")
	users.POST("/register", authHandler.Register)
	users.POST("/login", authHandler.Login, throttleLogin)
	users.GET("/profile/me", accountHandler.GetMyProfile, requireAuth)
	users.GET("/profile/:id", accountHandler.GetProfile)
	users.PUT("/profile/:id", accountHandler.UpdateProfile)
	users.PUT("/:id/experience", accountHandler.GrantExperience)
	users.PUT("/:id/coins", accountHandler.GrantCoins)
	users.GET("/leaderboard", accountHandler.Leaderboard)

	// --- Health probes and tooling (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Readiness...)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
