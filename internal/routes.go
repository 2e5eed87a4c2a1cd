package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "linkpage/api/v1"
	"linkpage/internal/auth"
	"linkpage/internal/config"
	"linkpage/internal/http"
	"linkpage/internal/http/middleware"
)

// publicCORSConfig is shared by the endpoints published pages call from any origin.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent",
}

// loginAttemptsPerMinute bounds brute force attempts per IP.
const loginAttemptsPerMinute = 10

// MountAppRoutes mounts all application routes using the global configuration.
func MountAppRoutes(srv *cartridge.Server) {
	MountRoutesWithConfig(config.GetConfig())(srv)
}

// MountRoutesWithConfig returns a route mount function bound to cfg.
func MountRoutesWithConfig(cfg *config.Config) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		mountRoutes(srv, cfg)
	}
}

func mountRoutes(srv *cartridge.Server, cfg *config.Config) {
	logger := srv.GetLogger()
	tokens := auth.NewTokenService(cfg)

	srv.App().Use(middleware.RequestMetrics())

	// Rate limiting only applies in production; in development and test it
	// would interfere with local traffic.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	trackRateLimit := cfg.TrackRateLimitPerMinute
	if trackRateLimit <= 0 {
		trackRateLimit = 70
	}
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(trackRateLimit),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(loginAttemptsPerMinute),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	dashboardCORSConfig := &cors.Config{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}

	// ============================================
	// ROUTE CONFIGURATIONS
	// ============================================

	// Event ingestion: rate limited, CORS for any origin, Sec-Fetch-Site
	// validation from the global middleware.
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// Script and page delivery, GET only.
	publicReadConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// Dashboard clients authenticate with bearer tokens, so requests are
	// not limited to browsers.
	loginConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CustomMiddleware:   []fiber.Handler{authRateLimiter},
		CORSConfig:         dashboardCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	apiConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CustomMiddleware:   []fiber.Handler{middleware.BearerAuth(tokens, logger)},
		CORSConfig:         dashboardCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	preflightConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         dashboardCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	// === OPERATIONS ===
	srv.Get("/health", http.HealthIndexAction)
	srv.Head("/health", http.HealthIndexAction)

	metricsHandler := adaptor.HTTPHandler(promhttp.Handler())
	srv.Get("/metrics", func(ctx *cartridge.Context) error {
		return metricsHandler(ctx.Ctx)
	}, &cartridge.RouteConfig{EnableSecFetchSite: cartridge.Bool(false)})

	// === PUBLIC API ROUTES ===
	srv.Post("/api/track", v1.TrackAction, publicAPIConfig)
	srv.Options("/api/track", v1.PreflightAction, publicAPIConfig)
	srv.Post("/api/track/beacon", v1.TrackBeaconAction, publicAPIConfig)
	srv.Get("/api/track.js", v1.GetTrackerScriptAction, publicReadConfig)
	srv.Get("/api/public/pages/:slug", v1.GetPublicPageAction, publicReadConfig)
	srv.Options("/api/public/pages/:slug", v1.PreflightAction, publicReadConfig)

	// === AUTHENTICATION ROUTES ===
	srv.Post("/api/auth/login", http.LoginAction, loginConfig)
	srv.Options("/api/auth/login", v1.PreflightAction, preflightConfig)
	srv.Get("/api/auth/me", http.MeAction, apiConfig)
	srv.Options("/api/auth/me", v1.PreflightAction, preflightConfig)

	// === DASHBOARD API ROUTES ===
	srv.Get("/api/pages", http.PagesIndexAction, apiConfig)
	srv.Post("/api/pages", http.PageCreateAction, apiConfig)
	srv.Get("/api/pages/:id", http.PageShowAction, apiConfig)
	srv.Post("/api/pages/:id/components", http.ComponentCreateAction, apiConfig)
	srv.Get("/api/pages/:id/analytics", http.PageAnalyticsAction, apiConfig)

	for _, path := range []string{
		"/api/pages",
		"/api/pages/:id",
		"/api/pages/:id/components",
		"/api/pages/:id/analytics",
	} {
		srv.Options(path, v1.PreflightAction, preflightConfig)
	}
}
