package internal_test

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal"
	apptestsupport "linkpage/internal/testsupport"
)

func findRoute(routes []fiber.Route, method, path string) *fiber.Route {
	for idx := range routes {
		if routes[idx].Method == method && routes[idx].Path == path {
			return &routes[idx]
		}
	}
	return nil
}

func TestTrackRouteRateLimited(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: internal.MountRoutesWithConfig(apptestsupport.TestConfig()),
	})
	routes := srv.App.GetRoutes(true)

	trackRoute := findRoute(routes, fiber.MethodPost, "/api/track")
	require.NotNil(t, trackRoute, "expected track route to be registered")

	// The rate limiter is wrapped in a conditional function that only applies
	// in production. Outside production it passes through but the wrapper
	// still exists.
	hasRateLimiter := false
	var handlerNames []string
	for _, handler := range trackRoute.Handlers {
		name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		handlerNames = append(handlerNames, name)
		if strings.Contains(name, "middleware/limiter") || strings.Contains(name, "mountRoutes.func") {
			hasRateLimiter = true
			break
		}
	}

	require.Truef(t, hasRateLimiter, "expected rate limiter middleware for track route, handlers: %v", handlerNames)
}

func TestRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: internal.MountRoutesWithConfig(apptestsupport.TestConfig()),
	})
	routes := srv.App.GetRoutes(true)

	expected := []struct {
		method string
		path   string
	}{
		{fiber.MethodGet, "/health"},
		{fiber.MethodGet, "/metrics"},
		{fiber.MethodPost, "/api/track"},
		{fiber.MethodPost, "/api/track/beacon"},
		{fiber.MethodGet, "/api/track.js"},
		{fiber.MethodGet, "/api/public/pages/:slug"},
		{fiber.MethodPost, "/api/auth/login"},
		{fiber.MethodGet, "/api/auth/me"},
		{fiber.MethodGet, "/api/pages"},
		{fiber.MethodPost, "/api/pages"},
		{fiber.MethodGet, "/api/pages/:id"},
		{fiber.MethodPost, "/api/pages/:id/components"},
		{fiber.MethodGet, "/api/pages/:id/analytics"},
		{fiber.MethodOptions, "/api/pages/:id/analytics"},
	}

	for _, route := range expected {
		assert.NotNilf(t, findRoute(routes, route.method, route.path), "expected %s %s to be registered", route.method, route.path)
	}
}
