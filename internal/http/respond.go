// Package http holds the handlers of the authenticated dashboard API.
package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpage/internal/config"
	"linkpage/internal/http/middleware"
	"linkpage/internal/pkg/validation"
)

const (
	errInvalidRequest = "Invalid request"
	errInvalidPageID  = "Invalid page id"
	errPageNotFound   = "Page not found"
	errInternal       = "Internal server error"
)

// ErrorResponse is the body of every failed request. Errors lists the
// failing fields of a rejected body.
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respondError(ctx *cartridge.Context, status int, message string) error {
	return ctx.Status(status).JSON(ErrorResponse{Message: message})
}

// respondInvalid renders a 400 for err, listing the fields when err carries
// validation failures.
func respondInvalid(ctx *cartridge.Context, message string, err error) error {
	body := ErrorResponse{Message: message}
	var verr *validation.Error
	if errors.As(err, &verr) {
		body.Errors = verr.Fields
	}
	return ctx.Status(fiber.StatusBadRequest).JSON(body)
}

// bindBody parses the request body into params and applies its validate tags.
func bindBody(ctx *cartridge.Context, params any) error {
	if err := ctx.BodyParser(params); err != nil {
		return err
	}
	return validation.Struct(params)
}

func appConfig(ctx *cartridge.Context) *config.Config {
	if cfg, ok := ctx.Config.(*config.Config); ok {
		return cfg
	}
	return config.GetConfig()
}

// currentUserID returns the user set by middleware.BearerAuth.
func currentUserID(ctx *cartridge.Context) (uint, *fiber.Error) {
	userID, ok := middleware.CurrentUserID(ctx.Ctx)
	if !ok {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
	}
	return userID, nil
}

// respondFiberError renders a *fiber.Error produced by the helpers above.
func respondFiberError(ctx *cartridge.Context, err *fiber.Error) error {
	return respondError(ctx, err.Code, err.Message)
}
