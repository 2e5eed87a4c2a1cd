package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"linkpage/internal/auth"
	"linkpage/internal/users"
)

type LoginParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// LoginAction exchanges credentials for a bearer token
func LoginAction(ctx *cartridge.Context) error {
	var params LoginParams
	if err := bindBody(ctx, &params); err != nil {
		return respondInvalid(ctx, "Email and password are required", err)
	}

	user, err := users.Authenticate(ctx.DB(), params.Email, params.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			ctx.Logger.Info("Failed login attempt", slog.String("email", params.Email))
			return respondError(ctx, fiber.StatusUnauthorized, "Invalid email or password")
		}
		ctx.Logger.Error("Failed to authenticate user", slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, errInternal)
	}

	token, expiresAt, err := auth.NewTokenService(appConfig(ctx)).Issue(user.ID, user.Email)
	if err != nil {
		ctx.Logger.Error("Failed to issue token", slog.Uint64("user_id", uint64(user.ID)), slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, errInternal)
	}

	ctx.Logger.Info("User logged in", slog.Uint64("user_id", uint64(user.ID)))
	return ctx.JSON(LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      UserResponse{ID: user.ID, Email: user.Email},
	})
}

// MeAction returns the authenticated user
func MeAction(ctx *cartridge.Context) error {
	userID, ferr := currentUserID(ctx)
	if ferr != nil {
		return respondFiberError(ctx, ferr)
	}

	user, err := users.FindByID(ctx.DB(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(ctx, fiber.StatusUnauthorized, "User no longer exists")
		}
		ctx.Logger.Error("Failed to load user", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, errInternal)
	}

	return ctx.JSON(UserResponse{ID: user.ID, Email: user.Email})
}
