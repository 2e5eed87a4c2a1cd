package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpage/internal/config"
	"linkpage/internal/tracking"
)

const (
	errInvalidRequest = "Invalid request"
	errPageNotFound   = "Page not found"
	errTrackFailed    = "Failed to track event"
)

// TrackParams is the body of POST /api/track. Identifiers may be sent as
// JSON numbers or strings.
type TrackParams struct {
	PageID      tracking.LooseString `json:"pageId"`
	VisitorID   tracking.LooseString `json:"visitorId"`
	EventType   string               `json:"eventType"`
	ComponentID tracking.LooseString `json:"componentId"`
	Data        json.RawMessage      `json:"data"`
	Device      string               `json:"device"`
	Browser     string               `json:"browser"`
	OS          string               `json:"os"`
	Referer     string               `json:"referer"`
}

// TrackResponse is returned when the event was accepted.
type TrackResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse describes a rejected tracking request.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// TrackAction records a visit event sent by a published page.
func TrackAction(ctx *cartridge.Context) error {
	params, err := parseTrackParams(ctx)
	if err != nil {
		ctx.Logger.Debug("Failed to parse tracking request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: errInvalidRequest,
			Error:   err.Error(),
		})
	}

	if err := track(ctx, params); err != nil {
		return handleTrackError(ctx, err)
	}

	return ctx.JSON(TrackResponse{Success: true})
}

// TrackBeaconAction records events sent with navigator.sendBeacon. Browsers
// send beacons as text/plain and ignore the response, so every outcome
// answers 202 and failures are only logged.
func TrackBeaconAction(ctx *cartridge.Context) error {
	var params TrackParams
	if err := json.Unmarshal(ctx.Body(), &params); err != nil {
		ctx.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}

	if err := track(ctx, params); err != nil {
		ctx.Logger.Debug("Rejected beacon event",
			slog.String("eventType", params.EventType),
			slog.Any("error", err))
	}

	return ctx.SendStatus(http.StatusAccepted)
}

// parseTrackParams decodes JSON bodies, including text/plain ones which is
// how beacon clients avoid a CORS preflight.
func parseTrackParams(ctx *cartridge.Context) (TrackParams, error) {
	var params TrackParams
	if strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMETextPlain) {
		err := json.Unmarshal(ctx.Body(), &params)
		return params, err
	}
	err := ctx.BodyParser(&params)
	return params, err
}

func track(ctx *cartridge.Context, params TrackParams) error {
	userAgentHeader := ctx.Get("User-Agent")
	if forwardedUA := ctx.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		userAgentHeader = forwardedUA
	}

	input := tracking.Input{
		PageID:      string(params.PageID),
		VisitorID:   string(params.VisitorID),
		EventType:   params.EventType,
		ComponentID: string(params.ComponentID),
		Data:        params.Data,
		Device:      params.Device,
		Browser:     params.Browser,
		OS:          params.OS,
		Referer:     params.Referer,
		ClientIP:    getClientIP(ctx.Ctx),
		UserAgent:   userAgentHeader,
	}

	tracker := tracking.NewTracker(ctx.DBManager, ctx.Logger, appConfig(ctx).PrivateKey)
	_, err := tracker.Track(ctx.UserContext(), input)
	return err
}

func handleTrackError(ctx *cartridge.Context, err error) error {
	switch {
	case errors.Is(err, tracking.ErrInvalidPageID),
		errors.Is(err, tracking.ErrInvalidEventType),
		errors.Is(err, tracking.ErrInvalidData):
		ctx.Logger.Debug("Rejected tracking request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: errInvalidRequest,
			Error:   err.Error(),
		})
	case errors.Is(err, tracking.ErrPageNotFound):
		return ctx.Status(http.StatusNotFound).JSON(ErrorResponse{Message: errPageNotFound})
	}

	ctx.Logger.Error("Failed to track event", slog.Any("error", err))
	return ctx.Status(http.StatusInternalServerError).JSON(ErrorResponse{Message: errTrackFailed})
}

// PreflightAction answers CORS preflight requests of the public API.
func PreflightAction(ctx *cartridge.Context) error {
	return ctx.SendStatus(fiber.StatusNoContent)
}

func appConfig(ctx *cartridge.Context) *config.Config {
	if cfg, ok := ctx.Config.(*config.Config); ok {
		return cfg
	}
	return config.GetConfig()
}
