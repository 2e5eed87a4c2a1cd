package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpage/internal/analytics"
	"linkpage/internal/timeframe"
	"linkpage/internal/tracking"
)

// PageAnalyticsAction returns the analytics report of a page to its owner.
// Unknown period values fall back to the last 7 days.
func PageAnalyticsAction(ctx *cartridge.Context) error {
	userID, ferr := currentUserID(ctx)
	if ferr != nil {
		return respondFiberError(ctx, ferr)
	}

	pageID, ok := tracking.ParseID(ctx.Params("id"))
	if !ok {
		return respondError(ctx, fiber.StatusBadRequest, errInvalidPageID)
	}

	rawPeriod := ctx.Query("period")
	period, known := timeframe.ParsePeriod(rawPeriod)
	if !known && rawPeriod != "" {
		ctx.Logger.Debug("Unknown analytics period, using default",
			slog.String("period", rawPeriod),
			slog.String("default", string(period)))
	}

	service := analytics.NewService(analytics.NewGormStore(ctx.DBManager), ctx.Logger)
	report, err := service.PageAnalytics(ctx.UserContext(), pageID, userID, period)
	if err != nil {
		switch {
		case errors.Is(err, analytics.ErrPageNotFound):
			return respondError(ctx, fiber.StatusNotFound, errPageNotFound)
		case errors.Is(err, analytics.ErrForbidden):
			return respondError(ctx, fiber.StatusForbidden, "Not authorized to view analytics for this page")
		}
		ctx.Logger.Error("Failed to build analytics report",
			slog.Uint64("page_id", uint64(pageID)),
			slog.String("period", string(period)),
			slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, "Failed to load analytics")
	}

	return ctx.JSON(report)
}
