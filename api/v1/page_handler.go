package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpage/internal/pages"
)

// GetPublicPageAction returns a published page with its components. The
// response carries an ETag so unchanged pages are answered with 304.
func GetPublicPageAction(ctx *cartridge.Context) error {
	slug := ctx.Params("slug")

	page, err := pages.FindPublishedBySlug(ctx.DB(), slug)
	if err != nil {
		var notFound *pages.PageNotFoundError
		if errors.As(err, &notFound) {
			return ctx.Status(http.StatusNotFound).JSON(ErrorResponse{Message: errPageNotFound})
		}
		ctx.Logger.Error("Failed to load public page", slog.String("slug", slug), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(ErrorResponse{Message: "Failed to load page"})
	}
	if page.Components == nil {
		page.Components = []pages.Component{}
	}

	content, err := json.Marshal(page)
	if err != nil {
		ctx.Logger.Error("Failed to encode public page", slog.String("slug", slug), slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(ErrorResponse{Message: "Failed to load page"})
	}

	etag := generateETag(content)
	if ctx.Get("If-None-Match") == etag {
		return ctx.Status(fiber.StatusNotModified).Send(nil)
	}

	ctx.Set("Content-Type", fiber.MIMEApplicationJSON)
	ctx.Set("Cache-Control", "public, max-age=60")
	ctx.Set("ETag", etag)
	return ctx.Send(content)
}
