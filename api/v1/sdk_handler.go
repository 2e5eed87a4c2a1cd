package v1

import (
	"bytes"
	_ "embed"
	"log/slog"
	"text/template"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

//go:embed tracker.js
var trackerTemplate string

var trackerScript = template.Must(template.New("tracker.js").Parse(trackerTemplate))

// GetTrackerScriptAction serves the script published pages embed to report
// pageviews, clicks, scroll depth and time spent.
func GetTrackerScriptAction(ctx *cartridge.Context) error {
	var buf bytes.Buffer
	data := map[string]string{
		"BaseURL": ctx.BaseURL(),
	}
	if err := trackerScript.Execute(&buf, data); err != nil {
		ctx.Logger.Error("Failed to render tracker script", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	content := buf.Bytes()
	etag := generateETag(content)

	if ctx.Get("If-None-Match") == etag {
		ctx.Logger.Debug("ETag match, returning 304",
			slog.String("etag", etag),
			slog.String("path", ctx.Path()))
		return ctx.Status(fiber.StatusNotModified).Send(nil)
	}

	ctx.Set("Content-Type", "application/javascript")
	ctx.Set("Cache-Control", "public, max-age=3600")
	ctx.Set("ETag", etag)
	ctx.Set("Cross-Origin-Resource-Policy", "cross-origin")
	return ctx.Send(content)
}
