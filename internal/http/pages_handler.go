package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/datatypes"

	"linkpage/internal/pages"
	"linkpage/internal/tracking"
)

type CreatePageParams struct {
	Title     string          `json:"title" validate:"max=200"`
	Slug      string          `json:"slug" validate:"notblank,max=64"`
	Published bool            `json:"published"`
	Style     json.RawMessage `json:"style"`
}

type CreateComponentParams struct {
	Type    pages.ComponentType `json:"type" validate:"required"`
	Content json.RawMessage     `json:"content"`
	Order   int                 `json:"order" validate:"gte=0"`
}

// PagesIndexAction lists the pages of the authenticated user
func PagesIndexAction(ctx *cartridge.Context) error {
	userID, ferr := currentUserID(ctx)
	if ferr != nil {
		return respondFiberError(ctx, ferr)
	}

	list, err := pages.ListForUser(ctx.DB(), userID)
	if err != nil {
		ctx.Logger.Error("Failed to list pages", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, errInternal)
	}
	if list == nil {
		list = []pages.Page{}
	}
	return ctx.JSON(list)
}

// PageCreateAction creates a page owned by the authenticated user
func PageCreateAction(ctx *cartridge.Context) error {
	userID, ferr := currentUserID(ctx)
	if ferr != nil {
		return respondFiberError(ctx, ferr)
	}

	var params CreatePageParams
	if err := bindBody(ctx, &params); err != nil {
		return respondInvalid(ctx, errInvalidRequest, err)
	}

	style := bytes.TrimSpace(params.Style)
	if len(style) > 0 && !bytes.Equal(style, []byte("null")) {
		var decoded map[string]any
		if err := json.Unmarshal(style, &decoded); err != nil {
			return respondError(ctx, fiber.StatusBadRequest, "style must be a JSON object")
		}
	} else {
		style = nil
	}

	page := &pages.Page{
		UserID:    userID,
		Title:     params.Title,
		Slug:      params.Slug,
		Published: params.Published,
		Style:     datatypes.JSON(style),
	}

	if err := pages.CreatePage(ctx.Logger, ctx.DB(), page); err != nil {
		switch {
		case errors.Is(err, pages.ErrInvalidSlug):
			return respondError(ctx, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, pages.ErrSlugTaken):
			return respondError(ctx, fiber.StatusConflict, "Slug is already taken")
		}
		ctx.Logger.Error("Failed to create page", slog.String("slug", params.Slug), slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, errInternal)
	}

	ctx.Logger.Info("Page created", slog.Uint64("page_id", uint64(page.ID)), slog.String("slug", page.Slug))
	return ctx.Status(fiber.StatusCreated).JSON(page)
}

// PageShowAction returns a page and its components to its owner
func PageShowAction(ctx *cartridge.Context) error {
	page, ferr := loadOwnedPage(ctx)
	if ferr != nil {
		return respondFiberError(ctx, ferr)
	}

	components, err := pages.ListComponents(ctx.DB(), page.ID)
	if err != nil {
		ctx.Logger.Error("Failed to list components", slog.Uint64("page_id", uint64(page.ID)), slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, errInternal)
	}
	if components == nil {
		components = []pages.Component{}
	}
	page.Components = components

	return ctx.JSON(page)
}

// ComponentCreateAction appends a component to a page of the authenticated user
func ComponentCreateAction(ctx *cartridge.Context) error {
	page, ferr := loadOwnedPage(ctx)
	if ferr != nil {
		return respondFiberError(ctx, ferr)
	}

	var params CreateComponentParams
	if err := bindBody(ctx, &params); err != nil {
		return respondInvalid(ctx, errInvalidRequest, err)
	}

	content := bytes.TrimSpace(params.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		content = []byte("{}")
	}

	component := &pages.Component{
		PageID:  page.ID,
		Type:    params.Type,
		Content: datatypes.JSON(content),
		Order:   params.Order,
	}

	if err := pages.AddComponent(ctx.Logger, ctx.DB(), component); err != nil {
		if errors.Is(err, pages.ErrInvalidContent) || errors.Is(err, pages.ErrUnknownComponentType) {
			return respondInvalid(ctx, err.Error(), err)
		}
		ctx.Logger.Error("Failed to add component", slog.Uint64("page_id", uint64(page.ID)), slog.Any("error", err))
		return respondError(ctx, fiber.StatusInternalServerError, errInternal)
	}

	return ctx.Status(fiber.StatusCreated).JSON(component)
}

// loadOwnedPage resolves the :id route parameter to a page of the
// authenticated user.
func loadOwnedPage(ctx *cartridge.Context) (*pages.Page, *fiber.Error) {
	userID, ferr := currentUserID(ctx)
	if ferr != nil {
		return nil, ferr
	}

	pageID, ok := tracking.ParseID(ctx.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, errInvalidPageID)
	}

	page, err := pages.FindByID(ctx.DB(), pageID)
	if err != nil {
		var notFound *pages.PageNotFoundError
		if errors.As(err, &notFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, errPageNotFound)
		}
		ctx.Logger.Error("Failed to load page", slog.Uint64("page_id", uint64(pageID)), slog.Any("error", err))
		return nil, fiber.NewError(fiber.StatusInternalServerError, errInternal)
	}

	if !page.OwnedBy(userID) {
		return nil, fiber.NewError(fiber.StatusForbidden, "Not authorized for this page")
	}
	return page, nil
}
