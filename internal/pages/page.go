package pages

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PageNotFoundError is returned when a page lookup misses.
type PageNotFoundError struct {
	ID   uint
	Slug string
}

func (e *PageNotFoundError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("page not found for slug: %s", e.Slug)
	}
	return fmt.Sprintf("page not found: %d", e.ID)
}

var (
	ErrSlugTaken   = errors.New("slug already taken")
	ErrInvalidSlug = errors.New("slug must be 1-64 lowercase letters, digits or hyphens")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,62}[a-z0-9])?$`)

// Page is a published link-in-bio landing page owned by a single user.
type Page struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint           `gorm:"not null;index" json:"userId"`
	Title      string         `gorm:"not null;default:''" json:"title"`
	Slug       string         `gorm:"uniqueIndex;not null" json:"slug"`
	Published  bool           `gorm:"not null;default:false" json:"published"`
	Style      datatypes.JSON `json:"style"`
	Components []Component    `gorm:"constraint:OnDelete:CASCADE" json:"components,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// OwnedBy reports whether userID owns the page.
func (p *Page) OwnedBy(userID uint) bool {
	return p.UserID == userID
}

// FindByID loads a page without its components.
func FindByID(db *gorm.DB, id uint) (*Page, error) {
	var page Page
	if err := db.Where("id = ?", id).First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &PageNotFoundError{ID: id}
		}
		return nil, fmt.Errorf("unexpected error querying page: %w", err)
	}
	return &page, nil
}

// FindPublishedBySlug loads a published page and its ordered components.
func FindPublishedBySlug(db *gorm.DB, slug string) (*Page, error) {
	var page Page
	err := db.Where("slug = ? AND published = ?", strings.ToLower(slug), true).
		Preload("Components", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC, id ASC")
		}).
		First(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &PageNotFoundError{Slug: slug}
		}
		return nil, fmt.Errorf("unexpected error querying page: %w", err)
	}
	return &page, nil
}

// ListForUser returns the pages owned by userID, newest first.
func ListForUser(db *gorm.DB, userID uint) ([]Page, error) {
	var pages []Page
	if err := db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, nil
}

// CreatePage validates and inserts page.
func CreatePage(logger *slog.Logger, db *gorm.DB, page *Page) error {
	page.Slug = strings.ToLower(strings.TrimSpace(page.Slug))
	if !slugPattern.MatchString(page.Slug) {
		return ErrInvalidSlug
	}
	if len(page.Style) == 0 {
		page.Style = datatypes.JSON("{}")
	}

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Page{}).Where("slug = ?", page.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrSlugTaken
		}
		return tx.Create(page).Error
	})
}
