package pages

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Component is an ordered content block on a page. Content holds the JSON
// document for the block's type, see DecodeContent.
type Component struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	PageID    uint           `gorm:"not null;index" json:"pageId"`
	Type      ComponentType  `gorm:"type:varchar(16);not null" json:"type"`
	Content   datatypes.JSON `gorm:"not null" json:"content"`
	Order     int            `gorm:"column:position;not null;default:0" json:"order"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Decoded returns the typed content of the component.
func (c *Component) Decoded() (Content, error) {
	return DecodeContent(c.Type, c.Content)
}

// ListComponents returns the components of a page in display order.
func ListComponents(db *gorm.DB, pageID uint) ([]Component, error) {
	var components []Component
	if err := db.Where("page_id = ?", pageID).Order("position ASC, id ASC").Find(&components).Error; err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	return components, nil
}

// AddComponent validates the content against the component type and appends
// it to the page. A zero Order places it after the existing components.
func AddComponent(logger *slog.Logger, db *gorm.DB, component *Component) error {
	content, err := DecodeContent(component.Type, component.Content)
	if err != nil {
		return err
	}
	if err := content.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if component.Order == 0 {
			var maxOrder int
			if err := tx.Model(&Component{}).
				Where("page_id = ?", component.PageID).
				Select("COALESCE(MAX(position), 0)").
				Scan(&maxOrder).Error; err != nil {
				return err
			}
			component.Order = maxOrder + 1
		}
		return tx.Create(component).Error
	})
}

// FindPageComponent returns the component with id when it belongs to pageID.
// The boolean is false when no such component exists.
func FindPageComponent(db *gorm.DB, pageID, id uint) (*Component, bool, error) {
	var component Component
	err := db.Where("id = ? AND page_id = ?", id, pageID).First(&component).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &component, true, nil
}
