package pages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"linkpage/internal/pkg/validation"
)

// ComponentType names the kind of content block.
type ComponentType string

const (
	ComponentText     ComponentType = "text"
	ComponentLink     ComponentType = "link"
	ComponentBanner   ComponentType = "banner"
	ComponentCarousel ComponentType = "carousel"
	ComponentSocial   ComponentType = "social"
	ComponentIcon     ComponentType = "icon"
	ComponentVideo    ComponentType = "video"
)

var (
	ErrUnknownComponentType = errors.New("unknown component type")
	ErrInvalidContent       = errors.New("invalid component content")
)

// Content is the decoded content of a component. Each component type has
// exactly one implementation.
type Content interface {
	Kind() ComponentType
	Title() string
	Validate() error
}

type TextContent struct {
	Heading string `json:"title,omitempty"`
	Text    string `json:"text"`
}

func (c TextContent) Kind() ComponentType { return ComponentText }
func (c TextContent) Title() string       { return c.Heading }
func (c TextContent) Validate() error     { return validation.Struct(c) }

type LinkContent struct {
	Heading string `json:"title"`
	URL     string `json:"url" validate:"required,url"`
	Icon    string `json:"icon,omitempty"`
}

func (c LinkContent) Kind() ComponentType { return ComponentLink }
func (c LinkContent) Title() string       { return c.Heading }
func (c LinkContent) Validate() error     { return validation.Struct(c) }

type BannerContent struct {
	Heading  string `json:"title,omitempty"`
	ImageURL string `json:"imageUrl" validate:"required,url"`
	LinkURL  string `json:"linkUrl,omitempty" validate:"omitempty,url"`
}

func (c BannerContent) Kind() ComponentType { return ComponentBanner }
func (c BannerContent) Title() string       { return c.Heading }
func (c BannerContent) Validate() error     { return validation.Struct(c) }

type CarouselImage struct {
	URL     string `json:"url" validate:"required,url"`
	Caption string `json:"caption,omitempty"`
	LinkURL string `json:"linkUrl,omitempty" validate:"omitempty,url"`
}

type CarouselContent struct {
	Heading string          `json:"title,omitempty"`
	Images  []CarouselImage `json:"images" validate:"min=1,dive"`
}

func (c CarouselContent) Kind() ComponentType { return ComponentCarousel }
func (c CarouselContent) Title() string       { return c.Heading }
func (c CarouselContent) Validate() error     { return validation.Struct(c) }

type SocialLink struct {
	Platform string `json:"platform" validate:"notblank"`
	URL      string `json:"url" validate:"required,url"`
}

type SocialContent struct {
	Heading string       `json:"title,omitempty"`
	Links   []SocialLink `json:"links" validate:"min=1,dive"`
}

func (c SocialContent) Kind() ComponentType { return ComponentSocial }
func (c SocialContent) Title() string       { return c.Heading }
func (c SocialContent) Validate() error     { return validation.Struct(c) }

type IconContent struct {
	Heading string `json:"title,omitempty"`
	Icon    string `json:"icon" validate:"notblank"`
	URL     string `json:"url,omitempty" validate:"omitempty,url"`
}

func (c IconContent) Kind() ComponentType { return ComponentIcon }
func (c IconContent) Title() string       { return c.Heading }
func (c IconContent) Validate() error     { return validation.Struct(c) }

type VideoContent struct {
	Heading  string `json:"title,omitempty"`
	URL      string `json:"url" validate:"required,url"`
	Provider string `json:"provider,omitempty"`
}

func (c VideoContent) Kind() ComponentType { return ComponentVideo }
func (c VideoContent) Title() string       { return c.Heading }
func (c VideoContent) Validate() error     { return validation.Struct(c) }

// DecodeContent decodes raw into the content type registered for t. It only
// checks the JSON shape; Validate applies the validate tags.
func DecodeContent(t ComponentType, raw []byte) (Content, error) {
	var target Content
	switch t {
	case ComponentText:
		target = &TextContent{}
	case ComponentLink:
		target = &LinkContent{}
	case ComponentBanner:
		target = &BannerContent{}
	case ComponentCarousel:
		target = &CarouselContent{}
	case ComponentSocial:
		target = &SocialContent{}
	case ComponentIcon:
		target = &IconContent{}
	case ComponentVideo:
		target = &VideoContent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponentType, t)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return deref(target), nil
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return deref(target), nil
}

func deref(c Content) Content {
	switch v := c.(type) {
	case *TextContent:
		return *v
	case *LinkContent:
		return *v
	case *BannerContent:
		return *v
	case *CarouselContent:
		return *v
	case *SocialContent:
		return *v
	case *IconContent:
		return *v
	case *VideoContent:
		return *v
	}
	return c
}
