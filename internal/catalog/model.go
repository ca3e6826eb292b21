package catalog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Package struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Price        int             `json:"price"`
	DurationDays int             `json:"duration_days"`
	MaxPeople    int             `json:"max_people"`
	CategoryID   uuid.UUID       `json:"category_id"`
	Category     *string         `json:"category"`
	ImageURL     *string         `json:"image_url"`
	Highlights   []string        `json:"highlights"`
	Inclusions   []string        `json:"inclusions"`
	Exclusions   []string        `json:"exclusions"`
	Itinerary    json.RawMessage `json:"itinerary"`
	IsFeatured   bool            `json:"is_featured"`
	IsActive     bool            `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"-"`
}

type PackageInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Price        int             `json:"price"`
	DurationDays int             `json:"duration_days"`
	MaxPeople    int             `json:"max_people"`
	CategoryID   string          `json:"category_id"`
	ImageURL     *string         `json:"image_url"`
	Highlights   []string        `json:"highlights"`
	Inclusions   []string        `json:"inclusions"`
	Exclusions   []string        `json:"exclusions"`
	Itinerary    json.RawMessage `json:"itinerary"`
	IsFeatured   *bool           `json:"is_featured"`
}

type PackagePage struct {
	Packages []Package `json:"packages"`
	Total    int       `json:"total"`
}

type Category struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	Icon         *string   `json:"icon"`
	PackageCount int64     `json:"package_count"`
}

type CategoryInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}
