package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnknownPropertyName is stored when a page no longer carries a property
// name (typically a delisted listing).
const UnknownPropertyName = "物件名不明"

// Property represents one watched listing. The URL is the natural key: a
// property is created on the first successful scrape of its URL, mutated on
// every later scrape, and soft-deactivated rather than deleted.
type Property struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	URL              string    `json:"url" db:"url"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	LargeDescription string    `json:"large_property_description" db:"large_property_description"`
	SmallDescription string    `json:"small_property_description" db:"small_property_description"`
	ImageURLs        []string  `json:"image_urls" db:"image_urls"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the structural invariants before a write.
func (p *Property) Validate() error {
	if !strings.HasPrefix(p.URL, "https://suumo.jp") {
		return fmt.Errorf("property url must start with https://suumo.jp: %s", p.URL)
	}
	if p.UpdatedAt.Before(p.CreatedAt) {
		return fmt.Errorf("property updated_at %s before created_at %s", p.UpdatedAt, p.CreatedAt)
	}
	return nil
}
