package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AggregationInterval is how far ahead the next aggregation window is
// scheduled after each successful check.
const AggregationInterval = 72 * time.Hour

// UserProperty links a chat subscriber to a property they watch. Each
// successful re-check refreshes last_succeeded_at and advances the
// aggregation window; first_succeeded_at and created_at never change after
// insert.
type UserProperty struct {
	ID               uuid.UUID `json:"id" db:"id"`
	LineUserID       string    `json:"line_user_id" db:"line_user_id"`
	PropertyID       uuid.UUID `json:"property_id" db:"property_id"`
	FirstSucceededAt time.Time `json:"first_succeeded_at" db:"first_succeeded_at"`
	LastSucceededAt  time.Time `json:"last_succeeded_at" db:"last_succeeded_at"`
	LastAggregatedAt time.Time `json:"last_aggregated_at" db:"last_aggregated_at"`
	NextAggregatedAt time.Time `json:"next_aggregated_at" db:"next_aggregated_at"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Validate enforces the timestamp ordering chain:
// first_succeeded_at <= last_succeeded_at <= last_aggregated_at <= next_aggregated_at.
func (up *UserProperty) Validate() error {
	if !strings.HasPrefix(up.LineUserID, "U") {
		return fmt.Errorf("line user id must start with 'U': %s", up.LineUserID)
	}
	if up.LastSucceededAt.Before(up.FirstSucceededAt) {
		return fmt.Errorf("last_succeeded_at before first_succeeded_at")
	}
	if up.LastAggregatedAt.Before(up.LastSucceededAt) {
		return fmt.Errorf("last_aggregated_at before last_succeeded_at")
	}
	if up.NextAggregatedAt.Before(up.LastAggregatedAt) {
		return fmt.Errorf("next_aggregated_at before last_aggregated_at")
	}
	return nil
}

// DueSubscription is a subscription whose aggregation window has come due,
// joined with the property URL the scheduler needs to re-scrape.
type DueSubscription struct {
	LineUserID string
	PropertyID uuid.UUID
	URL        string
}
