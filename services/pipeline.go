package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/models"
)

// ErrMalformedUnit is returned when a work unit is missing the property or
// its URL and cannot be persisted.
var ErrMalformedUnit = errors.New("malformed work unit: missing property or url")

// Store is the persistence surface the pipeline needs. Get methods return
// (nil, nil) when no row matches.
type Store interface {
	GetPropertyByURL(ctx context.Context, url string) (*models.Property, error)
	InsertProperty(ctx context.Context, p *models.Property) error
	UpdateProperty(ctx context.Context, p *models.Property) error

	GetUserProperty(ctx context.Context, lineUserID string, propertyID uuid.UUID) (*models.UserProperty, error)
	InsertUserProperty(ctx context.Context, up *models.UserProperty) error
	RefreshUserProperty(ctx context.Context, up *models.UserProperty) error

	GetPropertyOverview(ctx context.Context, propertyID uuid.UUID) (*models.PropertyOverview, error)
	InsertPropertyOverview(ctx context.Context, o *models.PropertyOverview) error
	UpdatePropertyOverview(ctx context.Context, o *models.PropertyOverview) error

	GetCommonOverview(ctx context.Context, propertyID uuid.UUID) (*models.CommonOverview, error)
	InsertCommonOverview(ctx context.Context, o *models.CommonOverview) error
	UpdateCommonOverview(ctx context.Context, o *models.CommonOverview) error
}

// Pipeline persists a scraped work unit across the four collections. It is
// idempotent: re-processing the same page updates rows in place without
// duplicating them or regressing created_at.
type Pipeline struct {
	store Store
}

func NewPipeline(store Store) *Pipeline {
	return &Pipeline{store: store}
}

// ProcessResult contains the outcome of persisting one work unit.
type ProcessResult struct {
	PropertyID    uuid.UUID
	IsNewProperty bool
	PriceChanged  bool
	PreviousPrice string
	CurrentPrice  string
}

// Process writes the unit's members in dependency order: property first,
// then the subscription, then both overviews. Any store error aborts the
// run; later members are not attempted.
func (p *Pipeline) Process(ctx context.Context, unit *models.WorkUnit) (*ProcessResult, error) {
	if unit == nil || unit.Property == nil || unit.Property.URL == "" {
		return nil, ErrMalformedUnit
	}

	result := &ProcessResult{}
	now := time.Now().UTC()

	// 1. Property, keyed by URL
	existing, err := p.store.GetPropertyByURL(ctx, unit.Property.URL)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}

	prop := unit.Property
	if existing == nil {
		if prop.ID == uuid.Nil {
			prop.ID = uuid.New()
		}
		prop.CreatedAt = now
		prop.UpdatedAt = now
		if err := prop.Validate(); err != nil {
			return nil, fmt.Errorf("validate property: %w", err)
		}
		if err := p.store.InsertProperty(ctx, prop); err != nil {
			return nil, fmt.Errorf("insert property: %w", err)
		}
		result.IsNewProperty = true
	} else {
		// Keep the stored identity and image list: images are owned by the
		// image pipeline and only change when it re-ingests them.
		prop.ID = existing.ID
		prop.CreatedAt = existing.CreatedAt
		prop.ImageURLs = existing.ImageURLs
		prop.UpdatedAt = now
		if err := prop.Validate(); err != nil {
			return nil, fmt.Errorf("validate property: %w", err)
		}
		if err := p.store.UpdateProperty(ctx, prop); err != nil {
			return nil, fmt.Errorf("update property: %w", err)
		}
	}
	result.PropertyID = prop.ID

	// 2. Subscription
	if unit.UserProperty != nil {
		up := unit.UserProperty
		up.PropertyID = prop.ID

		existingUP, err := p.store.GetUserProperty(ctx, up.LineUserID, prop.ID)
		if err != nil {
			return nil, fmt.Errorf("get user property: %w", err)
		}

		if existingUP == nil {
			if up.ID == uuid.Nil {
				up.ID = uuid.New()
			}
			up.FirstSucceededAt = now
			up.LastSucceededAt = now
			up.LastAggregatedAt = now
			up.NextAggregatedAt = now.Add(models.AggregationInterval)
			up.CreatedAt = now
			up.UpdatedAt = now
			if err := p.store.InsertUserProperty(ctx, up); err != nil {
				return nil, fmt.Errorf("insert user property: %w", err)
			}
		} else {
			existingUP.LastSucceededAt = now
			existingUP.LastAggregatedAt = now
			existingUP.NextAggregatedAt = now.Add(models.AggregationInterval)
			existingUP.UpdatedAt = now
			if err := p.store.RefreshUserProperty(ctx, existingUP); err != nil {
				return nil, fmt.Errorf("refresh user property: %w", err)
			}
			unit.UserProperty = existingUP
		}
	}

	// 3. Property overview
	if unit.PropertyOverview != nil {
		po := unit.PropertyOverview
		po.PropertyID = prop.ID

		existingPO, err := p.store.GetPropertyOverview(ctx, prop.ID)
		if err != nil {
			return nil, fmt.Errorf("get property overview: %w", err)
		}

		if existingPO == nil {
			if po.ID == uuid.Nil {
				po.ID = uuid.New()
			}
			po.CreatedAt = now
			po.UpdatedAt = now
			if err := p.store.InsertPropertyOverview(ctx, po); err != nil {
				return nil, fmt.Errorf("insert property overview: %w", err)
			}
		} else {
			if existingPO.Price != "" && po.Price != "" && existingPO.Price != po.Price {
				result.PriceChanged = true
				result.PreviousPrice = existingPO.Price
				result.CurrentPrice = po.Price
			}
			po.ID = existingPO.ID
			po.CreatedAt = existingPO.CreatedAt
			po.UpdatedAt = now
			if err := p.store.UpdatePropertyOverview(ctx, po); err != nil {
				return nil, fmt.Errorf("update property overview: %w", err)
			}
		}
	}

	// 4. Common overview
	if unit.CommonOverview != nil {
		co := unit.CommonOverview
		co.PropertyID = prop.ID

		existingCO, err := p.store.GetCommonOverview(ctx, prop.ID)
		if err != nil {
			return nil, fmt.Errorf("get common overview: %w", err)
		}

		if existingCO == nil {
			if co.ID == uuid.Nil {
				co.ID = uuid.New()
			}
			co.CreatedAt = now
			co.UpdatedAt = now
			if err := p.store.InsertCommonOverview(ctx, co); err != nil {
				return nil, fmt.Errorf("insert common overview: %w", err)
			}
		} else {
			co.ID = existingCO.ID
			co.CreatedAt = existingCO.CreatedAt
			co.UpdatedAt = now
			if err := p.store.UpdateCommonOverview(ctx, co); err != nil {
				return nil, fmt.Errorf("update common overview: %w", err)
			}
		}
	}

	return result, nil
}
