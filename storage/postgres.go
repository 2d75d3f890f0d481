package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Properties
// =============================================================================

const propertyColumns = `id, name, url, is_active, large_property_description,
	small_property_description, image_urls, created_at, updated_at`

func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	err := row.Scan(
		&p.ID, &p.Name, &p.URL, &p.IsActive, &p.LargeDescription,
		&p.SmallDescription, &p.ImageURLs, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetPropertyByURL(ctx context.Context, url string) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE url = $1`
	return scanProperty(s.pool.QueryRow(ctx, query, url))
}

func (s *PostgresStore) GetPropertyByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = $1`
	return scanProperty(s.pool.QueryRow(ctx, query, id))
}

func (s *PostgresStore) InsertProperty(ctx context.Context, p *models.Property) error {
	query := `
		INSERT INTO properties (
			id, name, url, is_active, large_property_description,
			small_property_description, image_urls, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Name, p.URL, p.IsActive, p.LargeDescription,
		p.SmallDescription, p.ImageURLs, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// UpdateProperty rewrites the mutable listing fields by primary key. The
// image list is not touched here; UpdatePropertyImages owns it.
func (s *PostgresStore) UpdateProperty(ctx context.Context, p *models.Property) error {
	query := `
		UPDATE properties SET
			name = $2,
			is_active = $3,
			large_property_description = $4,
			small_property_description = $5,
			updated_at = $6
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Name, p.IsActive, p.LargeDescription, p.SmallDescription, p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) UpdatePropertyImages(ctx context.Context, propertyID uuid.UUID, imageURLs []string) error {
	query := `UPDATE properties SET image_urls = $2, updated_at = $3 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, propertyID, imageURLs, time.Now().UTC())
	return err
}

func (s *PostgresStore) ListProperties(ctx context.Context, limit, offset int) ([]models.Property, error) {
	query := `SELECT ` + propertyColumns + `
		FROM properties ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(
			&p.ID, &p.Name, &p.URL, &p.IsActive, &p.LargeDescription,
			&p.SmallDescription, &p.ImageURLs, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

// =============================================================================
// User properties
// =============================================================================

const userPropertyColumns = `id, line_user_id, property_id, first_succeeded_at,
	last_succeeded_at, last_aggregated_at, next_aggregated_at, created_at, updated_at`

func scanUserProperty(row pgx.Row) (*models.UserProperty, error) {
	var up models.UserProperty
	err := row.Scan(
		&up.ID, &up.LineUserID, &up.PropertyID, &up.FirstSucceededAt,
		&up.LastSucceededAt, &up.LastAggregatedAt, &up.NextAggregatedAt,
		&up.CreatedAt, &up.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &up, nil
}

func (s *PostgresStore) GetUserProperty(ctx context.Context, lineUserID string, propertyID uuid.UUID) (*models.UserProperty, error) {
	query := `SELECT ` + userPropertyColumns + `
		FROM user_properties WHERE line_user_id = $1 AND property_id = $2`
	return scanUserProperty(s.pool.QueryRow(ctx, query, lineUserID, propertyID))
}

func (s *PostgresStore) InsertUserProperty(ctx context.Context, up *models.UserProperty) error {
	query := `
		INSERT INTO user_properties (
			id, line_user_id, property_id, first_succeeded_at, last_succeeded_at,
			last_aggregated_at, next_aggregated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		up.ID, up.LineUserID, up.PropertyID, up.FirstSucceededAt, up.LastSucceededAt,
		up.LastAggregatedAt, up.NextAggregatedAt, up.CreatedAt, up.UpdatedAt,
	)
	return err
}

// RefreshUserProperty advances the success and aggregation timestamps after
// a successful re-check. first_succeeded_at and created_at stay as inserted.
func (s *PostgresStore) RefreshUserProperty(ctx context.Context, up *models.UserProperty) error {
	query := `
		UPDATE user_properties SET
			last_succeeded_at = $2,
			last_aggregated_at = $3,
			next_aggregated_at = $4,
			updated_at = $5
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		up.ID, up.LastSucceededAt, up.LastAggregatedAt, up.NextAggregatedAt, up.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetUserPropertiesByUser(ctx context.Context, lineUserID string) ([]models.UserProperty, error) {
	query := `SELECT ` + userPropertyColumns + `
		FROM user_properties WHERE line_user_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, lineUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ups []models.UserProperty
	for rows.Next() {
		var up models.UserProperty
		if err := rows.Scan(
			&up.ID, &up.LineUserID, &up.PropertyID, &up.FirstSucceededAt,
			&up.LastSucceededAt, &up.LastAggregatedAt, &up.NextAggregatedAt,
			&up.CreatedAt, &up.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ups = append(ups, up)
	}
	return ups, rows.Err()
}

// GetDueSubscriptions returns subscriptions whose aggregation window has
// come due, joined with the listing URL the scheduler needs, oldest first.
// Inactive properties are skipped; there is nothing left to re-check.
func (s *PostgresStore) GetDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]models.DueSubscription, error) {
	query := `
		SELECT up.line_user_id, up.property_id, p.url
		FROM user_properties up
		JOIN properties p ON p.id = up.property_id
		WHERE up.next_aggregated_at <= $1 AND p.is_active
		ORDER BY up.next_aggregated_at
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []models.DueSubscription
	for rows.Next() {
		var d models.DueSubscription
		if err := rows.Scan(&d.LineUserID, &d.PropertyID, &d.URL); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// =============================================================================
// Property overviews
// =============================================================================

const propertyOverviewColumns = `id, property_id, sales_schedule, event_information,
	number_of_units_for_sale, highest_price_range, price, maintenance_fee,
	repair_reserve_fund, first_repair_reserve_fund, other_expenses, floor_plan,
	area, other_area, delivery_time, completion_time, floor, direction,
	energy_consumption_performance, insulation_performance, estimated_utility_cost,
	renovation, other_restrictions, other_overview_and_special_notes,
	created_at, updated_at`

func (s *PostgresStore) GetPropertyOverview(ctx context.Context, propertyID uuid.UUID) (*models.PropertyOverview, error) {
	query := `SELECT ` + propertyOverviewColumns + `
		FROM property_overviews WHERE property_id = $1`

	var o models.PropertyOverview
	err := s.pool.QueryRow(ctx, query, propertyID).Scan(
		&o.ID, &o.PropertyID, &o.SalesSchedule, &o.EventInformation,
		&o.NumberOfUnitsForSale, &o.HighestPriceRange, &o.Price, &o.MaintenanceFee,
		&o.RepairReserveFund, &o.FirstRepairReserveFund, &o.OtherExpenses, &o.FloorPlan,
		&o.Area, &o.OtherArea, &o.DeliveryTime, &o.CompletionTime, &o.Floor, &o.Direction,
		&o.EnergyConsumptionPerformance, &o.InsulationPerformance, &o.EstimatedUtilityCost,
		&o.Renovation, &o.OtherRestrictions, &o.OtherOverviewAndSpecialNotes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresStore) InsertPropertyOverview(ctx context.Context, o *models.PropertyOverview) error {
	query := `
		INSERT INTO property_overviews (` + propertyOverviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.PropertyID, o.SalesSchedule, o.EventInformation,
		o.NumberOfUnitsForSale, o.HighestPriceRange, o.Price, o.MaintenanceFee,
		o.RepairReserveFund, o.FirstRepairReserveFund, o.OtherExpenses, o.FloorPlan,
		o.Area, o.OtherArea, o.DeliveryTime, o.CompletionTime, o.Floor, o.Direction,
		o.EnergyConsumptionPerformance, o.InsulationPerformance, o.EstimatedUtilityCost,
		o.Renovation, o.OtherRestrictions, o.OtherOverviewAndSpecialNotes,
		o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) UpdatePropertyOverview(ctx context.Context, o *models.PropertyOverview) error {
	query := `
		UPDATE property_overviews SET
			sales_schedule = $2, event_information = $3, number_of_units_for_sale = $4,
			highest_price_range = $5, price = $6, maintenance_fee = $7,
			repair_reserve_fund = $8, first_repair_reserve_fund = $9, other_expenses = $10,
			floor_plan = $11, area = $12, other_area = $13, delivery_time = $14,
			completion_time = $15, floor = $16, direction = $17,
			energy_consumption_performance = $18, insulation_performance = $19,
			estimated_utility_cost = $20, renovation = $21, other_restrictions = $22,
			other_overview_and_special_notes = $23, updated_at = $24
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.SalesSchedule, o.EventInformation, o.NumberOfUnitsForSale,
		o.HighestPriceRange, o.Price, o.MaintenanceFee,
		o.RepairReserveFund, o.FirstRepairReserveFund, o.OtherExpenses,
		o.FloorPlan, o.Area, o.OtherArea, o.DeliveryTime,
		o.CompletionTime, o.Floor, o.Direction,
		o.EnergyConsumptionPerformance, o.InsulationPerformance,
		o.EstimatedUtilityCost, o.Renovation, o.OtherRestrictions,
		o.OtherOverviewAndSpecialNotes, o.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetPropertyOverviewsByProperty(ctx context.Context, propertyID uuid.UUID) (*models.PropertyOverview, *models.CommonOverview, error) {
	po, err := s.GetPropertyOverview(ctx, propertyID)
	if err != nil {
		return nil, nil, err
	}
	co, err := s.GetCommonOverview(ctx, propertyID)
	if err != nil {
		return nil, nil, err
	}
	return po, co, nil
}

// =============================================================================
// Common overviews
// =============================================================================

const commonOverviewColumns = `id, property_id, location, transportation, total_units,
	structure_floors, site_area, site_ownership_type, usage_area, parking_lot,
	created_at, updated_at`

func (s *PostgresStore) GetCommonOverview(ctx context.Context, propertyID uuid.UUID) (*models.CommonOverview, error) {
	query := `SELECT ` + commonOverviewColumns + `
		FROM common_overviews WHERE property_id = $1`

	var o models.CommonOverview
	err := s.pool.QueryRow(ctx, query, propertyID).Scan(
		&o.ID, &o.PropertyID, &o.Location, &o.Transportation, &o.TotalUnits,
		&o.StructureFloors, &o.SiteArea, &o.SiteOwnershipType, &o.UsageArea,
		&o.ParkingLot, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresStore) InsertCommonOverview(ctx context.Context, o *models.CommonOverview) error {
	query := `
		INSERT INTO common_overviews (` + commonOverviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.PropertyID, o.Location, o.Transportation, o.TotalUnits,
		o.StructureFloors, o.SiteArea, o.SiteOwnershipType, o.UsageArea,
		o.ParkingLot, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) UpdateCommonOverview(ctx context.Context, o *models.CommonOverview) error {
	query := `
		UPDATE common_overviews SET
			location = $2, transportation = $3, total_units = $4,
			structure_floors = $5, site_area = $6, site_ownership_type = $7,
			usage_area = $8, parking_lot = $9, updated_at = $10
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.Location, o.Transportation, o.TotalUnits,
		o.StructureFloors, o.SiteArea, o.SiteOwnershipType,
		o.UsageArea, o.ParkingLot, o.UpdatedAt,
	)
	return err
}
