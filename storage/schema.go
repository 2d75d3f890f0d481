package storage

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables and uniqueness constraints the pipeline
// relies on. Idempotent, runs at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		large_property_description TEXT NOT NULL DEFAULT '',
		small_property_description TEXT NOT NULL DEFAULT '',
		image_urls TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_url ON properties (url);

	CREATE TABLE IF NOT EXISTS user_properties (
		id UUID PRIMARY KEY,
		line_user_id TEXT NOT NULL,
		property_id UUID NOT NULL REFERENCES properties(id),
		first_succeeded_at TIMESTAMPTZ NOT NULL,
		last_succeeded_at TIMESTAMPTZ NOT NULL,
		last_aggregated_at TIMESTAMPTZ NOT NULL,
		next_aggregated_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_user_properties_user_property
		ON user_properties (line_user_id, property_id);
	CREATE INDEX IF NOT EXISTS idx_user_properties_next_aggregated
		ON user_properties (next_aggregated_at);

	CREATE TABLE IF NOT EXISTS property_overviews (
		id UUID PRIMARY KEY,
		property_id UUID NOT NULL REFERENCES properties(id),
		sales_schedule TEXT NOT NULL DEFAULT '',
		event_information TEXT NOT NULL DEFAULT '',
		number_of_units_for_sale TEXT NOT NULL DEFAULT '',
		highest_price_range TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL DEFAULT '',
		maintenance_fee TEXT NOT NULL DEFAULT '',
		repair_reserve_fund TEXT NOT NULL DEFAULT '',
		first_repair_reserve_fund TEXT NOT NULL DEFAULT '',
		other_expenses TEXT NOT NULL DEFAULT '',
		floor_plan TEXT NOT NULL DEFAULT '',
		area TEXT NOT NULL DEFAULT '',
		other_area TEXT NOT NULL DEFAULT '',
		delivery_time TEXT NOT NULL DEFAULT '',
		completion_time TEXT NOT NULL DEFAULT '',
		floor TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL DEFAULT '',
		energy_consumption_performance TEXT NOT NULL DEFAULT '',
		insulation_performance TEXT NOT NULL DEFAULT '',
		estimated_utility_cost TEXT NOT NULL DEFAULT '',
		renovation TEXT NOT NULL DEFAULT '',
		other_restrictions TEXT NOT NULL DEFAULT '',
		other_overview_and_special_notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_property_overviews_property
		ON property_overviews (property_id);

	CREATE TABLE IF NOT EXISTS common_overviews (
		id UUID PRIMARY KEY,
		property_id UUID NOT NULL REFERENCES properties(id),
		location TEXT NOT NULL DEFAULT '',
		transportation TEXT[] NOT NULL DEFAULT '{}',
		total_units TEXT NOT NULL DEFAULT '',
		structure_floors TEXT NOT NULL DEFAULT '',
		site_area TEXT NOT NULL DEFAULT '',
		site_ownership_type TEXT NOT NULL DEFAULT '',
		usage_area TEXT NOT NULL DEFAULT '',
		parking_lot TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_common_overviews_property
		ON common_overviews (property_id);
	`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
