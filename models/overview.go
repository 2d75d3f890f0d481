package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PropertyOverview holds the listing-specific fields scraped from the
// property's own overview table. At most one per property; re-scrapes
// overwrite it in place.
type PropertyOverview struct {
	ID                           uuid.UUID `json:"id" db:"id"`
	PropertyID                   uuid.UUID `json:"property_id" db:"property_id"`
	SalesSchedule                string    `json:"sales_schedule" db:"sales_schedule"`
	EventInformation             string    `json:"event_information" db:"event_information"`
	NumberOfUnitsForSale         string    `json:"number_of_units_for_sale" db:"number_of_units_for_sale"`
	HighestPriceRange            string    `json:"highest_price_range" db:"highest_price_range"`
	Price                        string    `json:"price" db:"price"`
	MaintenanceFee               string    `json:"maintenance_fee" db:"maintenance_fee"`
	RepairReserveFund            string    `json:"repair_reserve_fund" db:"repair_reserve_fund"`
	FirstRepairReserveFund       string    `json:"first_repair_reserve_fund" db:"first_repair_reserve_fund"`
	OtherExpenses                string    `json:"other_expenses" db:"other_expenses"`
	FloorPlan                    string    `json:"floor_plan" db:"floor_plan"`
	Area                         string    `json:"area" db:"area"`
	OtherArea                    string    `json:"other_area" db:"other_area"`
	DeliveryTime                 string    `json:"delivery_time" db:"delivery_time"`
	CompletionTime               string    `json:"completion_time" db:"completion_time"`
	Floor                        string    `json:"floor" db:"floor"`
	Direction                    string    `json:"direction" db:"direction"`
	EnergyConsumptionPerformance string    `json:"energy_consumption_performance" db:"energy_consumption_performance"`
	InsulationPerformance        string    `json:"insulation_performance" db:"insulation_performance"`
	EstimatedUtilityCost         string    `json:"estimated_utility_cost" db:"estimated_utility_cost"`
	Renovation                   string    `json:"renovation" db:"renovation"`
	OtherRestrictions            string    `json:"other_restrictions" db:"other_restrictions"`
	OtherOverviewAndSpecialNotes string    `json:"other_overview_and_special_notes" db:"other_overview_and_special_notes"`
	CreatedAt                    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                    time.Time `json:"updated_at" db:"updated_at"`
}

// CommonOverview holds the building-level fields shared by every unit in
// the building. Same one-per-property upsert semantics as PropertyOverview.
type CommonOverview struct {
	ID                uuid.UUID `json:"id" db:"id"`
	PropertyID        uuid.UUID `json:"property_id" db:"property_id"`
	Location          string    `json:"location" db:"location"`
	Transportation    []string  `json:"transportation" db:"transportation"`
	TotalUnits        string    `json:"total_units" db:"total_units"`
	StructureFloors   string    `json:"structure_floors" db:"structure_floors"`
	SiteArea          string    `json:"site_area" db:"site_area"`
	SiteOwnershipType string    `json:"site_ownership_type" db:"site_ownership_type"`
	UsageArea         string    `json:"usage_area" db:"usage_area"`
	ParkingLot        string    `json:"parking_lot" db:"parking_lot"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// PropertyOverviewTranslationMap renames the source-site section labels to
// canonical attribute keys.
//
// 修繕積立金 and 修繕積立基金 deliberately map to different keys: the former
// is the recurring fund for large-scale common-area repairs, the latter the
// one-off money put toward the first major repair work.
var PropertyOverviewTranslationMap = map[string]string{
	"販売スケジュール":       "sales_schedule",
	"イベント情報":         "event_information",
	"販売戸数":           "number_of_units_for_sale",
	"最多価格帯":          "highest_price_range",
	"価格":             "price",
	"管理費":            "maintenance_fee",
	"修繕積立金":          "repair_reserve_fund",
	"修繕積立基金":         "first_repair_reserve_fund",
	"諸費用":            "other_expenses",
	"間取り":            "floor_plan",
	"専有面積":           "area",
	"その他面積":          "other_area",
	"引渡可能時期":         "delivery_time",
	"完成時期(築年月)":      "completion_time",
	"所在階":            "floor",
	"向き":             "direction",
	"エネルギー消費性能":      "energy_consumption_performance",
	"断熱性能":           "insulation_performance",
	"目安光熱費":          "estimated_utility_cost",
	"リフォーム":          "renovation",
	"その他制限事項":        "other_restrictions",
	"その他概要・特記事項":     "other_overview_and_special_notes",
}

// CommonOverviewTranslationMap renames the common-overview section labels.
var CommonOverviewTranslationMap = map[string]string{
	"所在地":      "location",
	"交通":       "transportation",
	"総戸数":      "total_units",
	"構造・階建て":   "structure_floors",
	"敷地面積":     "site_area",
	"敷地の権利形態":  "site_ownership_type",
	"用途地域":     "usage_area",
	"駐車場":      "parking_lot",
}

// TranslateKeys renames raw section labels using the given table. Labels
// without a translation are dropped.
func TranslateKeys(raw map[string]string, table map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for label, value := range raw {
		if key, ok := table[label]; ok {
			out[key] = value
		}
	}
	return out
}

// PropertyOverviewFromFields builds an overview from canonical-key fields,
// stamping both timestamps with now.
func PropertyOverviewFromFields(fields map[string]string, now time.Time) *PropertyOverview {
	o := &PropertyOverview{CreatedAt: now, UpdatedAt: now}
	for key, value := range fields {
		o.setField(key, value)
	}
	return o
}

func (o *PropertyOverview) setField(key, value string) {
	switch key {
	case "sales_schedule":
		o.SalesSchedule = value
	case "event_information":
		o.EventInformation = value
	case "number_of_units_for_sale":
		o.NumberOfUnitsForSale = value
	case "highest_price_range":
		o.HighestPriceRange = value
	case "price":
		o.Price = value
	case "maintenance_fee":
		o.MaintenanceFee = value
	case "repair_reserve_fund":
		o.RepairReserveFund = value
	case "first_repair_reserve_fund":
		o.FirstRepairReserveFund = value
	case "other_expenses":
		o.OtherExpenses = value
	case "floor_plan":
		o.FloorPlan = value
	case "area":
		o.Area = value
	case "other_area":
		o.OtherArea = value
	case "delivery_time":
		o.DeliveryTime = value
	case "completion_time":
		o.CompletionTime = value
	case "floor":
		o.Floor = value
	case "direction":
		o.Direction = value
	case "energy_consumption_performance":
		o.EnergyConsumptionPerformance = value
	case "insulation_performance":
		o.InsulationPerformance = value
	case "estimated_utility_cost":
		o.EstimatedUtilityCost = value
	case "renovation":
		o.Renovation = value
	case "other_restrictions":
		o.OtherRestrictions = value
	case "other_overview_and_special_notes":
		o.OtherOverviewAndSpecialNotes = value
	}
}

// CommonOverviewFromFields builds a common overview from canonical-key
// fields plus the transportation value run.
func CommonOverviewFromFields(fields map[string]string, transportation []string, now time.Time) *CommonOverview {
	o := &CommonOverview{
		Transportation: transportation,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for key, value := range fields {
		switch key {
		case "location":
			o.Location = value
		case "total_units":
			o.TotalUnits = value
		case "structure_floors":
			o.StructureFloors = value
		case "site_area":
			o.SiteArea = value
		case "site_ownership_type":
			o.SiteOwnershipType = value
		case "usage_area":
			o.UsageArea = value
		case "parking_lot":
			o.ParkingLot = value
		}
	}
	return o
}

// Validate checks the timestamp invariant shared by both overview kinds.
func (o *PropertyOverview) Validate() error {
	if o.UpdatedAt.Before(o.CreatedAt) {
		return fmt.Errorf("property overview updated_at before created_at")
	}
	return nil
}

func (o *CommonOverview) Validate() error {
	if o.UpdatedAt.Before(o.CreatedAt) {
		return fmt.Errorf("common overview updated_at before created_at")
	}
	return nil
}
