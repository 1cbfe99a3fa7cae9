package property

import (
	"errors"
	"fmt"
	"time"
)

// CurrentSchemaVersion is the enrichment record schema in use. Version 1
// records were produced under the retired 500-point scoring system and
// are refused rather than migrated in place.
const CurrentSchemaVersion = 2

// ErrLegacySchema is returned when a persisted record carries the retired
// 500-point schema version.
var ErrLegacySchema = errors.New("legacy 500-point enrichment schema; re-run enrichment from scratch")

// Property is one row of the input listing CSV. FullAddress is the
// normalized primary key for every downstream store.
type Property struct {
	Street       string  `json:"street"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Zip          string  `json:"zip"`
	Price        string  `json:"price"`
	PriceNum     float64 `json:"price_num"`
	Beds         int     `json:"beds"`
	Baths        float64 `json:"baths"`
	Sqft         float64 `json:"sqft"`
	PricePerSqft float64 `json:"price_per_sqft"`
	FullAddress  string  `json:"full_address" validate:"required"`
}

// VisualScores holds the seven interior assessment scores, each 1-10.
// Nil means the assessor has not scored that aspect.
type VisualScores struct {
	Kitchen    *float64 `json:"kitchen,omitempty" validate:"omitempty,gte=1,lte=10"`
	Master     *float64 `json:"master,omitempty" validate:"omitempty,gte=1,lte=10"`
	Light      *float64 `json:"light,omitempty" validate:"omitempty,gte=1,lte=10"`
	Ceilings   *float64 `json:"ceilings,omitempty" validate:"omitempty,gte=1,lte=10"`
	Fireplace  *float64 `json:"fireplace,omitempty" validate:"omitempty,gte=1,lte=10"`
	Laundry    *float64 `json:"laundry,omitempty" validate:"omitempty,gte=1,lte=10"`
	Aesthetics *float64 `json:"aesthetics,omitempty" validate:"omitempty,gte=1,lte=10"`
}

// Record is the enrichment record for one property. Optional fields are
// pointers: nil means the value is unknown, which the kill-switch and
// scorer treat differently from zero. Unknown extractor fields land in
// Extras rather than being dropped.
type Record struct {
	SchemaVersion int    `json:"schema_version" validate:"eq=2"`
	Address       string `json:"address" validate:"required"`

	// Listing-supplied.
	Price        *float64 `json:"price,omitempty"`
	Beds         *int     `json:"beds,omitempty"`
	Baths        *float64 `json:"baths,omitempty"`
	Sqft         *float64 `json:"sqft,omitempty"`
	PricePerSqft *float64 `json:"price_per_sqft,omitempty"`
	Description  string   `json:"description,omitempty"`
	HOAFee       *float64 `json:"hoa_fee,omitempty"`

	// Records-authoritative (county).
	LotSqft      *float64 `json:"lot_sqft,omitempty"`
	YearBuilt    *int     `json:"year_built,omitempty"`
	GarageSpaces *int     `json:"garage_spaces,omitempty"`
	HasPool      *bool    `json:"has_pool,omitempty"`
	LivableSqft  *float64 `json:"livable_sqft,omitempty"`

	// Research / enriched.
	Sewer            SewerType          `json:"sewer_type,omitempty"`
	Solar            SolarStatus        `json:"solar_status,omitempty"`
	SchoolRating     *float64           `json:"school_rating,omitempty" validate:"omitempty,gte=0,lte=10"`
	GroceryMiles     *float64           `json:"distance_to_grocery_miles,omitempty"`
	HighwayMiles     *float64           `json:"distance_to_highway_miles,omitempty"`
	Orientation      Orientation        `json:"orientation,omitempty"`
	CommuteMinutes   *float64           `json:"commute_minutes,omitempty"`
	MonthlyCost      *float64           `json:"monthly_cost,omitempty"`
	CostBreakdown    map[string]float64 `json:"monthly_cost_breakdown,omitempty"`
	SafetyScore      *float64           `json:"safety_score,omitempty" validate:"omitempty,gte=0,lte=10"`
	Walkability      *float64           `json:"walkability,omitempty" validate:"omitempty,gte=0,lte=10"`
	RoofAge          *float64           `json:"roof_age,omitempty"`
	HVACAge          *float64           `json:"hvac_age,omitempty"`
	PoolEquipmentAge *float64           `json:"pool_equipment_age,omitempty"`
	Visual           VisualScores       `json:"visual_scores"`

	// Derived.
	KillSwitchVerdict  Verdict  `json:"kill_switch_verdict,omitempty"`
	KillSwitchSeverity float64  `json:"kill_switch_severity"`
	KillSwitchFailures []string `json:"kill_switch_failures,omitempty"`
	ScoreSectionA      float64  `json:"score_section_a"`
	ScoreSectionB      float64  `json:"score_section_b"`
	ScoreSectionC      float64  `json:"score_section_c"`
	TotalScore         float64  `json:"total_score"`
	Tier               Tier     `json:"tier,omitempty"`
	DefaultsUsed       int      `json:"defaults_used"`
	DataQuality        float64  `json:"data_quality"`

	// Extras captures extractor fields with no declared target.
	Extras map[string]any `json:"extras,omitempty"`

	// Provenance records source and freshness per populated field.
	Provenance map[string]FieldProvenance `json:"provenance,omitempty"`

	// Conflicts are appended whenever a later source disagrees with a
	// higher-precedence value; the stored value is never silently replaced.
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// NewRecord creates an empty enrichment record for the given normalized
// address at the current schema version.
func NewRecord(address string) *Record {
	return &Record{
		SchemaVersion: CurrentSchemaVersion,
		Address:       address,
		Sewer:         SewerUnknown,
		Solar:         SolarUnknown,
		Orientation:   OrientationUnknown,
		Provenance:    make(map[string]FieldProvenance),
	}
}

// CheckSchema validates the record's schema version. Version 1 artifacts
// come from the retired 500-point system and must not be mixed.
func (r *Record) CheckSchema() error {
	if r.SchemaVersion == CurrentSchemaVersion {
		return nil
	}

	if r.SchemaVersion == 1 {
		return fmt.Errorf("%w (address %s)", ErrLegacySchema, r.Address)
	}

	return fmt.Errorf("unsupported enrichment schema version %d (address %s)", r.SchemaVersion, r.Address)
}

// BackyardSqft derives the usable backyard area from lot and house size.
// Returns nil when either input is unknown.
func (r *Record) BackyardSqft() *float64 {
	if r.LotSqft == nil || r.Sqft == nil {
		return nil
	}

	yard := *r.LotSqft - houseFootprintRatio**r.Sqft

	return &yard
}

// houseFootprintRatio estimates the lot area consumed by the structure.
const houseFootprintRatio = 0.6

// Touch stamps provenance for a field that was set directly (not through
// Merge), e.g. derived scores.
func (r *Record) Touch(field, sourceID string, kind SourceKind, now time.Time) {
	if r.Provenance == nil {
		r.Provenance = make(map[string]FieldProvenance)
	}

	r.Provenance[field] = FieldProvenance{
		SourceID:   sourceID,
		Kind:       kind,
		FetchedAt:  now.UTC(),
		Confidence: defaultConfidence,
	}
}
