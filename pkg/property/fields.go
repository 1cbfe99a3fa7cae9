package property

import (
	"sort"
	"time"
)

// Fields is the untyped field bag returned by extractors. Merge routes
// each entry to its declared typed target; undeclared names go to Extras.
type Fields map[string]any

// Declared field names. Extractor output and lineage records use these.
const (
	FieldPrice          = "price"
	FieldBeds           = "beds"
	FieldBaths          = "baths"
	FieldSqft           = "sqft"
	FieldPricePerSqft   = "price_per_sqft"
	FieldDescription    = "description"
	FieldHOAFee         = "hoa_fee"
	FieldLotSqft        = "lot_sqft"
	FieldYearBuilt      = "year_built"
	FieldGarageSpaces   = "garage_spaces"
	FieldHasPool        = "has_pool"
	FieldLivableSqft    = "livable_sqft"
	FieldSewerType      = "sewer_type"
	FieldSolarStatus    = "solar_status"
	FieldSchoolRating   = "school_rating"
	FieldGroceryMiles   = "distance_to_grocery_miles"
	FieldHighwayMiles   = "distance_to_highway_miles"
	FieldOrientation    = "orientation"
	FieldCommuteMinutes = "commute_minutes"
	FieldMonthlyCost    = "monthly_cost"
	FieldSafetyScore    = "safety_score"
	FieldWalkability    = "walkability"
	FieldRoofAge        = "roof_age"
	FieldHVACAge        = "hvac_age"
	FieldPoolEquipAge   = "pool_equipment_age"
	FieldKitchen        = "kitchen"
	FieldMaster         = "master"
	FieldLight          = "light"
	FieldCeilings       = "ceilings"
	FieldFireplace      = "fireplace"
	FieldLaundry        = "laundry"
	FieldAesthetics     = "aesthetics"
)

// MergeResult summarizes one Merge call.
type MergeResult struct {
	// Applied counts fields written to the record.
	Applied int

	// Kept counts fields where the existing higher-precedence value won.
	Kept int

	// Orphans lists field names with no declared target (stored in Extras).
	Orphans []string

	// Invalid lists field names whose values could not be coerced.
	Invalid []string

	// Conflicts lists disagreements appended to the record.
	Conflicts []Conflict
}

// fieldSpec binds a declared field name to its typed accessor pair.
type fieldSpec struct {
	apply func(*Record, any) bool
	get   func(*Record) (any, bool)
}

// Merge applies an extractor field bag to the record under precedence
// rules: a stored value is replaced only when the incoming provenance
// outranks it; disagreements with a kept manual value append a Conflict.
// Fields are processed in sorted name order so results are stable.
func (r *Record) Merge(fields Fields, prov FieldProvenance) MergeResult {
	if r.Provenance == nil {
		r.Provenance = make(map[string]FieldProvenance)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}

	sort.Strings(names)

	var res MergeResult

	for _, name := range names {
		r.mergeOne(name, fields[name], prov, &res)
	}

	return res
}

func (r *Record) mergeOne(name string, value any, prov FieldProvenance, res *MergeResult) {
	spec, declared := fieldRegistry[name]
	if !declared {
		if r.Extras == nil {
			r.Extras = make(map[string]any)
		}

		r.Extras[name] = value
		res.Orphans = append(res.Orphans, name)

		return
	}

	existing, hasValue := spec.get(r)
	existingProv, hasProv := r.Provenance[name]

	if hasValue && hasProv && !outranks(prov, existingProv) {
		res.Kept++

		if valuesDiffer(existing, value) {
			conflict := Conflict{
				Field:      name,
				KeptValue:  existing,
				SeenValue:  value,
				KeptSource: existingProv.SourceID,
				SeenSource: prov.SourceID,
				SeenKind:   prov.Kind,
				Severe:     severeNumericConflict(existing, value),
				At:         time.Now().UTC(),
			}

			r.Conflicts = append(r.Conflicts, conflict)
			res.Conflicts = append(res.Conflicts, conflict)
		}

		return
	}

	if !spec.apply(r, value) {
		res.Invalid = append(res.Invalid, name)

		return
	}

	r.Provenance[name] = prov
	res.Applied++
}

// valuesDiffer compares a stored value with an incoming one, comparing
// numerically when both sides are numeric so int 4 equals float64 4.
func valuesDiffer(existing, incoming any) bool {
	e, eOK := toFloat(existing)
	i, iOK := toFloat(incoming)

	if eOK && iOK {
		return e != i
	}

	return existing != incoming
}

// KnownField reports whether name has a declared target on the record.
func KnownField(name string) bool {
	_, ok := fieldRegistry[name]

	return ok
}

// DeclaredFields returns the sorted list of declared field names.
func DeclaredFields() []string {
	names := make([]string, 0, len(fieldRegistry))
	for name := range fieldRegistry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Coercion helpers. Extractor values arrive either typed or as JSON
// float64; integers tolerate both.

func coerceFloat(v any) (float64, bool) { return toFloat(v) }

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func coerceBool(v any) (bool, bool) {
	b, ok := v.(bool)

	return b, ok
}

func coerceString(v any) (string, bool) {
	s, ok := v.(string)

	return s, ok
}

func floatField(set func(*Record, *float64), get func(*Record) *float64) fieldSpec {
	return fieldSpec{
		apply: func(r *Record, v any) bool {
			f, ok := coerceFloat(v)
			if !ok {
				return false
			}

			set(r, &f)

			return true
		},
		get: func(r *Record) (any, bool) {
			p := get(r)
			if p == nil {
				return nil, false
			}

			return *p, true
		},
	}
}

func intField(set func(*Record, *int), get func(*Record) *int) fieldSpec {
	return fieldSpec{
		apply: func(r *Record, v any) bool {
			n, ok := coerceInt(v)
			if !ok {
				return false
			}

			set(r, &n)

			return true
		},
		get: func(r *Record) (any, bool) {
			p := get(r)
			if p == nil {
				return nil, false
			}

			return *p, true
		},
	}
}

//nolint:funlen // Flat field table, one entry per declared field.
func buildFieldRegistry() map[string]fieldSpec {
	reg := map[string]fieldSpec{
		FieldPrice:          floatField(func(r *Record, p *float64) { r.Price = p }, func(r *Record) *float64 { return r.Price }),
		FieldBaths:          floatField(func(r *Record, p *float64) { r.Baths = p }, func(r *Record) *float64 { return r.Baths }),
		FieldSqft:           floatField(func(r *Record, p *float64) { r.Sqft = p }, func(r *Record) *float64 { return r.Sqft }),
		FieldPricePerSqft:   floatField(func(r *Record, p *float64) { r.PricePerSqft = p }, func(r *Record) *float64 { return r.PricePerSqft }),
		FieldHOAFee:         floatField(func(r *Record, p *float64) { r.HOAFee = p }, func(r *Record) *float64 { return r.HOAFee }),
		FieldLotSqft:        floatField(func(r *Record, p *float64) { r.LotSqft = p }, func(r *Record) *float64 { return r.LotSqft }),
		FieldLivableSqft:    floatField(func(r *Record, p *float64) { r.LivableSqft = p }, func(r *Record) *float64 { return r.LivableSqft }),
		FieldSchoolRating:   floatField(func(r *Record, p *float64) { r.SchoolRating = p }, func(r *Record) *float64 { return r.SchoolRating }),
		FieldGroceryMiles:   floatField(func(r *Record, p *float64) { r.GroceryMiles = p }, func(r *Record) *float64 { return r.GroceryMiles }),
		FieldHighwayMiles:   floatField(func(r *Record, p *float64) { r.HighwayMiles = p }, func(r *Record) *float64 { return r.HighwayMiles }),
		FieldCommuteMinutes: floatField(func(r *Record, p *float64) { r.CommuteMinutes = p }, func(r *Record) *float64 { return r.CommuteMinutes }),
		FieldMonthlyCost:    floatField(func(r *Record, p *float64) { r.MonthlyCost = p }, func(r *Record) *float64 { return r.MonthlyCost }),
		FieldSafetyScore:    floatField(func(r *Record, p *float64) { r.SafetyScore = p }, func(r *Record) *float64 { return r.SafetyScore }),
		FieldWalkability:    floatField(func(r *Record, p *float64) { r.Walkability = p }, func(r *Record) *float64 { return r.Walkability }),
		FieldRoofAge:        floatField(func(r *Record, p *float64) { r.RoofAge = p }, func(r *Record) *float64 { return r.RoofAge }),
		FieldHVACAge:        floatField(func(r *Record, p *float64) { r.HVACAge = p }, func(r *Record) *float64 { return r.HVACAge }),
		FieldPoolEquipAge:   floatField(func(r *Record, p *float64) { r.PoolEquipmentAge = p }, func(r *Record) *float64 { return r.PoolEquipmentAge }),
		FieldKitchen:        floatField(func(r *Record, p *float64) { r.Visual.Kitchen = p }, func(r *Record) *float64 { return r.Visual.Kitchen }),
		FieldMaster:         floatField(func(r *Record, p *float64) { r.Visual.Master = p }, func(r *Record) *float64 { return r.Visual.Master }),
		FieldLight:          floatField(func(r *Record, p *float64) { r.Visual.Light = p }, func(r *Record) *float64 { return r.Visual.Light }),
		FieldCeilings:       floatField(func(r *Record, p *float64) { r.Visual.Ceilings = p }, func(r *Record) *float64 { return r.Visual.Ceilings }),
		FieldFireplace:      floatField(func(r *Record, p *float64) { r.Visual.Fireplace = p }, func(r *Record) *float64 { return r.Visual.Fireplace }),
		FieldLaundry:        floatField(func(r *Record, p *float64) { r.Visual.Laundry = p }, func(r *Record) *float64 { return r.Visual.Laundry }),
		FieldAesthetics:     floatField(func(r *Record, p *float64) { r.Visual.Aesthetics = p }, func(r *Record) *float64 { return r.Visual.Aesthetics }),
		FieldBeds:           intField(func(r *Record, p *int) { r.Beds = p }, func(r *Record) *int { return r.Beds }),
		FieldYearBuilt:      intField(func(r *Record, p *int) { r.YearBuilt = p }, func(r *Record) *int { return r.YearBuilt }),
		FieldGarageSpaces:   intField(func(r *Record, p *int) { r.GarageSpaces = p }, func(r *Record) *int { return r.GarageSpaces }),
	}

	reg[FieldHasPool] = fieldSpec{
		apply: func(r *Record, v any) bool {
			b, ok := coerceBool(v)
			if !ok {
				return false
			}

			r.HasPool = &b

			return true
		},
		get: func(r *Record) (any, bool) {
			if r.HasPool == nil {
				return nil, false
			}

			return *r.HasPool, true
		},
	}

	reg[FieldDescription] = fieldSpec{
		apply: func(r *Record, v any) bool {
			s, ok := coerceString(v)
			if !ok {
				return false
			}

			r.Description = s

			return true
		},
		get: func(r *Record) (any, bool) {
			return r.Description, r.Description != ""
		},
	}

	reg[FieldSewerType] = fieldSpec{
		apply: func(r *Record, v any) bool {
			s, ok := coerceString(v)
			if !ok || !SewerType(s).Valid() {
				return false
			}

			r.Sewer = SewerType(s)

			return true
		},
		get: func(r *Record) (any, bool) {
			return string(r.Sewer), r.Sewer != "" && r.Sewer != SewerUnknown
		},
	}

	reg[FieldSolarStatus] = fieldSpec{
		apply: func(r *Record, v any) bool {
			s, ok := coerceString(v)
			if !ok || !SolarStatus(s).Valid() {
				return false
			}

			r.Solar = SolarStatus(s)

			return true
		},
		get: func(r *Record) (any, bool) {
			return string(r.Solar), r.Solar != "" && r.Solar != SolarUnknown
		},
	}

	reg[FieldOrientation] = fieldSpec{
		apply: func(r *Record, v any) bool {
			s, ok := coerceString(v)
			if !ok || !Orientation(s).Valid() {
				return false
			}

			r.Orientation = Orientation(s)

			return true
		},
		get: func(r *Record) (any, bool) {
			return string(r.Orientation), r.Orientation != "" && r.Orientation != OrientationUnknown
		},
	}

	return reg
}

var fieldRegistry = buildFieldRegistry()
