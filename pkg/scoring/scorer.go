// Package scoring computes the 600-point three-section property score
// and the resulting tier. The scorer is pure over an enrichment record:
// it never mutates its input and never touches I/O.
package scoring

import (
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// Section caps.
const (
	SectionACap = 230
	SectionBCap = 180
	SectionCCap = 190
	TotalCap    = SectionACap + SectionBCap + SectionCCap
)

// Tier thresholds over the total score.
const (
	UnicornThreshold   = 480
	ContenderThreshold = 360
)

// NeutralDefault is the intermediate score substituted for missing
// inputs that are not kill-switch criteria.
const NeutralDefault = 5.0

// Section A (Location & Environment) weights. They sum to 23, so the
// section caps at 230.
const (
	weightSchool      = 5
	weightSafety      = 4
	weightWalkability = 4
	weightHighway     = 4
	weightGrocery     = 3
	weightOrientation = 3
)

// Section B (Lot & Systems) weights. They sum to 18, so the section caps
// at 180.
const (
	weightRoof     = 6
	weightBackyard = 4
	weightSystems  = 4
	weightPool     = 4
)

// Section C (Interior & Features) weights. They sum to 19, so the
// section caps at 190.
const (
	weightKitchen    = 4
	weightMaster     = 3
	weightLight      = 3
	weightAesthetics = 3
	weightCeilings   = 2
	weightFireplace  = 2
	weightLaundry    = 2
)

// CriterionScore is the scored outcome of one sub-criterion.
type CriterionScore struct {
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	Weight    int     `json:"weight"`
	Weighted  float64 `json:"weighted"`
	Defaulted bool    `json:"defaulted,omitempty"`
}

// Result is the full scoring outcome for one property.
type Result struct {
	SectionA float64 `json:"score_section_a"`
	SectionB float64 `json:"score_section_b"`
	SectionC float64 `json:"score_section_c"`
	Total    float64 `json:"total_score"`

	Tier property.Tier `json:"tier"`

	// DefaultsUsed counts sub-criteria that fell back to the neutral
	// default; DataQuality is the populated/required input ratio.
	DefaultsUsed int     `json:"defaults_used"`
	DataQuality  float64 `json:"data_quality"`

	Breakdown []CriterionScore `json:"breakdown,omitempty"`
}

// Config tunes scoring.
type Config struct {
	// Now supplies the clock for age-from-year-built derivations.
	Now func() time.Time
}

// scorer accumulates sections while tracking data quality.
type scorer struct {
	res       Result
	section   *float64
	populated int
	required  int
}

// add scores one sub-criterion. A nil value means the input is missing:
// defaultable criteria take the neutral default, kill-switch criteria
// contribute nothing.
func (s *scorer) add(name string, value *float64, weight int, defaultable bool) {
	s.required++

	var cs CriterionScore

	switch {
	case value != nil:
		s.populated++

		cs = CriterionScore{Name: name, Score: clamp10(*value), Weight: weight}
	case defaultable:
		s.res.DefaultsUsed++

		cs = CriterionScore{Name: name, Score: NeutralDefault, Weight: weight, Defaulted: true}
	default:
		cs = CriterionScore{Name: name, Weight: weight}
	}

	cs.Weighted = cs.Score * float64(weight)
	*s.section += cs.Weighted
	s.res.Breakdown = append(s.res.Breakdown, cs)
}

// Score computes all three sections and the tier for the record. The
// kill-switch verdict only affects the tier, never the inputs or the
// numeric score.
func Score(rec *property.Record, verdict property.Verdict, cfg Config) Result {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var s scorer

	s.scoreLocation(rec)
	s.scoreLotSystems(rec, cfg.Now().Year())
	s.scoreInterior(rec)

	s.res.SectionA = min(s.res.SectionA, SectionACap)
	s.res.SectionB = min(s.res.SectionB, SectionBCap)
	s.res.SectionC = min(s.res.SectionC, SectionCCap)
	s.res.Total = s.res.SectionA + s.res.SectionB + s.res.SectionC
	s.res.Tier = AssignTier(s.res.Total, verdict)

	if s.required > 0 {
		s.res.DataQuality = float64(s.populated) / float64(s.required)
	}

	return s.res
}

// scoreLocation fills Section A: schools, safety, walkability, highway
// noise, grocery access, and lot orientation.
func (s *scorer) scoreLocation(rec *property.Record) {
	s.section = &s.res.SectionA

	s.add("school_rating", rec.SchoolRating, weightSchool, true)
	s.add("safety_score", rec.SafetyScore, weightSafety, true)
	s.add("walkability", rec.Walkability, weightWalkability, true)
	s.add("distance_to_highway", curved(rec.HighwayMiles, HighwayDistanceScore), weightHighway, true)
	s.add("distance_to_grocery", curved(rec.GroceryMiles, GroceryDistanceScore), weightGrocery, true)

	if score, ok := OrientationScore(rec.Orientation); ok {
		s.add("orientation", &score, weightOrientation, true)
	} else {
		s.add("orientation", nil, weightOrientation, true)
	}
}

// scoreLotSystems fills Section B. Backyard area and the year-built
// systems proxy derive from kill-switch criteria, so they are never
// defaulted when missing.
func (s *scorer) scoreLotSystems(rec *property.Record, currentYear int) {
	s.section = &s.res.SectionB

	s.add("roof_age", curved(rec.RoofAge, RoofAgeScore), weightRoof, true)
	s.add("backyard_sqft", curved(rec.BackyardSqft(), BackyardScore), weightBackyard, false)

	var systems *float64

	if rec.YearBuilt != nil {
		v := SystemsAgeScore(float64(currentYear - *rec.YearBuilt))
		systems = &v
	}

	s.add("plumbing_electrical", systems, weightSystems, false)
	s.add("pool_equipment", poolScore(rec), weightPool, true)
}

// scoreInterior fills Section C from the seven visual assessment scores.
func (s *scorer) scoreInterior(rec *property.Record) {
	s.section = &s.res.SectionC

	v := rec.Visual

	s.add("kitchen", v.Kitchen, weightKitchen, true)
	s.add("master", v.Master, weightMaster, true)
	s.add("light", v.Light, weightLight, true)
	s.add("aesthetics", v.Aesthetics, weightAesthetics, true)
	s.add("ceilings", v.Ceilings, weightCeilings, true)
	s.add("fireplace", v.Fireplace, weightFireplace, true)
	s.add("laundry", v.Laundry, weightLaundry, true)
}

// poolScore resolves the pool sub-criterion: equipment age curve when a
// pool exists, the no-pool bonus otherwise, nil when pool presence or
// equipment age is unknown.
func poolScore(rec *property.Record) *float64 {
	if rec.HasPool == nil {
		return nil
	}

	if !*rec.HasPool {
		v := NoPoolBonus

		return &v
	}

	return curved(rec.PoolEquipmentAge, PoolEquipmentScore)
}

// curved applies a curve to an optional input, preserving nil.
func curved(value *float64, curve func(float64) float64) *float64 {
	if value == nil {
		return nil
	}

	v := curve(*value)

	return &v
}

// AssignTier classifies a scored property. A kill-switch FAIL forces
// FAILED regardless of score.
func AssignTier(total float64, verdict property.Verdict) property.Tier {
	switch {
	case verdict == property.VerdictFail:
		return property.TierFailed
	case total > UnicornThreshold:
		return property.TierUnicorn
	case total >= ContenderThreshold:
		return property.TierContender
	default:
		return property.TierPass
	}
}

// Apply writes the scoring outcome onto the record's derived fields.
func Apply(rec *property.Record, res Result) {
	rec.ScoreSectionA = res.SectionA
	rec.ScoreSectionB = res.SectionB
	rec.ScoreSectionC = res.SectionC
	rec.TotalScore = res.Total
	rec.Tier = res.Tier
	rec.DefaultsUsed = res.DefaultsUsed
	rec.DataQuality = res.DataQuality
}
