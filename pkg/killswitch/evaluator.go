// Package killswitch applies the mandatory and soft buyer criteria that
// exclude unviable properties before scoring. The evaluator is pure:
// identical inputs produce an identical verdict, severity, and
// order-stable failure list.
package killswitch

import (
	"fmt"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// Hard criterion bounds.
const (
	MinBeds  = 4
	MinBaths = 2.0
)

// Soft criterion severities.
const (
	SeveritySewerNotCity = 2.5
	SeverityNewBuild     = 2.0
	SeverityGarage       = 1.5
	SeverityLotSize      = 1.0
)

// Lot size acceptance window in square feet.
const (
	LotMinSqft = 7000
	LotMaxSqft = 15000
)

// Verdict thresholds over accumulated severity.
const (
	FailThreshold    = 3.0
	WarningThreshold = 1.5
)

// Garage minimum spaces.
const minGarageSpaces = 2

// UnknownHOAPolicy decides how a missing HOA fee is treated by the hard
// criterion. The stricter default fails an unknown fee; the pass policy
// lets it through with a missing-data note.
type UnknownHOAPolicy string

// Unknown-HOA policies.
const (
	UnknownHOAFail UnknownHOAPolicy = "fail"
	UnknownHOAPass UnknownHOAPolicy = "pass"
)

// Kind distinguishes hard from soft failures.
type Kind string

// Failure kinds.
const (
	KindHard Kind = "hard"
	KindSoft Kind = "soft"
)

// Failure is one violated criterion, in evaluation order.
type Failure struct {
	Criterion string  `json:"criterion"`
	Kind      Kind    `json:"kind"`
	Severity  float64 `json:"severity"`
	Detail    string  `json:"detail"`
}

// Result is the full evaluation outcome.
type Result struct {
	Verdict  property.Verdict `json:"verdict"`
	Severity float64          `json:"severity"`
	Failures []Failure        `json:"failures,omitempty"`

	// MissingData notes soft criteria that passed only because their
	// input was unknown.
	MissingData []string `json:"missing_data,omitempty"`
}

// Config tunes evaluation policy.
type Config struct {
	// UnknownHOA decides whether a missing HOA fee passes or fails.
	UnknownHOA UnknownHOAPolicy

	// Now supplies the clock for the new-build criterion. CURRENT_YEAR is
	// always resolved at evaluation time.
	Now func() time.Time
}

// DefaultConfig returns the strict default policy.
func DefaultConfig() Config {
	return Config{UnknownHOA: UnknownHOAFail, Now: time.Now}
}

// Evaluate applies the hard criteria in declared order, short-circuiting
// on the first violation, then accumulates soft severities.
func Evaluate(rec *property.Record, cfg Config) Result {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.UnknownHOA == "" {
		cfg.UnknownHOA = UnknownHOAFail
	}

	if hard, failed := evaluateHard(rec, cfg); failed {
		return Result{
			Verdict:  property.VerdictFail,
			Failures: []Failure{hard},
		}
	}

	return evaluateSoft(rec, cfg)
}

// evaluateHard checks the mandatory criteria: no HOA, at least 4 beds,
// at least 2 baths. Severity is not accumulated for hard failures.
func evaluateHard(rec *property.Record, cfg Config) (Failure, bool) {
	switch {
	case rec.HOAFee == nil && cfg.UnknownHOA == UnknownHOAFail:
		return Failure{
			Criterion: property.FieldHOAFee,
			Kind:      KindHard,
			Detail:    "hoa fee unknown (strict policy)",
		}, true
	case rec.HOAFee != nil && *rec.HOAFee > 0:
		return Failure{
			Criterion: property.FieldHOAFee,
			Kind:      KindHard,
			Detail:    fmt.Sprintf("hoa fee $%.0f/mo, need $0", *rec.HOAFee),
		}, true
	}

	if rec.Beds == nil || *rec.Beds < MinBeds {
		return Failure{
			Criterion: property.FieldBeds,
			Kind:      KindHard,
			Detail:    fmt.Sprintf("beds %s, need >= %d", intOrUnknown(rec.Beds), MinBeds),
		}, true
	}

	if rec.Baths == nil || *rec.Baths < MinBaths {
		return Failure{
			Criterion: property.FieldBaths,
			Kind:      KindHard,
			Detail:    fmt.Sprintf("baths %s, need >= %.1f", floatOrUnknown(rec.Baths), MinBaths),
		}, true
	}

	return Failure{}, false
}

// evaluateSoft accumulates severity over the soft criteria. Unknown
// inputs pass with a missing_data note and contribute no severity.
func evaluateSoft(rec *property.Record, cfg Config) Result {
	var res Result

	currentYear := cfg.Now().Year()

	// An unknown HOA fee only reaches here under the pass policy; note it.
	if rec.HOAFee == nil {
		res.MissingData = append(res.MissingData, property.FieldHOAFee)
	}

	if rec.Sewer == SewerKnownCity() {
		// City sewer passes.
	} else if rec.Sewer == "" || rec.Sewer == property.SewerUnknown {
		res.MissingData = append(res.MissingData, property.FieldSewerType)
	} else {
		res.addSoft(property.FieldSewerType, SeveritySewerNotCity,
			fmt.Sprintf("sewer is %s, want city", rec.Sewer))
	}

	if rec.YearBuilt == nil {
		res.MissingData = append(res.MissingData, property.FieldYearBuilt)
	} else if *rec.YearBuilt >= currentYear {
		res.addSoft(property.FieldYearBuilt, SeverityNewBuild,
			fmt.Sprintf("new build (%d >= %d)", *rec.YearBuilt, currentYear))
	}

	if rec.GarageSpaces == nil {
		res.MissingData = append(res.MissingData, property.FieldGarageSpaces)
	} else if *rec.GarageSpaces < minGarageSpaces {
		res.addSoft(property.FieldGarageSpaces, SeverityGarage,
			fmt.Sprintf("garage %d spaces, want >= %d", *rec.GarageSpaces, minGarageSpaces))
	}

	if rec.LotSqft == nil {
		res.MissingData = append(res.MissingData, property.FieldLotSqft)
	} else if *rec.LotSqft < LotMinSqft || *rec.LotSqft > LotMaxSqft {
		res.addSoft(property.FieldLotSqft, SeverityLotSize,
			fmt.Sprintf("lot %.0f sqft outside [%d, %d]", *rec.LotSqft, LotMinSqft, LotMaxSqft))
	}

	switch {
	case res.Severity >= FailThreshold:
		res.Verdict = property.VerdictFail
	case res.Severity >= WarningThreshold:
		res.Verdict = property.VerdictWarning
	default:
		res.Verdict = property.VerdictPass
	}

	return res
}

func (r *Result) addSoft(criterion string, severity float64, detail string) {
	r.Failures = append(r.Failures, Failure{
		Criterion: criterion,
		Kind:      KindSoft,
		Severity:  severity,
		Detail:    detail,
	})
	r.Severity += severity
}

// SewerKnownCity returns the passing sewer type.
func SewerKnownCity() property.SewerType { return property.SewerCity }

// Apply writes the evaluation outcome onto the record's derived fields.
func Apply(rec *property.Record, res Result) {
	rec.KillSwitchVerdict = res.Verdict
	rec.KillSwitchSeverity = res.Severity

	rec.KillSwitchFailures = rec.KillSwitchFailures[:0]
	for _, f := range res.Failures {
		rec.KillSwitchFailures = append(rec.KillSwitchFailures, fmt.Sprintf("%s: %s", f.Criterion, f.Detail))
	}
}

func intOrUnknown(v *int) string {
	if v == nil {
		return "unknown"
	}

	return fmt.Sprintf("%d", *v)
}

func floatOrUnknown(v *float64) string {
	if v == nil {
		return "unknown"
	}

	return fmt.Sprintf("%.1f", *v)
}
