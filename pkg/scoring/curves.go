package scoring

import "github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"

// breakpoint is one segment boundary of a piecewise step curve: values at
// or below Limit score Score.
type breakpoint struct {
	Limit float64
	Score float64
}

// stepCurve evaluates a descending step curve; values beyond the last
// breakpoint take the floor score.
func stepCurve(value, floor float64, points []breakpoint) float64 {
	for _, bp := range points {
		if value <= bp.Limit {
			return bp.Score
		}
	}

	return floor
}

// roofCurve maps roof age in years to a 0-10 score.
var roofCurve = []breakpoint{
	{Limit: 5, Score: 10},
	{Limit: 10, Score: 8},
	{Limit: 15, Score: 6},
	{Limit: 20, Score: 4},
}

// RoofAgeScore scores a roof by age in years.
func RoofAgeScore(years float64) float64 {
	return stepCurve(years, 2, roofCurve)
}

// hvacCurve maps HVAC age to a 0-10 score. Desert HVAC wears faster than
// roofing, so the breakpoints sit earlier.
var hvacCurve = []breakpoint{
	{Limit: 4, Score: 10},
	{Limit: 8, Score: 8},
	{Limit: 12, Score: 6},
	{Limit: 16, Score: 4},
}

// HVACAgeScore scores an HVAC system by age in years.
func HVACAgeScore(years float64) float64 {
	return stepCurve(years, 2, hvacCurve)
}

// poolCurve maps pool equipment age to a 0-10 score.
var poolCurve = []breakpoint{
	{Limit: 5, Score: 10},
	{Limit: 8, Score: 7},
	{Limit: 12, Score: 5},
	{Limit: 15, Score: 3},
}

// PoolEquipmentScore scores pool equipment by age in years.
func PoolEquipmentScore(years float64) float64 {
	return stepCurve(years, 1, poolCurve)
}

// NoPoolBonus is the score granted when the property has no pool at all:
// no equipment to maintain, but also no amenity.
const NoPoolBonus = 8.0

// systemsCurve maps structure age (plumbing/electrical proxy from
// year_built) to a 0-10 score.
var systemsCurve = []breakpoint{
	{Limit: 10, Score: 10},
	{Limit: 25, Score: 8},
	{Limit: 40, Score: 6},
	{Limit: 60, Score: 4},
}

// SystemsAgeScore scores plumbing and electrical condition by structure
// age in years.
func SystemsAgeScore(years float64) float64 {
	return stepCurve(years, 2, systemsCurve)
}

// highwayCurve maps distance to the nearest highway in miles to a 0-10
// score; farther is quieter.
var highwayCurveAsc = []breakpoint{
	{Limit: 0.25, Score: 2},
	{Limit: 0.5, Score: 4},
	{Limit: 1.0, Score: 6},
	{Limit: 2.0, Score: 8},
}

// HighwayDistanceScore scores highway proximity; distance buys quiet.
func HighwayDistanceScore(miles float64) float64 {
	return stepCurve(miles, 10, highwayCurveAsc)
}

// groceryCurve maps distance to the nearest grocery store in miles to a
// 0-10 score; nearer is better.
var groceryCurve = []breakpoint{
	{Limit: 0.5, Score: 10},
	{Limit: 1.0, Score: 8},
	{Limit: 2.0, Score: 6},
	{Limit: 3.0, Score: 4},
}

// GroceryDistanceScore scores grocery access by distance in miles.
func GroceryDistanceScore(miles float64) float64 {
	return stepCurve(miles, 2, groceryCurve)
}

// backyardCurve maps derived backyard area in square feet to a 0-10
// score.
var backyardCurveAsc = []breakpoint{
	{Limit: 2000, Score: 2},
	{Limit: 4000, Score: 4},
	{Limit: 6000, Score: 6},
	{Limit: 8000, Score: 8},
}

// BackyardScore scores usable backyard area in square feet.
func BackyardScore(sqft float64) float64 {
	return stepCurve(sqft, 10, backyardCurveAsc)
}

// orientationScores is the fixed lookup for lot orientation. North-facing
// backyards shade outdoor space through the Phoenix summer.
var orientationScores = map[property.Orientation]float64{
	property.OrientationN:  10,
	property.OrientationS:  9,
	property.OrientationNE: 8,
	property.OrientationNW: 8,
	property.OrientationE:  7,
	property.OrientationSE: 6,
	property.OrientationSW: 5,
	property.OrientationW:  3,
}

// OrientationScore looks up the orientation score. The second return is
// false for unknown orientations.
func OrientationScore(o property.Orientation) (float64, bool) {
	score, ok := orientationScores[o]

	return score, ok
}

// clamp10 bounds an intermediate score to [0, 10].
func clamp10(v float64) float64 {
	return min(max(v, 0), 10)
}
