package pipeline

import (
	"context"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// CountyClient looks up records-authoritative parcel data (lot size,
// year built, garage, pool, sewer) for the P0 phase.
type CountyClient interface {
	Lookup(ctx context.Context, prop property.Property) (property.Fields, error)
}

// CostEstimator computes the monthly carrying cost and its breakdown
// for the P05 phase. The record passed in is a snapshot; the estimator
// must not retain or mutate it.
type CostEstimator interface {
	Estimate(ctx context.Context, rec *property.Record) (monthly float64, breakdown map[string]float64, err error)
}

// MapClient researches location attributes (school rating, distances,
// orientation, commute) for the P1_map phase.
type MapClient interface {
	Research(ctx context.Context, prop property.Property) (property.Fields, error)
}

// VisualAssessor scores property photos. AssessExterior returns field
// observations (roof condition, backyard, orientation hints);
// AssessInterior returns the seven 1-10 interior scores. Both read
// images from the property's processed folder.
type VisualAssessor interface {
	AssessExterior(ctx context.Context, address, imageDir string) (property.Fields, error)
	AssessInterior(ctx context.Context, address, imageDir string) (property.VisualScores, error)
}

// ReportRenderer emits the per-property report artifact for P4.
type ReportRenderer interface {
	Render(ctx context.Context, prop property.Property, rec *property.Record) error
}
