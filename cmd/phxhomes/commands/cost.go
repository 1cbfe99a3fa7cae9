package commands

import (
	"context"
	"errors"
	"math"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// Cost-model defaults. Tax rate approximates the Maricopa County
// effective residential rate; insurance is a flat monthly placeholder
// until a quote source exists.
const (
	defaultDownPayment      = 0.20
	defaultAnnualRate       = 0.0625
	defaultTermMonths       = 360
	defaultTaxRateAnnual    = 0.0062
	defaultInsuranceMonthly = 150.0
)

// ErrPriceUnknown is returned when neither the enrichment record nor
// the input CSV carries a list price for the address.
var ErrPriceUnknown = errors.New("list price unknown")

// costEstimator satisfies pipeline.CostEstimator with a local
// amortization model. Prices come from the input CSV keyed by
// normalized address, since the cost phase runs before listing
// extraction can merge a price into the record.
type costEstimator struct {
	prices map[string]float64
}

func newCostEstimator(props []property.Property) *costEstimator {
	prices := make(map[string]float64, len(props))

	for _, p := range props {
		if p.PriceNum > 0 {
			prices[p.FullAddress] = p.PriceNum
		}
	}

	return &costEstimator{prices: prices}
}

// Estimate computes the monthly carrying cost: principal and interest
// on a 30-year fixed note, property tax, insurance, and HOA dues when
// already known. Missing HOA contributes zero; the kill switch deals
// with unknown HOA separately.
func (c *costEstimator) Estimate(_ context.Context, rec *property.Record) (float64, map[string]float64, error) {
	price, ok := c.prices[rec.Address]

	if !ok && rec.Price != nil && *rec.Price > 0 {
		price, ok = *rec.Price, true
	}

	if !ok {
		return 0, nil, ErrPriceUnknown
	}

	principal := price * (1 - defaultDownPayment)
	mortgage := amortize(principal, defaultAnnualRate, defaultTermMonths)
	tax := price * defaultTaxRateAnnual / 12

	hoa := 0.0
	if rec.HOAFee != nil {
		hoa = *rec.HOAFee
	}

	breakdown := map[string]float64{
		"mortgage":     round2(mortgage),
		"property_tax": round2(tax),
		"insurance":    defaultInsuranceMonthly,
		"hoa":          round2(hoa),
	}

	total := 0.0
	for _, part := range breakdown {
		total += part
	}

	return round2(total), breakdown, nil
}

// amortize returns the fixed monthly payment for a fully amortizing
// loan. A zero rate degenerates to straight division.
func amortize(principal, annualRate float64, months int) float64 {
	if annualRate <= 0 {
		return principal / float64(months)
	}

	monthly := annualRate / 12
	factor := math.Pow(1+monthly, float64(months))

	return principal * monthly * factor / (factor - 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
