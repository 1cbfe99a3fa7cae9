package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

func TestCostEstimator_BreakdownSumsToTotal(t *testing.T) {
	t.Parallel()

	props := []property.Property{{FullAddress: "100 E TEST AVE PHOENIX AZ 85004", PriceNum: 450000}}
	rec := property.NewRecord("100 E TEST AVE PHOENIX AZ 85004")

	monthly, breakdown, err := newCostEstimator(props).Estimate(context.Background(), rec)
	require.NoError(t, err)

	sum := 0.0
	for _, part := range breakdown {
		sum += part
	}

	assert.InDelta(t, sum, monthly, 0.01)
	assert.Contains(t, breakdown, "mortgage")
	assert.Contains(t, breakdown, "property_tax")
	assert.Contains(t, breakdown, "insurance")
	assert.Contains(t, breakdown, "hoa")

	// 360k principal at 6.25% over 30 years is about $2,217/month.
	assert.InDelta(t, 2216.80, breakdown["mortgage"], 1.0)
	assert.InDelta(t, 232.50, breakdown["property_tax"], 0.01)
	assert.Zero(t, breakdown["hoa"], "unknown HOA contributes nothing to cost")
}

func TestCostEstimator_KnownHOAFeedsIn(t *testing.T) {
	t.Parallel()

	props := []property.Property{{FullAddress: "100 E TEST AVE PHOENIX AZ 85004", PriceNum: 450000}}
	rec := property.NewRecord("100 E TEST AVE PHOENIX AZ 85004")

	fee := 85.0
	rec.HOAFee = &fee

	_, breakdown, err := newCostEstimator(props).Estimate(context.Background(), rec)
	require.NoError(t, err)
	assert.InDelta(t, 85.0, breakdown["hoa"], 0.001)
}

func TestCostEstimator_RecordPriceIsTheFallback(t *testing.T) {
	t.Parallel()

	rec := property.NewRecord("700 OFF CSV DR PHOENIX AZ 85012")

	price := 400000.0
	rec.Price = &price

	monthly, _, err := newCostEstimator(nil).Estimate(context.Background(), rec)
	require.NoError(t, err)
	assert.Greater(t, monthly, 0.0)
}

func TestCostEstimator_NoPriceAnywhere(t *testing.T) {
	t.Parallel()

	rec := property.NewRecord("700 OFF CSV DR PHOENIX AZ 85012")

	_, _, err := newCostEstimator(nil).Estimate(context.Background(), rec)
	require.ErrorIs(t, err, ErrPriceUnknown)
}

func TestAmortize_ZeroRateDegenerates(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1000.0, amortize(360000, 0, 360), 0.001)
}
