package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/extract"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/pipeline"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

func TestExitCode_MapsErrorTaxonomy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("anything else")))
	assert.Equal(t, ExitCorruptState,
		ExitCode(&state.CorruptStateError{Path: "work.json", Err: errors.New("truncated")}))
	assert.Equal(t, ExitSourcesBlocked,
		ExitCode(pipeline.ErrSourcesBlocked))
}

func TestExitCode_UnwrapsWrappedErrors(t *testing.T) {
	t.Parallel()

	wrapped := errors.Join(errors.New("batch"), pipeline.ErrSourcesBlocked)
	assert.Equal(t, ExitSourcesBlocked, ExitCode(wrapped))
}

const propertiesCSV = `street,city,state,zip,price,price_num,beds,baths,sqft,price_per_sqft,full_address
100 E Test Ave,Phoenix,AZ,85004,"$450,000",450000,4,2,1800,250,100 E TEST AVE PHOENIX AZ 85004
200 W Demo St,Phoenix,AZ,85007,"$500,000",500000,4,2.5,2000,250,200 W DEMO ST PHOENIX AZ 85007
300 N Third Rd,Phoenix,AZ,85008,"$400,000",400000,3,2,1600,250,300 N THIRD RD PHOENIX AZ 85008
400 S Fourth Ln,Phoenix,AZ,85009,"$425,000",425000,4,2,1700,250,400 S FOURTH LN PHOENIX AZ 85009
500 E Fifth Pl,Phoenix,AZ,85010,"$475,000",475000,5,3,2200,216,500 E FIFTH PL PHOENIX AZ 85010
600 W Sixth Way,Phoenix,AZ,85011,"$460,000",460000,4,2,1900,242,600 W SIXTH WAY PHOENIX AZ 85011
`

func writePropertiesCSV(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "phx_homes.csv")
	require.NoError(t, os.WriteFile(path, []byte(propertiesCSV), 0o600))

	return path
}

func TestLoadProperties_ReadsAllRows(t *testing.T) {
	t.Parallel()

	props, err := loadProperties(writePropertiesCSV(t))
	require.NoError(t, err)
	require.Len(t, props, 6)
	assert.Equal(t, "100 E TEST AVE PHOENIX AZ 85004", props[0].FullAddress)
	assert.InDelta(t, 450000, props[0].PriceNum, 0.001)
}

func TestLoadProperties_MissingFileIsInputError(t *testing.T) {
	t.Parallel()

	_, err := loadProperties(filepath.Join(t.TempDir(), "absent.csv"))
	require.ErrorIs(t, err, ErrInputCSVRequired)
}

func TestSelectProperties_AddressNormalizesBeforeMatch(t *testing.T) {
	t.Parallel()

	props, err := loadProperties(writePropertiesCSV(t))
	require.NoError(t, err)

	selected, err := selectProperties(props, []string{"100 e test ave phoenix az 85004"}, false, false)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "100 E TEST AVE PHOENIX AZ 85004", selected[0].FullAddress)
}

func TestSelectProperties_UnknownAddress(t *testing.T) {
	t.Parallel()

	props, err := loadProperties(writePropertiesCSV(t))
	require.NoError(t, err)

	_, err = selectProperties(props, []string{"999 NOWHERE CT PHOENIX AZ 85000"}, false, false)
	require.ErrorIs(t, err, ErrAddressNotFound)
}

func TestSelectProperties_TestTakesFirstFive(t *testing.T) {
	t.Parallel()

	props, err := loadProperties(writePropertiesCSV(t))
	require.NoError(t, err)

	selected, err := selectProperties(props, nil, false, true)
	require.NoError(t, err)
	assert.Len(t, selected, testBatchSize)

	all, err := selectProperties(props, nil, true, false)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestSelectProperties_NoSelectionIsAnError(t *testing.T) {
	t.Parallel()

	_, err := selectProperties(nil, nil, false, false)
	require.ErrorIs(t, err, ErrNoSelection)
}

// scriptedSource is a canned extractor for county-adapter tests.
type scriptedSource struct {
	name string
	res  extract.Result
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Extract(_ context.Context, _ property.Property) extract.Result {
	return s.res
}

func TestCountyClient_FirstWriterWinsAcrossSources(t *testing.T) {
	t.Parallel()

	assessor := &scriptedSource{name: "assessor", res: extract.Result{
		Status: extract.StatusOK,
		Fields: property.Fields{"lot_sqft": 9000.0, "year_built": 1999},
	}}
	records := &scriptedSource{name: "publicrecords", res: extract.Result{
		Status: extract.StatusOK,
		Fields: property.Fields{"lot_sqft": 9400.0, "garage_spaces": 2},
	}}

	fields, err := newCountyClient(assessor, records).Lookup(context.Background(), property.Property{})
	require.NoError(t, err)

	assert.Equal(t, 9000.0, fields["lot_sqft"], "assessor value wins")
	assert.Equal(t, 1999, fields["year_built"])
	assert.Equal(t, 2, fields["garage_spaces"], "fallback fills the gap")
}

func TestCountyClient_FallbackCoversFailedPrimary(t *testing.T) {
	t.Parallel()

	assessor := &scriptedSource{name: "assessor", res: extract.Result{
		Status: extract.StatusFailed, Blocker: extract.BlockerNetwork,
	}}
	records := &scriptedSource{name: "publicrecords", res: extract.Result{
		Status: extract.StatusOK,
		Fields: property.Fields{"lot_sqft": 9400.0},
	}}

	fields, err := newCountyClient(assessor, records).Lookup(context.Background(), property.Property{})
	require.NoError(t, err)
	assert.Equal(t, 9400.0, fields["lot_sqft"])
}

func TestCountyClient_AllFailedIsUnavailable(t *testing.T) {
	t.Parallel()

	down := &scriptedSource{name: "assessor", res: extract.Result{
		Status: extract.StatusFailed, Blocker: extract.BlockerNotFound,
	}}

	_, err := newCountyClient(down).Lookup(context.Background(), property.Property{})
	require.ErrorIs(t, err, ErrCountyUnavailable)
}

func TestCountyClient_TrippingBlockerAborts(t *testing.T) {
	t.Parallel()

	limited := &scriptedSource{name: "assessor", res: extract.Result{
		Status: extract.StatusFailed, Blocker: extract.BlockerRateLimited,
	}}
	records := &scriptedSource{name: "publicrecords", res: extract.Result{
		Status: extract.StatusOK,
		Fields: property.Fields{"lot_sqft": 9400.0},
	}}

	_, err := newCountyClient(limited, records).Lookup(context.Background(), property.Property{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limited")
}
