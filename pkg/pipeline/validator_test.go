package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

func TestBlockedError_Message(t *testing.T) {
	t.Parallel()

	err := &BlockedError{Reason: "image folder empty"}
	assert.Equal(t, "BLOCKED: image folder empty", err.Error())
}

func TestValidateRecord_AcceptsFreshRecord(t *testing.T) {
	t.Parallel()

	rec := property.NewRecord(testAddress)
	require.NoError(t, ValidateRecord(rec))
}

func TestValidateRecord_RejectsOutOfRangeScore(t *testing.T) {
	t.Parallel()

	rec := property.NewRecord(testAddress)
	bad := 11.0
	rec.SchoolRating = &bad

	require.Error(t, ValidateRecord(rec))
}

func TestValidateRecord_RejectsLegacySchemaVersion(t *testing.T) {
	t.Parallel()

	rec := property.NewRecord(testAddress)
	rec.SchemaVersion = 1

	require.Error(t, ValidateRecord(rec))
}

func TestCheckFieldCoverage_FlagsOrphans(t *testing.T) {
	t.Parallel()

	orphans, err := CheckFieldCoverage(property.Fields{
		property.FieldBeds:    4,
		property.FieldHOAFee:  0.0,
		"zestimate":           455000.0,
		"listing_agent_phone": "602-555-0100",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"listing_agent_phone", "zestimate"}, orphans)
}

func TestCheckFieldCoverage_AllDeclaredIsClean(t *testing.T) {
	t.Parallel()

	fields := make(property.Fields)
	for _, name := range property.DeclaredFields() {
		fields[name] = 1.0
	}

	orphans, err := CheckFieldCoverage(fields)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}
