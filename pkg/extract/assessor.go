package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// SourceAssessor is the canonical name of the county assessor API, the
// authoritative source for parcel facts.
const SourceAssessor = "assessor"

const assessorDefaultBaseURL = "https://mcassessor.maricopa.gov"

// assessorParcel is the assessor API's parcel response.
type assessorParcel struct {
	APN          string   `json:"apn"`
	LotSqft      *float64 `json:"lot_size"`
	LivableSqft  *float64 `json:"livable_space"`
	YearBuilt    *int     `json:"construction_year"`
	GarageSpaces *int     `json:"covered_parking"`
	Pool         *bool    `json:"pool"`
	SewerNote    string   `json:"sewer"`
}

// Assessor extracts the county assessor REST API. Requests carry the
// API token from configuration; the assessor never serves images.
type Assessor struct {
	client  Fetcher
	baseURL string
	token   string
	now     func() time.Time
}

// NewAssessor builds the extractor; empty baseURL takes production.
func NewAssessor(client Fetcher, baseURL, token string) *Assessor {
	if baseURL == "" {
		baseURL = assessorDefaultBaseURL
	}

	return &Assessor{client: client, baseURL: baseURL, token: token, now: time.Now}
}

// Name implements Extractor.
func (a *Assessor) Name() string { return SourceAssessor }

// Extract implements Extractor.
func (a *Assessor) Extract(ctx context.Context, prop property.Property) Result {
	at := a.now().UTC()

	reqURL := fmt.Sprintf("%s/parcel/search?q=%s", a.baseURL, url.QueryEscape(prop.FullAddress))

	code, body, err := a.client.GetWithHeaders(ctx, reqURL, map[string]string{
		"AUTHORIZATION": a.token,
		"Accept":        "application/json",
	})
	if err != nil {
		return fetchFailure(SourceAssessor, err, at)
	}

	if blocker := ClassifyHTTP(code, body); blocker != BlockerNone {
		return failed(SourceAssessor, blocker, at)
	}

	var parcel assessorParcel
	if err := json.Unmarshal(body, &parcel); err != nil {
		return failed(SourceAssessor, BlockerParse, at)
	}

	fields := property.Fields{}

	if parcel.LotSqft != nil {
		fields[property.FieldLotSqft] = *parcel.LotSqft
	}

	if parcel.LivableSqft != nil {
		fields[property.FieldLivableSqft] = *parcel.LivableSqft
	}

	if parcel.YearBuilt != nil {
		fields[property.FieldYearBuilt] = *parcel.YearBuilt
	}

	if parcel.GarageSpaces != nil {
		fields[property.FieldGarageSpaces] = *parcel.GarageSpaces
	}

	if parcel.Pool != nil {
		fields[property.FieldHasPool] = *parcel.Pool
	}

	if sewer := classifySewerNote(parcel.SewerNote); sewer != property.SewerUnknown {
		fields[property.FieldSewerType] = string(sewer)
	}

	if parcel.APN != "" {
		fields["apn"] = parcel.APN
	}

	if len(fields) == 0 {
		return failed(SourceAssessor, BlockerParse, at)
	}

	return Result{
		Source:      SourceAssessor,
		Fields:      fields,
		Status:      StatusOK,
		Blocker:     BlockerNone,
		AttemptedAt: at,
	}
}

// classifySewerNote maps the assessor's free-text sewer note onto the
// typed enum. "septic" is checked first: notes like "no sewer - septic
// tank" mention both words.
func classifySewerNote(note string) property.SewerType {
	note = strings.ToLower(note)

	switch {
	case strings.Contains(note, "septic"):
		return property.SewerSeptic
	case strings.Contains(note, "sewer") || strings.Contains(note, "city") || strings.Contains(note, "municipal"):
		return property.SewerCity
	default:
		return property.SewerUnknown
	}
}
