package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// SourcePublicRecords is the canonical name of the public-records
// aggregator.
const SourcePublicRecords = "publicrecords"

const publicRecordsDefaultBaseURL = "https://publicrecords.example.com"

// publicRecordsPayload is the aggregator's JSON response shape.
type publicRecordsPayload struct {
	LotSqft      *float64 `json:"lot_sqft"`
	YearBuilt    *int     `json:"year_built"`
	GarageSpaces *int     `json:"garage_spaces"`
	HasPool      *bool    `json:"has_pool"`
	LivableSqft  *float64 `json:"livable_sqft"`
	SewerType    string   `json:"sewer_type"`
	SolarStatus  string   `json:"solar_status"`
}

// PublicRecords extracts county-grade facts from the public-records
// aggregator. It returns no images.
type PublicRecords struct {
	client  Fetcher
	baseURL string
	now     func() time.Time
}

// NewPublicRecords builds the extractor; empty baseURL takes production.
func NewPublicRecords(client Fetcher, baseURL string) *PublicRecords {
	if baseURL == "" {
		baseURL = publicRecordsDefaultBaseURL
	}

	return &PublicRecords{client: client, baseURL: baseURL, now: time.Now}
}

// Name implements Extractor.
func (p *PublicRecords) Name() string { return SourcePublicRecords }

// Extract implements Extractor.
func (p *PublicRecords) Extract(ctx context.Context, prop property.Property) Result {
	at := p.now().UTC()

	reqURL := fmt.Sprintf("%s/v1/parcels?address=%s", p.baseURL, url.QueryEscape(prop.FullAddress))

	code, body, err := p.client.Get(ctx, reqURL)
	if err != nil {
		return fetchFailure(SourcePublicRecords, err, at)
	}

	if blocker := ClassifyHTTP(code, body); blocker != BlockerNone {
		return failed(SourcePublicRecords, blocker, at)
	}

	var payload publicRecordsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return failed(SourcePublicRecords, BlockerParse, at)
	}

	fields := property.Fields{}

	if payload.LotSqft != nil {
		fields[property.FieldLotSqft] = *payload.LotSqft
	}

	if payload.YearBuilt != nil {
		fields[property.FieldYearBuilt] = *payload.YearBuilt
	}

	if payload.GarageSpaces != nil {
		fields[property.FieldGarageSpaces] = *payload.GarageSpaces
	}

	if payload.HasPool != nil {
		fields[property.FieldHasPool] = *payload.HasPool
	}

	if payload.LivableSqft != nil {
		fields[property.FieldLivableSqft] = *payload.LivableSqft
	}

	if property.SewerType(payload.SewerType).Valid() {
		fields[property.FieldSewerType] = payload.SewerType
	}

	if property.SolarStatus(payload.SolarStatus).Valid() {
		fields[property.FieldSolarStatus] = payload.SolarStatus
	}

	if len(fields) == 0 {
		return failed(SourcePublicRecords, BlockerParse, at)
	}

	return Result{
		Source:      SourcePublicRecords,
		Fields:      fields,
		Status:      StatusOK,
		Blocker:     BlockerNone,
		AttemptedAt: at,
	}
}
