package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/extract"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// ErrCountyUnavailable is returned when no county source yields any
// parcel data for an address.
var ErrCountyUnavailable = errors.New("county data unavailable")

// countyClient satisfies pipeline.CountyClient by consulting county
// extractors in priority order. The assessor API is authoritative; the
// public-records fallback only fills fields the assessor left empty.
type countyClient struct {
	sources []extract.Extractor
}

func newCountyClient(sources ...extract.Extractor) *countyClient {
	return &countyClient{sources: sources}
}

// Lookup queries each source in order, first writer wins per field. A
// tripping blocker aborts immediately; an empty union is an error so
// the county phase records a retryable failure.
func (c *countyClient) Lookup(ctx context.Context, prop property.Property) (property.Fields, error) {
	merged := property.Fields{}

	var lastBlocker extract.Blocker

	for _, src := range c.sources {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		res := src.Extract(ctx, prop)

		if res.Blocker.Tripping() {
			return nil, fmt.Errorf("county source %s blocked: %s", src.Name(), res.Blocker)
		}

		if res.Status == extract.StatusFailed {
			lastBlocker = res.Blocker

			continue
		}

		for field, value := range res.Fields {
			if _, ok := merged[field]; !ok {
				merged[field] = value
			}
		}
	}

	if len(merged) == 0 {
		if lastBlocker != "" {
			return nil, fmt.Errorf("%w: %s", ErrCountyUnavailable, lastBlocker)
		}

		return nil, ErrCountyUnavailable
	}

	return merged, nil
}
