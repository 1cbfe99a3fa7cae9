package extract

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// SourceRedfin is the canonical name of listing site B.
const SourceRedfin = "redfin"

const redfinDefaultBaseURL = "https://www.redfin.com"

// redfinThumbRe matches mid-size gallery photo URLs. The capture groups
// carry the CDN shard, the listing photo set, and the sequential photo
// identity.
var redfinThumbRe = regexp.MustCompile(`https://ssl\.cdn-redfin\.com/photo/(\d+)/mbphoto/(\d+)/genMid\.([A-Za-z0-9_]+)\.jpg`)

// Redfin listing facts embedded in the page payload.
var (
	redfinPriceRe = regexp.MustCompile(`"price"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	redfinBedsRe  = regexp.MustCompile(`"beds"\s*:\s*([0-9]+)`)
	redfinBathsRe = regexp.MustCompile(`"baths"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	redfinSqftRe  = regexp.MustCompile(`"sqFt"\s*:\s*\{\s*"value"\s*:\s*([0-9]+)`)
	redfinYearRe  = regexp.MustCompile(`"yearBuilt"\s*:\s*\{\s*"value"\s*:\s*([0-9]{4})`)
	redfinHOARe   = regexp.MustCompile(`"hoaDues"\s*:\s*\{\s*"value"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	redfinLotRe   = regexp.MustCompile(`"lotSqFt"\s*:\s*([0-9]+)`)
)

// Redfin extracts listing site B.
type Redfin struct {
	client  Fetcher
	baseURL string
	now     func() time.Time
}

// NewRedfin builds the extractor; empty baseURL takes production.
func NewRedfin(client Fetcher, baseURL string) *Redfin {
	if baseURL == "" {
		baseURL = redfinDefaultBaseURL
	}

	return &Redfin{client: client, baseURL: baseURL, now: time.Now}
}

// Name implements Extractor.
func (r *Redfin) Name() string { return SourceRedfin }

// Extract implements Extractor.
func (r *Redfin) Extract(ctx context.Context, prop property.Property) Result {
	at := r.now().UTC()

	pageURL := fmt.Sprintf("%s/AZ/Phoenix/%s", r.baseURL, url.PathEscape(addressSlug(prop.FullAddress)))

	code, body, err := r.client.Get(ctx, pageURL)
	if err != nil {
		return fetchFailure(SourceRedfin, err, at)
	}

	if blocker := ClassifyHTTP(code, body); blocker != BlockerNone {
		return failed(SourceRedfin, blocker, at)
	}

	fields := parseRedfinFields(body)
	images := parseRedfinImages(body)

	status := grade(fields, images)
	if status == StatusFailed {
		return failed(SourceRedfin, BlockerParse, at)
	}

	return Result{
		Source:      SourceRedfin,
		Images:      images,
		Fields:      fields,
		Status:      status,
		Blocker:     BlockerNone,
		AttemptedAt: at,
	}
}

// parseRedfinImages rewrites each distinct genMid thumbnail to its
// genHiRes sibling on the same CDN path; the thumbnail is never kept.
func parseRedfinImages(body []byte) []ImageAsset {
	var (
		images []ImageAsset
		seen   = make(map[string]struct{})
	)

	for _, m := range redfinThumbRe.FindAllSubmatch(body, -1) {
		shard, set, id := string(m[1]), string(m[2]), string(m[3])
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}

		images = append(images, ImageAsset{
			URL:    fmt.Sprintf("https://ssl.cdn-redfin.com/photo/%s/bigphoto/%s/genHiRes.%s.jpg", shard, set, id),
			Source: SourceRedfin,
		})
	}

	return images
}

func parseRedfinFields(body []byte) property.Fields {
	fields := property.Fields{}

	putFloat(fields, property.FieldPrice, firstMatch(redfinPriceRe, body))
	putInt(fields, property.FieldBeds, firstMatch(redfinBedsRe, body))
	putFloat(fields, property.FieldBaths, firstMatch(redfinBathsRe, body))
	putFloat(fields, property.FieldSqft, firstMatch(redfinSqftRe, body))
	putInt(fields, property.FieldYearBuilt, firstMatch(redfinYearRe, body))
	putFloat(fields, property.FieldHOAFee, firstMatch(redfinHOARe, body))
	putFloat(fields, property.FieldLotSqft, firstMatch(redfinLotRe, body))

	if len(fields) == 0 {
		return nil
	}

	return fields
}
