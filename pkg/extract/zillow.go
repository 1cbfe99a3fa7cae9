package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// SourceZillow is the canonical name of listing site A.
const SourceZillow = "zillow"

const zillowDefaultBaseURL = "https://www.zillow.com"

// zillowFullResTemplate is the full-resolution asset path. The hex token
// is the monotonically increasing image identity embedded in every
// thumbnail URL.
const zillowFullResTemplate = "https://photos.zillowstatic.com/fp/%s-uncropped_scaled_within_1536_1152.jpg"

// zillowThumbRe matches gallery thumbnail URLs and captures the image
// identity token.
var zillowThumbRe = regexp.MustCompile(`https://photos\.zillowstatic\.com/fp/([0-9a-f]+)-cc_ft_\d+\.(?:jpg|webp)`)

// Key-scoped numeric scrapes over the embedded listing JSON.
var (
	zillowPriceRe = regexp.MustCompile(`"price"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	zillowBedsRe  = regexp.MustCompile(`"bedrooms"\s*:\s*([0-9]+)`)
	zillowBathsRe = regexp.MustCompile(`"bathrooms"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	zillowSqftRe  = regexp.MustCompile(`"livingArea"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	zillowLotRe   = regexp.MustCompile(`"lotSize"\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	zillowYearRe  = regexp.MustCompile(`"yearBuilt"\s*:\s*([0-9]{4})`)
	zillowHOARe   = regexp.MustCompile(`"monthlyHoaFee"\s*:\s*([0-9]+(?:\.[0-9]+)?|null)`)
	zillowDescRe  = regexp.MustCompile(`"description"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// Zillow extracts listing site A: gallery photos plus listing-level
// facts.
type Zillow struct {
	client  Fetcher
	baseURL string
	now     func() time.Time
}

// NewZillow builds the extractor. An empty baseURL takes the production
// endpoint; tests point it at a local fixture server.
func NewZillow(client Fetcher, baseURL string) *Zillow {
	if baseURL == "" {
		baseURL = zillowDefaultBaseURL
	}

	return &Zillow{client: client, baseURL: baseURL, now: time.Now}
}

// Name implements Extractor.
func (z *Zillow) Name() string { return SourceZillow }

// Extract implements Extractor.
func (z *Zillow) Extract(ctx context.Context, prop property.Property) Result {
	at := z.now().UTC()

	pageURL := fmt.Sprintf("%s/homes/%s_rb/", z.baseURL, url.PathEscape(addressSlug(prop.FullAddress)))

	code, body, err := z.client.Get(ctx, pageURL)
	if err != nil {
		return fetchFailure(SourceZillow, err, at)
	}

	if blocker := ClassifyHTTP(code, body); blocker != BlockerNone {
		return failed(SourceZillow, blocker, at)
	}

	fields := parseZillowFields(body)
	images := parseZillowImages(body)

	status := grade(fields, images)
	if status == StatusFailed {
		return failed(SourceZillow, BlockerParse, at)
	}

	return Result{
		Source:      SourceZillow,
		Images:      images,
		Fields:      fields,
		Status:      status,
		Blocker:     BlockerNone,
		AttemptedAt: at,
	}
}

// parseZillowImages collects gallery thumbnails in page order, derives
// the full-resolution URL for each distinct image identity, and never
// keeps the thumbnail itself.
func parseZillowImages(body []byte) []ImageAsset {
	var (
		images []ImageAsset
		seen   = make(map[string]struct{})
	)

	for _, m := range zillowThumbRe.FindAllSubmatch(body, -1) {
		id := string(m[1])
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}

		images = append(images, ImageAsset{
			URL:    fmt.Sprintf(zillowFullResTemplate, id),
			Source: SourceZillow,
		})
	}

	return images
}

func parseZillowFields(body []byte) property.Fields {
	fields := property.Fields{}

	putFloat(fields, property.FieldPrice, firstMatch(zillowPriceRe, body))
	putInt(fields, property.FieldBeds, firstMatch(zillowBedsRe, body))
	putFloat(fields, property.FieldBaths, firstMatch(zillowBathsRe, body))
	putFloat(fields, property.FieldSqft, firstMatch(zillowSqftRe, body))
	putFloat(fields, property.FieldLotSqft, firstMatch(zillowLotRe, body))
	putInt(fields, property.FieldYearBuilt, firstMatch(zillowYearRe, body))

	if raw := firstMatch(zillowHOARe, body); raw != "" && raw != "null" {
		putFloat(fields, property.FieldHOAFee, raw)
	}

	if m := zillowDescRe.FindSubmatch(body); m != nil {
		if desc := unescapeJSONString(string(m[1])); desc != "" {
			fields[property.FieldDescription] = desc
		}
	}

	if len(fields) == 0 {
		return nil
	}

	return fields
}

// addressSlug renders an address the way listing-site URLs expect:
// dash-separated, commas dropped.
func addressSlug(address string) string {
	slug := strings.ReplaceAll(address, ",", "")
	slug = strings.Join(strings.Fields(slug), "-")

	return slug
}

func firstMatch(re *regexp.Regexp, body []byte) string {
	m := re.FindSubmatch(body)
	if m == nil {
		return ""
	}

	return string(m[1])
}

func putFloat(fields property.Fields, name, raw string) {
	if raw == "" {
		return
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		fields[name] = v
	}
}

func putInt(fields property.Fields, name, raw string) {
	if raw == "" {
		return
	}

	if v, err := strconv.Atoi(raw); err == nil {
		fields[name] = v
	}
}

// unescapeJSONString resolves the escapes regexp capture leaves behind.
func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}

	return out
}
