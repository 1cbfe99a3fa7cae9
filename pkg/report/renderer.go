package report

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/persist"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// propertyReport is the per-property report document. The headline
// block duplicates the derived fields so a reader never has to dig
// through the full record for the verdict.
type propertyReport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Address     string            `json:"address"`
	Verdict     property.Verdict  `json:"verdict"`
	Tier        property.Tier     `json:"tier"`
	TotalScore  float64           `json:"total_score"`
	MonthlyCost *float64          `json:"monthly_cost,omitempty"`
	Property    property.Property `json:"property"`
	Record      *property.Record  `json:"record"`
}

// PropertyRenderer writes one JSON report per property into a
// directory, named by the address hash.
type PropertyRenderer struct {
	dir   string
	codec persist.Codec
	now   func() time.Time
}

// NewPropertyRenderer creates a renderer targeting dir.
func NewPropertyRenderer(dir string) *PropertyRenderer {
	return &PropertyRenderer{
		dir:   dir,
		codec: persist.NewJSONCodec(),
		now:   time.Now,
	}
}

// Render writes the property's report atomically.
func (r *PropertyRenderer) Render(_ context.Context, prop property.Property, rec *property.Record) error {
	doc := propertyReport{
		GeneratedAt: r.now().UTC(),
		Address:     prop.FullAddress,
		Verdict:     rec.KillSwitchVerdict,
		Tier:        rec.Tier,
		TotalScore:  rec.TotalScore,
		MonthlyCost: rec.MonthlyCost,
		Property:    prop,
		Record:      rec,
	}

	path := filepath.Join(r.dir, property.AddressHash(prop.FullAddress)+".json")

	err := persist.SaveAtomic(path, r.codec, &doc)
	if err != nil {
		return fmt.Errorf("render property report: %w", err)
	}

	return nil
}
