// Package report renders batch artifacts: the ranked CSV, the console
// batch summary, per-property report files, and the manifest and
// lineage JSON documents.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

// WriteRanked streams the ranked CSV: every property that reached
// synthesis, ordered by total score descending. FAILED-tier rows are
// included so a reader sees why a property dropped out; strict mode
// omits them entirely.
func WriteRanked(w io.Writer, store *state.Store, props []property.Property, strict bool) error {
	type row struct {
		prop property.Property
		rec  *property.Record
	}

	rows := make([]row, 0, len(props))

	for _, prop := range props {
		item, ok := store.Item(prop.FullAddress)
		if !ok || item.Status(state.PhaseSynthesis) != state.StatusComplete {
			continue
		}

		rec, ok := store.Record(prop.FullAddress)
		if !ok {
			continue
		}

		if strict && rec.Tier == property.TierFailed {
			continue
		}

		rows = append(rows, row{prop: prop, rec: rec})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].rec.TotalScore > rows[j].rec.TotalScore
	})

	rw, err := property.NewRankedWriter(w)
	if err != nil {
		return fmt.Errorf("ranked csv: %w", err)
	}

	for _, r := range rows {
		err = rw.WriteRow(r.prop, r.rec)
		if err != nil {
			return fmt.Errorf("ranked csv: %w", err)
		}
	}

	return rw.Flush()
}
