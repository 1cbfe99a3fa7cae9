package report

import (
	"io"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/breaker"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/pipeline"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

// Summary aggregates one batch run for the console report.
type Summary struct {
	Attempted int
	Completed int
	Failed    int

	Tiers    map[property.Tier]int
	Verdicts map[property.Verdict]int

	ImagesStored       int
	DuplicatesRejected int
	BytesStored        uint64

	Sources map[string]breaker.SourceState
}

// BuildSummary derives the batch summary from the run result, the
// state store, and the image manifests.
func BuildSummary(
	res pipeline.BatchResult,
	store *state.Store,
	manifests []pipeline.ImageManifest,
	breakers *breaker.Manager,
	processedRoot string,
) Summary {
	s := Summary{
		Attempted: res.Attempted,
		Completed: res.Completed,
		Failed:    res.Failed,
		Tiers:     make(map[property.Tier]int),
		Verdicts:  make(map[property.Verdict]int),
	}

	for _, item := range store.Items() {
		rec, ok := store.Record(item.Address)
		if !ok {
			continue
		}

		if rec.Tier != "" {
			s.Tiers[rec.Tier]++
		}

		if rec.KillSwitchVerdict != "" {
			s.Verdicts[rec.KillSwitchVerdict]++
		}
	}

	for _, m := range manifests {
		s.ImagesStored += len(m.Images)
		s.DuplicatesRejected += m.DuplicatesRejected
	}

	if processedRoot != "" {
		s.BytesStored = dirSize(processedRoot)
	}

	if breakers != nil {
		s.Sources = breakers.Snapshot()
	}

	return s
}

// Render writes the human-readable batch summary.
func (s Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRows([]table.Row{
		{"properties attempted", humanize.Comma(int64(s.Attempted))},
		{"completed", humanize.Comma(int64(s.Completed))},
		{"failed", humanize.Comma(int64(s.Failed))},
		{"images stored", humanize.Comma(int64(s.ImagesStored))},
		{"duplicates rejected", humanize.Comma(int64(s.DuplicatesRejected))},
		{"image bytes", humanize.Bytes(s.BytesStored)},
	})
	t.Render()

	if len(s.Tiers) > 0 {
		tiers := table.NewWriter()
		tiers.SetOutputMirror(w)
		tiers.SetStyle(table.StyleLight)
		tiers.AppendHeader(table.Row{"tier", "count"})

		for _, tier := range []property.Tier{
			property.TierUnicorn, property.TierContender, property.TierPass, property.TierFailed,
		} {
			if n := s.Tiers[tier]; n > 0 {
				tiers.AppendRow(table.Row{colorTier(tier), n})
			}
		}

		tiers.Render()
	}

	if len(s.Sources) > 0 {
		sources := table.NewWriter()
		sources.SetOutputMirror(w)
		sources.SetStyle(table.StyleLight)
		sources.AppendHeader(table.Row{"source", "circuit", "requests", "skipped"})

		names := make([]string, 0, len(s.Sources))
		for name := range s.Sources {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			st := s.Sources[name]
			sources.AppendRow(table.Row{name, colorCircuit(st.State), st.TotalRequests, st.Skipped})
		}

		sources.Render()
	}
}

func colorTier(tier property.Tier) string {
	switch tier {
	case property.TierUnicorn:
		return color.MagentaString(string(tier))
	case property.TierContender:
		return color.CyanString(string(tier))
	case property.TierPass:
		return color.GreenString(string(tier))
	case property.TierFailed:
		return color.RedString(string(tier))
	default:
		return string(tier)
	}
}

func colorCircuit(circuitState string) string {
	if circuitState == "closed" {
		return color.GreenString(circuitState)
	}

	return color.RedString(circuitState)
}

func dirSize(root string) uint64 {
	var total uint64

	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr == nil {
			total += uint64(info.Size())
		}

		return nil
	})

	return total
}
