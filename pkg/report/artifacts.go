package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/persist"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/pipeline"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

// manifestDocument is the on-disk image-manifest aggregation.
type manifestDocument struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Manifests   []pipeline.ImageManifest `json:"manifests"`
}

// LineageEntry records one field's provenance for the lineage export.
type LineageEntry struct {
	Address    string              `json:"address"`
	Field      string              `json:"field"`
	SourceID   string              `json:"source_id"`
	Kind       property.SourceKind `json:"kind"`
	FetchedAt  time.Time           `json:"fetched_at"`
	Confidence float64             `json:"confidence"`
}

type lineageDocument struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Entries     []LineageEntry `json:"entries"`
}

type lookupDocument struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Folders     map[string]string `json:"folders"`
}

var artifactCodec = persist.NewJSONCodec()

// WriteImageManifests persists the per-run manifest aggregation.
func WriteImageManifests(path string, manifests []pipeline.ImageManifest) error {
	doc := manifestDocument{GeneratedAt: time.Now().UTC(), Manifests: manifests}

	err := persist.SaveAtomic(path, artifactCodec, &doc)
	if err != nil {
		return fmt.Errorf("write image manifests: %w", err)
	}

	return nil
}

// WriteFieldLineage exports every populated field's provenance, sorted
// by address then field for stable diffs.
func WriteFieldLineage(path string, store *state.Store) error {
	var entries []LineageEntry

	for _, item := range store.Items() {
		rec, ok := store.Record(item.Address)
		if !ok {
			continue
		}

		for field, prov := range rec.Provenance {
			entries = append(entries, LineageEntry{
				Address:    item.Address,
				Field:      field,
				SourceID:   prov.SourceID,
				Kind:       prov.Kind,
				FetchedAt:  prov.FetchedAt,
				Confidence: prov.Confidence,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Address != entries[j].Address {
			return entries[i].Address < entries[j].Address
		}

		return entries[i].Field < entries[j].Field
	})

	doc := lineageDocument{GeneratedAt: time.Now().UTC(), Entries: entries}

	err := persist.SaveAtomic(path, artifactCodec, &doc)
	if err != nil {
		return fmt.Errorf("write field lineage: %w", err)
	}

	return nil
}

// WriteAddressLookup exports the address-to-artifact-folder map so
// humans can find a property's images without hashing by hand.
func WriteAddressLookup(path string, store *state.Store) error {
	folders := make(map[string]string)

	for _, item := range store.Items() {
		folders[item.Address] = property.AddressHash(item.Address)
	}

	doc := lookupDocument{GeneratedAt: time.Now().UTC(), Folders: folders}

	err := persist.SaveAtomic(path, artifactCodec, &doc)
	if err != nil {
		return fmt.Errorf("write address lookup: %w", err)
	}

	return nil
}
