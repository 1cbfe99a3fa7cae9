package hashindex

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/persist"
)

// indexSchemaVersion guards the persisted index shape.
const indexSchemaVersion = 1

// hexWidth is the storage width of a 64-bit hash: 16 big-endian hex chars.
const hexWidth = 16

// ErrSchemaVersion is returned when a persisted index carries an
// unsupported schema version.
var ErrSchemaVersion = errors.New("hashindex: unsupported schema version")

// persistedEntry is the on-disk form of one image. Hashes are stored as
// 64-bit big-endian hex.
type persistedEntry struct {
	ImageID string `json:"image_id"`
	PHash   string `json:"phash"`
	DHash   string `json:"dhash"`
	Address string `json:"address"`
	Source  string `json:"source"`
}

// document is the on-disk index shape. Band buckets are not persisted;
// they are rebuilt from the entry list on load.
type document struct {
	SchemaVersion int              `json:"schema_version"`
	Bands         int              `json:"bands"`
	Threshold     int              `json:"threshold"`
	Entries       []persistedEntry `json:"entries"`
}

// FormatHash renders a 64-bit hash in its storage form.
func FormatHash(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}

// ParseHash parses the 16-char big-endian hex storage form.
func ParseHash(s string) (uint64, error) {
	if len(s) != hexWidth {
		return 0, fmt.Errorf("hashindex: hash %q is not %d hex chars", s, hexWidth)
	}

	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("hashindex: parse hash %q: %w", s, err)
	}

	return v, nil
}

// Save persists the index atomically to path.
func (x *Index) Save(path string, codec persist.Codec) error {
	x.mu.RLock()

	doc := document{
		SchemaVersion: indexSchemaVersion,
		Bands:         x.bands,
		Threshold:     x.threshold,
		Entries:       make([]persistedEntry, 0, len(x.entries)),
	}

	for _, entry := range x.entries {
		doc.Entries = append(doc.Entries, persistedEntry{
			ImageID: entry.ImageID,
			PHash:   FormatHash(entry.PHash),
			DHash:   FormatHash(entry.DHash),
			Address: entry.Address,
			Source:  entry.Source,
		})
	}

	x.mu.RUnlock()

	sort.Slice(doc.Entries, func(i, j int) bool {
		return doc.Entries[i].ImageID < doc.Entries[j].ImageID
	})

	err := persist.SaveAtomic(path, codec, &doc)
	if err != nil {
		return fmt.Errorf("save hash index: %w", err)
	}

	return nil
}

// Load reads a persisted index from path, rebuilding all band buckets.
// A missing file yields an empty index with the given parameters.
func Load(path string, codec persist.Codec, bands, threshold int) (*Index, error) {
	var doc document

	err := persist.LoadWithFallback(path, codec, &doc)
	if errors.Is(err, os.ErrNotExist) {
		return New(bands, threshold)
	}

	if err != nil {
		return nil, fmt.Errorf("load hash index: %w", err)
	}

	if doc.SchemaVersion != indexSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrSchemaVersion, doc.SchemaVersion)
	}

	idx, err := New(doc.Bands, doc.Threshold)
	if err != nil {
		return nil, err
	}

	for _, entry := range doc.Entries {
		phash, parseErr := ParseHash(entry.PHash)
		if parseErr != nil {
			return nil, parseErr
		}

		dhash, parseErr := ParseHash(entry.DHash)
		if parseErr != nil {
			return nil, parseErr
		}

		regErr := idx.Register(entry.ImageID, phash, dhash, entry.Address, entry.Source)
		if regErr != nil {
			return nil, fmt.Errorf("rebuild hash index: %w", regErr)
		}
	}

	return idx, nil
}
