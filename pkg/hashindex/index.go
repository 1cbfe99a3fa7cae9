// Package hashindex provides a Locality-Sensitive Hashing index over
// 64-bit perceptual image hashes for O(n) near-duplicate lookup.
//
// The 64-bit hash is split into contiguous equal-width bands in natural
// (most-significant-first) order; each band maintains a bucket map from
// band key to image-ID set. Candidates for a query are the union of its
// band buckets; only candidates are compared by full Hamming distance.
package hashindex

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

// HashBits is the width of the perceptual hashes held by the index.
const HashBits = 64

// Band counts supported by the index. 4 suits tiny datasets, 8 is the
// default for 100-10k images, 16 for larger corpora. Healthy buckets
// average 2-10 members with a maximum below 50.
const (
	MinBands     = 4
	DefaultBands = 8
	MaxBands     = 16
)

// DefaultThreshold is the maximum Hamming distance at which two hashes
// are considered duplicates.
const DefaultThreshold = 8

// Sentinel errors.
var (
	// ErrInvalidBands is returned when the band count does not evenly
	// divide the 64-bit hash.
	ErrInvalidBands = errors.New("hashindex: band count must be 4, 8, or 16")

	// ErrIDConflict is returned when an existing image ID is re-registered
	// with a different hash.
	ErrIDConflict = errors.New("hashindex: image id already registered with a different hash")

	// ErrHashConflict is returned when a new image ID carries a hash
	// identical to an already registered image.
	ErrHashConflict = errors.New("hashindex: identical hash already registered under another id")
)

// Entry is one registered image.
type Entry struct {
	ImageID string
	PHash   uint64
	DHash   uint64
	Address string
	Source  string
}

// Index is a thread-safe banded LSH index over perceptual hashes.
type Index struct {
	mu        sync.RWMutex
	bands     int
	bandBits  uint
	threshold int

	buckets   []map[uint64]map[string]struct{}
	entries   map[string]Entry
	byAddress map[string]map[string]struct{}
	bySource  map[string]int
}

// New creates an index with the given band count and Hamming threshold.
func New(bands, threshold int) (*Index, error) {
	switch bands {
	case MinBands, DefaultBands, MaxBands:
	default:
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBands, bands)
	}

	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	buckets := make([]map[uint64]map[string]struct{}, bands)
	for i := range buckets {
		buckets[i] = make(map[uint64]map[string]struct{})
	}

	return &Index{
		bands:     bands,
		bandBits:  uint(HashBits / bands),
		threshold: threshold,
		buckets:   buckets,
		entries:   make(map[string]Entry),
		byAddress: make(map[string]map[string]struct{}),
		bySource:  make(map[string]int),
	}, nil
}

// bandKey extracts band i of the hash in natural order: band 0 holds the
// most significant bits.
func (x *Index) bandKey(hash uint64, band int) uint64 {
	shift := uint(HashBits) - x.bandBits*uint(band+1)
	mask := uint64(1)<<x.bandBits - 1

	return (hash >> shift) & mask
}

// Register inserts an image into the index. Registering an identical
// id+hash pair again is a no-op; an existing id with a different hash is
// rejected, as is a new id whose hash exactly matches a stored image.
func (x *Index) Register(id string, phash, dhash uint64, address, source string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	existing, ok := x.entries[id]
	if ok {
		if existing.PHash == phash && existing.DHash == dhash {
			return nil
		}

		return fmt.Errorf("%w: %s", ErrIDConflict, id)
	}

	for band := range x.bands {
		bucket := x.buckets[band][x.bandKey(phash, band)]
		for candidate := range bucket {
			if x.entries[candidate].PHash == phash {
				return fmt.Errorf("%w: %s matches %s", ErrHashConflict, id, candidate)
			}
		}
	}

	x.entries[id] = Entry{ImageID: id, PHash: phash, DHash: dhash, Address: address, Source: source}

	for band := range x.bands {
		key := x.bandKey(phash, band)

		bucket := x.buckets[band][key]
		if bucket == nil {
			bucket = make(map[string]struct{})
			x.buckets[band][key] = bucket
		}

		bucket[id] = struct{}{}
	}

	scoped := x.byAddress[address]
	if scoped == nil {
		scoped = make(map[string]struct{})
		x.byAddress[address] = scoped
	}

	scoped[id] = struct{}{}
	x.bySource[source]++

	return nil
}

// Remove deletes an image from every band bucket and the scoped sets.
func (x *Index) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	entry, ok := x.entries[id]
	if !ok {
		return
	}

	for band := range x.bands {
		key := x.bandKey(entry.PHash, band)

		bucket := x.buckets[band][key]
		delete(bucket, id)

		if len(bucket) == 0 {
			delete(x.buckets[band], key)
		}
	}

	delete(x.entries, id)

	scoped := x.byAddress[entry.Address]

	delete(scoped, id)

	if len(scoped) == 0 {
		delete(x.byAddress, entry.Address)
	}

	x.bySource[entry.Source]--
	if x.bySource[entry.Source] <= 0 {
		delete(x.bySource, entry.Source)
	}
}

// IsDuplicate reports whether any registered image lies within the
// Hamming threshold of the query hash, returning the original image ID.
// Never returns a false positive beyond the threshold guarantee.
func (x *Index) IsDuplicate(phash uint64) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	seen := make(map[string]struct{})

	for band := range x.bands {
		for candidate := range x.buckets[band][x.bandKey(phash, band)] {
			seen[candidate] = struct{}{}
		}
	}

	return x.nearestLocked(phash, seen)
}

// IsDuplicateForAddress checks only the images registered for one
// property. The per-property set is small, so the comparison is exact.
func (x *Index) IsDuplicateForAddress(phash uint64, address string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	return x.nearestLocked(phash, x.byAddress[address])
}

// nearestLocked returns the candidate with minimum Hamming distance
// within the threshold. Must be called with mu held.
func (x *Index) nearestLocked(phash uint64, candidates map[string]struct{}) (string, bool) {
	bestID := ""
	bestDist := x.threshold + 1

	for id := range candidates {
		dist := bits.OnesCount64(x.entries[id].PHash ^ phash)
		if dist < bestDist || (dist == bestDist && (bestID == "" || id < bestID)) {
			bestID = id
			bestDist = dist
		}
	}

	if bestDist > x.threshold {
		return "", false
	}

	return bestID, true
}

// Entry returns the stored entry for an image ID.
func (x *Index) Entry(id string) (Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	entry, ok := x.entries[id]

	return entry, ok
}

// Threshold returns the configured Hamming threshold.
func (x *Index) Threshold() int {
	return x.threshold
}
