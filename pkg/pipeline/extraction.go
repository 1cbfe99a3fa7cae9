package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/breaker"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/extract"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/hashindex"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/imaging"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/observability"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/persist"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

const (
	// DefaultImageFanOut bounds concurrent image downloads per source.
	DefaultImageFanOut = 4

	// downloadRetries is the number of additional attempts per image.
	downloadRetries = 1

	// sourceConfidence is the provenance confidence assigned to scraped
	// fields.
	sourceConfidence = 0.8

	imageExtension = ".png"
)

// blockerError carries a tripping blocker (captcha, rate limiting)
// across the circuit boundary so the breaker can force-open the source.
type blockerError struct {
	source  string
	blocker extract.Blocker
}

func (e *blockerError) Error() string {
	return fmt.Sprintf("%s blocked: %s", e.source, e.blocker)
}

// IsBlockerError reports whether err demands an immediate circuit trip.
// Wire it into breaker.Config.IsBlocker.
func IsBlockerError(err error) bool {
	var be *blockerError

	return errors.As(err, &be)
}

// Source couples an extractor with the precedence kind its fields merge
// under. Sources run in slice order; earlier entries are higher
// priority.
type Source struct {
	Extractor extract.Extractor
	Kind      property.SourceKind
}

// ManifestImage is one accepted image in the per-property manifest.
type ManifestImage struct {
	Seq    int    `json:"seq"`
	Source string `json:"source"`
	URL    string `json:"url"`
	File   string `json:"file"`
	PHash  string `json:"phash"`
	DHash  string `json:"dhash"`
}

// ImageManifest records what landed on disk for one property.
type ImageManifest struct {
	Address            string          `json:"address"`
	Folder             string          `json:"folder"`
	Images             []ManifestImage `json:"images"`
	DuplicatesRejected int             `json:"duplicates_rejected"`
}

// Outcome summarizes one property's extraction pass.
type Outcome struct {
	Results        []extract.Result
	Manifest       ImageManifest
	SkippedBlocked []string
	Status         extract.Status
}

// ExtractionConfig assembles an extraction orchestrator.
type ExtractionConfig struct {
	Sources  []Source
	Breakers *breaker.Manager
	Index    *hashindex.Index
	Fetcher  extract.Fetcher
	Root     string
	MaxDim   int
	FanOut   int
	Logger   *slog.Logger
	Metrics  *observability.PipelineMetrics
	Now      func() time.Time
}

// Extraction runs the per-property extraction pass: sources in priority
// order behind their circuits, image download fan-out, perceptual
// dedup, atomic persistence, and precedence-ruled field merging.
// Sources are serialized within a property; only image downloads for
// one source run concurrently.
type Extraction struct {
	sources  []Source
	breakers *breaker.Manager
	index    *hashindex.Index
	fetcher  extract.Fetcher
	root     string
	maxDim   int
	fanOut   int
	logger   *slog.Logger
	metrics  *observability.PipelineMetrics
	now      func() time.Time

	mu        sync.Mutex
	manifests []ImageManifest
}

// NewExtraction creates the orchestrator with zero-value fields
// defaulted.
func NewExtraction(cfg ExtractionConfig) *Extraction {
	if cfg.FanOut <= 0 {
		cfg.FanOut = DefaultImageFanOut
	}

	if cfg.MaxDim <= 0 {
		cfg.MaxDim = imaging.DefaultMaxDimension
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Extraction{
		sources:  cfg.Sources,
		breakers: cfg.Breakers,
		index:    cfg.Index,
		fetcher:  cfg.Fetcher,
		root:     cfg.Root,
		maxDim:   cfg.MaxDim,
		fanOut:   cfg.FanOut,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
}

// ImageDir returns the processed-image folder for an address.
func (e *Extraction) ImageDir(address string) string {
	return filepath.Join(e.root, property.AddressHash(address))
}

// Run executes all sources for one property. Re-running is idempotent:
// already-persisted images are rejected as duplicates and merged fields
// resolve to the same values under precedence.
func (e *Extraction) Run(ctx context.Context, store *state.Store, prop property.Property) (Outcome, error) {
	address := prop.FullAddress
	folder := property.AddressHash(address)
	dir := filepath.Join(e.root, folder)

	out := Outcome{Manifest: ImageManifest{Address: address, Folder: folder}}

	seq, err := nextImageSeq(dir)
	if err != nil {
		return out, err
	}

	for _, src := range e.sources {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		name := src.Extractor.Name()

		var res extract.Result

		start := e.now()

		cbErr := e.breakers.Do(name, func() error {
			res = src.Extractor.Extract(ctx, prop)

			if res.Blocker.Tripping() {
				return &blockerError{source: name, blocker: res.Blocker}
			}

			if res.Status == extract.StatusFailed {
				return fmt.Errorf("%s extraction failed: %s", name, res.Blocker)
			}

			return nil
		})

		if e.metrics != nil {
			e.metrics.ExtractionDuration.WithLabelValues(name).Observe(e.now().Sub(start).Seconds())
		}

		if errors.Is(cbErr, breaker.ErrBlocked) {
			out.SkippedBlocked = append(out.SkippedBlocked, name)
			e.logger.Warn("source skipped by circuit", "source", name, "address", address)

			continue
		}

		out.Results = append(out.Results, res)

		if cbErr != nil {
			e.logger.Warn("source extraction failed",
				"source", name, "address", address, "blocker", string(res.Blocker))
		}

		e.mergeFields(store, address, name, src.Kind, res)

		ingestErr := e.ingestImages(ctx, dir, address, name, res.Images, &seq, &out.Manifest)
		if ingestErr != nil {
			return out, ingestErr
		}
	}

	out.Status = e.aggregate(store, address, &out)

	e.mu.Lock()
	e.manifests = append(e.manifests, out.Manifest)
	e.mu.Unlock()

	return out, nil
}

// Manifests returns the per-property image manifests accumulated across
// every Run call, in completion order.
func (e *Extraction) Manifests() []ImageManifest {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]ImageManifest(nil), e.manifests...)
}

// mergeFields applies one source's field bag to the enrichment record
// under the store mutex, logging orphans and severe conflicts.
func (e *Extraction) mergeFields(
	store *state.Store, address, source string, kind property.SourceKind, res extract.Result,
) {
	if len(res.Fields) == 0 {
		return
	}

	prov := property.FieldProvenance{
		SourceID:   source,
		Kind:       kind,
		FetchedAt:  res.AttemptedAt,
		Confidence: sourceConfidence,
	}

	orphans, coverageErr := CheckFieldCoverage(res.Fields)
	if coverageErr != nil {
		e.logger.Warn("field coverage check failed",
			"source", source, "address", address, "error", coverageErr)
	}

	var merged property.MergeResult

	store.UpdateRecord(address, func(rec *property.Record) {
		merged = rec.Merge(res.Fields, prov)
	})

	if len(orphans) > 0 {
		e.logger.Warn("undeclared extractor fields kept in extras",
			"source", source, "address", address, "fields", orphans)
	}

	if len(merged.Invalid) > 0 {
		e.logger.Warn("uncoercible extractor fields dropped",
			"source", source, "address", address, "fields", merged.Invalid)
	}

	for _, conflict := range merged.Conflicts {
		if conflict.Severe {
			e.logger.Warn("severe field conflict kept for reconciliation",
				"address", address, "field", conflict.Field,
				"kept_source", conflict.KeptSource, "seen_source", conflict.SeenSource)
		}
	}
}

// ingestImages downloads one source's images with bounded fan-out, then
// serially dedups, persists, and registers each accepted image so
// sequence numbers stay deterministic.
func (e *Extraction) ingestImages(
	ctx context.Context, dir, address, source string,
	assets []extract.ImageAsset, seq *int, manifest *ImageManifest,
) error {
	if len(assets) == 0 {
		return nil
	}

	bodies := make([][]byte, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)

	for i, asset := range assets {
		g.Go(func() error {
			body, err := e.download(gctx, asset.URL)
			if err != nil {
				// A failed download skips the image, not the property.
				e.logger.Warn("image download failed",
					"source", source, "url", asset.URL, "error", err)

				return nil
			}

			bodies[i] = body

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return fmt.Errorf("download images for %s: %w", address, err)
	}

	for i, asset := range assets {
		if bodies[i] == nil {
			continue
		}

		admitErr := e.admit(dir, address, source, asset.URL, bodies[i], seq, manifest)
		if admitErr != nil {
			return admitErr
		}
	}

	return nil
}

func (e *Extraction) download(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= downloadRetries; attempt++ {
		code, body, err := e.fetcher.Get(ctx, url)
		if err != nil {
			lastErr = err

			continue
		}

		if code != http.StatusOK {
			lastErr = fmt.Errorf("image fetch status %d", code)

			continue
		}

		return body, nil
	}

	return nil, lastErr
}

// admit standardizes, dedups, persists, and registers one image. The
// hash is registered only after the bytes land on disk, so a crash
// between the two leaves at worst an unindexed file that the next run
// rejects as a duplicate.
func (e *Extraction) admit(
	dir, address, source, url string, body []byte, seq *int, manifest *ImageManifest,
) error {
	normalized, err := imaging.Standardize(body, e.maxDim)
	if err != nil {
		e.logger.Warn("undecodable image skipped", "source", source, "url", url, "error", err)

		return nil
	}

	pair, err := imaging.HashBytes(normalized)
	if err != nil {
		e.logger.Warn("unhashable image skipped", "source", source, "url", url, "error", err)

		return nil
	}

	if dupID, dup := e.index.IsDuplicateForAddress(pair.PHash, address); dup {
		e.rejectDuplicate(manifest, source, url, dupID)

		return nil
	}

	if dupID, dup := e.index.IsDuplicate(pair.PHash); dup {
		e.rejectDuplicate(manifest, source, url, dupID)

		return nil
	}

	name := fmt.Sprintf("%02d_%s%s", *seq, source, imageExtension)
	path := filepath.Join(dir, name)

	err = persist.WriteBytesAtomic(path, normalized)
	if err != nil {
		return fmt.Errorf("persist image %s: %w", path, err)
	}

	id := manifest.Folder + "/" + name

	err = e.index.Register(id, pair.PHash, pair.DHash, address, source)
	if err != nil {
		// Lost an exact-hash race against a concurrent worker.
		_ = os.Remove(path)
		e.rejectDuplicate(manifest, source, url, id)

		return nil
	}

	manifest.Images = append(manifest.Images, ManifestImage{
		Seq:    *seq,
		Source: source,
		URL:    url,
		File:   name,
		PHash:  fmt.Sprintf("%016x", pair.PHash),
		DHash:  fmt.Sprintf("%016x", pair.DHash),
	})
	*seq++

	if e.metrics != nil {
		e.metrics.ImagesDownloaded.WithLabelValues(source).Inc()
	}

	return nil
}

func (e *Extraction) rejectDuplicate(manifest *ImageManifest, source, url, dupID string) {
	manifest.DuplicatesRejected++

	if e.metrics != nil {
		e.metrics.ImagesDeduplicated.Inc()
	}

	e.logger.Debug("near-duplicate image rejected",
		"source", source, "url", url, "duplicate_of", dupID)
}

// aggregate grades the pass: all critical fields known is ok, any data
// at all is partial, nothing is failed. Critical fields are the
// kill-switch inputs no later phase can supply: hoa_fee, beds, and the
// sewer hint.
func (e *Extraction) aggregate(store *state.Store, address string, out *Outcome) extract.Status {
	rec, ok := store.Record(address)
	if ok && rec.HOAFee != nil && rec.Beds != nil && rec.Sewer != property.SewerUnknown {
		return extract.StatusOK
	}

	anyData := len(out.Manifest.Images) > 0

	for _, res := range out.Results {
		if len(res.Fields) > 0 || len(res.Images) > 0 {
			anyData = true
		}
	}

	if anyData {
		return extract.StatusPartial
	}

	return extract.StatusFailed
}

// nextImageSeq resumes image numbering from what is already on disk so
// re-runs never overwrite earlier artifacts.
func nextImageSeq(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("read image dir %s: %w", dir, err)
	}

	seq := 0

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == imageExtension {
			seq++
		}
	}

	return seq, nil
}
