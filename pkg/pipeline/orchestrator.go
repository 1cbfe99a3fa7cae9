// Package pipeline drives the eight-phase analysis for each property:
// county lookup, cost estimation, concurrent listing and map research,
// exterior and interior visual assessment, synthesis (kill-switch plus
// scoring), and report rendering. Every phase transition is
// checkpointed so a crashed batch resumes at the first incomplete
// phase.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/extract"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/killswitch"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/observability"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/scoring"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

// DefaultWorkers is the inter-property concurrency bound.
const DefaultWorkers = 3

// Sentinel errors surfaced to the batch driver.
var (
	// ErrPropertyLocked is returned when another worker holds the
	// property's state lock.
	ErrPropertyLocked = errors.New("property locked by another worker")

	// ErrPrerequisite is returned when a phase's prerequisite is unmet
	// and the run mode does not permit degrading.
	ErrPrerequisite = errors.New("phase prerequisite not met")

	// ErrSourcesBlocked is returned when every extraction source was
	// refused by its circuit breaker.
	ErrSourcesBlocked = errors.New("all extraction sources blocked")
)

// unmetAction is the lenient-mode consequence of a failed prerequisite.
type unmetAction int

const (
	// actionProceed runs the phase anyway, on defaults.
	actionProceed unmetAction = iota

	// actionSkip marks the phase skipped with a logged reason.
	actionSkip

	// actionFail marks the phase failed; the property cannot reach a
	// report.
	actionFail
)

// Config assembles an orchestrator. Store and Extraction are required;
// a nil collaborator fails its phase at execution time.
type Config struct {
	Store      *state.Store
	Extraction *Extraction

	County   CountyClient
	Cost     CostEstimator
	Maps     MapClient
	Visual   VisualAssessor
	Renderer ReportRenderer

	KillSwitch killswitch.Config
	Mode       observability.RunMode
	Workers    int
	SkipPhases []state.PhaseID

	Logger  *slog.Logger
	Metrics *observability.PipelineMetrics
	Now     func() time.Time
}

// Orchestrator executes the phase state machine for a batch of
// properties under a bounded worker pool.
type Orchestrator struct {
	cfg   Config
	owner string
	skip  map[state.PhaseID]bool
}

// New validates the configuration and creates an orchestrator with a
// fresh lock-owner identity.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("pipeline: state store is required")
	}

	if cfg.Extraction == nil {
		return nil, errors.New("pipeline: extraction orchestrator is required")
	}

	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	skip := make(map[state.PhaseID]bool, len(cfg.SkipPhases))

	for _, phase := range cfg.SkipPhases {
		if !phase.Valid() {
			return nil, fmt.Errorf("pipeline: unknown skip phase %q", phase)
		}

		skip[phase] = true
	}

	return &Orchestrator{
		cfg:   cfg,
		owner: uuid.NewString(),
		skip:  skip,
	}, nil
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Attempted int
	Completed int
	Failed    int
	Errors    map[string]error
}

// AllSourcesBlocked reports whether every failure in the batch was the
// circuit layer refusing all sources.
func (r BatchResult) AllSourcesBlocked() bool {
	if r.Failed == 0 {
		return false
	}

	for _, err := range r.Errors {
		if !errors.Is(err, ErrSourcesBlocked) {
			return false
		}
	}

	return true
}

// RunBatch processes properties under the worker bound. Each property
// runs to completion or failure independently; one property's failure
// never cancels its neighbors.
func (o *Orchestrator) RunBatch(ctx context.Context, props []property.Property) BatchResult {
	res := BatchResult{Errors: make(map[string]error)}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)

	g.SetLimit(o.cfg.Workers)

	for _, prop := range props {
		res.Attempted++

		g.Go(func() error {
			err := o.RunProperty(ctx, prop)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				res.Failed++
				res.Errors[prop.FullAddress] = err
				o.countOutcome("failed")

				return nil
			}

			res.Completed++
			o.countOutcome("completed")

			return nil
		})
	}

	_ = g.Wait()

	return res
}

func (o *Orchestrator) countOutcome(outcome string) {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.PropertiesProcessed.WithLabelValues(outcome).Inc()
	}
}

// RunProperty walks one property through the phase machine, holding its
// state lock for the duration. Terminal phases are never re-run, so a
// resumed batch picks up at the first incomplete phase.
func (o *Orchestrator) RunProperty(ctx context.Context, prop property.Property) error {
	address := prop.FullAddress

	if !o.cfg.Store.Acquire(address, o.owner) {
		return fmt.Errorf("%w: %s", ErrPropertyLocked, address)
	}
	defer o.cfg.Store.Release(address, o.owner)

	o.cfg.Store.EnsureRecord(address)
	o.cfg.Store.EnsureItem(address)

	phases := state.AllPhases()

	for i := 0; i < len(phases); i++ {
		phase := phases[i]

		err := ctx.Err()
		if err != nil {
			return err
		}

		// Listing and map research run as a concurrent pair.
		if phase == state.PhaseListing {
			err = o.runPair(ctx, prop)
			i++ // the pair covers PhaseMap

			if err != nil {
				return err
			}

			continue
		}

		if o.cfg.Store.PhaseStatus(address, phase).Terminal() {
			continue
		}

		err = o.runPhaseChecked(ctx, prop, phase)
		if err != nil {
			return err
		}
	}

	return o.cfg.Store.Flush()
}

// runPair executes the listing and map phases concurrently, each under
// its own gating. Both goroutines read phase state only through the
// store's mutex-guarded accessors; the sibling writes the same maps via
// SetPhaseStatus.
func (o *Orchestrator) runPair(ctx context.Context, prop property.Property) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, phase := range []state.PhaseID{state.PhaseListing, state.PhaseMap} {
		if o.cfg.Store.PhaseStatus(prop.FullAddress, phase).Terminal() {
			continue
		}

		g.Go(func() error {
			return o.runPhaseChecked(gctx, prop, phase)
		})
	}

	return g.Wait()
}

// runPhaseChecked applies skip directives, retry exhaustion, and the
// prerequisite table before executing a phase.
func (o *Orchestrator) runPhaseChecked(
	ctx context.Context, prop property.Property, phase state.PhaseID,
) error {
	address := prop.FullAddress

	if o.skip[phase] {
		o.cfg.Logger.Info("phase skipped by request", "address", address, "phase", string(phase))

		return o.transition(address, phase, state.StatusSkipped)
	}

	if o.cfg.Store.Exhausted(address, phase) {
		o.cfg.Logger.Warn("phase permanently skipped after repeated failures",
			"address", address, "phase", string(phase),
			"retries", o.cfg.Store.Retries(address, phase))

		return o.transition(address, phase, state.StatusSkipped)
	}

	met, action, reason := o.prerequisite(prop, phase)
	if !met {
		if o.cfg.Mode == observability.ModeStrict || action == actionFail {
			err := o.transition(address, phase, state.StatusFailed)
			if err != nil {
				return err
			}

			return fmt.Errorf("%w: %s %s: %s", ErrPrerequisite, address, phase, reason)
		}

		if action == actionSkip {
			o.cfg.Logger.Info("phase skipped",
				"address", address, "phase", string(phase), "reason", reason)

			return o.transition(address, phase, state.StatusSkipped)
		}

		o.cfg.Logger.Warn("phase running on defaults",
			"address", address, "phase", string(phase), "reason", reason)
	}

	return o.runOne(ctx, prop, phase)
}

// prerequisite evaluates the phase dependency table.
func (o *Orchestrator) prerequisite(
	prop property.Property, phase state.PhaseID,
) (bool, unmetAction, string) {
	status := func(p state.PhaseID) state.Status {
		return o.cfg.Store.PhaseStatus(prop.FullAddress, p)
	}

	switch phase {
	case state.PhaseCounty:
		return true, actionProceed, ""

	case state.PhaseCost:
		if status(state.PhaseCounty) == state.StatusComplete {
			return true, actionProceed, ""
		}

		return false, actionProceed, "county data unavailable"

	case state.PhaseListing, state.PhaseMap:
		if status(state.PhaseCounty) != state.StatusFailed {
			return true, actionProceed, ""
		}

		return false, actionSkip, "county phase failed"

	case state.PhaseExterior:
		if status(state.PhaseListing) != state.StatusComplete {
			return false, actionSkip, "listing extraction incomplete"
		}

		if countImages(o.cfg.Extraction.ImageDir(prop.FullAddress)) == 0 {
			return false, actionSkip, "no images available"
		}

		return true, actionProceed, ""

	case state.PhaseInterior:
		if status(state.PhaseExterior) == state.StatusComplete {
			return true, actionProceed, ""
		}

		return false, actionSkip, "exterior assessment incomplete"

	case state.PhaseSynthesis:
		countyDone := status(state.PhaseCounty) == state.StatusComplete
		locationDone := status(state.PhaseListing) == state.StatusComplete ||
			status(state.PhaseMap) == state.StatusComplete

		if countyDone && locationDone {
			return true, actionProceed, ""
		}

		return false, actionFail, "county or location data missing"

	case state.PhaseReport:
		if status(state.PhaseSynthesis) == state.StatusComplete {
			return true, actionProceed, ""
		}

		return false, actionFail, "synthesis incomplete"

	default:
		return true, actionProceed, ""
	}
}

// runOne checkpoints in_progress, executes the phase body, and
// checkpoints the outcome. Failures increment the retry counter; in
// strict mode they also abort the property.
func (o *Orchestrator) runOne(ctx context.Context, prop property.Property, phase state.PhaseID) error {
	address := prop.FullAddress

	err := o.transition(address, phase, state.StatusInProgress)
	if err != nil {
		return err
	}

	phaseErr := o.executePhase(ctx, prop, phase)
	if phaseErr == nil {
		o.countPhase(phase, state.StatusComplete)

		return o.transition(address, phase, state.StatusComplete)
	}

	var blocked *BlockedError
	if errors.As(phaseErr, &blocked) {
		o.cfg.Logger.Warn(blocked.Error(), "address", address, "phase", string(phase))

		if o.cfg.Mode == observability.ModeStrict {
			err = o.transition(address, phase, state.StatusFailed)
			if err != nil {
				return err
			}

			return fmt.Errorf("%s %s: %w", address, phase, phaseErr)
		}

		o.countPhase(phase, state.StatusSkipped)

		return o.transition(address, phase, state.StatusSkipped)
	}

	retries := o.cfg.Store.IncrementRetry(address, phase)
	o.countPhase(phase, state.StatusFailed)
	o.cfg.Logger.Error("phase failed",
		"address", address, "phase", string(phase), "retries", retries, "error", phaseErr)

	err = o.transition(address, phase, state.StatusFailed)
	if err != nil {
		return err
	}

	if o.cfg.Mode == observability.ModeStrict || errors.Is(phaseErr, ErrSourcesBlocked) {
		return fmt.Errorf("%s %s: %w", address, phase, phaseErr)
	}

	return nil
}

func (o *Orchestrator) countPhase(phase state.PhaseID, status state.Status) {
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.PhasesTotal.WithLabelValues(string(phase), string(status)).Inc()
	}
}

// transition records a phase status and checkpoints the work document.
func (o *Orchestrator) transition(address string, phase state.PhaseID, status state.Status) error {
	err := o.cfg.Store.SetPhaseStatus(address, o.owner, phase, status)
	if err != nil {
		return err
	}

	return o.cfg.Store.SaveWork()
}

func (o *Orchestrator) executePhase(ctx context.Context, prop property.Property, phase state.PhaseID) error {
	switch phase {
	case state.PhaseCounty:
		return o.runCounty(ctx, prop)
	case state.PhaseCost:
		return o.runCost(ctx, prop)
	case state.PhaseListing:
		return o.runListing(ctx, prop)
	case state.PhaseMap:
		return o.runMap(ctx, prop)
	case state.PhaseExterior:
		return o.runExterior(ctx, prop)
	case state.PhaseInterior:
		return o.runInterior(ctx, prop)
	case state.PhaseSynthesis:
		return o.runSynthesis(prop)
	case state.PhaseReport:
		return o.runReport(ctx, prop)
	default:
		return fmt.Errorf("unknown phase %s", phase)
	}
}

func (o *Orchestrator) runCounty(ctx context.Context, prop property.Property) error {
	if o.cfg.County == nil {
		return errors.New("county client not configured")
	}

	fields, err := o.cfg.County.Lookup(ctx, prop)
	if err != nil {
		return fmt.Errorf("county lookup: %w", err)
	}

	o.merge(prop.FullAddress, "county", property.SourceCounty, fields)

	return nil
}

func (o *Orchestrator) runCost(ctx context.Context, prop property.Property) error {
	if o.cfg.Cost == nil {
		return errors.New("cost estimator not configured")
	}

	snapshot := o.snapshot(prop.FullAddress)

	monthly, breakdown, err := o.cfg.Cost.Estimate(ctx, &snapshot)
	if err != nil {
		return fmt.Errorf("cost estimate: %w", err)
	}

	o.cfg.Store.UpdateRecord(prop.FullAddress, func(rec *property.Record) {
		rec.MonthlyCost = &monthly
		rec.CostBreakdown = breakdown
		rec.Touch(property.FieldMonthlyCost, "cost_estimator", property.SourceDefault, o.cfg.Now())
	})

	return nil
}

func (o *Orchestrator) runListing(ctx context.Context, prop property.Property) error {
	out, err := o.cfg.Extraction.Run(ctx, o.cfg.Store, prop)
	if err != nil {
		return fmt.Errorf("listing extraction: %w", err)
	}

	if out.Status != extract.StatusFailed {
		return nil
	}

	if len(out.SkippedBlocked) > 0 && len(out.Results) == 0 {
		return fmt.Errorf("%w: %s", ErrSourcesBlocked, strings.Join(out.SkippedBlocked, ", "))
	}

	return errors.New("listing extraction produced no data")
}

func (o *Orchestrator) runMap(ctx context.Context, prop property.Property) error {
	if o.cfg.Maps == nil {
		return errors.New("map client not configured")
	}

	fields, err := o.cfg.Maps.Research(ctx, prop)
	if err != nil {
		return fmt.Errorf("map research: %w", err)
	}

	o.merge(prop.FullAddress, "maps", property.SourceListing, fields)

	return nil
}

func (o *Orchestrator) runExterior(ctx context.Context, prop property.Property) error {
	if o.cfg.Visual == nil {
		return errors.New("visual assessor not configured")
	}

	address := prop.FullAddress
	dir := o.cfg.Extraction.ImageDir(address)

	err := o.validateVisualInputs(address, dir)
	if err != nil {
		return err
	}

	fields, err := o.cfg.Visual.AssessExterior(ctx, address, dir)
	if err != nil {
		return fmt.Errorf("exterior assessment: %w", err)
	}

	o.merge(address, "vision_exterior", property.SourceListing, fields)

	return nil
}

func (o *Orchestrator) runInterior(ctx context.Context, prop property.Property) error {
	if o.cfg.Visual == nil {
		return errors.New("visual assessor not configured")
	}

	address := prop.FullAddress
	dir := o.cfg.Extraction.ImageDir(address)

	err := o.validateVisualInputs(address, dir)
	if err != nil {
		return err
	}

	scores, err := o.cfg.Visual.AssessInterior(ctx, address, dir)
	if err != nil {
		return fmt.Errorf("interior assessment: %w", err)
	}

	o.cfg.Store.UpdateRecord(address, func(rec *property.Record) {
		applyVisualScores(rec, scores, o.cfg.Now())
	})

	return nil
}

// runSynthesis is the pure derivation phase: kill-switch verdict, then
// scoring under that verdict. It touches no network.
func (o *Orchestrator) runSynthesis(prop property.Property) error {
	address := prop.FullAddress

	var invalid error

	o.cfg.Store.UpdateRecord(address, func(rec *property.Record) {
		verdict := killswitch.Evaluate(rec, o.cfg.KillSwitch)
		killswitch.Apply(rec, verdict)

		scored := scoring.Score(rec, verdict.Verdict, scoring.Config{Now: o.cfg.Now})
		scoring.Apply(rec, scored)

		invalid = ValidateRecord(rec)
	})

	if invalid != nil {
		return fmt.Errorf("synthesized record invalid: %w", invalid)
	}

	return nil
}

func (o *Orchestrator) runReport(ctx context.Context, prop property.Property) error {
	if o.cfg.Renderer == nil {
		return errors.New("report renderer not configured")
	}

	snapshot := o.snapshot(prop.FullAddress)

	err := o.cfg.Renderer.Render(ctx, prop, &snapshot)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	return nil
}

// merge applies collaborator fields to the record under precedence.
func (o *Orchestrator) merge(address, sourceID string, kind property.SourceKind, fields property.Fields) {
	if len(fields) == 0 {
		return
	}

	prov := property.FieldProvenance{
		SourceID:   sourceID,
		Kind:       kind,
		FetchedAt:  o.cfg.Now(),
		Confidence: sourceConfidence,
	}

	var merged property.MergeResult

	o.cfg.Store.UpdateRecord(address, func(rec *property.Record) {
		merged = rec.Merge(fields, prov)
	})

	if len(merged.Orphans) > 0 {
		o.cfg.Logger.Warn("undeclared fields kept in extras",
			"source", sourceID, "address", address, "fields", merged.Orphans)
	}
}

// snapshot copies the record so collaborators never see the live
// document.
func (o *Orchestrator) snapshot(address string) property.Record {
	var snapshot property.Record

	o.cfg.Store.UpdateRecord(address, func(rec *property.Record) {
		snapshot = *rec
	})

	return snapshot
}

// applyVisualScores copies non-nil interior scores onto the record with
// provenance.
func applyVisualScores(rec *property.Record, scores property.VisualScores, now time.Time) {
	apply := func(field string, dst **float64, src *float64) {
		if src == nil {
			return
		}

		*dst = src

		rec.Touch(field, "vision_interior", property.SourceListing, now)
	}

	apply(property.FieldKitchen, &rec.Visual.Kitchen, scores.Kitchen)
	apply(property.FieldMaster, &rec.Visual.Master, scores.Master)
	apply(property.FieldLight, &rec.Visual.Light, scores.Light)
	apply(property.FieldCeilings, &rec.Visual.Ceilings, scores.Ceilings)
	apply(property.FieldFireplace, &rec.Visual.Fireplace, scores.Fireplace)
	apply(property.FieldLaundry, &rec.Visual.Laundry, scores.Laundry)
	apply(property.FieldAesthetics, &rec.Visual.Aesthetics, scores.Aesthetics)
}

// countImages reports how many processed images exist for a folder.
func countImages(dir string) int {
	n, err := nextImageSeq(dir)
	if err != nil {
		return 0
	}

	return n
}
