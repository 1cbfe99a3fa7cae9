// Package commands implements CLI command handlers for phxhomes.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/breaker"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/config"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/extract"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/extract/stealth"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/hashindex"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/killswitch"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/observability"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/persist"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/pipeline"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/report"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/version"
)

// defaultInputCSV is where the properties CSV lives unless --input
// overrides it.
const defaultInputCSV = "data/phx_homes.csv"

// ErrStrictFailures is returned when strict mode saw at least one
// property fail.
var ErrStrictFailures = errors.New("strict mode: properties failed")

// RunCommand holds flags and wiring for the batch run.
type RunCommand struct {
	configPath string
	inputCSV   string

	all  bool
	test bool

	strict     bool
	resume     bool
	fresh      bool
	skipPhases []string
}

// NewRunCommand creates the run command with its flag set.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run [address]",
		Short: "Run the analysis pipeline over selected properties",
		Long: `Run executes the phase pipeline (county, cost, listing, images,
synthesis, report) for one address, the whole CSV (--all), or a smoke
batch (--test). Completed phases are checkpointed; re-running resumes
where the last run stopped unless --fresh clears the checkpoints.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rc.Execute(cmd, args)
		},
	}

	cmd.Flags().StringVar(&rc.configPath, "config", "", "config file path (default ./phxhomes.yaml)")
	cmd.Flags().StringVar(&rc.inputCSV, "input", defaultInputCSV, "properties CSV path")
	cmd.Flags().BoolVar(&rc.all, "all", false, "process every property in the CSV")
	cmd.Flags().BoolVar(&rc.test, "test", false, "process only the first 5 properties")
	cmd.Flags().BoolVar(&rc.strict, "strict", false, "abort a property on its first phase failure")
	cmd.Flags().BoolVar(&rc.resume, "resume", true, "pick up each property at its first incomplete phase")
	cmd.Flags().BoolVar(&rc.fresh, "fresh", false, "discard checkpoints and state before running")
	cmd.Flags().StringSliceVar(&rc.skipPhases, "skip-phase", nil, "phase IDs to skip (repeatable)")

	return cmd
}

// Execute wires the full stack from configuration and runs the batch.
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return err
	}

	mode := observability.ModeLenient
	if rc.strict {
		mode = observability.ModeStrict
	}

	providers, err := initObservability(cfg, mode)
	if err != nil {
		return err
	}
	defer func() { _ = providers.Shutdown(cmd.Context()) }()

	logger := providers.Logger
	metrics := observability.NewPipelineMetrics()

	allProps, err := loadProperties(rc.inputCSV)
	if err != nil {
		return err
	}

	props, err := selectProperties(allProps, args, rc.all, rc.test)
	if err != nil {
		return err
	}

	// Resume is the default; turning it off is the same request as
	// --fresh.
	if rc.fresh || !rc.resume {
		err = clearState(cfg)
		if err != nil {
			return err
		}

		logger.Info("checkpoints cleared", "work_file", cfg.Directories.WorkFile)
	}

	err = ensureDirectories(cfg)
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.Directories.WorkFile, cfg.Directories.EnrichFile,
		state.WithLockExpiry(cfg.Pipeline.LockExpiry))
	if err != nil {
		return err
	}

	indexCodec := hashIndexCodec(cfg.Directories.HashIndex)

	index, err := hashindex.Load(cfg.Directories.HashIndex, indexCodec,
		cfg.Dedup.Bands, cfg.Dedup.Threshold)
	if err != nil {
		return err
	}

	breakers := breaker.NewManager(breaker.Config{
		Cooldown:  cfg.Sources.Cooldown,
		IsBlocker: pipeline.IsBlockerError,
	})

	proxyURL, err := parseProxy(cfg.Sources.ProxyURL)
	if err != nil {
		return err
	}

	budget := stealth.NewBudget(cfg.Sources.RequestsPerSecond, cfg.Sources.Burst, cfg.Sources.DailyCap)

	listingClient := stealth.NewClient(stealth.ClientConfig{
		Profile:  stealth.ChromeProfile(),
		Budget:   budget,
		ProxyURL: proxyURL,
	})

	// The county API is token-authenticated and unthrottled; it gets its
	// own client outside the scraping budget.
	countyHTTP := stealth.NewClient(stealth.ClientConfig{Profile: stealth.ChromeProfile()})

	extraction := pipeline.NewExtraction(pipeline.ExtractionConfig{
		Sources: []pipeline.Source{
			{Extractor: extract.NewZillow(listingClient, ""), Kind: property.SourceListing},
			{Extractor: extract.NewRedfin(listingClient, ""), Kind: property.SourceListing},
		},
		Breakers: breakers,
		Index:    index,
		Fetcher:  listingClient,
		Root:     cfg.Directories.Processed,
		MaxDim:   cfg.Dedup.MaxDimension,
		FanOut:   cfg.Pipeline.ImageFanOut,
		Logger:   logger,
		Metrics:  metrics,
	})

	county := newCountyClient(
		extract.NewAssessor(countyHTTP, cfg.Sources.AssessorBaseURL, cfg.Sources.AssessorToken),
		extract.NewPublicRecords(countyHTTP, cfg.Sources.RecordsBaseURL),
	)

	skips, err := rc.resolveSkips(logger)
	if err != nil {
		return err
	}

	orch, err := pipeline.New(pipeline.Config{
		Store:      store,
		Extraction: extraction,
		County:     county,
		Cost:       newCostEstimator(allProps),
		Renderer:   report.NewPropertyRenderer(filepath.Join(cfg.Directories.Reports, "properties")),
		KillSwitch: killswitch.Config{
			UnknownHOA: killswitch.UnknownHOAPolicy(cfg.KillSwitch.UnknownHOAPolicy),
			Now:        time.Now,
		},
		Mode:       mode,
		Workers:    cfg.Pipeline.Workers,
		SkipPhases: skips,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}

	res := orch.RunBatch(cmd.Context(), props)

	artifactErr := writeArtifacts(cfg, store, extraction, index, indexCodec, metrics, props, rc.strict)
	if artifactErr != nil {
		logger.Error("artifact write failed", "error", artifactErr)
	}

	report.BuildSummary(res, store, extraction.Manifests(), breakers, cfg.Directories.Processed).
		Render(cmd.OutOrStdout())

	return errors.Join(batchError(res, rc.strict), artifactErr)
}

// resolveSkips validates the requested skip phases and adds the phases
// whose external collaborators have no wired implementation yet.
func (rc *RunCommand) resolveSkips(logger *slog.Logger) ([]state.PhaseID, error) {
	skips := make([]state.PhaseID, 0, len(rc.skipPhases)+3)
	seen := make(map[state.PhaseID]bool)

	for _, raw := range rc.skipPhases {
		phase := state.PhaseID(strings.TrimSpace(raw))
		if !phase.Valid() {
			return nil, fmt.Errorf("unknown phase %q (known: %s)", raw, knownPhases())
		}

		if !seen[phase] {
			skips = append(skips, phase)
			seen[phase] = true
		}
	}

	// Map research and visual assessment are external services. Until a
	// provider is wired, running those phases would only burn retries.
	for _, phase := range []state.PhaseID{state.PhaseMap, state.PhaseExterior, state.PhaseInterior} {
		if !seen[phase] {
			skips = append(skips, phase)
			seen[phase] = true

			logger.Info("phase skipped: no collaborator configured", "phase", string(phase))
		}
	}

	return skips, nil
}

// writeArtifacts emits the batch outputs: ranked CSV, image manifests,
// field lineage, address lookup, the persisted hash index, and a
// Prometheus text dump of the pipeline counters.
func writeArtifacts(
	cfg *config.Config,
	store *state.Store,
	extraction *pipeline.Extraction,
	index *hashindex.Index,
	indexCodec persist.Codec,
	metrics *observability.PipelineMetrics,
	props []property.Property,
	strict bool,
) error {
	reports := cfg.Directories.Reports

	ranked, err := os.Create(filepath.Join(reports, "ranked.csv"))
	if err != nil {
		return fmt.Errorf("create ranked CSV: %w", err)
	}

	err = report.WriteRanked(ranked, store, props, strict)

	closeErr := ranked.Close()

	err = errors.Join(err, closeErr,
		report.WriteImageManifests(filepath.Join(reports, "image_manifest.json"), extraction.Manifests()),
		report.WriteFieldLineage(filepath.Join(reports, "field_lineage.json"), store),
		report.WriteAddressLookup(filepath.Join(reports, "address_lookup.json"), store),
		index.Save(cfg.Directories.HashIndex, indexCodec),
		dumpMetrics(filepath.Join(reports, "metrics.prom"), metrics),
		store.Flush(),
	)
	if err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}

	return nil
}

func dumpMetrics(path string, metrics *observability.PipelineMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics dump: %w", err)
	}

	err = metrics.DumpText(f)

	return errors.Join(err, f.Close())
}

// batchError maps the batch result to the command error. Lenient runs
// only fail when every failure was the circuit layer refusing all
// sources; strict runs fail on any property failure.
func batchError(res pipeline.BatchResult, strict bool) error {
	if res.AllSourcesBlocked() {
		return fmt.Errorf("%w: all %d failures were blocked sources", pipeline.ErrSourcesBlocked, res.Failed)
	}

	if strict && res.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrStrictFailures, res.Failed, res.Attempted)
	}

	return nil
}

func initObservability(cfg *config.Config, mode observability.RunMode) (observability.Providers, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(cfg.Logging.Level))
	if err != nil {
		return observability.Providers{}, fmt.Errorf("parse log level %q: %w", cfg.Logging.Level, err)
	}

	return observability.Init(observability.Config{
		ServiceName:    "phxhomes",
		ServiceVersion: version.Version,
		Mode:           mode,
		LogLevel:       level,
		LogJSON:        cfg.Logging.Format == "json",
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
}

// clearState removes the checkpoint files so the next run starts every
// property from P0. Processed images stay; dedup will reject them again
// deterministically.
func clearState(cfg *config.Config) error {
	for _, path := range []string{
		cfg.Directories.WorkFile,
		cfg.Directories.EnrichFile,
		cfg.Directories.HashIndex,
	} {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear state file %s: %w", path, err)
		}
	}

	return nil
}

func ensureDirectories(cfg *config.Config) error {
	for _, dir := range []string{
		filepath.Dir(cfg.Directories.WorkFile),
		filepath.Dir(cfg.Directories.HashIndex),
		cfg.Directories.Processed,
		filepath.Join(cfg.Directories.Reports, "properties"),
	} {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// hashIndexCodec picks the state codec from the file extension; a .lz4
// suffix opts into compressed storage.
func hashIndexCodec(path string) persist.Codec {
	if strings.HasSuffix(path, ".lz4") {
		return persist.NewLZ4Codec()
	}

	return persist.NewJSONCodec()
}

func parseProxy(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy URL: %w", err)
	}

	return u, nil
}

func knownPhases() string {
	phases := state.AllPhases()

	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}

	return strings.Join(names, ", ")
}
