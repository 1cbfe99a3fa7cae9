package config

// Directory defaults, relative to the data root.
const (
	DefaultDataDir      = "data"
	DefaultProcessedDir = "data/processed"
	DefaultReportsDir   = "data/reports"
	DefaultWorkFile     = "data/state/work_items.json"
	DefaultEnrichFile   = "data/state/enrichment.json"
	DefaultHashIndex    = "data/state/hash_index.json"
)

// Pipeline defaults.
const (
	DefaultWorkers     = 3
	DefaultImageFanOut = 4
	DefaultLockExpiry  = "30m"
)

// Dedup defaults.
const (
	DefaultDedupBands     = 8
	DefaultDedupThreshold = 8
	DefaultMaxDimension   = 1024
)

// Source budget defaults.
const (
	DefaultRequestsPerSecond = 0.5
	DefaultBurst             = 1
	DefaultDailyCap          = 400
	DefaultCooldown          = "30m"
)

// Kill-switch defaults. The unknown-HOA policy defaults to the
// stricter reading: a listing that hides its HOA status fails.
const (
	DefaultUnknownHOAPolicy = "fail"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Telemetry defaults.
const (
	DefaultSampleRatio = 1.0
)
