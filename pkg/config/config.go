// Package config provides configuration loading and validation for the
// phxhomes batch driver.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers    = errors.New("pipeline workers must be positive")
	ErrInvalidFanOut     = errors.New("image fan-out must be positive")
	ErrInvalidBands      = errors.New("dedup bands must be 4, 8, or 16")
	ErrInvalidThreshold  = errors.New("dedup threshold must be positive")
	ErrInvalidMaxDim     = errors.New("image max dimension must be positive")
	ErrInvalidRate       = errors.New("requests per second must be positive")
	ErrInvalidDailyCap   = errors.New("daily request cap must be positive")
	ErrInvalidHOAPolicy  = errors.New(`unknown-HOA policy must be "fail" or "pass"`)
	ErrInvalidLogFormat  = errors.New(`log format must be "text" or "json"`)
	ErrInvalidSampleRate = errors.New("sample ratio must be in (0, 1]")
)

// Unknown-HOA policy values.
const (
	HOAPolicyFail = "fail"
	HOAPolicyPass = "pass"
)

// Config holds all configuration for the phxhomes batch driver.
type Config struct {
	Directories DirectoriesConfig `mapstructure:"directories" yaml:"directories"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline" yaml:"pipeline"`
	Dedup       DedupConfig       `mapstructure:"dedup" yaml:"dedup"`
	Sources     SourcesConfig     `mapstructure:"sources" yaml:"sources"`
	KillSwitch  KillSwitchConfig  `mapstructure:"killswitch" yaml:"killswitch"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry" yaml:"telemetry"`
}

// DirectoriesConfig locates the on-disk artifact tree.
type DirectoriesConfig struct {
	Data       string `mapstructure:"data" yaml:"data"`
	Processed  string `mapstructure:"processed" yaml:"processed"`
	Reports    string `mapstructure:"reports" yaml:"reports"`
	WorkFile   string `mapstructure:"work_file" yaml:"work_file"`
	EnrichFile string `mapstructure:"enrich_file" yaml:"enrich_file"`
	HashIndex  string `mapstructure:"hash_index" yaml:"hash_index"`
}

// PipelineConfig tunes batch execution.
type PipelineConfig struct {
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	ImageFanOut int           `mapstructure:"image_fan_out" yaml:"image_fan_out"`
	LockExpiry  time.Duration `mapstructure:"lock_expiry" yaml:"lock_expiry"`
}

// DedupConfig tunes the perceptual-hash duplicate index.
type DedupConfig struct {
	Bands        int `mapstructure:"bands" yaml:"bands"`
	Threshold    int `mapstructure:"threshold" yaml:"threshold"`
	MaxDimension int `mapstructure:"max_dimension" yaml:"max_dimension"`
}

// SourcesConfig tunes the scraping budget and endpoints.
type SourcesConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	DailyCap          int           `mapstructure:"daily_cap" yaml:"daily_cap"`
	Cooldown          time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
	ProxyURL          string        `mapstructure:"proxy_url" yaml:"proxy_url"`
	AssessorBaseURL   string        `mapstructure:"assessor_base_url" yaml:"assessor_base_url"`
	AssessorToken     string        `mapstructure:"assessor_token" yaml:"assessor_token"`
	RecordsBaseURL    string        `mapstructure:"records_base_url" yaml:"records_base_url"`
}

// KillSwitchConfig tunes verdict policy.
type KillSwitchConfig struct {
	UnknownHOAPolicy string `mapstructure:"unknown_hoa_policy" yaml:"unknown_hoa_policy"`
}

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TelemetryConfig tunes OpenTelemetry export. An empty endpoint keeps
// the no-op providers.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure" yaml:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// LoadConfig loads configuration from file and PHX_* environment
// variables. A missing config file is not an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("phxhomes")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
	}

	viperCfg.SetEnvPrefix("PHX")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// DumpDefaults writes the default configuration as YAML, the starting
// point for a project config file.
func DumpDefaults(w io.Writer) error {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	err := viperCfg.Unmarshal(&config)
	if err != nil {
		return fmt.Errorf("build default config: %w", err)
	}

	enc := yaml.NewEncoder(w)

	err = enc.Encode(&config)
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}

	return enc.Close()
}

func setDefaults(viperCfg *viper.Viper) {
	// Directory defaults.
	viperCfg.SetDefault("directories.data", DefaultDataDir)
	viperCfg.SetDefault("directories.processed", DefaultProcessedDir)
	viperCfg.SetDefault("directories.reports", DefaultReportsDir)
	viperCfg.SetDefault("directories.work_file", DefaultWorkFile)
	viperCfg.SetDefault("directories.enrich_file", DefaultEnrichFile)
	viperCfg.SetDefault("directories.hash_index", DefaultHashIndex)

	// Pipeline defaults.
	viperCfg.SetDefault("pipeline.workers", DefaultWorkers)
	viperCfg.SetDefault("pipeline.image_fan_out", DefaultImageFanOut)
	viperCfg.SetDefault("pipeline.lock_expiry", DefaultLockExpiry)

	// Dedup defaults.
	viperCfg.SetDefault("dedup.bands", DefaultDedupBands)
	viperCfg.SetDefault("dedup.threshold", DefaultDedupThreshold)
	viperCfg.SetDefault("dedup.max_dimension", DefaultMaxDimension)

	// Source defaults.
	viperCfg.SetDefault("sources.requests_per_second", DefaultRequestsPerSecond)
	viperCfg.SetDefault("sources.burst", DefaultBurst)
	viperCfg.SetDefault("sources.daily_cap", DefaultDailyCap)
	viperCfg.SetDefault("sources.cooldown", DefaultCooldown)

	// Kill-switch defaults.
	viperCfg.SetDefault("killswitch.unknown_hoa_policy", DefaultUnknownHOAPolicy)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
}

func validateConfig(config *Config) error {
	if config.Pipeline.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Pipeline.Workers)
	}

	if config.Pipeline.ImageFanOut <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFanOut, config.Pipeline.ImageFanOut)
	}

	switch config.Dedup.Bands {
	case 4, 8, 16:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidBands, config.Dedup.Bands)
	}

	if config.Dedup.Threshold <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, config.Dedup.Threshold)
	}

	if config.Dedup.MaxDimension <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxDim, config.Dedup.MaxDimension)
	}

	if config.Sources.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidRate, config.Sources.RequestsPerSecond)
	}

	if config.Sources.DailyCap <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDailyCap, config.Sources.DailyCap)
	}

	switch config.KillSwitch.UnknownHOAPolicy {
	case HOAPolicyFail, HOAPolicyPass:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidHOAPolicy, config.KillSwitch.UnknownHOAPolicy)
	}

	switch config.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio <= 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRate, config.Telemetry.SampleRatio)
	}

	return nil
}
