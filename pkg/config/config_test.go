package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsApplyWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, cfg.Pipeline.Workers)
	assert.Equal(t, DefaultDedupBands, cfg.Dedup.Bands)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.LockExpiry)
	assert.Equal(t, HOAPolicyFail, cfg.KillSwitch.UnknownHOAPolicy)
	assert.InDelta(t, DefaultRequestsPerSecond, cfg.Sources.RequestsPerSecond, 0.0001)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "phxhomes.yaml")
	content := []byte(`
pipeline:
  workers: 5
  lock_expiry: 10m
killswitch:
  unknown_hoa_policy: pass
sources:
  daily_cap: 100
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.LockExpiry)
	assert.Equal(t, HOAPolicyPass, cfg.KillSwitch.UnknownHOAPolicy)
	assert.Equal(t, 100, cfg.Sources.DailyCap)
	assert.Equal(t, DefaultImageFanOut, cfg.Pipeline.ImageFanOut, "unset keys keep defaults")
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PHX_PIPELINE_WORKERS", "7")
	t.Setenv("PHX_LOGGING_FORMAT", "json")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Pipeline.Workers)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"zero workers", "pipeline:\n  workers: 0\n", ErrInvalidWorkers},
		{"bad bands", "dedup:\n  bands: 7\n", ErrInvalidBands},
		{"bad hoa policy", "killswitch:\n  unknown_hoa_policy: maybe\n", ErrInvalidHOAPolicy},
		{"bad log format", "logging:\n  format: xml\n", ErrInvalidLogFormat},
		{"zero daily cap", "sources:\n  daily_cap: 0\n", ErrInvalidDailyCap},
		{"bad sample ratio", "telemetry:\n  sample_ratio: 1.5\n", ErrInvalidSampleRate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "phxhomes.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o600))

			_, err := LoadConfig(path)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDumpDefaults_EmitsValidYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, DumpDefaults(&buf))

	out := buf.String()
	assert.Contains(t, out, "pipeline:")
	assert.Contains(t, out, "workers: 3")
	assert.Contains(t, out, "unknown_hoa_policy: fail")

	path := filepath.Join(t.TempDir(), "phxhomes.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, cfg.Pipeline.Workers)
}
