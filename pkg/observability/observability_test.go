package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingHandler_AttachesServiceMetadata(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(NewTracingHandler(inner, "phxhomes", "dev", ModeLenient))

	logger.Info("batch started", "properties", 5)

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "phxhomes", record[attrService])
	assert.Equal(t, "dev", record[attrEnv])
	assert.Equal(t, string(ModeLenient), record[attrMode])
	assert.Equal(t, float64(5), record["properties"])
}

func TestTracingHandler_NoTraceContextMeansNoTraceAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(NewTracingHandler(inner, "phxhomes", "", ModeStrict))

	logger.InfoContext(context.Background(), "no span here")

	assert.NotContains(t, buf.String(), attrTraceID)
	assert.NotContains(t, buf.String(), attrSpanID)
}

func TestInit_NoEndpointYieldsNoopProviders(t *testing.T) {
	providers, err := Init(Config{ServiceName: "phxhomes", Mode: ModeLenient})
	require.NoError(t, err)

	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)
	require.NotNil(t, providers.Logger)
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestPipelineMetrics_DumpText(t *testing.T) {
	t.Parallel()

	pm := NewPipelineMetrics()

	pm.PropertiesProcessed.WithLabelValues("completed").Add(3)
	pm.PhasesTotal.WithLabelValues("P0_county", "complete").Inc()
	pm.ImagesDownloaded.WithLabelValues("zillow").Add(42)
	pm.ImagesDeduplicated.Add(7)
	pm.ExtractionDuration.WithLabelValues("zillow").Observe(1.2)

	var buf bytes.Buffer

	require.NoError(t, pm.DumpText(&buf))

	dump := buf.String()
	assert.Contains(t, dump, `phxhomes_properties_processed_total{outcome="completed"} 3`)
	assert.Contains(t, dump, `phxhomes_images_downloaded_total{source="zillow"} 42`)
	assert.Contains(t, dump, "phxhomes_images_deduplicated_total 7")
	assert.True(t, strings.Contains(dump, "phxhomes_extraction_duration_seconds_bucket"))
}
