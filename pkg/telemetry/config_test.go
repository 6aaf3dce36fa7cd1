package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")

	cfg := LoadFromEnv()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "jheapagent", cfg.ServiceName)
	assert.Equal(t, "unknown", cfg.ServiceVersion)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.Empty(t, cfg.Headers)
}

func TestLoadFromEnv_Custom(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "TRUE")
	t.Setenv("OTEL_SERVICE_NAME", "heap-inspector")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer abc=def, X-Team=runtime")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg := LoadFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "heap-inspector", cfg.ServiceName)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, "Bearer abc=def", cfg.Headers["Authorization"])
	assert.Equal(t, "runtime", cfg.Headers["X-Team"])
}

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "a=1", map[string]string{"a": "1"}},
		{"multiple", "a=1,b=2", map[string]string{"a": "1", "b": "2"}},
		{"value with equals", "token=x=y", map[string]string{"token": "x=y"}},
		{"malformed entries skipped", "a=1,=2,noeq,b=3", map[string]string{"a": "1", "b": "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseKeyValuePairs(tt.input))
		})
	}
}

func TestParseRatio(t *testing.T) {
	assert.Equal(t, 1.0, parseRatio(""))
	assert.Equal(t, 1.0, parseRatio("bogus"))
	assert.Equal(t, 0.25, parseRatio("0.25"))
	assert.Equal(t, 0.0, parseRatio("-3"))
	assert.Equal(t, 1.0, parseRatio("42"))
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		sampler  string
		arg      string
		wantDesc string
	}{
		{"", "", sdktrace.AlwaysSample().Description()},
		{"always_on", "", sdktrace.AlwaysSample().Description()},
		{"always_off", "", sdktrace.NeverSample().Description()},
		{"traceidratio", "0.5", sdktrace.TraceIDRatioBased(0.5).Description()},
		{"parentbased_always_on", "", sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{"unknown_name", "", sdktrace.AlwaysSample().Description()},
	}

	for _, tt := range tests {
		got := createSampler(&Config{Sampler: tt.sampler, SamplerArg: tt.arg})
		assert.Equal(t, tt.wantDesc, got.Description(), "sampler %q", tt.sampler)
	}
}

func TestInit_DisabledIsNoop(t *testing.T) {
	// loadConfig caches via sync.Once; exercise the disabled path directly.
	cfg := &Config{Enabled: false}
	assert.False(t, cfg.Enabled)
	assert.NoError(t, noopShutdown(t.Context()))
}
