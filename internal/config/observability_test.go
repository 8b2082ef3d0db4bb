package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObservabilityConfig_Validation(t *testing.T) {
	runConfigCases(t, []configCase{
		{
			name:    "Should use observability defaults",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "9090", cfg.Observability.Port)
				assert.Equal(t, 5*time.Second, cfg.Observability.Timeout)
				assert.Equal(t, "/healthz", cfg.Observability.LivenessPath)
				assert.Equal(t, "/readyz", cfg.Observability.ReadinessPath)
				assert.Equal(t, "/metrics", cfg.Observability.MetricsPath)
				assert.InDelta(t, 1.0, cfg.Observability.SampleRate, 1e-9)
			},
		},
		{
			name: "Should enable tracing when an OTLP endpoint is set",
			envVars: mergeEnvVars(map[string]string{
				"XENO_OBSERVABILITY_OTLP_ENDPOINT":     "otel-collector:4318",
				"XENO_OBSERVABILITY_OTLP_INSECURE":     "true",
				"XENO_OBSERVABILITY_TRACE_SAMPLE_RATE": "0.25",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Observability.TracingEnabled())
				assert.True(t, cfg.Observability.OTLPInsecure)
				assert.InDelta(t, 0.25, cfg.Observability.SampleRate, 1e-9)
			},
		},
		{
			name:    "Should reject sample rate above 1",
			envVars: mergeEnvVars(map[string]string{"XENO_OBSERVABILITY_TRACE_SAMPLE_RATE": "2"}),
			wantErr: true,
		},
		{
			name:    "Should reject a timeout below one second",
			envVars: mergeEnvVars(map[string]string{"XENO_OBSERVABILITY_TIMEOUT": "500ms"}),
			wantErr: true,
		},
		{
			name:    "Should reject paths without leading slash",
			envVars: mergeEnvVars(map[string]string{"XENO_OBSERVABILITY_METRICS_PATH": "metrics"}),
			wantErr: true,
		},
		{
			name:    "Should reject an invalid port",
			envVars: mergeEnvVars(map[string]string{"XENO_OBSERVABILITY_PORT": "abc"}),
			wantErr: true,
		},
	})
}
