package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig holds configuration for the observability server (metrics, probes)
// and the OpenTelemetry trace exporter.
type ObservabilityConfig struct {
	// Port defines where the observability server listens.
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout is the unified safety valve for Read/Write/Idle operations.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`

	// OTLPEndpoint is the host:port of an OTLP/HTTP collector. Empty disables tracing.
	OTLPEndpoint string  `envconfig:"OTLP_ENDPOINT"`
	OTLPInsecure bool    `envconfig:"OTLP_INSECURE" default:"false"`
	SampleRate   float64 `envconfig:"TRACE_SAMPLE_RATE" default:"1" validate:"gte=0,lte=1"`
}

// TracingEnabled reports whether spans should be exported.
func (o *ObservabilityConfig) TracingEnabled() bool {
	return o.OTLPEndpoint != ""
}

// Validate checks ObservabilityConfig fields for correctness.
func (o *ObservabilityConfig) Validate() error {
	if err := validatePort(o.Port, "observability"); err != nil {
		return err
	}
	for _, p := range []string{o.LivenessPath, o.ReadinessPath, o.MetricsPath} {
		if len(p) == 0 || p[0] != '/' {
			return fmt.Errorf("observability paths must start with '/', got %q", p)
		}
	}
	return nil
}
