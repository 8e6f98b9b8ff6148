package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the telemetry configuration of one process.
type Config struct {
	ServiceName    string `validate:"required"`
	ServiceVersion string `validate:"required"`
	Environment    string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `validate:"oneof=trace debug info warn error fatal"`
	Format string `validate:"oneof=console json"`

	// Output is "stdout", "stderr" or a file path.
	Output string

	EnableCaller bool

	// Sampling applies to trace and debug lines only: SamplingInitial per
	// second, then every SamplingThereafter-th.
	EnableSampling     bool
	SamplingInitial    int
	SamplingThereafter int

	// TimeFormat is unix, unixms or rfc3339.
	TimeFormat string
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool

	// Exporter is otlp, stdout or none. Checked only when Enabled.
	Exporter string
	Endpoint string

	SamplingRate       float64 `validate:"gte=0,lte=1"`
	MaxExportBatchSize int
	ExportTimeout      time.Duration
	Headers            map[string]string
	Insecure           bool
}

// MetricsConfig configures the prometheus registry.
type MetricsConfig struct {
	Enabled bool

	// ListenAddress serves Path when set; empty collects without serving.
	ListenAddress string
	Path          string
	Namespace     string

	// TickBuckets are runtime tick duration buckets, in seconds.
	TickBuckets []float64
}

// EventsConfig configures the event publisher.
type EventsConfig struct {
	Enabled bool

	// EnableAsync delivers from a goroutine through a BufferSize queue.
	// Synchronous delivery returns from Publish after every subscriber ran.
	EnableAsync bool
	BufferSize  int
}

// DefaultConfig logs to stderr in console format, collects metrics without
// serving them and does not trace.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "stattweaks",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stderr",
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:           "none",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            map[string]string{},
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:     true,
			Path:        "/metrics",
			Namespace:   "stattweaks",
			TickBuckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
		},
	}
}

// ProductionConfig logs JSON with sampling and exports a tenth of traces
// over OTLP. The caller must set Tracing.Endpoint.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.EnableSampling = true
	cfg.Logging.TimeFormat = "unix"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	return cfg
}

// DevelopmentConfig logs debug lines with callers and prints spans.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.EnableCaller = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	return cfg
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateTracing, TracingConfig{})
	v.RegisterStructValidation(validateEvents, EventsConfig{})
	return v
}

func validateTracing(sl validator.StructLevel) {
	tc := sl.Current().Interface().(TracingConfig)
	if !tc.Enabled {
		return
	}
	switch tc.Exporter {
	case "otlp":
		if tc.Endpoint == "" {
			sl.ReportError(tc.Endpoint, "Endpoint", "Endpoint", "required_for_otlp", "")
		}
	case "stdout", "none":
	default:
		sl.ReportError(tc.Exporter, "Exporter", "Exporter", "oneof", "otlp stdout none")
	}
}

func validateEvents(sl validator.StructLevel) {
	ec := sl.Current().Interface().(EventsConfig)
	if ec.Enabled && ec.EnableAsync && ec.BufferSize <= 0 {
		sl.ReportError(ec.BufferSize, "BufferSize", "BufferSize", "gt", "0")
	}
}

// Validate checks field values and the exporter and buffer combinations.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += " " + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s (got %v)", msg, fe.Value()))
	}
	return fmt.Errorf("invalid telemetry config: %s", strings.Join(msgs, "; "))
}
