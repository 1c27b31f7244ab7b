// Package otel sets up the OpenTelemetry log pipeline of the simulator.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skidline/racecore/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ErrNoSink is returned when OTel is enabled without a writer or endpoint.
var ErrNoSink = errors.New("otel enabled but no log writer or endpoint configured")

const scopeName = "github.com/skidline/racecore/internal/otel"

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	Version      string
	BatchTimeout time.Duration
	LogWriter    io.Writer // session log file
	Endpoint     string    // OTLP collector, optional
	Insecure     bool
}

// Provider owns the simulator's log pipeline. A nil or disabled Provider is
// safe to use and does nothing.
type Provider struct {
	logs *sdklog.LoggerProvider
}

// New builds the pipeline. A disabled config gives a no-op provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporters, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)),
		))
	}
	return &Provider{logs: sdklog.NewLoggerProvider(opts...)}, nil
}

func newExporters(ctx context.Context, cfg Config) ([]sdklog.Exporter, error) {
	var exporters []sdklog.Exporter
	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}
	if len(exporters) == 0 {
		return nil, ErrNoSink
	}
	return exporters, nil
}

// Enabled reports whether records are exported.
func (p *Provider) Enabled() bool { return p != nil && p.logs != nil }

// LoggerProvider feeds the otelslog bridge. Nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	if !p.Enabled() {
		return nil
	}
	return p.logs
}

// Meter returns a meter from the global provider, or a no-op meter when
// disabled.
func (p *Provider) Meter(name string) metric.Meter {
	if !p.Enabled() {
		return noop.Meter{}
	}
	return otel.Meter(name)
}

// RaceFinished emits one summary record for a completed race.
func (p *Provider) RaceFinished(ctx context.Context, meta core.UploadMetadata) {
	if !p.Enabled() {
		return
	}
	var rec log.Record
	rec.SetTimestamp(time.Now())
	rec.SetSeverity(log.SeverityInfo)
	rec.SetBody(log.StringValue("race finished"))
	rec.AddAttributes(
		log.String("race.uuid", meta.RaceUUID),
		log.String("race.name", meta.RaceName),
		log.String("race.track", meta.TrackName),
		log.Float64("race.duration", meta.RaceDuration),
		log.Int("race.vehicles", meta.Vehicles),
		log.Int("race.laps", meta.Laps),
		log.Int64("race.best_lap_ms", meta.BestLapMs),
	)
	if meta.Winner != "" {
		rec.AddAttributes(log.String("race.winner", meta.Winner))
	}
	p.logs.Logger(scopeName).Emit(ctx, rec)
}

// Flush exports pending records.
func (p *Provider) Flush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the pipeline.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}
