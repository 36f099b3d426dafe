package report

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otelLog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"pfguard/analyzer"
	"pfguard/config"
	"pfguard/logger"
	"pfguard/version"
)

// Exporter ships findings to an OTLP/HTTP logs endpoint. It is optional: a
// nil Exporter is valid and every method on it is a no-op.
type Exporter struct {
	provider     *sdklog.LoggerProvider
	logger       otelLog.Logger
	timeout      time.Duration
	endpoint     string
	includePaths bool
}

// NewExporter returns nil (and no error) when no endpoint is configured.
func NewExporter(cfg *config.Config) (*Exporter, error) {
	if cfg == nil {
		return nil, nil
	}
	endpoint := resolveEndpoint(cfg)
	if endpoint == "" {
		return nil, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("otel endpoint must include scheme (http or https)")
	}

	opts := []otlploghttp.Option{otlploghttp.WithEndpointURL(endpoint)}
	if len(cfg.OtelHeaders) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(cfg.OtelHeaders))
	}
	if cfg.OtelTimeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(cfg.OtelTimeout))
	}

	exp, err := otlploghttp.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.OtelServiceName),
		semconv.ServiceVersionKey.String(version.Version),
	)
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	)

	return &Exporter{
		provider:     provider,
		logger:       provider.Logger("pfguard"),
		timeout:      cfg.OtelTimeout,
		endpoint:     endpoint,
		includePaths: cfg.OtelExportPaths,
	}, nil
}

func resolveEndpoint(cfg *config.Config) string {
	if endpoint := strings.TrimSpace(cfg.OtelEndpoint); endpoint != "" {
		return endpoint
	}
	if !cfg.OtelFromEnv {
		return ""
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")); endpoint != "" {
		return endpoint
	}
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
}

func (e *Exporter) Endpoint() string {
	if e == nil {
		return ""
	}
	return e.endpoint
}

// Export emits one log record per finding plus a run summary record.
func (e *Exporter) Export(r *AnalysisResult) {
	if e == nil || e.logger == nil || r == nil {
		return
	}
	for i := range r.Findings {
		e.emitFinding(r, &r.Findings[i])
	}
	e.emitSummary(r)
}

func (e *Exporter) emitFinding(r *AnalysisResult, f *analyzer.Finding) {
	var record otelLog.Record
	record.SetTimestamp(r.GeneratedAt)
	record.SetObservedTimestamp(time.Now())
	record.SetEventName("pfguard.finding")
	record.SetSeverity(otelSeverity(f.Severity))
	record.SetSeverityText(f.Severity.String())
	record.SetBody(otelLog.StringValue(f.Detail))
	record.AddAttributes(
		otelLog.String("run_id", r.RunID),
		otelLog.String("finding_kind", string(f.Kind)),
		otelLog.String("subjects", strings.Join(f.Subjects, ",")),
	)
	if f.Digest != "" {
		record.AddAttributes(otelLog.String("digest", f.Digest))
	}
	if e.includePaths {
		record.AddAttributes(otelLog.String("scan_root", r.ScanRoot))
	}
	e.logger.Emit(context.Background(), record)
}

func (e *Exporter) emitSummary(r *AnalysisResult) {
	var record otelLog.Record
	record.SetTimestamp(r.GeneratedAt)
	record.SetObservedTimestamp(time.Now())
	record.SetEventName("pfguard.summary")
	record.SetSeverity(otelLog.SeverityInfo)
	record.SetBody(otelLog.StringValue("prefetch triage run completed"))
	record.AddAttributes(
		otelLog.String("run_id", r.RunID),
		otelLog.Int("total_files", r.TotalFiles),
		otelLog.Int("suspicious_files", r.SuspiciousCount()),
		otelLog.Int("error_findings", r.ErrorCount()),
		otelLog.Bool("no_files_found", r.NoFilesFound),
		otelLog.Int64("duration_ms", r.Duration.Milliseconds()),
	)
	if e.includePaths {
		record.AddAttributes(otelLog.String("scan_root", r.ScanRoot))
	}
	e.logger.Emit(context.Background(), record)
}

func (e *Exporter) Shutdown() {
	if e == nil || e.provider == nil {
		return
	}
	timeout := e.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.provider.Shutdown(ctx); err != nil {
		logger.Debugf("OTEL shutdown failed: %v", err)
	}
}

func otelSeverity(s analyzer.Severity) otelLog.Severity {
	switch s {
	case analyzer.SeverityCritical:
		return otelLog.SeverityFatal
	case analyzer.SeverityHigh:
		return otelLog.SeverityError
	case analyzer.SeverityMedium:
		return otelLog.SeverityWarn
	case analyzer.SeverityLow:
		return otelLog.SeverityInfo2
	default:
		return otelLog.SeverityInfo
	}
}
