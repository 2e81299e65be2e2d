package observability

import (
	"context"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Options configures New. Registerer defaults to the global Prometheus registry.
type Options struct {
	ServiceName    string
	JaegerEndpoint string
	SampleRatio    float64
	Registerer     prom.Registerer
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	auditCounter  otelmetric.Int64Counter
	leaksDetected otelmetric.Int64Counter
	revenueAtRisk otelmetric.Float64Histogram
}

// New wires an OTel meter backed by the Prometheus exporter and a tracer
// that exports to Jaeger when an endpoint is configured. Exporter failures
// degrade to no-op instruments and are returned as the second value.
func New(opts Options) (*Observability, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "leak-audit"
	}
	o := &Observability{}
	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
	}
	var firstErr error
	if opts.JaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)))
		if err != nil {
			firstErr = err
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
		}
	}
	o.tracerProvider = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(o.tracerProvider)
	o.tracer = o.tracerProvider.Tracer(opts.ServiceName)

	var promOpts []prometheus.Option
	if opts.Registerer != nil {
		promOpts = append(promOpts, prometheus.WithRegisterer(opts.Registerer))
	}
	exporter, err := prometheus.New(promOpts...)
	if err != nil {
		if firstErr == nil {
			firstErr = err
		}
		return o, firstErr
	}

	o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(o.meterProvider)
	meter := o.meterProvider.Meter(opts.ServiceName)

	o.jobCounter, _ = meter.Int64Counter("jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"))
	o.jobDuration, _ = meter.Float64Histogram("jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"))
	o.auditCounter, _ = meter.Int64Counter("audits.completed",
		otelmetric.WithDescription("Number of leak audits run"))
	o.leaksDetected, _ = meter.Int64Counter("audits.leaks",
		otelmetric.WithDescription("Leaks found across audits"))
	o.revenueAtRisk, _ = meter.Float64Histogram("audits.revenue_at_risk",
		otelmetric.WithDescription("Revenue at risk per audit"),
		otelmetric.WithUnit("USD"))

	return o, firstErr
}

// StartSpan opens a span on the service tracer.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
	))
}

// RecordAudit records one finished audit.
func (o *Observability) RecordAudit(ctx context.Context, provider, status string, leaks int, revenueAtRisk float64) {
	if o == nil || o.auditCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("provider", provider))
	o.auditCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
	o.leaksDetected.Add(ctx, int64(leaks), attrs)
	o.revenueAtRisk.Record(ctx, revenueAtRisk, attrs)
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	if o.tracerProvider != nil {
		err = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		if mErr := o.meterProvider.Shutdown(ctx); mErr != nil && err == nil {
			err = mErr
		}
	}
	return err
}
