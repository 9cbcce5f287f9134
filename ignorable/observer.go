package ignorable

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ObserverOptions struct {
	// Name 指标名前缀和 tracer 名称
	Name string `cfg:"name" def:"ignorable"`

	EnableMetrics bool `cfg:"enableMetrics"`
	EnableTracing bool `cfg:"enableTracing"`

	// Registerer 为空时使用 prometheus.DefaultRegisterer
	Registerer prometheus.Registerer `cfg:"-"`
}

// Observer 记录列获取、缓存重置和可见性切换的指标与 span，nil 时所有方法都是空操作
type Observer struct {
	name          string
	enableMetrics bool
	enableTracing bool

	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	resetTotal    *prometheus.CounterVec
	scopeTotal    *prometheus.CounterVec
	scopeWait     *prometheus.HistogramVec
	activeScopes  *prometheus.GaugeVec

	tracer trace.Tracer
}

func NewObserverWithOptions(options *ObserverOptions) (*Observer, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}

	name := options.Name
	if name == "" {
		name = "ignorable"
	}
	o := &Observer{
		name:          name,
		enableMetrics: options.EnableMetrics,
		enableTracing: options.EnableTracing,
	}

	if o.enableMetrics {
		registerer := options.Registerer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		if err := o.registerMetrics(registerer); err != nil {
			return nil, err
		}
	}

	if o.enableTracing {
		o.tracer = otel.Tracer(name)
	}

	return o, nil
}

func (o *Observer) registerMetrics(registerer prometheus.Registerer) error {
	o.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: o.name + "_column_fetches_total",
		Help: "Total number of column metadata fetches from the backing store",
	}, []string{"type", "status"})
	o.fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    o.name + "_column_fetch_duration_seconds",
		Help:    "Duration of column metadata fetches in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
	}, []string{"type"})
	o.resetTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: o.name + "_metadata_resets_total",
		Help: "Total number of column metadata resets",
	}, []string{"type"})
	o.scopeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: o.name + "_include_scopes_total",
		Help: "Total number of included columns scopes",
	}, []string{"type", "status"})
	o.scopeWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    o.name + "_include_scope_wait_seconds",
		Help:    "Time spent waiting for the per type include scope lock",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 10.0},
	}, []string{"type"})
	o.activeScopes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: o.name + "_active_include_scopes",
		Help: "Number of active included columns scopes",
	}, []string{"type"})

	var err error
	if o.fetchTotal, err = register(registerer, o.fetchTotal); err != nil {
		return err
	}
	if o.fetchDuration, err = register(registerer, o.fetchDuration); err != nil {
		return err
	}
	if o.resetTotal, err = register(registerer, o.resetTotal); err != nil {
		return err
	}
	if o.scopeTotal, err = register(registerer, o.scopeTotal); err != nil {
		return err
	}
	if o.scopeWait, err = register(registerer, o.scopeWait); err != nil {
		return err
	}
	if o.activeScopes, err = register(registerer, o.activeScopes); err != nil {
		return err
	}
	return nil
}

// register 同名指标已经注册时复用已有的 collector
func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, errors.Wrap(err, "register metric failed")
	}
	return c, nil
}

func (o *Observer) startSpan(ctx context.Context, operation string, t *EntityType) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, nil
	}
	return o.tracer.Start(ctx, o.name+"."+operation, trace.WithAttributes(
		attribute.String("component", o.name),
		attribute.String("entity.type", t.name),
		attribute.String("entity.table", t.table),
	))
}

func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// observeFetch 包装一次后端列获取
func (o *Observer) observeFetch(ctx context.Context, t *EntityType, fn func(context.Context) (int, error)) error {
	start := time.Now()
	ctx, span := o.startSpan(ctx, "fetchColumns", t)
	n, err := fn(ctx)
	if span != nil {
		span.SetAttributes(attribute.Int("columns", n))
	}
	endSpan(span, err)

	if o != nil && o.enableMetrics {
		o.fetchTotal.WithLabelValues(t.name, status(err)).Inc()
		o.fetchDuration.WithLabelValues(t.name).Observe(time.Since(start).Seconds())
	}
	return err
}

func (o *Observer) observeReset(t *EntityType) {
	if o != nil && o.enableMetrics {
		o.resetTotal.WithLabelValues(t.name).Inc()
	}
}

// observeScope 在获取到切换锁之后调用，返回的函数在作用域结束时调用
func (o *Observer) observeScope(ctx context.Context, t *EntityType, wait time.Duration) (context.Context, func(error)) {
	ctx, span := o.startSpan(ctx, "withIncludedColumns", t)
	if o != nil && o.enableMetrics {
		o.scopeWait.WithLabelValues(t.name).Observe(wait.Seconds())
		o.activeScopes.WithLabelValues(t.name).Inc()
	}

	return ctx, func(err error) {
		endSpan(span, err)
		if o != nil && o.enableMetrics {
			o.activeScopes.WithLabelValues(t.name).Dec()
			o.scopeTotal.WithLabelValues(t.name, status(err)).Inc()
		}
	}
}
