package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

// Constructor errors.
var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is read once per collection cycle.
type MetricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	NotifyDropped() uint64
}

type latencyInstruments struct {
	id      goSession.MetricID
	buckets []metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

// Exporter publishes engine metrics as observable instruments.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration

	counters  map[goSession.MetricID]metric.Int64ObservableCounter
	latencies []latencyInstruments
	dropped   metric.Int64ObservableCounter
}

// NewExporter registers instruments on meter that read from engine.
func NewExporter(meter metric.Meter, engine *goSession.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter over any MetricsSource.
func NewExporterFromSource(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	b := &builder{meter: meter}
	e := &Exporter{
		source:   source,
		counters: make(map[goSession.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters[def.ID] = b.counter(def.Name, def.Help)
	}
	for _, def := range internaldefs.HistogramDefs {
		li := latencyInstruments{id: def.ID}
		for _, suffix := range internaldefs.HistogramBoundSuffix {
			li.buckets = append(li.buckets, b.gauge(def.Name+"_bucket_le_"+suffix, "Cumulative latency bucket count."))
		}
		li.count = b.gauge(def.Name+"_count", "Latency sample count.")
		li.sum = b.seconds(def.Name+"_sum", "Latency sum in seconds.")
		e.latencies = append(e.latencies, li)
	}
	e.dropped = b.counter(internaldefs.NotifyDroppedName, "Notices dropped because the dispatcher queue was full.")
	if b.err != nil {
		return nil, b.err
	}

	reg, err := meter.RegisterCallback(e.observe, b.observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, ins := range e.counters {
		o.ObserveInt64(ins, int64(snap.Counters[id]))
	}
	for _, li := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[li.id]))
		for i, ins := range li.buckets {
			o.ObserveInt64(ins, int64(cumulative[i]))
		}
		o.ObserveInt64(li.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(li.sum, internaldefs.SumSeconds(snap.HistogramSums[li.id]))
	}
	o.ObserveInt64(e.dropped, int64(e.source.NotifyDropped()))
	return nil
}

// Close unregisters the callback. Safe on a nil exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

// builder creates instruments and keeps the first failure.
type builder struct {
	meter       metric.Meter
	observables []metric.Observable
	err         error
}

func (b *builder) counter(name, help string) metric.Int64ObservableCounter {
	ins, err := b.meter.Int64ObservableCounter(name, metric.WithDescription(help))
	b.track(name, ins, err)
	return ins
}

func (b *builder) gauge(name, help string) metric.Int64ObservableGauge {
	ins, err := b.meter.Int64ObservableGauge(name, metric.WithDescription(help))
	b.track(name, ins, err)
	return ins
}

func (b *builder) seconds(name, help string) metric.Float64ObservableGauge {
	ins, err := b.meter.Float64ObservableGauge(name, metric.WithDescription(help), metric.WithUnit("s"))
	b.track(name, ins, err)
	return ins
}

func (b *builder) track(name string, ins metric.Observable, err error) {
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("create instrument %s: %w", name, err)
		}
		return
	}
	b.observables = append(b.observables, ins)
}
