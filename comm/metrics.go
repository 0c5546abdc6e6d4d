package comm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"

	"github.com/nasa-jpl/golaborate-dac7578/ti/dac7578"
)

// Metrics counts traffic over a bus and a latch pin
type Metrics struct {
	tx      *prometheus.CounterVec
	errs    *prometheus.CounterVec
	latency prometheus.Histogram
	latch   *prometheus.CounterVec
}

// NewMetrics creates the collectors under subsystem and registers them with reg
func NewMetrics(reg prometheus.Registerer, subsystem string) (*Metrics, error) {
	m := &Metrics{
		tx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "bus_transactions_total",
			Help:      "I2C transactions issued, by kind (write, read, write-read).",
		}, []string{"kind"}),
		errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "bus_errors_total",
			Help:      "I2C transactions that returned an error, by kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "bus_transaction_seconds",
			Help:      "Duration of I2C transactions.",
			Buckets:   prometheus.ExponentialBuckets(50e-6, 2, 12),
		}),
		latch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "latch_transitions_total",
			Help:      "Levels driven onto the latch pin.",
		}, []string{"level"}),
	}
	for _, c := range []prometheus.Collector{m.tx, m.errs, m.latency, m.latch} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func txKind(w, r []byte) string {
	switch {
	case len(w) > 0 && len(r) > 0:
		return "write-read"
	case len(r) > 0:
		return "read"
	default:
		return "write"
	}
}

// MeteredBus is an i2c.Bus that records every transaction
type MeteredBus struct {
	i2c.Bus
	m *Metrics
}

// Bus wraps b
func (m *Metrics) Bus(b i2c.Bus) *MeteredBus {
	return &MeteredBus{Bus: b, m: m}
}

// Tx forwards to the wrapped bus
func (b *MeteredBus) Tx(addr uint16, w, r []byte) error {
	kind := txKind(w, r)
	start := time.Now()
	err := b.Bus.Tx(addr, w, r)
	b.m.latency.Observe(time.Since(start).Seconds())
	b.m.tx.WithLabelValues(kind).Inc()
	if err != nil {
		b.m.errs.WithLabelValues(kind).Inc()
	}
	return err
}

// MeteredPin is a dac7578.LDAC that records every level driven
type MeteredPin struct {
	p dac7578.LDAC
	m *Metrics
}

// Pin wraps p
func (m *Metrics) Pin(p dac7578.LDAC) *MeteredPin {
	return &MeteredPin{p: p, m: m}
}

// Out forwards to the wrapped pin
func (p *MeteredPin) Out(l gpio.Level) error {
	p.m.latch.WithLabelValues(l.String()).Inc()
	return p.p.Out(l)
}
