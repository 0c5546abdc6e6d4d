package comm

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/nasa-jpl/golaborate-dac7578/ti/dac7578"
)

func TestMeteredBusCounts(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry(), "test")
	if err != nil {
		t.Fatal(err)
	}
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x48, W: []byte{0x33, 0xFF, 0xF0}},
			{Addr: 0x48, R: []byte{0x12, 0x30}},
		},
		DontPanic: true,
	}
	bus := m.Bus(pb)
	if err = bus.Tx(0x48, []byte{0x33, 0xFF, 0xF0}, nil); err != nil {
		t.Fatal(err)
	}
	if err = bus.Tx(0x48, nil, make([]byte, 2)); err != nil {
		t.Fatal(err)
	}
	// playback is exhausted, so this one fails
	if err = bus.Tx(0x48, []byte{0}, nil); err == nil {
		t.Fatal("expected an error from an exhausted playback")
	}
	if v := testutil.ToFloat64(m.tx.WithLabelValues("write")); v != 2 {
		t.Errorf("expected 2 writes, got %v", v)
	}
	if v := testutil.ToFloat64(m.tx.WithLabelValues("read")); v != 1 {
		t.Errorf("expected 1 read, got %v", v)
	}
	if v := testutil.ToFloat64(m.errs.WithLabelValues("write")); v != 1 {
		t.Errorf("expected 1 write error, got %v", v)
	}
}

type failPin struct{}

func (failPin) Out(gpio.Level) error { return errors.New("stuck") }

func TestMeteredPin(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry(), "test")
	if err != nil {
		t.Fatal(err)
	}
	p := &gpiotest.Pin{N: "LDAC"}
	mp := m.Pin(p)
	mp.Out(gpio.Low)
	mp.Out(gpio.High)
	if p.Read() != gpio.High {
		t.Error("expected the level to reach the wrapped pin")
	}
	if v := testutil.ToFloat64(m.latch.WithLabelValues("Low")); v != 1 {
		t.Errorf("expected 1 low transition, got %v", v)
	}
	if err := m.Pin(failPin{}).Out(gpio.Low); err == nil {
		t.Error("expected the pin error to propagate")
	}
}

func TestMetricsRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg, "dup"); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMetrics(reg, "dup"); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMeteredPinDrivesDAC(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry(), "test")
	if err != nil {
		t.Fatal(err)
	}
	mock := dac7578.NewMock(0)
	var pin dac7578.LDAC = m.Pin(mock)
	d := dac7578.New(m.Bus(mock), 0, pin)
	if err = d.StageDN(3, 0x123); err != nil {
		t.Fatal(err)
	}
	if err = d.Update(3); err != nil {
		t.Fatal(err)
	}
	if mock.Output(3) != 0x123 {
		t.Errorf("expected 0x123 on channel 3, got 0x%03X", mock.Output(3))
	}
	if got := testutil.ToFloat64(m.latch.WithLabelValues(gpio.Low.String())); got != 1 {
		t.Errorf("expected one low pulse, got %v", got)
	}
	if got := testutil.ToFloat64(m.latch.WithLabelValues(gpio.High.String())); got != 1 {
		t.Errorf("expected one release, got %v", got)
	}
}
