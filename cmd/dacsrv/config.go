package main

import (
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"github.com/nasa-jpl/golaborate-dac7578/comm"
	"github.com/nasa-jpl/golaborate-dac7578/ti/dac7578"

	"github.com/prometheus/client_golang/prometheus"
	"periph.io/x/conn/v3/i2c"
)

// SerialSetup describes the Firmata bridge used when Transport is "firmata"
type SerialSetup struct {
	// Port is the serial device the board enumerates as
	Port string `koanf:"Port" yaml:"Port"`

	// Baud is the rate the Firmata sketch was built with
	Baud int `koanf:"Baud" yaml:"Baud"`

	// LDACPin is the board's digital pin wired to LDAC
	LDACPin uint8 `koanf:"LDACPin" yaml:"LDACPin"`

	// FramesPerSecond caps the sysex frame rate, 0 for no cap
	FramesPerSecond float64 `koanf:"FramesPerSecond" yaml:"FramesPerSecond"`

	// TimeoutMs bounds the wait for an I2C reply
	TimeoutMs int `koanf:"TimeoutMs" yaml:"TimeoutMs"`

	// SettleMs is waited after opening the port while the board resets
	SettleMs int `koanf:"SettleMs" yaml:"SettleMs"`
}

// BootSetup is the state the DAC is put into before serving requests
type BootSetup struct {
	// PowerMode is applied to every channel, see dac7578.ParsePowerMode
	PowerMode string `koanf:"PowerMode" yaml:"PowerMode"`

	// IgnoreLDAC lists the channels that update without an LDAC pulse
	IgnoreLDAC []int `koanf:"IgnoreLDAC" yaml:"IgnoreLDAC"`

	// Code is broadcast to every channel and latched
	Code uint16 `koanf:"Code" yaml:"Code"`
}

// Config holds the setup of the server and the hardware behind it
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Mock serves a simulated device instead of hardware
	Mock bool `koanf:"Mock" yaml:"Mock"`

	// Transport is "host" for a local I2C bus and GPIO, or "firmata"
	Transport string `koanf:"Transport" yaml:"Transport"`

	// Bus is the periph name of the I2C bus, "" for the first one
	Bus string `koanf:"Bus" yaml:"Bus"`

	// LDACPin is the periph name of the GPIO wired to LDAC
	LDACPin string `koanf:"LDACPin" yaml:"LDACPin"`

	Serial SerialSetup `koanf:"Serial" yaml:"Serial"`

	// HWAddr holds the strapped address bits; the LSB is ignored
	HWAddr uint8 `koanf:"HWAddr" yaml:"HWAddr"`

	// Vref is the reference voltage, for the volts routes
	Vref float64 `koanf:"Vref" yaml:"Vref"`

	// Strict rejects out of range channels and codes instead of masking them
	Strict bool `koanf:"Strict" yaml:"Strict"`

	Boot BootSetup `koanf:"Boot" yaml:"Boot"`
}

// DefaultConfig is the configuration used for any key the file leaves out
func DefaultConfig() Config {
	return Config{
		Addr:      ":8000",
		Transport: "host",
		LDACPin:   "GPIO25",
		Serial: SerialSetup{
			Port:            "/dev/ttyACM0",
			Baud:            57600,
			LDACPin:         7,
			FramesPerSecond: 500,
			TimeoutMs:       int(comm.DefaultTimeout / time.Millisecond),
			SettleMs:        2000,
		},
		Vref:   dac7578.DefaultVref,
		Strict: true,
		Boot: BootSetup{
			PowerMode:  dac7578.PowerOn.String(),
			IgnoreLDAC: []int{},
		},
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open connects to the bus and latch pin named by c.  The returned closer
// releases them.  When reg is not nil, bus and pin traffic is counted into it.
func Open(c Config, reg prometheus.Registerer) (*dac7578.DAC, io.Closer, error) {
	var (
		bus    i2c.Bus
		pin    dac7578.LDAC
		closer io.Closer = nopCloser{}
	)
	if math.IsNaN(c.Vref) || c.Vref <= 0 {
		return nil, nil, fmt.Errorf("reference voltage Vref must be positive, got %v", c.Vref)
	}
	switch {
	case c.Mock:
		m := dac7578.NewMock(c.HWAddr)
		bus, pin = m, m
		log.Println("serving a simulated DAC7578, no hardware will be touched")
	case strings.EqualFold(c.Transport, "host"):
		h, err := comm.OpenHost(c.Bus, c.LDACPin)
		if err != nil {
			return nil, nil, err
		}
		bus, pin, closer = h.Bus, h.LDAC, h
	case strings.EqualFold(c.Transport, "firmata"):
		f, err := comm.NewFirmata(comm.FirmataConfig{
			Port:            c.Serial.Port,
			Baud:            c.Serial.Baud,
			LDACPin:         c.Serial.LDACPin,
			FramesPerSecond: c.Serial.FramesPerSecond,
			Timeout:         time.Duration(c.Serial.TimeoutMs) * time.Millisecond,
			Settle:          time.Duration(c.Serial.SettleMs) * time.Millisecond,
		})
		if err != nil {
			return nil, nil, err
		}
		bus, pin, closer = f, f, f
	default:
		return nil, nil, fmt.Errorf("unknown transport %q, expected host or firmata", c.Transport)
	}
	if reg != nil {
		m, err := comm.NewMetrics(reg, "dac7578")
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		bus, pin = m.Bus(bus), m.Pin(pin)
	}
	d := dac7578.New(bus, c.HWAddr, pin)
	d.Vref = c.Vref
	d.Strict = c.Strict
	return d, closer, nil
}

// Boot puts the DAC into the state described by b: every channel at
// b.PowerMode, the LDAC-ignore mask applied, and b.Code on every output
func Boot(d *dac7578.DAC, b BootSetup) error {
	if err := d.SetPowerAll(b.PowerMode); err != nil {
		return err
	}
	if err := d.IgnoreLatch(b.IgnoreLDAC); err != nil {
		return err
	}
	return d.SetAll(b.Code, true)
}
