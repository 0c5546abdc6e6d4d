package comm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
	"golang.org/x/time/rate"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Firmata protocol bytes
const (
	startSysex         = 0xF0
	endSysex           = 0xF7
	setPinMode         = 0xF4
	setDigitalPinValue = 0xF5
	stringData         = 0x71
	i2cRequest         = 0x76
	i2cReply           = 0x77
	i2cConfig          = 0x78

	pinModeOutput = 0x01

	i2cModeWrite    = 0b00000000
	i2cModeReadOnce = 0b00001000
)

// FirmataConfig describes a microcontroller running StandardFirmata
type FirmataConfig struct {
	// Port is the serial device, e.g. /dev/ttyACM0 or COM3
	Port string

	// Baud is the baud rate of the Firmata sketch, 57600 for StandardFirmata
	Baud int

	// LDACPin is the digital pin number on the microcontroller wired to LDAC
	LDACPin uint8

	// FramesPerSecond limits the rate of sysex frames sent to the board.
	// Zero is unlimited.
	FramesPerSecond float64

	// Timeout bounds the wait for an I2C reply
	Timeout time.Duration

	// Settle is waited after opening the port, while the board reboots
	Settle time.Duration
}

// Firmata is an I2C bus and a latch pin bridged through a Firmata board.
// It satisfies i2c.Bus and dac7578.LDAC.
type Firmata struct {
	conf    FirmataConfig
	conn    io.ReadWriteCloser
	rd      *bufio.Reader
	limiter *rate.Limiter
	mu      sync.Mutex
}

// NewFirmata opens the serial port with an exponential backoff and configures
// the board for I2C and the latch pin.
func NewFirmata(conf FirmataConfig) (*Firmata, error) {
	if conf.Timeout == 0 {
		conf.Timeout = DefaultTimeout
	}
	var conn io.ReadWriteCloser
	op := func() error {
		c, err := serial.OpenPort(&serial.Config{
			Name:        conf.Port,
			Baud:        conf.Baud,
			ReadTimeout: conf.Timeout,
		})
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	// boards enumerate slowly after a USB reset
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, fmt.Errorf("firmata: open %s: %w", conf.Port, err)
	}
	log.Printf("firmata: opened %s at %d baud, waiting %v for the board", conf.Port, conf.Baud, conf.Settle)
	time.Sleep(conf.Settle)
	return NewFirmataConn(conn, conf)
}

// NewFirmataConn configures a board reachable over an already open stream
func NewFirmataConn(conn io.ReadWriteCloser, conf FirmataConfig) (*Firmata, error) {
	if conf.Timeout == 0 {
		conf.Timeout = DefaultTimeout
	}
	lim := rate.Inf
	if conf.FramesPerSecond > 0 {
		lim = rate.Limit(conf.FramesPerSecond)
	}
	f := &Firmata{
		conf:    conf,
		conn:    conn,
		rd:      bufio.NewReader(conn),
		limiter: rate.NewLimiter(lim, 1),
	}
	// I2C_CONFIG with zero read delay
	if err := f.send([]byte{startSysex, i2cConfig, 0, 0, endSysex}); err != nil {
		return nil, err
	}
	if err := f.send([]byte{setPinMode, conf.LDACPin & 0x7F, pinModeOutput}); err != nil {
		return nil, err
	}
	if err := f.Out(gpio.High); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Firmata) String() string {
	return fmt.Sprintf("firmata(%s)", f.conf.Port)
}

// SetSpeed is not supported, the bus clock is fixed by the sketch
func (f *Firmata) SetSpeed(physic.Frequency) error {
	return errors.New("firmata: bus speed is set by the firmware")
}

// Close closes the serial port, waiting for a transaction in progress
func (f *Firmata) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return ErrNotConnected
	}
	err := f.conn.Close()
	if err == nil {
		f.conn = nil
	}
	return err
}

func (f *Firmata) send(frame []byte) error {
	if f.conn == nil {
		return ErrNotConnected
	}
	if err := f.limiter.Wait(context.Background()); err != nil {
		return err
	}
	_, err := f.conn.Write(frame)
	return err
}

// encode7 splits each byte into the two 7-bit halves Firmata carries in sysex
func encode7(b []byte) []byte {
	out := make([]byte, 0, 2*len(b))
	for _, v := range b {
		out = append(out, v&0x7F, v>>7)
	}
	return out
}

func decode7(b []byte) []byte {
	out := make([]byte, len(b)/2)
	for i := range out {
		out[i] = b[2*i]&0x7F | b[2*i+1]<<7
	}
	return out
}

// i2cFrame builds an I2C_REQUEST.  args must already be 7-bit clean.
func i2cFrame(addr uint16, mode byte, args []byte) []byte {
	frame := []byte{startSysex, i2cRequest, byte(addr & 0x7F), mode | byte(addr>>7)&0x07}
	frame = append(frame, args...)
	return append(frame, endSysex)
}

// readCount is the 14-bit byte count of a read request, LSB first.
// It must not go through encode7: four argument bytes would be taken as a
// register followed by a count.
func readCount(n int) []byte {
	return []byte{byte(n) & 0x7F, byte(n>>7) & 0x7F}
}

// Tx writes w, then reads len(r) bytes, each as its own I2C request.
// It returns ErrBusy if another transaction holds the bridge.
func (f *Firmata) Tx(addr uint16, w, r []byte) error {
	if !f.mu.TryLock() {
		return ErrBusy
	}
	defer f.mu.Unlock()
	if len(w) > 0 {
		if err := f.send(i2cFrame(addr, i2cModeWrite, encode7(w))); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	n := len(r)
	if err := f.send(i2cFrame(addr, i2cModeReadOnce, readCount(n))); err != nil {
		return err
	}
	data, err := f.awaitReply(addr)
	if err != nil {
		return err
	}
	if len(data) < n {
		return fmt.Errorf("firmata: short read from 0x%02X: got %d bytes, want %d", addr, len(data), n)
	}
	copy(r, data)
	return nil
}

// awaitReply reads sysex messages until an I2C reply from addr arrives.
// Other messages are skipped, except string messages which the firmware
// uses to report I2C failures.
func (f *Firmata) awaitReply(addr uint16) ([]byte, error) {
	deadline := time.Now().Add(f.conf.Timeout)
	for {
		msg, err := f.readSysex(deadline)
		if err != nil {
			return nil, err
		}
		if len(msg) == 0 {
			continue
		}
		switch msg[0] {
		case i2cReply:
			// addr LSB/MSB, register LSB/MSB, then data pairs
			if len(msg) < 5 {
				continue
			}
			from := uint16(msg[1]) | uint16(msg[2])<<7
			if from != addr {
				continue
			}
			return decode7(msg[5:]), nil
		case stringData:
			return nil, fmt.Errorf("%w: %s", ErrBridge, string(decode7(msg[1:])))
		}
	}
}

// readSysex returns the body of the next sysex message, between the start
// and end bytes.  Bytes outside a sysex are discarded.
func (f *Firmata) readSysex(deadline time.Time) ([]byte, error) {
	var (
		msg     []byte
		inSysex bool
		lastErr error
	)
	for {
		if time.Now().After(deadline) {
			if lastErr != nil {
				return nil, fmt.Errorf("%w after %v: %v", ErrTimeout, f.conf.Timeout, lastErr)
			}
			return nil, fmt.Errorf("%w after %v", ErrTimeout, f.conf.Timeout)
		}
		b, err := f.rd.ReadByte()
		if err != nil {
			// the serial port reports an expired read timeout as an
			// error; keep polling until our own deadline
			lastErr = err
			continue
		}
		switch {
		case b == startSysex:
			msg = msg[:0]
			inSysex = true
		case b == endSysex && inSysex:
			return msg, nil
		case inSysex:
			msg = append(msg, b)
		}
	}
}

// Out sets the latch pin through SET_DIGITAL_PIN_VALUE
func (f *Firmata) Out(l gpio.Level) error {
	if !f.mu.TryLock() {
		return ErrBusy
	}
	defer f.mu.Unlock()
	var v byte
	if l == gpio.High {
		v = 1
	}
	return f.send([]byte{setDigitalPinValue, f.conf.LDACPin & 0x7F, v})
}
