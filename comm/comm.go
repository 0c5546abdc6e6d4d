/*Package comm provides the transports a bus-attached device driver runs on.

A driver consumes two things: an I2C bus, expressed as periph's i2c.Bus, and
a latch pin, expressed as dac7578.LDAC.  This package supplies both in
three flavors:
	1.  Host: the I2C controller and GPIO of the machine the program runs on,
		discovered through periph's registries.
	2.  Firmata: a microcontroller running StandardFirmata on a serial port,
		bridging its I2C pins and one digital pin to the host.
	3.  Metered: decorators over either that count transactions, errors,
		and latch transitions for Prometheus.

Transports report the status of a transaction as an error: nil on success,
ErrBusy when the transport is already in a transaction, ErrTimeout when the
remote did not answer in time, anything else verbatim.  Nothing here retries a
transaction; opening a transport is retried with an exponential backoff.
*/
package comm

import (
	"errors"
	"time"
)

// DefaultTimeout bounds a single bus transaction
const DefaultTimeout = 100 * time.Millisecond

var (
	// ErrBusy is generated when a transaction is attempted while another is in progress
	ErrBusy = errors.New("transport busy")

	// ErrTimeout is generated when the remote does not answer within the timeout
	ErrTimeout = errors.New("transport timeout")

	// ErrNotConnected is generated when the connection is nil and Tx or Out is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrBridge is generated when a bus bridge reports a failure of its own
	ErrBridge = errors.New("bridge reported an error")
)
