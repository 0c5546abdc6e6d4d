package comm

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Host is an I2C bus and a latch pin on the local machine
type Host struct {
	Bus  i2c.BusCloser
	LDAC gpio.PinIO
}

// OpenHost initializes periph's host drivers, opens the named I2C bus ("" for
// the first one), and looks up the named pin, driving it high (idle).
func OpenHost(busName, pinName string) (*Host, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host: init: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("host: open I2C bus %q: %w", busName, err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		bus.Close()
		return nil, fmt.Errorf("host: no pin named %q", pinName)
	}
	if err = pin.Out(gpio.High); err != nil {
		bus.Close()
		return nil, fmt.Errorf("host: drive %s high: %w", pin, err)
	}
	log.Printf("host: opened %s, latch on %s", bus, pin)
	return &Host{Bus: bus, LDAC: pin}, nil
}

// Close releases the bus.  The pin is left as is.
func (h *Host) Close() error {
	return h.Bus.Close()
}
