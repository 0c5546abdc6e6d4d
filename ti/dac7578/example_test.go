package dac7578_test

import (
	"fmt"
	"log"

	"github.com/nasa-jpl/golaborate-dac7578/ti/dac7578"
)

// Stage two channels, then latch them with one LDAC pulse.  On hardware the
// mock is replaced by a periph i2c.Bus and gpio.PinOut.
func Example() {
	sim := dac7578.NewMock(0)
	dac := dac7578.New(sim, 0, sim)

	if err := dac.SetChannel(0, 1000, false); err != nil {
		log.Fatal(err)
	}
	if err := dac.SetChannel(1, 2000, false); err != nil {
		log.Fatal(err)
	}
	before, _ := dac.ReadOutput(1)
	if err := dac.UpdateAll(); err != nil {
		log.Fatal(err)
	}
	after, _ := dac.ReadOutput(1)
	fmt.Println(before, after)
	// Output: 0 2000
}

func ExampleEncodeWrite() {
	c := dac7578.EncodeWrite(3, 4095, true)
	fmt.Printf("% X\n", c.Bytes())
	// Output: 33 FF F0
}
