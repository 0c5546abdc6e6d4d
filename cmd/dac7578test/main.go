// dac7578test walks a DAC7578 on the local I2C bus through a bench test,
// waiting for enter between steps so the outputs can be checked on a meter
// or scope.
//
// Usage:
//
//	dac7578test [bus] [ldac-pin]
package main

import (
	"bufio"
	"log"
	"os"
	"time"

	"github.com/nasa-jpl/golaborate-dac7578/comm"
	"github.com/nasa-jpl/golaborate-dac7578/ti/dac7578"
)

func main() {
	busName, pinName := "", "GPIO25"
	if len(os.Args) > 1 {
		busName = os.Args[1]
	}
	if len(os.Args) > 2 {
		pinName = os.Args[2]
	}
	reader := bufio.NewReader(os.Stdin)
	log.Printf("opening I2C bus %q, LDAC on %s", busName, pinName)
	h, err := comm.OpenHost(busName, pinName)
	if err != nil {
		log.Fatal(err)
	}
	defer h.Close()
	dac := dac7578.New(h.Bus, 0, h.LDAC)
	dac.Strict = true
	log.Println("talking to", dac)

	must := func(err error) {
		if err != nil {
			log.Fatal(err)
		}
	}

	log.Println("powering all channels on, all channels respect LDAC")
	must(dac.WritePowerAll(dac7578.PowerOn))
	must(dac.IgnoreLDAC(0))

	log.Println("press enter to command zero scale on every channel")
	reader.ReadString('\n')
	must(dac.SetAll(0, true))
	log.Println("press enter to command full scale on every channel (~Vref)")
	reader.ReadString('\n')
	must(dac.SetAll(dac7578.MaxCode, true))
	log.Println("press enter to return to zero scale")
	reader.ReadString('\n')
	must(dac.SetAll(0, true))

	log.Println("advancing to staged update test")
	log.Println("channel A will be staged at 1/4 scale and channel B at 3/4 scale")
	must(dac.SetChannel(0, 0x400, false))
	must(dac.SetChannel(1, 0xC00, false))
	for ch := uint8(0); ch < 2; ch++ {
		in, err := dac.ReadInput(ch)
		must(err)
		out, err := dac.ReadOutput(ch)
		must(err)
		log.Printf("channel %d: input 0x%03X output 0x%03X (output should still be 0)", ch, in, out)
	}
	log.Println("press enter to latch both with one LDAC pulse (scope should be ready to trigger)")
	reader.ReadString('\n')
	start := time.Now()
	must(dac.UpdateAll())
	log.Println("latched in", time.Since(start))
	for ch := uint8(0); ch < 2; ch++ {
		out, err := dac.ReadOutput(ch)
		must(err)
		log.Printf("channel %d: output 0x%03X", ch, out)
	}

	log.Println("advancing to power down test on channel A")
	for _, m := range []dac7578.PowerMode{dac7578.PowerDown1K, dac7578.PowerDown100K, dac7578.PowerDownHighZ, dac7578.PowerOn} {
		log.Printf("press enter to set channel A to %s", m)
		reader.ReadString('\n')
		must(dac.SetPower(0, m.String()))
	}

	log.Println("resetting to zero scale")
	must(dac.SetAll(0, true))
	log.Println("test complete")
}
