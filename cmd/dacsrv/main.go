package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/golaborate-dac7578/generichttp/daq"
	"github.com/nasa-jpl/golaborate-dac7578/server/middleware/locker"
	"github.com/nasa-jpl/golaborate-dac7578/util"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "dacsrv.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `dacsrv drives a TI DAC7578 8-channel 12-bit DAC and exposes an HTTP interface to it

Usage:
	dacsrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `dacsrv is amenable to configuration via its .yaml file, dacsrv.yml in the
working directory.  For a primer on YAML, see https://yaml.org/start.html

Transport selects how the chip is reached:
- host: an I2C bus and GPIO on this computer, by periph name (Bus, LDACPin)
- firmata: an Arduino-class board running StandardFirmata on Serial.Port,
  with LDAC on its digital pin Serial.LDACPin
Mock: true serves a simulated chip and ignores Transport.

At startup every channel is set to Boot.PowerMode, the channels in
Boot.IgnoreLDAC are made to ignore the LDAC pin, and Boot.Code is written to
and latched on every channel.

Routes are served under /dac7578/, a listing is at /dac7578/endpoints.
Prometheus metrics are served at /metrics.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("dacsrv version %v\n", Version)
}

// SetupHTTP creates a new chi router that exposes an interface to the DAC,
// guarded by lock
func SetupHTTP(dac daq.DAC, lock *locker.Locker) chi.Router {
	httpD := daq.NewHTTPDAC(dac)
	locker.Inject(httpD, lock)
	r := chi.NewRouter()
	r.Use(lock.Check)
	httpD.RouteTable.Bind(r)
	return r
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	dac, closer, err := Open(c, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("connected to %s", dac)
	if err = Boot(dac, c.Boot); err != nil {
		closer.Close()
		log.Fatal("error booting DAC7578: ", err)
	}
	log.Printf("DAC7578 booted, channels %s at code %d", c.Boot.PowerMode, c.Boot.Code)
	if len(c.Boot.IgnoreLDAC) > 0 {
		ignored := util.MaskChannels(util.ChannelMask(c.Boot.IgnoreLDAC))
		log.Printf("channels %s ignore LDAC", util.IntSliceToCSV(ignored))
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Logger)
	mux.Mount("/dac7578", SetupHTTP(dac, locker.New()))
	mux.Handle("/metrics", promhttp.Handler())
	log.Println("DAC7578 available via HTTP at /dac7578")

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGABRT, syscall.SIGTERM, os.Interrupt)
	go func() {
		<-ch
		closer.Close()
		os.Exit(0)
	}()
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
