// i2c-dmxd discovers I2C pixel-strip devices on the host and re-encodes
// inbound DMX universes onto them as WS2801/LPD8806/P9813/APA102 wire
// frames.
//
// Usage:
//
//	i2c-dmxd -config /etc/i2c-dmxd.cfg [options]
//
// Options:
//
//	-config string        Device configuration file (required)
//	-device-prefix string Device file glob under /dev, comma-separated (default "i2cdev*")
//	-base-uid string      RDM base UID, "mmmm:dddddddd" hex (default "7a70:00000100")
//	-metrics-addr string  Prometheus metrics listen address (default: disabled)
//	-status-addr string   Live status websocket listen address (default: disabled)
//	-logfile string       Log file path (default: stderr)
//	-trace                Enable debug-level logging
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"i2c-dmxd/pkg/config"
	"i2c-dmxd/pkg/log"
	"i2c-dmxd/pkg/metrics"
	"i2c-dmxd/pkg/plugin"
	"i2c-dmxd/pkg/statusws"
)

func main() {
	configFile := flag.String("config", "", "Device configuration file (required)")
	devicePrefix := flag.String("device-prefix", plugin.DefaultDevicePrefix+"*", "Device file glob(s) under /dev, comma-separated")
	baseUID := flag.String("base-uid", plugin.DefaultBaseUID, "RDM base UID, \"mmmm:dddddddd\" hex")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics listen address (default: disabled)")
	statusAddr := flag.String("status-addr", "", "Live status websocket listen address (default: disabled)")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	trace := flag.Bool("trace", false, "Enable debug-level logging")

	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	root := log.New("i2c-dmxd")
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		root.SetWriter(f)
	}
	if *trace {
		root.SetLevel(log.DEBUG)
	}
	log.SetDefaultLogger(root)
	logger := log.GetLogger("i2c-dmxd")

	logger.Info("i2c-dmxd starting")

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	shutdownCh := make(chan struct{})
	go func() {
		<-sigCh
		close(shutdownCh)
	}()

	type startupResult struct {
		p   *plugin.Plugin
		err error
	}
	startCh := make(chan startupResult, 1)
	go func() {
		p, err := plugin.New(cfg, plugin.Options{
			Prefixes: strings.Split(*devicePrefix, ","),
			BaseUID:  *baseUID,
		})
		if err != nil {
			startCh <- startupResult{err: err}
			return
		}
		p.Start()
		startCh <- startupResult{p: p}
	}()

	var p *plugin.Plugin
	select {
	case <-shutdownCh:
		logger.Info("received shutdown signal during startup, exiting")
		return
	case res := <-startCh:
		if res.err != nil {
			logger.Errorf("startup failed: %v", res.err)
			os.Exit(1)
		}
		p = res.p
	}

	logger.Infof("ready, %d device(s) active", len(p.Devices()))

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	var status *statusws.Server
	if *statusAddr != "" {
		status = statusws.New(statusws.Config{
			Addr: *statusAddr,
			Sources: func() []statusws.Source {
				devs := p.Devices()
				srcs := make([]statusws.Source, len(devs))
				for i, d := range devs {
					srcs[i] = d
				}
				return srcs
			},
		})
		go func() {
			if err := status.Start(); err != nil {
				logger.Errorf("status websocket server error: %v", err)
			}
		}()
	}

	<-shutdownCh
	logger.Info("shutting down")

	if status != nil {
		status.Stop()
	}

	save := config.NewAutosaveConfig(cfg, *configFile)
	if err := p.Stop(save); err != nil {
		logger.Errorf("error stopping devices: %v", err)
	}
	if save.HasChanges() {
		if err := save.SaveChanges(*configFile); err != nil {
			logger.Errorf("error saving preferences: %v", err)
		}
	}

	logger.Info("i2c-dmxd stopped")
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, metrics.Gather())
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	logger.WithField("addr", addr).Info("metrics server starting")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("metrics server error: %v", err)
	}
}
