// Command exportd serves the configured entities as streaming downloads.
//
// Usage:
//
//	go run ./cmd/exportd -config configs/export.json -addr :8080
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/neilcrookes/export/internal/config"
	"github.com/neilcrookes/export/internal/httpapi"
	"github.com/neilcrookes/export/internal/metrics"
	"github.com/neilcrookes/export/internal/metrics/datadog"
	"github.com/neilcrookes/export/internal/metrics/prompush"

	// register all source backends and output formats.
	// config specifies which to use but we need to build in support for all of them.
	_ "github.com/neilcrookes/export/internal/render/all"
	_ "github.com/neilcrookes/export/internal/source/all"
)

func main() {
	var (
		cfgPath           string
		addr              string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/export.json", "export config JSON path")
	flag.StringVar(&addr, "addr", "", "listen address (overrides the config's listen)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "statsd-addr", "", "DogStatsD address (overrides env DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	var cf config.File
	if err := json.NewDecoder(f).Decode(&cf); err != nil {
		fatalf("decode config: %v", err)
	}

	issues := config.Validate(cf)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	flush := setupMetrics(metricsBackendFlg, pushGatewayURLFlg, statsdAddrFlg, *verbose)
	defer flush()

	listen := addr
	if listen == "" {
		listen = cf.Listen
	}
	if listen == "" {
		listen = ":8080"
	}

	srv := httpapi.NewServer(httpapi.Config{
		Addr:     listen,
		Entities: cf.Entities,
	})
	if *verbose {
		log.Printf("entities=%d formats registered, listening on %s", len(cf.Entities), listen)
	} else {
		log.Printf("listening on %s", listen)
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

// setupMetrics installs the selected metrics backend and returns the flush
// to defer. Backend selection: flag → env → default (none).
func setupMetrics(backendName, gwURL, statsdAddr string, verbose bool) func() {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	flush := func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend("exportd", gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: backend=%v url=%v", backendName, gwURL)
		metrics.SetBackend(b)
		return flush

	case "datadog":
		if statsdAddr == "" {
			statsdAddr = os.Getenv("DOGSTATSD_ADDR")
		}
		if statsdAddr == "" {
			statsdAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: statsdAddr, Namespace: "export."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: backend=%v addr=%v", backendName, statsdAddr)
		metrics.SetBackend(b)
		return flush

	case "none":
		// metrics disabled; nop backend remains
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
	return func() {}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
