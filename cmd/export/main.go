// Command export runs exports from the command line, writing each one to a
// file instead of an HTTP response.
//
// Usage:
//
//	go run ./cmd/export -config configs/export.json -entity EmailSignups -format csv -out ./out
//	go run ./cmd/export -config configs/export.json -entity all -format csv -concurrency 4
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neilcrookes/export/internal/config"
	"github.com/neilcrookes/export/internal/download"
	"github.com/neilcrookes/export/internal/export"
	"github.com/neilcrookes/export/internal/metrics"
	"github.com/neilcrookes/export/internal/metrics/datadog"
	"github.com/neilcrookes/export/internal/metrics/prompush"
	"github.com/neilcrookes/export/internal/query"
	"github.com/neilcrookes/export/internal/render"
	"github.com/neilcrookes/export/internal/source"

	// register all source backends and output formats.
	// config specifies which to use but we need to build in support for all of them.
	_ "github.com/neilcrookes/export/internal/render/all"
	_ "github.com/neilcrookes/export/internal/source/all"
)

// writeBufSize is the per-file buffered writer size; the engine flushes it
// at every chunk boundary.
const writeBufSize = 1 << 18 // 256 KiB

func main() {
	var (
		cfgPath           string
		entityFlg         string
		formatFlg         string
		outDir            string
		concurrency       int
		conditionsFlg     string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/export.json", "export config JSON path")
	flag.StringVar(&entityFlg, "entity", "all", `entity to export, or "all"`)
	flag.StringVar(&formatFlg, "format", "csv", "output format (csv, jsonl)")
	flag.StringVar(&outDir, "out", ".", "output directory")
	flag.IntVar(&concurrency, "concurrency", 4, `max concurrent exports for -entity all`)
	flag.StringVar(&conditionsFlg, "conditions", "", "extra query conditions as a JSON object")
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

	var extraConds map[string]any
	if conditionsFlg != "" {
		if err := json.Unmarshal([]byte(conditionsFlg), &extraConds); err != nil {
			fatalf("parse -conditions: %v", err)
		}
	}

	var names []string
	if entityFlg == "all" {
		for name := range cf.Entities {
			names = append(names, name)
		}
		sort.Strings(names)
	} else {
		if _, ok := cf.Entities[entityFlg]; !ok {
			fatalf("unknown entity %q (have: %s)", entityFlg, strings.Join(entityNames(cf), ", "))
		}
		names = []string{entityFlg}
	}
	if len(names) == 0 {
		fatalf("no entities configured in %s", cfgPath)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fatalf("create output directory: %v", err)
	}

	flush := setupMetrics(metricsBackendFlg, pushGatewayURLFlg, statsdAddrFlg, *verbose)
	defer flush()

	if concurrency < 1 {
		concurrency = 1
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(concurrency)
	for _, name := range names {
		name := name // capture
		g.Go(func() error {
			return runOne(ctx, cf, name, formatFlg, outDir, extraConds)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed %d export(s) in %s", len(names), time.Since(start).Truncate(time.Millisecond))
	}
}

// runOne exports one entity to a file in outDir. A failed run removes its
// partial output so a half-written file can never pass for a complete one.
func runOne(ctx context.Context, cf config.File, entity, formatName, outDir string, extraConds map[string]any) error {
	ent := cf.Entities[entity]

	format, err := render.Lookup(formatName)
	if err != nil {
		return fmt.Errorf("%s: %w", entity, err)
	}
	cfg, err := config.Resolve(entity, ent, format.Name)
	if err != nil {
		return err
	}
	opts, err := query.Build(cfg, nil, entity)
	if err != nil {
		return fmt.Errorf("%s: %w", entity, err)
	}
	if len(extraConds) > 0 {
		if opts.Conditions == nil {
			opts.Conditions = make(map[string]any, len(extraConds))
		}
		for k, v := range extraConds {
			opts.Conditions[k] = v
		}
	}

	renderer, err := render.New(format.Name, render.Config{
		Fields:       cfg.Fields,
		CharEncoding: cfg.CharEncoding,
		DataVarName:  cfg.DataVarName,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", entity, err)
	}

	fetcher, err := source.New(ctx, source.Config{
		Kind:    ent.Source.Kind,
		Entity:  entity,
		DSN:     ent.Source.DSN,
		Table:   ent.Source.Table,
		Columns: ent.Source.Columns,
		Rows:    ent.Source.Rows,
	})
	if err != nil {
		return fmt.Errorf("%s: open source: %w", entity, err)
	}
	defer fetcher.Close()

	filename := download.Filename(cfg.FileNameFormat, entity, opts.Conditions, format.Extension, time.Now())
	path := filepath.Join(outDir, filename)
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s: %w", entity, err)
	}

	// bufio.Writer satisfies the engine's sink as-is: buffered writes with a
	// real flush at every chunk boundary.
	eng := export.Engine{Entity: entity, Format: format.Name, Fetcher: fetcher, Renderer: renderer}
	runStart := time.Now()
	res, runErr := eng.Run(ctx, opts, bufio.NewWriterSize(out, writeBufSize))
	metrics.RecordRun(entity, format.Name, runErr, time.Since(runStart))

	closeErr := out.Close()
	if runErr != nil {
		os.Remove(path)
		return fmt.Errorf("%s: %w (partial %s removed)", entity, runErr, path)
	}
	if closeErr != nil {
		return fmt.Errorf("%s: close %s: %w", entity, path, closeErr)
	}

	log.Printf("export: entity=%s format=%s pages=%d rows=%d bytes=%d file=%s",
		entity, format.Name, res.Pages, res.Rows, res.Bytes, path)
	return nil
}

func entityNames(cf config.File) []string {
	names := make([]string, 0, len(cf.Entities))
	for name := range cf.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
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
		b, err := prompush.NewBackend("export", gwURL)
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
