package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Corezcy/record-latency/internal/analyzer"
	"github.com/Corezcy/record-latency/internal/config"
	"github.com/Corezcy/record-latency/internal/logging"
	"github.com/Corezcy/record-latency/internal/metadata"
	"github.com/Corezcy/record-latency/internal/metrics"
	"github.com/Corezcy/record-latency/internal/source"
	"github.com/Corezcy/record-latency/internal/storage"
)

// catalogOpener connects the run catalog.
type catalogOpener func(context.Context, metadata.CatalogConfig) (metadata.Writer, error)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	os.Exit(run(os.Args[1:], metadata.NewWriter))
}

// run executes one analysis and returns the process exit code. Every opened
// resource is closed before it returns, including on failure.
func run(args []string, openCatalog catalogOpener) int {
	cfg, err := config.Load(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		log.Printf("[main] %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingPaths) {
			fmt.Println(err)
			return 0
		}
		log.Printf("[main] invalid configuration: %v", err)
		return 1
	}

	logging.Setup(cfg.Logging)
	m := metrics.Init("")
	log.Printf("[main] record-latency %s (%s)", analyzer.Version, analyzer.GitSHA)

	ctx := context.Background()

	s3 := storage.S3Options{Endpoint: cfg.S3.Endpoint, Region: cfg.S3.Region}

	src, err := source.Open(ctx, cfg.Input.Path, source.Options{S3: s3})
	if err != nil {
		log.Printf("[main] failed to open record: %v", err)
		return 1
	}
	defer src.Close()

	store, key, err := storage.Open(ctx, cfg.Output.Path, s3)
	if err != nil {
		log.Printf("[main] failed to open output: %v", err)
		return 1
	}
	defer store.Close()

	// The catalog is optional; run without it when it is unreachable.
	meta, err := openCatalog(ctx, metadata.CatalogConfig{
		PostgresDSN: cfg.Catalog.PostgresDSN,
		Namespace:   cfg.Catalog.Namespace,
	})
	if err != nil {
		log.Printf("[main] catalog disabled: %v", err)
		m.IncCatalogErrors()
		meta = nil
	}
	if meta != nil {
		defer meta.Close()
	}

	a := analyzer.New(cfg, src, store, key, meta)
	_, runErr := a.Run(ctx)

	if cfg.Metrics.TextfilePath != "" {
		if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			log.Printf("[main] failed to write metrics: %v", err)
		}
	}

	if runErr != nil {
		log.Printf("[main] run failed: %v", runErr)
		return 1
	}
	return 0
}
