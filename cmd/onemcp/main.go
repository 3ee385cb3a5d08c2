package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"onemcp/internal/artifacts"
	"onemcp/internal/config"
	"onemcp/internal/indexer"
	"onemcp/internal/llm/providers"
	"onemcp/internal/observability"
	"onemcp/internal/persistence/databases"
	"onemcp/internal/progress"
	"onemcp/internal/retrieval"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "onemcp: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "index":
		err = runIndex(ctx, cfg, os.Args[2:])
	case "retrieve":
		err = runRetrieve(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "onemcp: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  onemcp index <handbook-dir>
  onemcp retrieve [-r request.json] <handbook-dir>`)
}

func openDriver(ctx context.Context, cfg config.Config, handbook string) (databases.GraphDriver, error) {
	drv, err := databases.Resolve(cfg.Indexing.Driver, databases.Options{
		Handbook: handbook,
		DSN:      cfg.Indexing.Postgres.DSN,
	})
	if err != nil {
		return nil, err
	}
	if err := drv.Initialize(ctx); err != nil {
		return nil, err
	}
	return drv, nil
}

func runIndex(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("index: exactly one handbook directory expected")
	}

	hb, err := indexer.LoadHandbook(fs.Arg(0))
	if err != nil {
		return err
	}
	drv, err := openDriver(ctx, cfg, hb.Name)
	if err != nil {
		return fmt.Errorf("open graph driver: %w", err)
	}
	defer func() {
		if err := drv.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("driver_shutdown_failed")
		}
	}()

	provider, err := providers.Build(cfg.LLM, nil)
	if err != nil {
		return err
	}

	coord := &indexer.Coordinator{
		Driver:    drv,
		Provider:  provider,
		Config:    cfg,
		Progress:  progress.NewRateLimited(progress.LogSink{}, 500*time.Millisecond, 1),
		Artifacts: artifacts.NewStore(cfg.Artifacts.Dir),
	}
	summary, err := coord.IndexHandbook(ctx, hb)
	if err != nil {
		return fmt.Errorf("index %s: %w", hb.Name, err)
	}

	for _, svc := range summary.Services {
		fmt.Printf("service %-24s entities=%d fields=%d operations=%d examples=%d docs=%d edges=%d skipped=%d fallback=%t\n",
			svc.Service, svc.Entities, svc.Fields, svc.Operations, svc.Examples,
			svc.Documentations, svc.Edges, svc.SkippedEdges, svc.Fallback)
	}
	fmt.Printf("documentation nodes=%d mention-edges=%d\n", summary.DocNodes, summary.DocEdges)
	fmt.Printf("indexed %s (skipped edges: %d)\n", summary.Handbook, summary.SkippedEdges)
	return nil
}

func runRetrieve(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	reqPath := fs.String("r", "", "request JSON file (default: stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("retrieve: exactly one handbook directory expected")
	}

	hb, err := indexer.LoadHandbook(fs.Arg(0))
	if err != nil {
		return err
	}
	drv, err := openDriver(ctx, cfg, hb.Name)
	if err != nil {
		return fmt.Errorf("open graph driver: %w", err)
	}
	defer func() { _ = drv.Shutdown(context.Background()) }()

	var data []byte
	if *reqPath != "" {
		data, err = os.ReadFile(*reqPath)
	} else {
		data, err = readAllStdin()
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	var req retrieval.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}

	svc := &retrieval.Service{Driver: drv, Cache: retrieval.NewCache(cfg.Retrieval.Cache)}
	resp, err := svc.Retrieve(ctx, req)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func readAllStdin() ([]byte, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return nil, fmt.Errorf("no request on stdin (use -r)")
	}
	return io.ReadAll(os.Stdin)
}
