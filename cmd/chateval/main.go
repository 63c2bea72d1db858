// Command chateval scrapes answers from the hosted chat application for a
// dataset of prompts, grades them with an LLM judge, and reports aggregate
// results plus a link to the hosted experiment view.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/chateval/api"
	"github.com/use-agent/chateval/config"
	"github.com/use-agent/chateval/judge"
	"github.com/use-agent/chateval/models"
	"github.com/use-agent/chateval/runner"
	"github.com/use-agent/chateval/scraper"
	"github.com/use-agent/chateval/tracking"
)

func main() {
	// ── 1. Load configuration + flags ───────────────────────────────
	cfg := config.Load()

	serve := flag.Bool("serve", false, "serve the results viewer after the run finishes")
	headless := flag.Bool("headless", cfg.Browser.Headless, "run the browser headless")
	timeoutMS := flag.Int("timeout-ms", int(cfg.Scraper.Timeout.Milliseconds()), "per-answer wait timeout in milliseconds")
	datasetPath := flag.String("dataset", "", "path to a JSON dataset file (built-in examples when omitted)")
	flag.Parse()
	cfg.Browser.Headless = *headless
	cfg.Scraper.Timeout = time.Duration(*timeoutMS) * time.Millisecond

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	// ── 3. Validate before touching the browser or any provider ─────
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ds := models.SeedDataset()
	if *datasetPath != "" {
		loaded, err := models.LoadDataset(*datasetPath)
		if err != nil {
			slog.Error("invalid dataset file", "path", *datasetPath, "error", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		ds = loaded
	}

	slog.Info("chateval starting",
		"target", cfg.Scraper.TargetURL,
		"headless", cfg.Browser.Headless,
		"timeout", cfg.Scraper.Timeout,
	)

	// ── 4. Launch the scraper (starts the browser) ──────────────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	// ── 5. Wire the run ─────────────────────────────────────────────
	gr := judge.NewClient(nil, cfg.Judge)
	tr := tracking.NewClient(nil, cfg.Tracking)
	r := runner.New(sc, gr, tr, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 6. Run the evaluation ───────────────────────────────────────
	summary, runErr := r.Run(ctx, ds)

	printSummary(summary, runErr)

	// ── 7. Optional results viewer ──────────────────────────────────
	if *serve && summary != nil {
		serveResults(ctx, cfg.Server.Addr, summary, sc)
	}

	if runErr != nil {
		os.Exit(1)
	}
}

// printSummary writes the human-readable run report to stdout.
func printSummary(summary *models.RunSummary, runErr error) {
	if summary == nil {
		return
	}

	fmt.Println()
	fmt.Println("==================================================")
	fmt.Printf("Run:        %s\n", summary.RunName)
	fmt.Printf("Dataset:    %s\n", summary.DatasetName)
	fmt.Printf("Examples:   %d total, %d graded, %d passed, %d scrape failures\n",
		summary.Total, summary.Graded, summary.Passed, summary.ScrapeFailures)
	if summary.Graded > 0 {
		fmt.Printf("Mean score: %.2f\n", summary.MeanScore)
	}
	fmt.Printf("Duration:   %s\n", summary.Duration.Round(time.Second))
	fmt.Println("==================================================")

	for _, res := range summary.Results {
		status := "PASS"
		switch {
		case res.Error != nil:
			status = "ERROR (" + res.Error.Code + ")"
		case !res.Passed:
			status = "FAIL"
		}
		fmt.Printf("  [%d] %-10s %s\n", res.Index, status, res.Question)
	}

	if summary.ExperimentURL != "" {
		fmt.Printf("\nView detailed results at: %s\n", summary.ExperimentURL)
	}
	if runErr != nil {
		fmt.Printf("\nRun aborted: %v\n", runErr)
	}
}

// serveResults exposes the run summary over HTTP until interrupted.
func serveResults(ctx context.Context, addr string, summary *models.RunSummary, sc *scraper.Scraper) {
	store := api.NewStore()
	store.Set(summary)

	router := api.NewRouter(store, sc.Stats, time.Now())
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		slog.Info("results viewer listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("results viewer error", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("results viewer forced shutdown", "error", err)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
