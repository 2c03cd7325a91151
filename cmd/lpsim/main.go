package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/alejandrodnm/lpsim/config"
	"github.com/alejandrodnm/lpsim/internal/adapters/binance"
	"github.com/alejandrodnm/lpsim/internal/adapters/notify"
	"github.com/alejandrodnm/lpsim/internal/adapters/storage"
	"github.com/alejandrodnm/lpsim/internal/application/simulator"
	"github.com/alejandrodnm/lpsim/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	noRebalance := flag.Bool("no-rebalance", false, "keep the initial range for the whole series")
	cached := flag.Bool("cached", false, "reuse the cached price series instead of fetching from Binance")
	dryRun := flag.Bool("dry-run", false, "do not open the database (no cache, no saved run)")
	ranges := flag.String("ranges", "", "comma-separated range widths in %, e.g. 2,5,10 (overrides config)")
	summaryCSV := flag.String("csv", "", "summary CSV path (overrides config)")
	seriesCSV := flag.String("series-csv", "", "per-period time series CSV path (overrides config)")
	workers := flag.Int("workers", -1, "simulation workers, 0 = NumCPU (overrides config)")
	history := flag.Int("history", 0, "print runs saved in the last N days and exit")
	runID := flag.String("run", "", "with -history: show rebalances and rejected ranges of this run (id prefix)")
	runRange := flag.Float64("range", 0, "with -run: scenario width to show (default: the run's best range)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *noRebalance {
		cfg.Simulation.Rebalance = false
	}
	if *ranges != "" {
		widths, err := parseWidths(*ranges)
		if err != nil {
			slog.Error("invalid -ranges", "err", err)
			os.Exit(1)
		}
		cfg.Simulation.RangeWidths = widths
	}
	if *summaryCSV != "" {
		cfg.Report.SummaryCSV = *summaryCSV
	}
	if *seriesCSV != "" {
		cfg.Report.SeriesCSV = *seriesCSV
	}
	if *workers >= 0 {
		cfg.Simulation.Workers = *workers
	}
	setupLogger(cfg.Log)

	slog.Info("lpsim starting",
		"config", *configPath,
		"pair", cfg.Simulation.Pair,
		"ranges", len(cfg.Simulation.RangeWidths),
		"rebalance", cfg.Simulation.Rebalance,
		"cached", *cached,
		"dry_run", *dryRun,
	)

	var store *storage.SQLiteStorage
	if !*dryRun {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole(cfg.Report.TopN)

	if *history > 0 {
		if store == nil {
			slog.Error("-history needs the database; drop -dry-run")
			os.Exit(1)
		}
		opts := historyOptions{Days: *history, RunID: *runID, RangePct: *runRange}
		if err := runHistory(ctx, store, console, opts); err != nil {
			slog.Error("history failed", "err", err)
			os.Exit(1)
		}
		return
	}

	client := binance.NewClient(cfg.Binance.BaseURL)
	provider := binance.NewSeriesProvider(client, binance.SeriesConfig{
		SymbolA:  cfg.Binance.SymbolA,
		SymbolB:  cfg.Binance.SymbolB,
		Interval: cfg.Binance.Interval,
		Pages:    cfg.Binance.Pages,
		Limit:    cfg.Binance.Limit,
	})

	runner := simulator.NewRunner(simulator.RunnerConfig{
		Params:  cfg.SimulationParams(),
		Pair:    cfg.Simulation.Pair,
		Workers: cfg.Simulation.Workers,
	})

	// Sin DB no hay caché ni persistencia: las interfaces quedan nil.
	var (
		cache    ports.SeriesCache
		runStore ports.RunStorage
	)
	if store != nil {
		cache = store
		runStore = store
	}

	svc := simulator.NewService(
		simulator.ServiceConfig{
			RangeWidths: cfg.Simulation.RangeWidths,
			CacheKey:    cfg.SeriesKey(),
			UseCache:    *cached,
		},
		runner,
		provider,
		cache,
		runStore,
		console,
		notify.NewCSVExporter(cfg.Report.SummaryCSV, cfg.Report.SeriesCSV),
	)

	if _, err := svc.RunOnce(ctx); err != nil {
		slog.Error("simulation failed", "err", err)
		os.Exit(1)
	}

	slog.Info("lpsim finished")
}

// parseWidths parsea "2,5,10" → [2 5 10].
func parseWidths(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		w, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", p, err)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("range %q: must be a finite number", p)
		}
		out = append(out, w)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no range widths in %q", s)
	}
	return out, nil
}

func setupLogger(cfg config.LogConfig) {
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
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
