package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/lpsim/internal/domain"
	"github.com/google/uuid"
)

// RunnerConfig contiene la configuración del runner de escenarios.
type RunnerConfig struct {
	Params  domain.SimulationParams
	Pair    string // etiqueta del par, p.ej. "CAKE/BNB"
	Workers int    // goroutines para simular en paralelo (0 = NumCPU)
}

// Runner corre el Rebalancing Engine para cada ancho de rango pedido y
// junta los resultados en un RunReport.
type Runner struct {
	cfg RunnerConfig
	now func() time.Time
}

// NewRunner crea un Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{cfg: cfg, now: time.Now}
}

// Run simula todos los anchos sobre la misma serie y el mismo capital inicial.
//
// Parámetros inválidos o una serie inválida abortan la corrida. Un ancho
// inválido (≤ 0 o ≥ 100) solo invalida su propio escenario: queda en
// report.Failures y el resto sigue. Los anchos repetidos se simulan una vez.
func (r *Runner) Run(ctx context.Context, series []domain.PriceObservation, widths []float64) (*domain.RunReport, error) {
	if err := r.cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("simulator.Run: params: %w", err)
	}
	if err := domain.ValidateSeries(series); err != nil {
		return nil, fmt.Errorf("simulator.Run: series: %w", err)
	}

	start := r.now()
	widths = uniqueWidths(widths)
	report := &domain.RunReport{
		ID:          uuid.New().String(),
		CreatedAt:   start.UTC(),
		Pair:        r.cfg.Pair,
		Params:      r.cfg.Params,
		RangeWidths: widths,
		Stats:       domain.ComputeSeriesStats(series, r.cfg.Params.PeriodsPerDay),
		Results:     make(map[float64]*domain.ScenarioResult, len(widths)),
		Failures:    make(map[float64]error),
	}

	valid := make([]float64, 0, len(widths))
	for _, w := range widths {
		if err := domain.ValidateRange(w); err != nil {
			slog.Warn("scenario rejected", "range", w, "err", err)
			report.Failures[w] = err
			continue
		}
		valid = append(valid, w)
	}

	for _, o := range simulateConcurrent(ctx, series, valid, r.cfg.Params, r.cfg.Workers) {
		if o.err != nil {
			if errors.Is(o.err, context.Canceled) || errors.Is(o.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("simulator.Run: %w", o.err)
			}
			report.Failures[o.rangePct] = o.err
			continue
		}
		report.Results[o.rangePct] = o.result
	}
	report.Elapsed = r.now().Sub(start)

	slog.Info("simulation complete",
		"run_id", report.ID,
		"scenarios", len(report.Results),
		"failed", len(report.Failures),
		"periods", len(series),
		"rebalancing", r.cfg.Params.Rebalance,
		"duration", report.Elapsed.Round(time.Millisecond),
	)
	return report, nil
}

// uniqueWidths quita duplicados conservando el orden pedido.
func uniqueWidths(widths []float64) []float64 {
	seen := make(map[float64]bool, len(widths))
	out := make([]float64, 0, len(widths))
	for _, w := range widths {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
