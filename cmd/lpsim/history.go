package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/lpsim/internal/adapters/notify"
	"github.com/alejandrodnm/lpsim/internal/ports"
)

// historyOptions controla qué se imprime con -history.
type historyOptions struct {
	Days     int
	RunID    string  // id o prefijo; vacío = solo el listado
	RangePct float64 // 0 = mejor rango de la corrida
}

// runHistory imprime las corridas guardadas en los últimos días y, si se
// pide una corrida, sus rebalanceos y anchos rechazados.
func runHistory(ctx context.Context, store ports.RunHistory, console *notify.Console, opts historyOptions) error {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -opts.Days)

	runs, err := store.GetRuns(ctx, from, to)
	if err != nil {
		return err
	}

	slog.Info("saved runs", "days", opts.Days, "count", len(runs))
	console.PrintHistory(runs)

	if opts.RunID == "" {
		return nil
	}

	for _, run := range runs {
		if !strings.HasPrefix(run.ID, opts.RunID) {
			continue
		}
		rangePct := opts.RangePct
		if rangePct == 0 {
			rangePct = run.BestRange
		}

		events, err := store.GetRebalances(ctx, run.ID, rangePct)
		if err != nil {
			return err
		}
		failures, err := store.GetFailures(ctx, run.ID)
		if err != nil {
			return err
		}
		console.PrintRunDetail(run, rangePct, events, failures)
		return nil
	}
	return fmt.Errorf("run %q not found in the last %d days", opts.RunID, opts.Days)
}
