package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alejandrodnm/lpsim/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

var medals = []string{"🥇", "🥈", "🥉"}

// Console implementa ports.Notifier.
type Console struct {
	out  io.Writer
	topN int
}

// NewConsole crea un notificador que escribe a stdout.
// topN controla cuántos escenarios se detallan en la conclusión.
func NewConsole(topN int) *Console {
	return &Console{out: os.Stdout, topN: topN}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, topN: 3}
}

// Notify imprime settings, estadísticas de la serie, la tabla de resultados
// ordenada por retorno y la conclusión.
func (c *Console) Notify(_ context.Context, report *domain.RunReport) error {
	if report == nil || (len(report.Results) == 0 && len(report.Failures) == 0) {
		fmt.Fprintln(c.out, "No scenarios simulated")
		return nil
	}

	c.printSettings(report)
	c.printStats(report.Stats)
	c.printTable(report)
	c.printFailures(report.Failures)
	c.printConclusion(report)
	return nil
}

// printSettings imprime la configuración de la corrida.
func (c *Console) printSettings(r *domain.RunReport) {
	p := r.Params
	mode := "rebalance on exit"
	if !p.Rebalance {
		mode = "static (no rebalancing)"
	}

	fmt.Fprintf(c.out, "\n=== LP RANGE BACKTEST — %s ===\n", r.Pair)
	fmt.Fprintf(c.out, "  Run:       %s\n", r.ID)
	fmt.Fprintf(c.out, "  Capital:   $%s\n", money(p.InitialCapital))
	fmt.Fprintf(c.out, "  Fee tier:  %g%%\n", p.FeeTierPercent)
	fmt.Fprintf(c.out, "  Costs:     gas $%.2f/rebalance, slippage %g%%\n", p.GasCostPerRebalance, p.SlippagePercent)
	fmt.Fprintf(c.out, "  Mode:      %s\n", mode)
	fmt.Fprintf(c.out, "  Ranges:    %s\n", rangeList(r.RangeWidths))
}

// printStats imprime el resumen de la serie de precios.
func (c *Console) printStats(st domain.SeriesStats) {
	if st.Periods == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n  --- SERIES ---\n")
	fmt.Fprintf(c.out, "  Candles:      %d (%.0f days)\n", st.Periods, st.Days)
	fmt.Fprintf(c.out, "  From:         %s\n", st.Start.Format("2006-01-02 15:04"))
	fmt.Fprintf(c.out, "  To:           %s\n", st.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(c.out, "  Price:        %.6f → %.6f (%+.2f%%)\n", st.FirstPrice, st.LastPrice, st.PriceChangePct)
	fmt.Fprintf(c.out, "  Min / Max:    %.6f / %.6f\n", st.MinPrice, st.MaxPrice)
	fmt.Fprintf(c.out, "  Volatility:   %.1f%% annualized\n", st.VolatilityAnnPc)
	fmt.Fprintf(c.out, "  Entry USD:    A $%.4f  B $%.2f\n", st.FirstAssetAUSD, st.FirstAssetBUSD)
}

// printTable imprime un escenario por fila, del mejor al peor retorno.
func (c *Console) printTable(r *domain.RunReport) {
	ranked := r.Ranked()
	if len(ranked) == 0 {
		return
	}
	fmt.Fprintln(c.out)

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Range", "Lower", "Upper", "Active", "Rebal", "Fees", "Costs", "Net fees", "Fee APR", "IL", "Return", "vs HODL")

	for i, res := range ranked {
		s := res.Summary
		table.Append(
			rankLabel(i),
			domain.RangeLabel(res.RangePercent),
			fmt.Sprintf("%.6f", res.InitialLower),
			fmt.Sprintf("%.6f", res.InitialUpper),
			fmt.Sprintf("%.1f%%", s.ActivePercent),
			fmt.Sprintf("%d", res.RebalanceCount),
			fmt.Sprintf("$%s", money(res.TotalFeesGross)),
			fmt.Sprintf("$%s", money(res.TotalCosts())),
			fmt.Sprintf("$%s", money(res.TotalFeesNet)),
			fmt.Sprintf("%.1f%%", s.FeeAPRPercent),
			fmt.Sprintf("%.2f%%", s.ImpermanentLossPct),
			fmt.Sprintf("%+.2f%%", s.TotalReturnPercent),
			fmt.Sprintf("%+.2f%%", s.VsBenchmarkPercent),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Lower/Upper = rango inicial | Active = % de periodos en rango")
	fmt.Fprintln(c.out, "  Costs = gas + slippage | Return = (pool + fees netos) / capital")
}

// printFailures lista los anchos rechazados.
func (c *Console) printFailures(failures map[float64]error) {
	if len(failures) == 0 {
		return
	}
	list := make([]domain.ScenarioFailure, 0, len(failures))
	for w, err := range failures {
		list = append(list, domain.ScenarioFailure{RangePercent: w, Error: err.Error()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RangePercent < list[j].RangePercent })
	c.printFailureList(list)
}

func (c *Console) printFailureList(list []domain.ScenarioFailure) {
	fmt.Fprintf(c.out, "\n  !! %d scenario(s) rejected:\n", len(list))
	for _, f := range list {
		fmt.Fprintf(c.out, "     %s: %s\n", domain.RangeLabel(f.RangePercent), f.Error)
	}
}

// printConclusion imprime el rango óptimo y el detalle de los mejores.
func (c *Console) printConclusion(r *domain.RunReport) {
	top := r.Top(c.topN)
	if len(top) == 0 {
		return
	}
	best := top[0]
	s := best.Summary

	fmt.Fprintf(c.out, "\n=== CONCLUSION ===\n")
	fmt.Fprintf(c.out, "  OPTIMAL RANGE: %s\n", domain.RangeLabel(best.RangePercent))
	fmt.Fprintf(c.out, "  ─────────────────────────────────────────────\n")
	fmt.Fprintf(c.out, "  Total return:   %+.2f%%\n", s.TotalReturnPercent)
	fmt.Fprintf(c.out, "  Fees earned:    $%s (net $%s)\n", money(best.TotalFeesGross), money(best.TotalFeesNet))
	fmt.Fprintf(c.out, "  Fee APR:        %.1f%%\n", s.FeeAPRPercent)
	fmt.Fprintf(c.out, "  Time active:    %.1f%%\n", s.ActivePercent)
	fmt.Fprintf(c.out, "  Rebalances:     %d\n", best.RebalanceCount)
	fmt.Fprintf(c.out, "  vs HODL:        %+.2f%%\n", s.VsBenchmarkPercent)

	if len(top) > 1 {
		fmt.Fprintf(c.out, "\n  Runners-up:\n")
		for i, res := range top[1:] {
			fmt.Fprintf(c.out, "  %s %-6s return %+.2f%%  APR %.1f%%  active %.1f%%\n",
				rankLabel(i+1), domain.RangeLabel(res.RangePercent),
				res.Summary.TotalReturnPercent, res.Summary.FeeAPRPercent, res.Summary.ActivePercent)
		}
	}

	if s.VsBenchmarkPercent > 0 {
		fmt.Fprintf(c.out, "\n  VEREDICTO: LP supera a HODL en %s\n\n", domain.RangeLabel(best.RangePercent))
	} else {
		fmt.Fprintf(c.out, "\n  VEREDICTO: ningún rango supera a HODL con esta serie\n\n")
	}
}

// PrintHistory imprime las corridas guardadas.
func (c *Console) PrintHistory(runs []domain.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "\n  No saved runs in that window.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Run", "Pair", "Candles", "Scen", "Mode", "Price", "Best", "Return", "Fee APR")
	for _, r := range runs {
		mode := "rebal"
		if !r.Rebalancing {
			mode = "static"
		}
		table.Append(
			r.CreatedAt.Format("2006-01-02 15:04"),
			shortID(r.ID),
			r.Pair,
			fmt.Sprintf("%d", r.Periods),
			fmt.Sprintf("%d", r.Scenarios),
			mode,
			fmt.Sprintf("%.6f → %.6f", r.InitialPrice, r.FinalPrice),
			domain.RangeLabel(r.BestRange),
			fmt.Sprintf("%+.2f%%", r.BestReturn),
			fmt.Sprintf("%.1f%%", r.BestFeeAPR),
		)
	}
	table.Render()
}

// PrintRunDetail imprime los rebalanceos de un escenario guardado y los
// anchos rechazados de la corrida.
func (c *Console) PrintRunDetail(run domain.RunSummary, rangePct float64, events []domain.RebalanceEvent, failures []domain.ScenarioFailure) {
	fmt.Fprintf(c.out, "\n=== RUN %s — %s %s ===\n", shortID(run.ID), run.Pair, domain.RangeLabel(rangePct))

	if len(events) == 0 {
		fmt.Fprintln(c.out, "  No rebalances for this scenario.")
	} else {
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "Date", "Price", "Old center", "New center", "Value", "Gas", "Slippage", "Capital after")
		for i, ev := range events {
			table.Append(
				fmt.Sprintf("%d", i+1),
				ev.Timestamp.Format("2006-01-02 15:04"),
				fmt.Sprintf("%.6f", ev.Price),
				fmt.Sprintf("%.6f", ev.OldCenter),
				fmt.Sprintf("%.6f", ev.NewCenter),
				fmt.Sprintf("$%s", money(ev.ValueBefore)),
				fmt.Sprintf("$%s", money(ev.GasCost)),
				fmt.Sprintf("$%s", money(ev.SlippageCost)),
				fmt.Sprintf("$%s", money(ev.CapitalAfter)),
			)
		}
		table.Render()
	}

	if len(failures) > 0 {
		c.printFailureList(failures)
	}
}

// --- helpers ---

func rankLabel(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d", i+1)
}

func rangeList(widths []float64) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = fmt.Sprintf("%g", w)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// money formatea un monto con dos decimales y separador de miles: 12345.678 → "12,345.68".
func money(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
