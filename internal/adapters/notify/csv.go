package notify

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/alejandrodnm/lpsim/internal/domain"
)

// CSVExporter implementa ports.Exporter: vuelca el resumen por rango y la
// serie temporal de cada escenario para graficarlos fuera.
type CSVExporter struct {
	summaryPath string // vacío = no exportar
	seriesPath  string // vacío = no exportar
}

// NewCSVExporter crea un exporter. Cualquiera de las dos rutas puede ir vacía.
func NewCSVExporter(summaryPath, seriesPath string) *CSVExporter {
	return &CSVExporter{summaryPath: summaryPath, seriesPath: seriesPath}
}

var summaryHeader = []string{
	"range_pct", "lower", "upper", "active_pct", "exits", "rebalances",
	"fees_gross", "gas_costs", "slippage_costs", "fees_net", "fee_apr_pct",
	"il_pct", "total_return_pct", "vs_hodl_pct", "final_pool", "final_hodl", "final_total",
}

var seriesHeader = []string{
	"range_pct", "timestamp", "price", "in_range", "fee",
	"pool_value", "hodl_value", "total_value", "lower", "upper",
}

// Export escribe los archivos configurados.
func (e *CSVExporter) Export(_ context.Context, report *domain.RunReport) error {
	if report == nil {
		return nil
	}
	if e.summaryPath != "" {
		if err := writeFile(e.summaryPath, func(w io.Writer) error { return WriteSummaryCSV(w, report) }); err != nil {
			return fmt.Errorf("notify.Export: summary: %w", err)
		}
		slog.Info("summary CSV saved", "path", e.summaryPath)
	}
	if e.seriesPath != "" {
		if err := writeFile(e.seriesPath, func(w io.Writer) error { return WriteSeriesCSV(w, report) }); err != nil {
			return fmt.Errorf("notify.Export: series: %w", err)
		}
		slog.Info("time series CSV saved", "path", e.seriesPath)
	}
	return nil
}

// WriteSummaryCSV escribe una fila por escenario, en orden de ancho ascendente.
func WriteSummaryCSV(w io.Writer, report *domain.RunReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, r := range report.ByRange() {
		s := r.Summary
		row := []string{
			ff(r.RangePercent),
			ff(r.InitialLower),
			ff(r.InitialUpper),
			ff(s.ActivePercent),
			strconv.Itoa(r.ExitCount),
			strconv.Itoa(r.RebalanceCount),
			ff(r.TotalFeesGross),
			ff(r.TotalGasCosts),
			ff(r.TotalSlippageCosts),
			ff(r.TotalFeesNet),
			ff(s.FeeAPRPercent),
			ff(s.ImpermanentLossPct),
			ff(s.TotalReturnPercent),
			ff(s.VsBenchmarkPercent),
			ff(s.FinalPoolValue),
			ff(s.FinalBenchmarkValue),
			ff(s.FinalTotalValue),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSeriesCSV escribe la serie temporal de todos los escenarios en formato largo
// (una fila por escenario y periodo).
func WriteSeriesCSV(w io.Writer, report *domain.RunReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(seriesHeader); err != nil {
		return err
	}
	for _, r := range report.ByRange() {
		rangeStr := ff(r.RangePercent)
		for _, p := range r.Points {
			row := []string{
				rangeStr,
				p.Timestamp.UTC().Format(time.RFC3339),
				ff(p.Price),
				strconv.FormatBool(p.InRange),
				ff(p.Fee),
				ff(p.PoolValue),
				ff(p.BenchmarkValue),
				ff(p.TotalValue),
				ff(p.Lower),
				ff(p.Upper),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ff formatea un float con la precisión mínima que lo representa exactamente.
func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
