package storage

// sqlite.go: persistencia de corridas y caché de la serie.
//
// Estrategia:
//   - `runs`: una fila por corrida, con el mejor escenario desnormalizado para
//     poder listar el historial sin joins.
//   - `scenarios`: una fila por ancho de rango simulado (solo el resumen; la
//     serie temporal por periodo va al CSV, no a la DB).
//   - `rebalances`: los eventos de reposicionamiento de cada escenario.
//   - `scenario_failures`: anchos rechazados por validación.
//   - `series_cache`: la serie del par, para re-simular sin volver a Binance.
//   - Prune automático al arrancar: corridas > 90d.
//
// Los timestamps se guardan como unix millis (INTEGER).

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/lpsim/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrSeriesNotCached se devuelve cuando no hay copia de la serie bajo la clave pedida.
var ErrSeriesNotCached = errors.New("series not cached")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    created_at      INTEGER NOT NULL,
    pair            TEXT    NOT NULL,
    periods         INTEGER NOT NULL,
    series_start    INTEGER NOT NULL,
    series_end      INTEGER NOT NULL,
    first_price     REAL    NOT NULL,
    last_price      REAL    NOT NULL,
    volatility      REAL    NOT NULL DEFAULT 0,
    capital         REAL    NOT NULL,
    fee_tier        REAL    NOT NULL,
    gas_cost        REAL    NOT NULL,
    slippage        REAL    NOT NULL,
    rebalancing     INTEGER NOT NULL,
    elapsed_ms      INTEGER NOT NULL DEFAULT 0,
    best_range      REAL    NOT NULL DEFAULT 0,
    best_return     REAL    NOT NULL DEFAULT 0,
    best_fee_apr    REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS scenarios (
    run_id           TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    range_pct        REAL    NOT NULL,
    initial_lower    REAL    NOT NULL,
    initial_upper    REAL    NOT NULL,
    fees_gross       REAL    NOT NULL,
    gas_costs        REAL    NOT NULL,
    slippage_costs   REAL    NOT NULL,
    fees_net         REAL    NOT NULL,
    periods_in       INTEGER NOT NULL,
    periods_out      INTEGER NOT NULL,
    exits            INTEGER NOT NULL,
    rebalances       INTEGER NOT NULL,
    active_pct       REAL    NOT NULL,
    final_pool       REAL    NOT NULL,
    final_benchmark  REAL    NOT NULL,
    final_total      REAL    NOT NULL,
    total_return     REAL    NOT NULL,
    fee_apr          REAL    NOT NULL,
    il_pct           REAL    NOT NULL,
    vs_benchmark     REAL    NOT NULL,
    PRIMARY KEY (run_id, range_pct)
);

CREATE TABLE IF NOT EXISTS rebalances (
    run_id        TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    range_pct     REAL    NOT NULL,
    ts            INTEGER NOT NULL,
    price         REAL    NOT NULL,
    old_center    REAL    NOT NULL,
    new_center    REAL    NOT NULL,
    value_before  REAL    NOT NULL,
    gas_cost      REAL    NOT NULL,
    slippage_cost REAL    NOT NULL,
    capital_after REAL    NOT NULL
);

CREATE TABLE IF NOT EXISTS scenario_failures (
    run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    range_pct REAL NOT NULL,
    error     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS series_cache (
    key        TEXT    NOT NULL,
    ts         INTEGER NOT NULL,
    pair_price REAL    NOT NULL,
    a_usd      REAL    NOT NULL,
    b_usd      REAL    NOT NULL,
    volume     REAL    NOT NULL,
    PRIMARY KEY (key, ts)
);

CREATE INDEX IF NOT EXISTS idx_runs_created   ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_rebalances_run ON rebalances(run_id, range_pct);
`

const retentionRuns = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.RunStorage y ports.SeriesCache usando SQLite
// (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia corridas antiguas.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRun persiste la corrida, sus escenarios, rebalanceos y fallos en una
// sola transacción.
func (s *SQLiteStorage) SaveRun(ctx context.Context, report *domain.RunReport) error {
	if report == nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	var bestRange, bestReturn, bestAPR float64
	if best := report.Best(); best != nil {
		bestRange = best.RangePercent
		bestReturn = best.Summary.TotalReturnPercent
		bestAPR = best.Summary.FeeAPRPercent
	}
	st := report.Stats
	p := report.Params

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, created_at, pair, periods, series_start, series_end, first_price,
			 last_price, volatility, capital, fee_tier, gas_cost, slippage,
			 rebalancing, elapsed_ms, best_range, best_return, best_fee_apr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.CreatedAt.UnixMilli(),
		report.Pair,
		st.Periods,
		st.Start.UnixMilli(),
		st.End.UnixMilli(),
		st.FirstPrice,
		st.LastPrice,
		st.VolatilityAnnPc,
		p.InitialCapital,
		p.FeeTierPercent,
		p.GasCostPerRebalance,
		p.SlippagePercent,
		boolToInt(p.Rebalance),
		report.Elapsed.Milliseconds(),
		bestRange,
		bestReturn,
		bestAPR,
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", report.ID, err)
	}

	scenStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scenarios
			(run_id, range_pct, initial_lower, initial_upper, fees_gross, gas_costs,
			 slippage_costs, fees_net, periods_in, periods_out, exits, rebalances,
			 active_pct, final_pool, final_benchmark, final_total, total_return,
			 fee_apr, il_pct, vs_benchmark)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare scenarios: %w", err)
	}
	defer scenStmt.Close()

	rebStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rebalances
			(run_id, range_pct, ts, price, old_center, new_center, value_before,
			 gas_cost, slippage_cost, capital_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare rebalances: %w", err)
	}
	defer rebStmt.Close()

	for _, r := range report.ByRange() {
		sm := r.Summary
		if _, err := scenStmt.ExecContext(ctx,
			report.ID, r.RangePercent, r.InitialLower, r.InitialUpper,
			r.TotalFeesGross, r.TotalGasCosts, r.TotalSlippageCosts, r.TotalFeesNet,
			r.PeriodsInRange, r.PeriodsOutOfRange, r.ExitCount, r.RebalanceCount,
			sm.ActivePercent, sm.FinalPoolValue, sm.FinalBenchmarkValue, sm.FinalTotalValue,
			sm.TotalReturnPercent, sm.FeeAPRPercent, sm.ImpermanentLossPct, sm.VsBenchmarkPercent,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert scenario %s: %w", domain.RangeLabel(r.RangePercent), err)
		}

		for _, ev := range r.Rebalances {
			if _, err := rebStmt.ExecContext(ctx,
				report.ID, r.RangePercent, ev.Timestamp.UnixMilli(), ev.Price,
				ev.OldCenter, ev.NewCenter, ev.ValueBefore, ev.GasCost,
				ev.SlippageCost, ev.CapitalAfter,
			); err != nil {
				return fmt.Errorf("storage.SaveRun: insert rebalance: %w", err)
			}
		}
	}

	for w, ferr := range report.Failures {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			slog.Warn("skipping failure with non-finite range", "run_id", report.ID, "err", ferr)
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_failures (run_id, range_pct, error) VALUES (?, ?, ?)`,
			report.ID, w, ferr.Error(),
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetRuns devuelve las corridas creadas en el rango dado, las más recientes primero.
func (s *SQLiteStorage) GetRuns(ctx context.Context, from, to time.Time) ([]domain.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.pair, r.periods, r.rebalancing,
		       r.best_range, r.best_return, r.best_fee_apr,
		       r.first_price, r.last_price,
		       (SELECT COUNT(*) FROM scenarios sc WHERE sc.run_id = r.id)
		FROM runs r
		WHERE r.created_at BETWEEN ? AND ?
		ORDER BY r.created_at DESC
	`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("storage.GetRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		var rs domain.RunSummary
		var createdAt int64
		var rebalancing int
		if err := rows.Scan(
			&rs.ID,
			&createdAt,
			&rs.Pair,
			&rs.Periods,
			&rebalancing,
			&rs.BestRange,
			&rs.BestReturn,
			&rs.BestFeeAPR,
			&rs.InitialPrice,
			&rs.FinalPrice,
			&rs.Scenarios,
		); err != nil {
			return nil, fmt.Errorf("storage.GetRuns: scan row: %w", err)
		}
		rs.CreatedAt = time.UnixMilli(createdAt).UTC()
		rs.Rebalancing = rebalancing == 1
		runs = append(runs, rs)
	}
	return runs, rows.Err()
}

// GetRebalances devuelve los eventos de un escenario guardado, en orden cronológico.
func (s *SQLiteStorage) GetRebalances(ctx context.Context, runID string, rangePct float64) ([]domain.RebalanceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, price, old_center, new_center, value_before, gas_cost, slippage_cost, capital_after
		FROM rebalances
		WHERE run_id = ? AND range_pct = ?
		ORDER BY ts ASC
	`, runID, rangePct)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRebalances: query: %w", err)
	}
	defer rows.Close()

	var events []domain.RebalanceEvent
	for rows.Next() {
		var ev domain.RebalanceEvent
		var ts int64
		if err := rows.Scan(&ts, &ev.Price, &ev.OldCenter, &ev.NewCenter,
			&ev.ValueBefore, &ev.GasCost, &ev.SlippageCost, &ev.CapitalAfter); err != nil {
			return nil, fmt.Errorf("storage.GetRebalances: scan row: %w", err)
		}
		ev.Timestamp = time.UnixMilli(ts).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetFailures devuelve los anchos rechazados de una corrida, ordenados por ancho.
func (s *SQLiteStorage) GetFailures(ctx context.Context, runID string) ([]domain.ScenarioFailure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT range_pct, error
		FROM scenario_failures
		WHERE run_id = ?
		ORDER BY range_pct ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetFailures: query: %w", err)
	}
	defer rows.Close()

	var failures []domain.ScenarioFailure
	for rows.Next() {
		var f domain.ScenarioFailure
		if err := rows.Scan(&f.RangePercent, &f.Error); err != nil {
			return nil, fmt.Errorf("storage.GetFailures: scan row: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// SaveSeries reemplaza la copia de la serie guardada bajo key.
func (s *SQLiteStorage) SaveSeries(ctx context.Context, key string, series []domain.PriceObservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSeries: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM series_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage.SaveSeries: clear %q: %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO series_cache (key, ts, pair_price, a_usd, b_usd, volume)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveSeries: prepare: %w", err)
	}
	defer stmt.Close()

	for _, obs := range series {
		if _, err := stmt.ExecContext(ctx,
			key, obs.Timestamp.UnixMilli(), obs.PairPrice, obs.AssetAUSD, obs.AssetBUSD, obs.PeriodVolume,
		); err != nil {
			return fmt.Errorf("storage.SaveSeries: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSeries: commit: %w", err)
	}
	return nil
}

// LoadSeries devuelve la serie guardada bajo key en orden ascendente.
// Devuelve ErrSeriesNotCached si no hay nada guardado.
func (s *SQLiteStorage) LoadSeries(ctx context.Context, key string) ([]domain.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, pair_price, a_usd, b_usd, volume
		FROM series_cache
		WHERE key = ?
		ORDER BY ts ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadSeries: query: %w", err)
	}
	defer rows.Close()

	var series []domain.PriceObservation
	for rows.Next() {
		var obs domain.PriceObservation
		var ts int64
		if err := rows.Scan(&ts, &obs.PairPrice, &obs.AssetAUSD, &obs.AssetBUSD, &obs.PeriodVolume); err != nil {
			return nil, fmt.Errorf("storage.LoadSeries: scan row: %w", err)
		}
		obs.Timestamp = time.UnixMilli(ts).UTC()
		series = append(series, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.LoadSeries: %w", err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("storage.LoadSeries: %q: %w", key, ErrSeriesNotCached)
	}
	return series, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina corridas antiguas; escenarios y eventos caen en cascada.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns).UnixMilli()
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
