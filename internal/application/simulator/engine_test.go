package simulator_test

import (
	"math"
	"testing"
	"time"

	"github.com/alejandrodnm/lpsim/internal/application/simulator"
	"github.com/alejandrodnm/lpsim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

var start = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

// makeSeries arma una serie horaria con B = $1 (el precio USD de A es el del par).
func makeSeries(prices []float64, volume float64) []domain.PriceObservation {
	series := make([]domain.PriceObservation, len(prices))
	for i, p := range prices {
		series[i] = domain.PriceObservation{
			Timestamp:    start.Add(time.Duration(i) * time.Hour),
			PairPrice:    p,
			AssetAUSD:    p,
			AssetBUSD:    1,
			PeriodVolume: volume,
		}
	}
	return series
}

func repeat(price float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// wave oscila ±amplitude alrededor de 1.0.
func wave(n int, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 + amplitude*math.Sin(float64(i)/7)
	}
	return out
}

func testParams() domain.SimulationParams {
	p := domain.DefaultSimulationParams()
	p.GasCostPerRebalance = 0.5
	p.SlippagePercent = 0.1
	return p
}

func assertConservation(t *testing.T, r *domain.ScenarioResult) {
	t.Helper()
	assert.Equal(t, r.TotalFeesGross-r.TotalGasCosts-r.TotalSlippageCosts, r.TotalFeesNet)
	assert.Equal(t, len(r.Points), r.PeriodsInRange+r.PeriodsOutOfRange)
	assert.Equal(t, r.Summary.Periods, len(r.Points))
}

// --- escenarios end-to-end ---

func TestSimulate_SingleJumpRebalancesOnce(t *testing.T) {
	series := makeSeries(concat(repeat(1.0, 100), repeat(1.5, 100)), 1_000)

	r, err := simulator.Simulate(series, 2, testParams())
	require.NoError(t, err)

	assert.InDelta(t, 0.98, r.InitialLower, 1e-12)
	assert.InDelta(t, 1.02, r.InitialUpper, 1e-12)
	assert.Equal(t, 1, r.RebalanceCount)
	assert.Equal(t, 1, r.ExitCount)
	assert.Equal(t, 100, r.PeriodsInRange)
	assert.Equal(t, 100, r.PeriodsOutOfRange)

	require.Len(t, r.Rebalances, 1)
	ev := r.Rebalances[0]
	assert.Equal(t, series[100].Timestamp, ev.Timestamp)
	assert.InDelta(t, 1.02, ev.NewCenter, 1e-12, "reposiciona al borde cruzado, no al precio")
	assert.Equal(t, 0.5, r.TotalGasCosts)
	assert.Greater(t, r.TotalSlippageCosts, 0.0)
	assert.InDelta(t, ev.ValueBefore*0.001, r.TotalSlippageCosts, 1e-9)
	assert.InDelta(t, ev.ValueBefore-0.5-ev.SlippageCost, ev.CapitalAfter, 1e-9)

	// 100 periodos dentro, cada uno con el tope de 50% de los fees generados
	assert.InDelta(t, 125.0, r.TotalFeesGross, 1e-9)
	assert.Greater(t, r.Points[50].Fee, 0.0)
	assert.Equal(t, 0.0, r.Points[150].Fee)

	assertConservation(t, r)
}

func TestSimulate_ZeroVolumeEarnsNoFees(t *testing.T) {
	series := makeSeries(wave(300, 0.08), 0)

	for _, w := range []float64{1, 2, 5, 10, 50} {
		r, err := simulator.Simulate(series, w, testParams())
		require.NoError(t, err)
		assert.Equal(t, 0.0, r.TotalFeesGross, "range %g", w)
		assertConservation(t, r)
	}
}

func TestSimulate_WideRangeNeverExits(t *testing.T) {
	series := makeSeries(wave(500, 0.05), 2_000)

	r, err := simulator.Simulate(series, 50, testParams())
	require.NoError(t, err)

	assert.Equal(t, 0, r.RebalanceCount)
	assert.Equal(t, 0, r.ExitCount)
	assert.Equal(t, 0.0, r.TotalGasCosts)
	assert.Equal(t, 0.0, r.TotalSlippageCosts)
	assert.Equal(t, 100.0, r.Summary.ActivePercent)
	assert.Empty(t, r.Rebalances)
	assertConservation(t, r)
}

func TestSimulate_OneRepositionPerExitEdge(t *testing.T) {
	// Sale hacia arriba con un salto que también deja fuera el rango nuevo:
	// un solo reposicionamiento por flanco, no uno por periodo fuera.
	prices := concat(repeat(1.0, 3), repeat(1.10, 3), repeat(1.03, 2), repeat(1.10, 2))
	series := makeSeries(prices, 1_000)

	r, err := simulator.Simulate(series, 2, testParams())
	require.NoError(t, err)

	assert.Equal(t, 2, r.RebalanceCount)
	assert.Equal(t, 2, r.ExitCount)
	assert.Equal(t, 5, r.PeriodsInRange)
	assert.Equal(t, 5, r.PeriodsOutOfRange)
	assert.InDelta(t, 1.0, r.TotalGasCosts, 1e-12)

	require.Len(t, r.Rebalances, 2)
	assert.Equal(t, series[3].Timestamp, r.Rebalances[0].Timestamp)
	assert.Equal(t, series[8].Timestamp, r.Rebalances[1].Timestamp)
	assert.InDelta(t, 1.02, r.Rebalances[0].NewCenter, 1e-12)
	assert.InDelta(t, 1.0404, r.Rebalances[1].NewCenter, 1e-12)

	// el rango activo de cada punto refleja el reposicionamiento
	assert.InDelta(t, 1.02*0.98, r.Points[6].Lower, 1e-12)
	assert.InDelta(t, 1.0404*1.02, r.Points[9].Upper, 1e-12)
	assertConservation(t, r)
}

func TestSimulate_DownwardExitCentersOnLowerBound(t *testing.T) {
	series := makeSeries(concat(repeat(1.0, 5), repeat(0.9, 5)), 1_000)

	r, err := simulator.Simulate(series, 5, testParams())
	require.NoError(t, err)

	require.Len(t, r.Rebalances, 1)
	assert.InDelta(t, 0.95, r.Rebalances[0].NewCenter, 1e-12)
}

func TestSimulate_WithoutRebalancingOnlyCountsExits(t *testing.T) {
	prices := concat(repeat(1.0, 3), repeat(1.10, 3), repeat(1.03, 2), repeat(1.10, 2))
	params := testParams()
	params.Rebalance = false

	r, err := simulator.Simulate(makeSeries(prices, 1_000), 2, params)
	require.NoError(t, err)

	assert.False(t, r.Rebalancing)
	assert.Equal(t, 0, r.RebalanceCount)
	assert.Equal(t, 1, r.ExitCount, "el rango inicial nunca vuelve a contener el precio")
	assert.Equal(t, 3, r.PeriodsInRange)
	assert.Equal(t, 0.0, r.TotalCosts())
	assertConservation(t, r)
}

func TestSimulate_PriceReentersStaleRangeWithoutRebalancing(t *testing.T) {
	prices := concat(repeat(1.0, 2), repeat(1.05, 2), repeat(1.0, 2), repeat(0.9, 2))
	params := testParams()
	params.Rebalance = false

	r, err := simulator.Simulate(makeSeries(prices, 1_000), 2, params)
	require.NoError(t, err)

	assert.Equal(t, 2, r.ExitCount)
	assert.Equal(t, 4, r.PeriodsInRange)
	assert.Equal(t, 50.0, r.Summary.ActivePercent)
}

func TestSimulate_TotalValueTracksPoolPlusNetFees(t *testing.T) {
	series := makeSeries(wave(200, 0.06), 1_500)

	r, err := simulator.Simulate(series, 3, testParams())
	require.NoError(t, err)
	require.Greater(t, r.RebalanceCount, 0)

	last := r.Points[len(r.Points)-1]
	assert.InDelta(t, last.PoolValue+r.TotalFeesNet, last.TotalValue, 1e-6)
	assert.InDelta(t, 10_000, r.Points[0].PoolValue, 1e-6)
	assert.InDelta(t, 10_000, r.Points[0].BenchmarkValue, 1e-9)

	s := r.Summary
	assert.InDelta(t, (last.TotalValue-10_000)/10_000*100, s.TotalReturnPercent, 1e-9)
	assert.InDelta(t, (last.PoolValue/last.BenchmarkValue-1)*100, s.ImpermanentLossPct, 1e-9)
	assert.False(t, math.IsNaN(s.FeeAPRPercent))
	assertConservation(t, r)
}

func TestSimulate_NeverExitedPositionHasNonPositiveIL(t *testing.T) {
	for _, end := range []float64{1.2, 0.8, 1.0} {
		prices := []float64{1.0, 1.1, 0.9, end}
		r, err := simulator.Simulate(makeSeries(prices, 0), 50, testParams())
		require.NoError(t, err)
		require.Equal(t, 0, r.ExitCount)
		assert.LessOrEqual(t, r.Summary.ImpermanentLossPct, 1e-10, "end %g", end)
	}
}

// --- validación ---

func TestSimulate_RejectsZeroRange(t *testing.T) {
	_, err := simulator.Simulate(makeSeries(repeat(1, 10), 1), 0, testParams())
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestSimulate_RejectsInvalidInputs(t *testing.T) {
	_, err := simulator.Simulate(nil, 5, testParams())
	assert.ErrorIs(t, err, domain.ErrEmptySeries)

	params := testParams()
	params.InitialCapital = 0
	_, err = simulator.Simulate(makeSeries(repeat(1, 10), 1), 5, params)
	assert.ErrorIs(t, err, domain.ErrInvalidCapital)

	bad := makeSeries(repeat(1, 10), 1)
	bad[4].PairPrice = -1
	_, err = simulator.Simulate(bad, 5, testParams())
	assert.ErrorIs(t, err, domain.ErrNonPositivePrice)
}

func TestEngine_ResultIsFinalizedOnce(t *testing.T) {
	eng, err := simulator.NewEngine(5, testParams(), 1_000, 3)
	require.NoError(t, err)

	for _, obs := range makeSeries([]float64{1, 1.01, 1.02}, 1_000) {
		eng.Step(obs)
	}
	first := eng.Result()
	// los pasos después de finalizar se ignoran
	eng.Step(makeSeries([]float64{2}, 1_000)[0])
	second := eng.Result()

	assert.Same(t, first, second)
	assert.Equal(t, 3, second.Summary.Periods)
}
