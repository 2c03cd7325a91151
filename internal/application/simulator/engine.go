package simulator

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/alejandrodnm/lpsim/internal/domain"
)

// Engine simula un escenario (un ancho de rango), periodo a periodo.
//
// Siempre hay exactamente una posición abierta. La salida se detecta solo en
// el flanco InRange → OutOfRange; con rebalanceo activo ese flanco cierra la
// posición y la reabre centrada en el límite cruzado. Seguir fuera de rango
// en los periodos siguientes no dispara otro reposicionamiento.
type Engine struct {
	params   domain.SimulationParams
	rangePct float64
	fees     domain.FeeModel

	position   domain.Position
	bench      domain.BenchmarkHolding
	started    bool
	wasInRange bool
	finalized  bool

	result *domain.ScenarioResult
}

// NewEngine valida las entradas del escenario y prepara el engine.
// avgPeriodVolume alimenta la estimación de participación en el pool;
// expectedPeriods dimensiona de antemano la serie temporal.
func NewEngine(rangePercent float64, params domain.SimulationParams, avgPeriodVolume float64, expectedPeriods int) (*Engine, error) {
	if err := domain.ValidateRange(rangePercent); err != nil {
		return nil, fmt.Errorf("simulator.NewEngine: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("simulator.NewEngine: %w", err)
	}
	if expectedPeriods < 0 {
		expectedPeriods = 0
	}

	return &Engine{
		params:   params,
		rangePct: rangePercent,
		fees:     domain.NewFeeModel(params, rangePercent, avgPeriodVolume),
		result: &domain.ScenarioResult{
			RangePercent:   rangePercent,
			InitialCapital: params.InitialCapital,
			Rebalancing:    params.Rebalance,
			Points:         make([]domain.PeriodPoint, 0, expectedPeriods),
		},
	}, nil
}

// Step avanza la simulación una observación.
// La primera abre la posición y el benchmark a sus precios.
func (e *Engine) Step(obs domain.PriceObservation) {
	if e.finalized {
		return
	}
	if !e.started {
		e.open(obs)
	}

	price := obs.PairPrice
	inRange := e.position.InRange(price)

	if e.wasInRange && !inRange {
		e.result.ExitCount++
		if e.params.Rebalance {
			e.reposition(obs)
			inRange = e.position.InRange(price)
		}
	}
	e.wasInRange = inRange

	fee := e.fees.PeriodFee(obs.PeriodVolume, inRange)
	if inRange {
		e.result.PeriodsInRange++
		e.result.TotalFeesGross += fee
	} else {
		e.result.PeriodsOutOfRange++
	}

	poolValue := e.position.ValueUSD(price, obs.AssetAUSD, obs.AssetBUSD)
	total := poolValue + e.result.TotalFeesGross - e.result.TotalGasCosts - e.result.TotalSlippageCosts

	e.result.Points = append(e.result.Points, domain.PeriodPoint{
		Timestamp:      obs.Timestamp,
		Price:          price,
		InRange:        inRange,
		Fee:            fee,
		PoolValue:      poolValue,
		BenchmarkValue: e.bench.ValueUSD(obs.AssetAUSD, obs.AssetBUSD),
		TotalValue:     total,
		Lower:          e.position.Lower,
		Upper:          e.position.Upper,
	})
}

// Result cierra el resumen (una sola vez) y devuelve el resultado del escenario.
func (e *Engine) Result() *domain.ScenarioResult {
	if !e.finalized {
		e.result.Finalize(e.params.PeriodsPerDay)
		e.finalized = true
	}
	return e.result
}

// open arma la primera posición, centrada en el primer precio observado.
func (e *Engine) open(obs domain.PriceObservation) {
	e.position = domain.OpenPosition(
		e.params.InitialCapital, obs.PairPrice, e.rangePct, obs.AssetAUSD, obs.AssetBUSD,
	)
	e.bench = domain.NewBenchmark(e.params.InitialCapital, obs.AssetAUSD, obs.AssetBUSD)
	e.started = true
	e.wasInRange = true

	e.result.EntryPrice = obs.PairPrice
	e.result.InitialLower = e.position.Lower
	e.result.InitialUpper = e.position.Upper
}

// reposition cierra la posición al precio observado, paga gas y slippage y
// reabre con el capital restante centrada en el límite que cruzó el precio
// (no en el precio mismo).
func (e *Engine) reposition(obs domain.PriceObservation) {
	price := obs.PairPrice
	old := e.position

	value := old.ValueUSD(price, obs.AssetAUSD, obs.AssetBUSD)
	gas := e.params.GasCostPerRebalance
	slippage := value * e.params.SlippagePercent / 100
	e.result.TotalGasCosts += gas
	e.result.TotalSlippageCosts += slippage

	newCenter := old.Lower
	if price >= old.Upper {
		newCenter = old.Upper
	}
	capital := math.Max(value-gas-slippage, 0)

	e.position = domain.OpenPosition(capital, newCenter, e.rangePct, obs.AssetAUSD, obs.AssetBUSD)
	e.result.RebalanceCount++
	e.result.Rebalances = append(e.result.Rebalances, domain.RebalanceEvent{
		Timestamp:    obs.Timestamp,
		Price:        price,
		OldCenter:    old.CenterPrice,
		NewCenter:    newCenter,
		ValueBefore:  value,
		GasCost:      gas,
		SlippageCost: slippage,
		CapitalAfter: capital,
	})

	slog.Debug("rebalanced position",
		"range", domain.RangeLabel(e.rangePct),
		"at", obs.Timestamp,
		"price", fmt.Sprintf("%.6f", price),
		"new_center", fmt.Sprintf("%.6f", newCenter),
		"value", fmt.Sprintf("$%.2f", value),
		"costs", fmt.Sprintf("$%.2f", gas+slippage),
	)
}

// Simulate corre un escenario sobre toda la serie.
// Una serie o parámetros inválidos vuelven como error; la serie no se modifica.
func Simulate(series []domain.PriceObservation, rangePercent float64, params domain.SimulationParams) (*domain.ScenarioResult, error) {
	if err := domain.ValidateSeries(series); err != nil {
		return nil, fmt.Errorf("simulator.Simulate: %w", err)
	}
	eng, err := NewEngine(rangePercent, params, domain.AverageVolume(series), len(series))
	if err != nil {
		return nil, err
	}
	for _, obs := range series {
		eng.Step(obs)
	}
	return eng.Result(), nil
}
