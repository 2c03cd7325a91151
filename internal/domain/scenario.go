package domain

import (
	"fmt"
	"math"
	"time"
)

// SimulationParams es el set de opciones que consume el core.
// Se pasa explícitamente a cada escenario; no hay estado global.
type SimulationParams struct {
	InitialCapital      float64
	FeeTierPercent      float64 // p.ej. 0.25
	GasCostPerRebalance float64 // USD fijos por reposicionamiento
	SlippagePercent     float64 // % del valor reposicionado
	Rebalance           bool    // false = variante sin rebalanceo

	TVLVolumeMultiplier float64
	MaxPoolShare        float64
	MaxFeeCaptureShare  float64
	PeriodsPerDay       float64 // 24 para velas horarias
}

// DefaultSimulationParams devuelve la configuración de referencia
// (capital $10k, tier 0.25%, velas horarias, rebalanceo activo).
func DefaultSimulationParams() SimulationParams {
	return SimulationParams{
		InitialCapital:      10_000,
		FeeTierPercent:      0.25,
		GasCostPerRebalance: 0.5,
		SlippagePercent:     0.1,
		Rebalance:           true,
		TVLVolumeMultiplier: DefaultTVLVolumeMultiplier,
		MaxPoolShare:        DefaultMaxPoolShare,
		MaxFeeCaptureShare:  DefaultMaxFeeCaptureShare,
		PeriodsPerDay:       24,
	}
}

// Validate comprueba el set de opciones antes de arrancar cualquier escenario.
func (p SimulationParams) Validate() error {
	if !(p.InitialCapital > 0) || math.IsInf(p.InitialCapital, 0) {
		return fmt.Errorf("capital %g: %w", p.InitialCapital, ErrInvalidCapital)
	}
	if !(p.FeeTierPercent > 0) {
		return fmt.Errorf("fee tier %g%%: %w", p.FeeTierPercent, ErrInvalidFeeTier)
	}
	if p.GasCostPerRebalance < 0 || p.SlippagePercent < 0 ||
		math.IsNaN(p.GasCostPerRebalance) || math.IsNaN(p.SlippagePercent) {
		return fmt.Errorf("gas %g, slippage %g%%: %w", p.GasCostPerRebalance, p.SlippagePercent, ErrNegativeCost)
	}
	if !(p.PeriodsPerDay > 0) {
		return fmt.Errorf("periods per day must be positive, got %g", p.PeriodsPerDay)
	}
	if p.TVLVolumeMultiplier < 0 || p.MaxPoolShare < 0 || p.MaxFeeCaptureShare < 0 {
		return fmt.Errorf("fee share constants must be non-negative")
	}
	return nil
}

// PeriodPoint es una fila de la serie temporal de un escenario.
type PeriodPoint struct {
	Timestamp      time.Time
	Price          float64
	InRange        bool
	Fee            float64
	PoolValue      float64
	BenchmarkValue float64
	TotalValue     float64 // pool + fees brutos acumulados - costes acumulados
	Lower          float64
	Upper          float64
}

// RebalanceEvent registra un reposicionamiento.
type RebalanceEvent struct {
	Timestamp    time.Time
	Price        float64
	OldCenter    float64
	NewCenter    float64
	ValueBefore  float64
	GasCost      float64
	SlippageCost float64
	CapitalAfter float64
}

// ScenarioSummary son las métricas derivadas, calculadas una sola vez al final.
type ScenarioSummary struct {
	Periods             int
	DaysSimulated       float64
	ActivePercent       float64
	FinalPrice          float64
	FinalPoolValue      float64
	FinalBenchmarkValue float64
	FinalTotalValue     float64
	TotalReturnPercent  float64
	FeeAPRPercent       float64
	ImpermanentLossPct  float64
	VsBenchmarkPercent  float64
}

// ScenarioResult acumula un escenario (un ancho de rango) a lo largo de la simulación.
type ScenarioResult struct {
	RangePercent   float64
	InitialCapital float64
	Rebalancing    bool

	// Rango inicial, para el reporte.
	InitialLower float64
	InitialUpper float64
	EntryPrice   float64

	TotalFeesGross     float64
	TotalGasCosts      float64
	TotalSlippageCosts float64
	TotalFeesNet       float64
	PeriodsInRange     int
	PeriodsOutOfRange  int
	ExitCount          int // flancos InRange → OutOfRange
	RebalanceCount     int

	Points     []PeriodPoint
	Rebalances []RebalanceEvent

	Summary ScenarioSummary
}

// TotalCosts devuelve gas + slippage acumulados.
func (r *ScenarioResult) TotalCosts() float64 {
	return r.TotalGasCosts + r.TotalSlippageCosts
}

// Finalize calcula el resumen a partir de los acumulados y el último punto.
//
//	active%  = in / periods × 100
//	return%  = (total final - capital) / capital × 100
//	APR%     = fees netos / capital × 365 / días × 100
//	IL%      = (pool final / benchmark final - 1) × 100
//	vsHODL%  = (total final - benchmark final) / benchmark final × 100
func (r *ScenarioResult) Finalize(periodsPerDay float64) {
	r.TotalFeesNet = r.TotalFeesGross - r.TotalGasCosts - r.TotalSlippageCosts

	s := ScenarioSummary{Periods: r.PeriodsInRange + r.PeriodsOutOfRange}
	if s.Periods == 0 || len(r.Points) == 0 {
		r.Summary = s
		return
	}
	last := r.Points[len(r.Points)-1]

	s.DaysSimulated = safeDiv(float64(s.Periods), periodsPerDay)
	s.ActivePercent = finite(float64(r.PeriodsInRange) / float64(s.Periods) * 100)
	s.FinalPrice = last.Price
	s.FinalPoolValue = last.PoolValue
	s.FinalBenchmarkValue = last.BenchmarkValue
	s.FinalTotalValue = last.TotalValue
	s.TotalReturnPercent = finite(safeDiv(s.FinalTotalValue-r.InitialCapital, r.InitialCapital) * 100)
	if s.DaysSimulated > 0 {
		s.FeeAPRPercent = finite(safeDiv(r.TotalFeesNet, r.InitialCapital) * (365 / s.DaysSimulated) * 100)
	}
	if s.FinalBenchmarkValue > 0 {
		s.ImpermanentLossPct = finite((s.FinalPoolValue/s.FinalBenchmarkValue - 1) * 100)
		s.VsBenchmarkPercent = finite((s.FinalTotalValue - s.FinalBenchmarkValue) / s.FinalBenchmarkValue * 100)
	}
	r.Summary = s
}

// RangeLabel formatea un ancho como "±5%".
func RangeLabel(rangePercent float64) string {
	return fmt.Sprintf("±%g%%", rangePercent)
}
