package domain

import "math"

// Constantes de política del modelo de fees. Son heurísticas, no invariantes:
// SimulationParams permite sobreescribirlas.
const (
	DefaultTVLVolumeMultiplier = 5.0  // TVL estimado = volumen diario medio × 5
	DefaultMaxPoolShare        = 0.10 // nunca más del 10% del pool
	DefaultMaxFeeCaptureShare  = 0.50 // nunca más de la mitad de los fees del periodo
)

// EstimatePoolShare estima qué fracción del pool representa nuestro capital.
//
// Fórmula:
//
//	tvl   = avgPeriodVolume × periodsPerDay × tvlMultiplier
//	share = min(capital / tvl, maxShare)
//
// Es un proxy grosero del TVL a partir del volumen, no un modelo de
// microestructura. Devuelve 0 si el TVL estimado no es positivo.
func EstimatePoolShare(capital, avgPeriodVolume, periodsPerDay, tvlMultiplier, maxShare float64) float64 {
	tvl := avgPeriodVolume * periodsPerDay * tvlMultiplier
	if capital <= 0 || tvl <= 0 || math.IsInf(tvl, 0) {
		return 0
	}
	return finite(math.Min(capital/tvl, maxShare))
}

// ConcentrationFactor devuelve 100/range: un rango más estrecho captura
// proporcionalmente más fees con el mismo capital.
func ConcentrationFactor(rangePercent float64) float64 {
	if rangePercent <= 0 {
		return 0
	}
	return 100 / rangePercent
}

// FeeModel calcula el fee atribuible a la posición en un periodo.
type FeeModel struct {
	FeeRate       float64 // fracción, p.ej. 0.0025 para el tier de 0.25%
	PoolShare     float64 // estimada una vez por escenario
	Concentration float64 // 100 / range
	CaptureCap    float64 // fracción máxima de los fees del periodo
}

// NewFeeModel arma el modelo de un escenario a partir de sus parámetros.
func NewFeeModel(params SimulationParams, rangePercent, avgPeriodVolume float64) FeeModel {
	return FeeModel{
		FeeRate: params.FeeTierPercent / 100,
		PoolShare: EstimatePoolShare(
			params.InitialCapital,
			avgPeriodVolume,
			params.PeriodsPerDay,
			params.TVLVolumeMultiplier,
			params.MaxPoolShare,
		),
		Concentration: ConcentrationFactor(rangePercent),
		CaptureCap:    params.MaxFeeCaptureShare,
	}
}

// PeriodFee devuelve el fee del periodo:
//
//	fee = min(volume × rate × share × concentration, volume × rate × cap)
//
// Fuera de rango, o con volumen no positivo, el fee es 0.
func (m FeeModel) PeriodFee(volume float64, inRange bool) float64 {
	if !inRange || volume <= 0 {
		return 0
	}
	generated := volume * m.FeeRate
	fee := generated * m.PoolShare * m.Concentration
	return finite(math.Min(fee, generated*m.CaptureCap))
}
