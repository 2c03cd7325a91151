package domain

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// SeriesStats resume la serie de precios del par antes de simular.
type SeriesStats struct {
	Periods         int
	Days            float64
	Start           time.Time
	End             time.Time
	FirstPrice      float64
	LastPrice       float64
	MinPrice        float64
	MaxPrice        float64
	PriceChangePct  float64
	VolatilityAnnPc float64 // desviación de los retornos por periodo, anualizada, en %
	FirstAssetAUSD  float64
	FirstAssetBUSD  float64
}

// ComputeSeriesStats calcula el resumen de la serie.
// La volatilidad usa la desviación estándar muestral de los retornos
// periodo a periodo × sqrt(periodsPerDay × 365).
func ComputeSeriesStats(series []PriceObservation, periodsPerDay float64) SeriesStats {
	if len(series) == 0 {
		return SeriesStats{}
	}
	first, last := series[0], series[len(series)-1]
	st := SeriesStats{
		Periods:        len(series),
		Days:           safeDiv(float64(len(series)), periodsPerDay),
		Start:          first.Timestamp,
		End:            last.Timestamp,
		FirstPrice:     first.PairPrice,
		LastPrice:      last.PairPrice,
		MinPrice:       first.PairPrice,
		MaxPrice:       first.PairPrice,
		FirstAssetAUSD: first.AssetAUSD,
		FirstAssetBUSD: first.AssetBUSD,
	}
	st.PriceChangePct = finite((safeDiv(last.PairPrice, first.PairPrice) - 1) * 100)

	returns := make([]float64, 0, len(series)-1)
	for i, obs := range series {
		st.MinPrice = math.Min(st.MinPrice, obs.PairPrice)
		st.MaxPrice = math.Max(st.MaxPrice, obs.PairPrice)
		if i > 0 && series[i-1].PairPrice > 0 {
			returns = append(returns, obs.PairPrice/series[i-1].PairPrice-1)
		}
	}
	if periodsPerDay > 0 {
		st.VolatilityAnnPc = finite(stdDev(returns) * math.Sqrt(periodsPerDay*365) * 100)
	}
	return st
}

// stdDev es la desviación estándar muestral (n-1); 0 con menos de dos valores.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}
