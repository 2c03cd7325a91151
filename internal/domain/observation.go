package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PriceObservation es un periodo de la serie histórica del par.
// PairPrice es el precio del activo A expresado en el activo B (CAKE en BNB).
type PriceObservation struct {
	Timestamp    time.Time
	PairPrice    float64
	AssetAUSD    float64
	AssetBUSD    float64
	PeriodVolume float64 // volumen en USD atribuible al periodo
}

// Candle es una vela de una sola pata (p.ej. CAKEUSDT) tal como llega del exchange.
type Candle struct {
	OpenTime    time.Time
	Close       float64
	QuoteVolume float64
}

// JoinLegs construye la serie del par a partir de las velas de ambas patas.
//
// Inner join por OpenTime: las filas a las que les falta una pata se descartan,
// igual que las que traen un cierre no positivo. Los timestamps duplicados
// conservan la primera vela vista. El volumen del periodo es la media de los
// quote volumes de las dos patas.
func JoinLegs(legA, legB []Candle) []PriceObservation {
	byTime := make(map[int64]Candle, len(legB))
	for _, c := range legB {
		key := c.OpenTime.UnixMilli()
		if _, dup := byTime[key]; dup {
			continue
		}
		byTime[key] = c
	}

	seen := make(map[int64]bool, len(legA))
	out := make([]PriceObservation, 0, len(legA))
	for _, a := range legA {
		key := a.OpenTime.UnixMilli()
		if seen[key] {
			continue
		}
		seen[key] = true

		b, ok := byTime[key]
		if !ok || a.Close <= 0 || b.Close <= 0 {
			continue
		}
		out = append(out, PriceObservation{
			Timestamp:    a.OpenTime.UTC(),
			PairPrice:    a.Close / b.Close,
			AssetAUSD:    a.Close,
			AssetBUSD:    b.Close,
			PeriodVolume: (a.QuoteVolume + b.QuoteVolume) / 2,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// ValidateSeries hace los chequeos básicos que el core exige a la serie:
// no vacía, precios positivos y finitos, volumen no negativo y finito, y
// timestamps estrictamente crecientes. La limpieza de huecos y duplicados es
// responsabilidad del proveedor.
func ValidateSeries(series []PriceObservation) error {
	if len(series) == 0 {
		return ErrEmptySeries
	}
	for i, obs := range series {
		if !validPrice(obs.PairPrice) || !validPrice(obs.AssetAUSD) || !validPrice(obs.AssetBUSD) {
			return fmt.Errorf("period %d (%s): %w", i, obs.Timestamp.Format(time.RFC3339), ErrNonPositivePrice)
		}
		// NaN no cumple >= 0
		if !(obs.PeriodVolume >= 0) || math.IsInf(obs.PeriodVolume, 0) {
			return fmt.Errorf("period %d (%s): %w", i, obs.Timestamp.Format(time.RFC3339), ErrNegativeVolume)
		}
		if i > 0 && !obs.Timestamp.After(series[i-1].Timestamp) {
			return fmt.Errorf("period %d (%s): %w", i, obs.Timestamp.Format(time.RFC3339), ErrUnorderedSeries)
		}
	}
	return nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0)
}

// AverageVolume devuelve el volumen medio por periodo (0 para una serie vacía).
func AverageVolume(series []PriceObservation) float64 {
	if len(series) == 0 {
		return 0
	}
	total := 0.0
	for _, obs := range series {
		total += obs.PeriodVolume
	}
	return total / float64(len(series))
}
