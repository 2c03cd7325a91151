package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeSeriesStats(t *testing.T) {
	prices := []float64{1.0, 1.1, 0.99, 1.2}
	series := make([]PriceObservation, len(prices))
	for i, p := range prices {
		series[i] = PriceObservation{Timestamp: t0.Add(time.Duration(i) * time.Hour), PairPrice: p, AssetAUSD: p, AssetBUSD: 1}
	}

	st := ComputeSeriesStats(series, 24)
	assert.Equal(t, 4, st.Periods)
	assert.InDelta(t, 4.0/24, st.Days, 1e-12)
	assert.InDelta(t, 20.0, st.PriceChangePct, 1e-9)
	assert.Equal(t, 0.99, st.MinPrice)
	assert.Equal(t, 1.2, st.MaxPrice)
	assert.Equal(t, t0, st.Start)

	// retornos: +10%, -10%, +21.21%
	r := []float64{0.1, 0.99/1.1 - 1, 1.2/0.99 - 1}
	assert.InDelta(t, stdDev(r)*math.Sqrt(24*365)*100, st.VolatilityAnnPc, 1e-9)
	assert.Greater(t, st.VolatilityAnnPc, 0.0)
}

func TestComputeSeriesStats_Empty(t *testing.T) {
	assert.Equal(t, SeriesStats{}, ComputeSeriesStats(nil, 24))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, stdDev([]float64{1}))
	// 2,4,4,4,5,5,7,9 → varianza muestral 32/7
	assert.InDelta(t, math.Sqrt(32.0/7), stdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
}
