package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func candle(hour int, close, vol float64) Candle {
	return Candle{OpenTime: t0.Add(time.Duration(hour) * time.Hour), Close: close, QuoteVolume: vol}
}

func TestJoinLegs_PairPriceAndVolume(t *testing.T) {
	cake := []Candle{candle(0, 2.5, 1_000), candle(1, 2.6, 3_000)}
	bnb := []Candle{candle(0, 500, 5_000), candle(1, 520, 1_000)}

	series := JoinLegs(cake, bnb)
	require.Len(t, series, 2)

	assert.InDelta(t, 0.005, series[0].PairPrice, 1e-12)
	assert.InDelta(t, 2.5, series[0].AssetAUSD, 1e-12)
	assert.InDelta(t, 500, series[0].AssetBUSD, 1e-12)
	assert.InDelta(t, 3_000, series[0].PeriodVolume, 1e-9) // (1000+5000)/2
	assert.InDelta(t, 0.005, series[1].PairPrice, 1e-12)
	assert.InDelta(t, 2_000, series[1].PeriodVolume, 1e-9)
}

func TestJoinLegs_DropsMissingLegsAndDuplicates(t *testing.T) {
	cake := []Candle{candle(2, 2.7, 1), candle(0, 2.5, 1), candle(0, 9.9, 1), candle(1, 2.6, 1), candle(3, 0, 1)}
	bnb := []Candle{candle(0, 500, 1), candle(2, 540, 1), candle(3, 500, 1)}

	series := JoinLegs(cake, bnb)
	require.Len(t, series, 2, "hora 1 sin BNB, hora 3 con cierre 0")

	assert.Equal(t, t0, series[0].Timestamp)
	assert.InDelta(t, 2.5, series[0].AssetAUSD, 1e-12, "el duplicado conserva la primera vela")
	assert.Equal(t, t0.Add(2*time.Hour), series[1].Timestamp)
	assert.NoError(t, ValidateSeries(series))
}

func TestValidateSeries(t *testing.T) {
	ok := []PriceObservation{
		{Timestamp: t0, PairPrice: 1, AssetAUSD: 1, AssetBUSD: 1},
		{Timestamp: t0.Add(time.Hour), PairPrice: 1, AssetAUSD: 1, AssetBUSD: 1, PeriodVolume: 5},
	}
	assert.NoError(t, ValidateSeries(ok))

	assert.ErrorIs(t, ValidateSeries(nil), ErrEmptySeries)

	bad := append([]PriceObservation(nil), ok...)
	bad[1].AssetBUSD = 0
	assert.ErrorIs(t, ValidateSeries(bad), ErrNonPositivePrice)

	bad = append([]PriceObservation(nil), ok...)
	bad[1].PeriodVolume = -1
	assert.ErrorIs(t, ValidateSeries(bad), ErrNegativeVolume)

	bad = append([]PriceObservation(nil), ok...)
	bad[1].Timestamp = t0
	assert.ErrorIs(t, ValidateSeries(bad), ErrUnorderedSeries)
}

func TestValidateSeries_RejectsNonFinite(t *testing.T) {
	base := []PriceObservation{
		{Timestamp: t0, PairPrice: 1, AssetAUSD: 1, AssetBUSD: 1},
		{Timestamp: t0.Add(time.Hour), PairPrice: 1, AssetAUSD: 1, AssetBUSD: 1, PeriodVolume: 5},
	}
	nan, inf := math.NaN(), math.Inf(1)

	tests := []struct {
		name   string
		mutate func(o *PriceObservation)
		want   error
	}{
		{"NaN pair price", func(o *PriceObservation) { o.PairPrice = nan }, ErrNonPositivePrice},
		{"Inf pair price", func(o *PriceObservation) { o.PairPrice = inf }, ErrNonPositivePrice},
		{"NaN asset A", func(o *PriceObservation) { o.AssetAUSD = nan }, ErrNonPositivePrice},
		{"Inf asset B", func(o *PriceObservation) { o.AssetBUSD = inf }, ErrNonPositivePrice},
		{"NaN volume", func(o *PriceObservation) { o.PeriodVolume = nan }, ErrNegativeVolume},
		{"Inf volume", func(o *PriceObservation) { o.PeriodVolume = inf }, ErrNegativeVolume},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := append([]PriceObservation(nil), base...)
			tt.mutate(&series[1])
			assert.ErrorIs(t, ValidateSeries(series), tt.want)
		})
	}
}

func TestAverageVolume(t *testing.T) {
	assert.Equal(t, 0.0, AverageVolume(nil))
	series := []PriceObservation{{PeriodVolume: 10}, {PeriodVolume: 30}}
	assert.InDelta(t, 20, AverageVolume(series), 1e-12)
}
