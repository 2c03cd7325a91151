package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBenchmark_SplitsCapitalInHalf(t *testing.T) {
	b := NewBenchmark(10_000, 2.5, 500)
	assert.InDelta(t, 2_000, b.AssetAAmount, 1e-9)
	assert.InDelta(t, 10, b.AssetBAmount, 1e-9)
	assert.InDelta(t, 10_000, b.ValueUSD(2.5, 500), 1e-9)
}

func TestBenchmark_Revalues(t *testing.T) {
	b := NewBenchmark(10_000, 2.5, 500)
	// CAKE x2, BNB igual → 2000×5 + 10×500 = 15k
	assert.InDelta(t, 15_000, b.ValueUSD(5, 500), 1e-9)
	// las cantidades no cambian
	assert.InDelta(t, 2_000, b.AssetAAmount, 1e-9)
}

func TestBenchmark_ZeroPriceGuard(t *testing.T) {
	b := NewBenchmark(10_000, 0, 500)
	assert.Equal(t, 0.0, b.AssetAAmount)
}
