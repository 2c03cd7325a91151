package domain

// BenchmarkHolding es el contrafactual HODL: la mitad del capital en cada
// activo a los precios de entrada, sin tocarse nunca más.
type BenchmarkHolding struct {
	AssetAAmount float64
	AssetBAmount float64
}

// NewBenchmark compra las cantidades fijas del benchmark.
func NewBenchmark(capitalUSD, priceAUSD, priceBUSD float64) BenchmarkHolding {
	return BenchmarkHolding{
		AssetAAmount: safeDiv(capitalUSD/2, priceAUSD),
		AssetBAmount: safeDiv(capitalUSD/2, priceBUSD),
	}
}

// ValueUSD revalúa las cantidades fijas a los precios actuales.
func (b BenchmarkHolding) ValueUSD(priceAUSD, priceBUSD float64) float64 {
	return finite(b.AssetAAmount*priceAUSD + b.AssetBAmount*priceBUSD)
}
