package domain

import (
	"fmt"
	"math"
)

// degenerateEps es la tolerancia bajo la cual una diferencia de raíces se
// considera nula al derivar la liquidez.
const degenerateEps = 1e-15

// Position es una posición de liquidez concentrada en el rango simétrico
// [Center×(1-r/100), Center×(1+r/100)].
//
// Liquidity queda fija al abrir. IdleA/IdleB guardan el excedente del reparto
// 50/50 que la liquidez no puede absorber (lo que el pool devolvería al mintear):
// sigue siendo del LP y se valora junto con la posición.
type Position struct {
	CenterPrice  float64
	RangePercent float64
	Lower        float64
	Upper        float64
	Liquidity    float64
	CapitalUSD   float64
	IdleA        float64
	IdleB        float64
}

// OpenPosition reparte el capital 50/50 en USD entre los dos activos a los
// precios de entrada y deriva la liquidez del rango.
//
// Fórmulas (precio P = B por A, raíces sp, spa, spb):
//
//	L_A = amountA × sp × spb / (spb - sp)
//	L_B = amountB / (sp - spa)
//	L   = min(L_A, L_B) si ambos > 0, si no el positivo
//
// Un rango degenerado (spb ≈ sp o sp ≈ spa) anula ese candidato en lugar de dividir por cero.
// No valida: el rango y los precios llegan validados (ValidateRange, ValidateSeries).
func OpenPosition(capitalUSD, center, rangePercent, priceAUSD, priceBUSD float64) Position {
	if capitalUSD < 0 || math.IsNaN(capitalUSD) {
		capitalUSD = 0
	}

	p := Position{
		CenterPrice:  center,
		RangePercent: rangePercent,
		Lower:        center * (1 - rangePercent/100),
		Upper:        center * (1 + rangePercent/100),
		CapitalUSD:   capitalUSD,
	}

	amountA := safeDiv(capitalUSD/2, priceAUSD)
	amountB := safeDiv(capitalUSD/2, priceBUSD)

	var liqA, liqB float64
	sp, spa, spb := sqrtOrZero(center), sqrtOrZero(p.Lower), sqrtOrZero(p.Upper)
	if spb-sp > degenerateEps {
		liqA = amountA * sp * spb / (spb - sp)
	}
	if sp-spa > degenerateEps {
		liqB = amountB / (sp - spa)
	}

	switch {
	case liqA > 0 && liqB > 0:
		p.Liquidity = math.Min(liqA, liqB)
	default:
		p.Liquidity = math.Max(liqA, liqB)
	}
	p.Liquidity = finite(p.Liquidity)

	usedA, usedB := p.AmountsAt(center)
	p.IdleA = math.Max(amountA-usedA, 0)
	p.IdleB = math.Max(amountB-usedB, 0)
	return p
}

// ValidateRange rechaza anchos que dejarían Lower ≤ 0 o un rango vacío
// (y una división por cero en el factor de concentración).
func ValidateRange(rangePercent float64) error {
	if math.IsNaN(rangePercent) || rangePercent <= 0 || rangePercent >= 100 {
		return fmt.Errorf("range ±%g%%: %w", rangePercent, ErrInvalidRange)
	}
	return nil
}

// InRange indica si el precio cae en el rango activo (intervalo cerrado).
func (p Position) InRange(price float64) bool {
	return p.Lower <= price && price <= p.Upper
}

// AmountsAt devuelve las cantidades de A y B que representa la liquidez al precio dado.
//
//   - price ≤ Lower: todo en A
//   - price ≥ Upper: todo en B
//   - dentro: mezcla según la posición del precio en el rango
//
// Cualquier raíz de un valor no positivo o denominador nulo da 0 para ese término.
func (p Position) AmountsAt(price float64) (amountA, amountB float64) {
	if p.Liquidity <= 0 || p.Lower <= 0 || p.Upper <= 0 || price <= 0 {
		return 0, 0
	}
	spa := math.Sqrt(p.Lower)
	spb := math.Sqrt(p.Upper)

	switch {
	case price <= p.Lower:
		amountA = safeDiv(p.Liquidity*(spb-spa), spa*spb)
	case price >= p.Upper:
		amountB = p.Liquidity * (spb - spa)
	default:
		sp := math.Sqrt(price)
		amountA = safeDiv(p.Liquidity*(spb-sp), sp*spb)
		amountB = p.Liquidity * (sp - spa)
	}
	return finite(amountA), finite(amountB)
}

// ValueUSD valora la posición (liquidez + excedente ocioso) a precios USD.
func (p Position) ValueUSD(price, priceAUSD, priceBUSD float64) float64 {
	amountA, amountB := p.AmountsAt(price)
	return finite((amountA+p.IdleA)*priceAUSD + (amountB+p.IdleB)*priceBUSD)
}

func sqrtOrZero(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Sqrt(x)
}

// safeDiv devuelve 0 si el denominador no es positivo.
func safeDiv(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

// finite colapsa NaN/Inf a 0 para que nunca lleguen a las métricas.
func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
