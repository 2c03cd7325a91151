package domain

import "errors"

// Errores de validación de entrada. Son fatales para el escenario afectado
// (o para la corrida entera si el problema está en la serie), nunca se
// recuperan silenciosamente.
var (
	ErrInvalidRange     = errors.New("range percent must be positive and below 100")
	ErrInvalidCapital   = errors.New("initial capital must be positive")
	ErrInvalidFeeTier   = errors.New("fee tier percent must be positive")
	ErrNegativeCost     = errors.New("gas cost and slippage must be non-negative")
	ErrEmptySeries      = errors.New("price series is empty")
	ErrNonPositivePrice = errors.New("price series contains a non-positive or non-finite price")
	ErrNegativeVolume   = errors.New("price series contains a negative or non-finite volume")
	ErrUnorderedSeries  = errors.New("price series is not strictly ascending by timestamp")
)
