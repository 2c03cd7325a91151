package ports

import (
	"context"

	"github.com/alejandrodnm/lpsim/internal/domain"
)

// SeriesProvider obtiene la serie histórica del par, ya limpia y ordenada.
type SeriesProvider interface {
	// FetchSeries devuelve las observaciones en orden ascendente, sin duplicados
	// y sin filas a las que les falte una pata.
	FetchSeries(ctx context.Context) ([]domain.PriceObservation, error)
}

// SeriesCache guarda una copia local de la serie para no volver a pedirla al exchange.
type SeriesCache interface {
	SaveSeries(ctx context.Context, key string, series []domain.PriceObservation) error

	// LoadSeries devuelve la copia guardada bajo key.
	// Si no hay nada guardado devuelve storage.ErrSeriesNotCached.
	LoadSeries(ctx context.Context, key string) ([]domain.PriceObservation, error)
}
