package ports

import (
	"context"

	"github.com/alejandrodnm/lpsim/internal/domain"
)

// Notifier presenta el resultado de una corrida al usuario.
type Notifier interface {
	// Notify muestra los escenarios ordenados por retorno total.
	// En la implementación de consola, imprime una tabla formateada.
	Notify(ctx context.Context, report *domain.RunReport) error
}

// Exporter vuelca una corrida a artefactos externos (CSV para graficar).
type Exporter interface {
	Export(ctx context.Context, report *domain.RunReport) error
}
