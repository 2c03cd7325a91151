package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/lpsim/internal/domain"
)

// RunStorage persiste el resultado de cada corrida de simulación.
type RunStorage interface {
	// SaveRun persiste la corrida, sus escenarios y los eventos de rebalanceo.
	SaveRun(ctx context.Context, report *domain.RunReport) error

	// GetRuns devuelve los resúmenes de las corridas creadas en el rango dado.
	GetRuns(ctx context.Context, from, to time.Time) ([]domain.RunSummary, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

// RunHistory lee las corridas guardadas para el historial del CLI.
type RunHistory interface {
	GetRuns(ctx context.Context, from, to time.Time) ([]domain.RunSummary, error)

	// GetRebalances devuelve los eventos de un escenario guardado, en orden cronológico.
	GetRebalances(ctx context.Context, runID string, rangePct float64) ([]domain.RebalanceEvent, error)

	// GetFailures devuelve los anchos rechazados de una corrida.
	GetFailures(ctx context.Context, runID string) ([]domain.ScenarioFailure, error)
}
