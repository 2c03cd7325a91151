package simulator

// concurrent.go: worker pool para simular los anchos de rango en paralelo.
//
// Cada escenario es función pura de (serie, capital, ancho, parámetros): no hay
// estado compartido entre workers, solo la serie de entrada, que es de solo lectura.
// Cada engine acumula sus totales en orden fijo, así que el resultado no depende
// del número de workers.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/lpsim/internal/domain"
)

// scenarioOutcome es lo que devuelve un worker por cada ancho.
type scenarioOutcome struct {
	rangePct float64
	result   *domain.ScenarioResult
	err      error
}

// simulateConcurrent corre un engine por ancho sobre un pool de workers.
//
// Si workers <= 0 usa runtime.NumCPU(). Los anchos que quedan en la cola
// cuando el contexto se cancela se devuelven con ctx.Err().
func simulateConcurrent(
	ctx context.Context,
	series []domain.PriceObservation,
	widths []float64,
	params domain.SimulationParams,
	workers int,
) []scenarioOutcome {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(widths) {
		workers = len(widths)
	}

	avgVolume := domain.AverageVolume(series)

	workCh := make(chan float64, len(widths))
	resultCh := make(chan scenarioOutcome, len(widths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- scenarioOutcome{rangePct: w, err: err}
					continue
				}
				resultCh <- runScenario(series, w, params, avgVolume)
			}
		}()
	}

	for _, w := range widths {
		workCh <- w
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	outcomes := make([]scenarioOutcome, 0, len(widths))
	for o := range resultCh {
		outcomes = append(outcomes, o)
	}

	slog.Debug("concurrent simulation complete",
		"scenarios", len(widths),
		"periods", len(series),
		"workers", workers,
	)
	return outcomes
}

// runScenario simula un ancho completo. La serie ya viene validada.
func runScenario(series []domain.PriceObservation, rangePct float64, params domain.SimulationParams, avgVolume float64) scenarioOutcome {
	eng, err := NewEngine(rangePct, params, avgVolume, len(series))
	if err != nil {
		return scenarioOutcome{rangePct: rangePct, err: err}
	}
	for _, obs := range series {
		eng.Step(obs)
	}
	return scenarioOutcome{rangePct: rangePct, result: eng.Result()}
}
