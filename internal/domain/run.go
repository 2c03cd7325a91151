package domain

import (
	"sort"
	"time"
)

// RunReport es la salida del core hacia reporting/persistencia:
// un ScenarioResult por ancho de rango más el contexto de la corrida.
type RunReport struct {
	ID          string
	CreatedAt   time.Time
	Pair        string
	Params      SimulationParams
	RangeWidths []float64
	Stats       SeriesStats
	Results     map[float64]*ScenarioResult
	Failures    map[float64]error // escenarios rechazados por validación
	Elapsed     time.Duration
}

// Ranked devuelve los escenarios ordenados por retorno total descendente.
// A igualdad de retorno gana el rango más estrecho, para que el orden sea estable.
func (r *RunReport) Ranked() []*ScenarioResult {
	ranked := make([]*ScenarioResult, 0, len(r.Results))
	for _, res := range r.Results {
		ranked = append(ranked, res)
	}
	sort.Slice(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Summary.TotalReturnPercent, ranked[j].Summary.TotalReturnPercent
		if ri != rj {
			return ri > rj
		}
		return ranked[i].RangePercent < ranked[j].RangePercent
	})
	return ranked
}

// Top devuelve los n mejores escenarios (o todos si hay menos).
func (r *RunReport) Top(n int) []*ScenarioResult {
	ranked := r.Ranked()
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// Best devuelve el escenario de mayor retorno, o nil si no hay ninguno.
func (r *RunReport) Best() *ScenarioResult {
	top := r.Top(1)
	if len(top) == 0 {
		return nil
	}
	return top[0]
}

// ByRange devuelve los escenarios en el orden de los anchos pedidos.
func (r *RunReport) ByRange() []*ScenarioResult {
	out := make([]*ScenarioResult, 0, len(r.Results))
	for _, w := range r.RangeWidths {
		if res, ok := r.Results[w]; ok {
			out = append(out, res)
		}
	}
	return out
}

// RunSummary es la vista ligera de una corrida guardada.
type RunSummary struct {
	ID           string
	CreatedAt    time.Time
	Pair         string
	Periods      int
	Scenarios    int
	Rebalancing  bool
	BestRange    float64
	BestReturn   float64
	BestFeeAPR   float64
	InitialPrice float64
	FinalPrice   float64
}

// ScenarioFailure es un ancho rechazado de una corrida guardada.
type ScenarioFailure struct {
	RangePercent float64
	Error        string
}
