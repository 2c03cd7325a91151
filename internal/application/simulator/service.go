package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/lpsim/internal/domain"
	"github.com/alejandrodnm/lpsim/internal/ports"
)

// ErrNoSeries se devuelve cuando no hay proveedor ni copia en caché de la serie.
var ErrNoSeries = errors.New("no price series available")

// ServiceConfig controla de dónde sale la serie y qué anchos se simulan.
type ServiceConfig struct {
	RangeWidths []float64
	CacheKey    string // clave de la serie en la caché (par + intervalo)
	UseCache    bool   // leer la caché antes de ir al exchange
}

// Service es el orquestador de una corrida completa:
// serie → escenarios → persistencia → reporte → export.
type Service struct {
	cfg       ServiceConfig
	runner    *Runner
	provider  ports.SeriesProvider
	cache     ports.SeriesCache
	storage   ports.RunStorage
	notifier  ports.Notifier
	exporters []ports.Exporter
}

// NewService crea un Service con todas las dependencias inyectadas.
// provider, cache y storage pueden ser nil (modo offline o dry-run).
func NewService(
	cfg ServiceConfig,
	runner *Runner,
	provider ports.SeriesProvider,
	cache ports.SeriesCache,
	storage ports.RunStorage,
	notifier ports.Notifier,
	exporters ...ports.Exporter,
) *Service {
	return &Service{
		cfg:       cfg,
		runner:    runner,
		provider:  provider,
		cache:     cache,
		storage:   storage,
		notifier:  notifier,
		exporters: exporters,
	}
}

// RunOnce carga la serie, simula todos los anchos y entrega el reporte.
// Los errores de persistencia, notificación o export se loguean pero no
// invalidan la corrida: el reporte se devuelve igual.
func (s *Service) RunOnce(ctx context.Context) (*domain.RunReport, error) {
	start := time.Now()

	series, err := s.LoadSeries(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.runner.Run(ctx, series, s.cfg.RangeWidths)
	if err != nil {
		return nil, err
	}

	if s.storage != nil {
		if err := s.storage.SaveRun(ctx, report); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, report); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	for _, exp := range s.exporters {
		if err := exp.Export(ctx, report); err != nil {
			slog.Warn("export error", "err", err)
		}
	}

	if best := report.Best(); best != nil {
		slog.Info("run complete",
			"run_id", report.ID,
			"best_range", domain.RangeLabel(best.RangePercent),
			"best_return", fmt.Sprintf("%+.2f%%", best.Summary.TotalReturnPercent),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	}
	return report, nil
}

// LoadSeries devuelve la serie desde la caché (si UseCache y hay copia) o
// desde el proveedor, refrescando la caché en ese caso.
func (s *Service) LoadSeries(ctx context.Context) ([]domain.PriceObservation, error) {
	if s.cfg.UseCache && s.cache != nil {
		series, err := s.cache.LoadSeries(ctx, s.cfg.CacheKey)
		if err == nil && len(series) > 0 {
			slog.Info("series loaded from cache", "key", s.cfg.CacheKey, "periods", len(series))
			return series, nil
		}
		slog.Debug("series cache miss", "key", s.cfg.CacheKey, "err", err)
	}

	if s.provider == nil {
		return nil, fmt.Errorf("simulator.LoadSeries: %w", ErrNoSeries)
	}

	series, err := s.provider.FetchSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("simulator.LoadSeries: fetch: %w", err)
	}

	if s.cache != nil && len(series) > 0 {
		if err := s.cache.SaveSeries(ctx, s.cfg.CacheKey, series); err != nil {
			slog.Warn("series cache write failed", "key", s.cfg.CacheKey, "err", err)
		}
	}
	return series, nil
}
