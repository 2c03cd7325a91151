package simulator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/lpsim/internal/application/simulator"
	"github.com/alejandrodnm/lpsim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockProvider struct {
	series []domain.PriceObservation
	err    error
	calls  int
}

func (m *mockProvider) FetchSeries(_ context.Context) ([]domain.PriceObservation, error) {
	m.calls++
	return m.series, m.err
}

type mockCache struct {
	stored map[string][]domain.PriceObservation
	err    error
}

func newMockCache() *mockCache {
	return &mockCache{stored: make(map[string][]domain.PriceObservation)}
}

func (m *mockCache) SaveSeries(_ context.Context, key string, series []domain.PriceObservation) error {
	if m.err != nil {
		return m.err
	}
	m.stored[key] = series
	return nil
}

func (m *mockCache) LoadSeries(_ context.Context, key string) ([]domain.PriceObservation, error) {
	s, ok := m.stored[key]
	if !ok {
		return nil, errors.New("not cached")
	}
	return s, nil
}

type mockStorage struct {
	saved *domain.RunReport
	err   error
}

func (m *mockStorage) SaveRun(_ context.Context, r *domain.RunReport) error {
	m.saved = r
	return m.err
}

func (m *mockStorage) GetRuns(_ context.Context, _, _ time.Time) ([]domain.RunSummary, error) {
	return nil, nil
}

func (m *mockStorage) Close() error { return nil }

type mockNotifier struct {
	notified *domain.RunReport
	err      error
}

func (m *mockNotifier) Notify(_ context.Context, r *domain.RunReport) error {
	m.notified = r
	return m.err
}

type mockExporter struct {
	exported int
	err      error
}

func (m *mockExporter) Export(_ context.Context, _ *domain.RunReport) error {
	m.exported++
	return m.err
}

// --- tests ---

func serviceConfig(useCache bool) simulator.ServiceConfig {
	return simulator.ServiceConfig{
		RangeWidths: []float64{2, 10},
		CacheKey:    "CAKEUSDT-BNBUSDT-1h",
		UseCache:    useCache,
	}
}

func TestService_RunOnceFullPipeline(t *testing.T) {
	provider := &mockProvider{series: makeSeries(wave(120, 0.05), 1_000)}
	cache := newMockCache()
	store := &mockStorage{}
	notifier := &mockNotifier{}
	exp := &mockExporter{}

	svc := simulator.NewService(serviceConfig(false), newRunner(2), provider, cache, store, notifier, exp)
	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Results, 2)
	assert.Same(t, report, store.saved)
	assert.Same(t, report, notifier.notified)
	assert.Equal(t, 1, exp.exported)
	assert.Equal(t, 1, provider.calls)
	assert.Len(t, cache.stored["CAKEUSDT-BNBUSDT-1h"], 120, "la serie descargada se guarda en caché")
}

func TestService_SideEffectErrorsDoNotFailRun(t *testing.T) {
	provider := &mockProvider{series: makeSeries(wave(50, 0.02), 500)}
	store := &mockStorage{err: errors.New("disk full")}
	notifier := &mockNotifier{err: errors.New("broken pipe")}
	exp := &mockExporter{err: errors.New("permission denied")}

	svc := simulator.NewService(serviceConfig(false), newRunner(1), provider, nil, store, notifier, exp)
	report, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, report)
	assert.Equal(t, 1, exp.exported)
}

func TestService_UsesCacheWhenAvailable(t *testing.T) {
	cache := newMockCache()
	cache.stored["CAKEUSDT-BNBUSDT-1h"] = makeSeries(wave(30, 0.02), 500)
	provider := &mockProvider{err: errors.New("offline")}

	svc := simulator.NewService(serviceConfig(true), newRunner(1), provider, cache, nil, nil)
	series, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)

	assert.Len(t, series, 30)
	assert.Equal(t, 0, provider.calls)
}

func TestService_CacheMissFallsBackToProvider(t *testing.T) {
	provider := &mockProvider{series: makeSeries(wave(40, 0.02), 500)}
	cache := newMockCache()

	svc := simulator.NewService(serviceConfig(true), newRunner(1), provider, cache, nil, nil)
	series, err := svc.LoadSeries(context.Background())
	require.NoError(t, err)

	assert.Len(t, series, 40)
	assert.Equal(t, 1, provider.calls)
	assert.Len(t, cache.stored["CAKEUSDT-BNBUSDT-1h"], 40)
}

func TestService_NoProviderNoCache(t *testing.T) {
	svc := simulator.NewService(serviceConfig(true), newRunner(1), nil, newMockCache(), nil, nil)
	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, simulator.ErrNoSeries)
}

func TestService_ProviderErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	svc := simulator.NewService(serviceConfig(false), newRunner(1), &mockProvider{err: boom}, nil, nil, nil)
	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestService_InvalidSeriesFromProviderIsFatal(t *testing.T) {
	series := makeSeries(repeat(1, 10), 100)
	series[0].AssetBUSD = 0
	store := &mockStorage{}

	svc := simulator.NewService(serviceConfig(false), newRunner(1), &mockProvider{series: series}, nil, store, nil)
	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrNonPositivePrice)
	assert.Nil(t, store.saved)
}
