package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gobinance "github.com/adshao/go-binance/v2"

	"github.com/alejandrodnm/lpsim/internal/domain"
)

// FetchCandles descarga hasta pages páginas de velas de symbol, yendo hacia
// atrás en el tiempo desde ahora. Cada página pide limit velas que terminan
// justo antes de la primera vela de la página anterior. Una página vacía
// corta la paginación (no hay más historia).
//
// Si falla una página después de la primera, se loguea y se devuelve lo
// descargado hasta ahí. Las velas vuelven en orden ascendente.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, pages, limit int) ([]domain.Candle, error) {
	end := c.now().UnixMilli()

	// páginas en el orden en que llegan: la más reciente primero
	var fetched [][]domain.Candle
	total := 0
	for i := 0; i < pages; i++ {
		klines, err := c.klines(ctx, symbol, interval, limit, end)
		if err != nil {
			if len(fetched) == 0 || ctx.Err() != nil {
				return nil, fmt.Errorf("binance.FetchCandles: %s page %d: %w", symbol, i+1, err)
			}
			slog.Warn("kline page failed, keeping partial history",
				"symbol", symbol, "page", i+1, "candles", total, "err", err)
			break
		}
		if len(klines) == 0 {
			break
		}

		candles, err := toCandles(klines)
		if err != nil {
			return nil, fmt.Errorf("binance.FetchCandles: %s page %d: %w", symbol, i+1, err)
		}
		fetched = append(fetched, candles)
		total += len(candles)
		end = klines[0].OpenTime - 1

		slog.Debug("kline page fetched", "symbol", symbol, "page", i+1, "of", pages, "candles", len(candles))
	}

	out := make([]domain.Candle, 0, total)
	for i := len(fetched) - 1; i >= 0; i-- {
		out = append(out, fetched[i]...)
	}
	return out, nil
}

// toCandles convierte las velas de go-binance (precios como string) al dominio.
func toCandles(klines []*gobinance.Kline) ([]domain.Candle, error) {
	out := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		closePrice, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("parse close %q: %w", k.Close, err)
		}
		quoteVol, err := strconv.ParseFloat(k.QuoteAssetVolume, 64)
		if err != nil {
			return nil, fmt.Errorf("parse quote volume %q: %w", k.QuoteAssetVolume, err)
		}
		out = append(out, domain.Candle{
			OpenTime:    time.UnixMilli(k.OpenTime).UTC(),
			Close:       closePrice,
			QuoteVolume: quoteVol,
		})
	}
	return out, nil
}

// SeriesConfig describe qué par reconstruir y cuánta historia pedir.
type SeriesConfig struct {
	SymbolA  string // pata del activo A contra USD, p.ej. CAKEUSDT
	SymbolB  string // pata del activo B contra USD, p.ej. BNBUSDT
	Interval string // intervalo de vela, p.ej. 1h
	Pages    int
	Limit    int // velas por página (máx 1000)
}

// SeriesProvider reconstruye la serie del par A/B a partir de las dos patas en USD.
type SeriesProvider struct {
	client *Client
	cfg    SeriesConfig
}

// NewSeriesProvider crea el proveedor de la serie del par.
func NewSeriesProvider(client *Client, cfg SeriesConfig) *SeriesProvider {
	return &SeriesProvider{client: client, cfg: cfg}
}

// FetchSeries descarga ambas patas y las une por timestamp.
func (p *SeriesProvider) FetchSeries(ctx context.Context) ([]domain.PriceObservation, error) {
	legA, err := p.client.FetchCandles(ctx, p.cfg.SymbolA, p.cfg.Interval, p.cfg.Pages, p.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("binance.FetchSeries: %w", err)
	}
	legB, err := p.client.FetchCandles(ctx, p.cfg.SymbolB, p.cfg.Interval, p.cfg.Pages, p.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("binance.FetchSeries: %w", err)
	}

	series := domain.JoinLegs(legA, legB)
	slog.Info("price series ready",
		"pair", p.cfg.SymbolA+"/"+p.cfg.SymbolB,
		"candles_a", len(legA),
		"candles_b", len(legB),
		"periods", len(series),
	)
	if len(series) == 0 {
		return nil, fmt.Errorf("binance.FetchSeries: %w", domain.ErrEmptySeries)
	}
	return series, nil
}
