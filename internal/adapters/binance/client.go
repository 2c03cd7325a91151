package binance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.binance.com"

	// Spot REST: 6000 de peso por minuto, /klines con limit 1000 pesa 2.
	// Nos quedamos muy por debajo: 10 req/s con ráfaga de 5.
	klinesRatePerSec = 10
	klinesBurst      = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	// Códigos de error de la API que merecen reintento.
	codeTooManyRequests = -1003
	codeDisconnected    = -1001
)

// Client envuelve el cliente spot de go-binance con rate limiting y retries.
// Solo usa endpoints públicos (sin API key).
type Client struct {
	api     *gobinance.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewClient crea un Client contra baseURL.
// Si baseURL está vacío, usa el endpoint de producción.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	api := gobinance.NewClient("", "")
	api.BaseURL = baseURL
	api.HTTPClient = &http.Client{Timeout: 10 * time.Second}

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(klinesRatePerSec, klinesBurst),
		now:     time.Now,
	}
}

// klines pide una página de velas que terminan en endTime (ms), con retries.
func (c *Client) klines(ctx context.Context, symbol, interval string, limit int, endTime int64) ([]*gobinance.Kline, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		klines, err := c.api.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			EndTime(endTime).
			Do(ctx)
		if err == nil {
			return klines, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
		}
		slog.Warn("binance request failed, retrying", "symbol", symbol, "attempt", attempt+1, "err", err)
		c.sleep(ctx, attempt)
	}
	return nil, fmt.Errorf("exhausted %d retries", maxRetries)
}

// retryable distingue errores transitorios (red, rate limit, desconexión)
// de errores de la API que no van a cambiar reintentando (símbolo inválido, etc.).
// Un APIError sin código es un cuerpo de error no parseable (5xx de un proxy).
func retryable(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 0, codeTooManyRequests, codeDisconnected:
			return true
		}
		return false
	}
	return true
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
