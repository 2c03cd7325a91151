package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/lpsim/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del simulador.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Binance    BinanceConfig    `yaml:"binance"`
	Storage    StorageConfig    `yaml:"storage"`
	Report     ReportConfig     `yaml:"report"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig controla los escenarios a simular.
type SimulationConfig struct {
	Pair                string    `yaml:"pair"` // etiqueta para reportes, p.ej. CAKE/BNB
	InitialCapital      float64   `yaml:"initial_capital"`
	FeeTierPercent      float64   `yaml:"fee_tier_percent"`
	GasCostPerRebalance float64   `yaml:"gas_cost_per_rebalance"`
	SlippagePercent     float64   `yaml:"slippage_percent"`
	Rebalance           bool      `yaml:"rebalance"`
	RangeWidths         []float64 `yaml:"range_widths"`
	Workers             int       `yaml:"workers"` // 0 = NumCPU

	// Heurísticas del modelo de fees
	TVLVolumeMultiplier float64 `yaml:"tvl_volume_multiplier"`
	MaxPoolShare        float64 `yaml:"max_pool_share"`
	MaxFeeCaptureShare  float64 `yaml:"max_fee_capture_share"`
}

// BinanceConfig describe de dónde y cuánta historia se descarga.
type BinanceConfig struct {
	BaseURL  string `yaml:"base_url"`
	SymbolA  string `yaml:"symbol_a"` // activo A contra USD
	SymbolB  string `yaml:"symbol_b"` // activo B contra USD
	Interval string `yaml:"interval"` // intervalo de kline de Binance: 1s..12h, 1d, 3d, 1w, 1M
	Pages    int    `yaml:"pages"`
	Limit    int    `yaml:"limit"` // velas por página, máx 1000
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// ReportConfig controla la salida.
type ReportConfig struct {
	SummaryCSV string `yaml:"summary_csv"` // vacío = no exportar
	SeriesCSV  string `yaml:"series_csv"`  // vacío = no exportar
	TopN       int    `yaml:"top_n"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// DefaultRangeWidths son los anchos (±%) simulados si la config no pide otros.
var DefaultRangeWidths = []float64{2, 3, 4, 5, 7, 10, 15, 20, 25, 30, 40, 50}

// Default devuelve la configuración de referencia. Load parte de ella, así que
// los campos que el YAML omite (incluidos bools y costes en cero) la conservan.
func Default() Config {
	p := domain.DefaultSimulationParams()
	cfg := Config{
		Simulation: SimulationConfig{
			Pair:                "CAKE/BNB",
			InitialCapital:      p.InitialCapital,
			FeeTierPercent:      p.FeeTierPercent,
			GasCostPerRebalance: p.GasCostPerRebalance,
			SlippagePercent:     p.SlippagePercent,
			Rebalance:           p.Rebalance,
			RangeWidths:         append([]float64(nil), DefaultRangeWidths...),
			TVLVolumeMultiplier: p.TVLVolumeMultiplier,
			MaxPoolShare:        p.MaxPoolShare,
			MaxFeeCaptureShare:  p.MaxFeeCaptureShare,
		},
	}
	setDefaults(&cfg)
	return cfg
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// SimulationParams arma los parámetros del core a partir de la config.
func (c *Config) SimulationParams() domain.SimulationParams {
	ppd, err := PeriodsPerDay(c.Binance.Interval)
	if err != nil {
		ppd = 24
	}
	s := c.Simulation
	return domain.SimulationParams{
		InitialCapital:      s.InitialCapital,
		FeeTierPercent:      s.FeeTierPercent,
		GasCostPerRebalance: s.GasCostPerRebalance,
		SlippagePercent:     s.SlippagePercent,
		Rebalance:           s.Rebalance,
		TVLVolumeMultiplier: s.TVLVolumeMultiplier,
		MaxPoolShare:        s.MaxPoolShare,
		MaxFeeCaptureShare:  s.MaxFeeCaptureShare,
		PeriodsPerDay:       ppd,
	}
}

// SeriesKey identifica la serie en la caché: patas + intervalo.
func (c *Config) SeriesKey() string {
	return fmt.Sprintf("%s-%s-%s", c.Binance.SymbolA, c.Binance.SymbolB, c.Binance.Interval)
}

// Validate comprueba que la config sea utilizable antes de arrancar.
func (c *Config) Validate() error {
	if len(c.Simulation.RangeWidths) == 0 {
		return fmt.Errorf("simulation.range_widths must not be empty")
	}
	for _, w := range c.Simulation.RangeWidths {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("simulation.range_widths: %v is not a finite number", w)
		}
	}
	if _, err := PeriodsPerDay(c.Binance.Interval); err != nil {
		return err
	}
	if err := c.SimulationParams().Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if c.Binance.Limit < 1 || c.Binance.Limit > 1000 {
		return fmt.Errorf("binance.limit must be in [1, 1000], got %d", c.Binance.Limit)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// PeriodsPerDay convierte un intervalo de vela de Binance (1s, 15m, 1h, 4h,
// 1d, 3d, 1w, 1M) en periodos por día. 1M cuenta como un doceavo de año.
func PeriodsPerDay(interval string) (float64, error) {
	switch interval {
	case "1w":
		return 1.0 / 7, nil
	case "1M":
		return 12.0 / 365, nil
	}
	if n, ok := strings.CutSuffix(interval, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid interval %q", interval)
		}
		return 1 / float64(days), nil
	}
	dur, err := time.ParseDuration(interval)
	if err != nil || dur <= 0 || dur > 24*time.Hour {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	return float64(24*time.Hour) / float64(dur), nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LPSIM_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		cfg.Binance.BaseURL = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Simulation.Pair == "" {
		cfg.Simulation.Pair = "CAKE/BNB"
	}
	if cfg.Binance.BaseURL == "" {
		cfg.Binance.BaseURL = "https://api.binance.com"
	}
	if cfg.Binance.SymbolA == "" {
		cfg.Binance.SymbolA = "CAKEUSDT"
	}
	if cfg.Binance.SymbolB == "" {
		cfg.Binance.SymbolB = "BNBUSDT"
	}
	if cfg.Binance.Interval == "" {
		cfg.Binance.Interval = "1h"
	}
	if cfg.Binance.Pages <= 0 {
		cfg.Binance.Pages = 9 // ~1 año de velas horarias
	}
	if cfg.Binance.Limit <= 0 {
		cfg.Binance.Limit = 1000
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "lpsim.db"
	}
	if cfg.Report.TopN <= 0 {
		cfg.Report.TopN = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
