package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/indicator"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/risk"
	"momentum-backtest/internal/strategy"
	"momentum-backtest/internal/valuation"

	"gopkg.in/yaml.v3"
)

// ErrUnknownStrategy is returned when a strategy name is not configured.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Data sources.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config is the on-disk portfolio configuration shape (YAML).
type Config struct {
	// VolTarget is the annualized volatility target (0.2 = 20%).
	VolTarget float64 `yaml:"vol_target"`
	// SimYears places the simulation start that many years before the last
	// history date when SimulationStart is empty.
	SimYears        int     `yaml:"sim_years"`
	SimulationStart string  `yaml:"simulation_start"`
	InitialCapital  float64 `yaml:"initial_capital"`
	Debug           bool    `yaml:"debug"`

	Data DataConfig `yaml:"data"`
	// FXCodes are conversion series loaded with the history but never traded.
	FXCodes    []string        `yaml:"fx_codes"`
	Risk       RiskConfig      `yaml:"risk"`
	Indicators IndicatorConfig `yaml:"indicators"`

	// Optional: strategies defined in separate YAML files (e.g. strategies/*.yaml),
	// relative to this file. Inline Strategies are appended after them.
	StrategyFiles []string         `yaml:"strategy_files"`
	Strategies    []StrategyConfig `yaml:"strategies"`
}

type DataConfig struct {
	Source string `yaml:"source"`
	CSV    string `yaml:"csv"`
	// DSN is read from DATABASE_URL when empty.
	DSN string `yaml:"dsn"`
}

type RiskConfig struct {
	// VolWindow is both the rolling "% ret vol" window and the number of
	// active rows that window must cover.
	VolWindow      int     `yaml:"vol_window"`
	VolFloor       float64 `yaml:"vol_floor"`
	HaltWindow     int     `yaml:"halt_window"`
	ScalarLookback int     `yaml:"scalar_lookback"`
	DefaultScalar  float64 `yaml:"default_scalar"`
}

type IndicatorConfig struct {
	ADXPeriod    int      `yaml:"adx_period"`
	ADXThreshold float64  `yaml:"adx_threshold"`
	Pairs        [][2]int `yaml:"pairs"`
}

// StrategyConfig lists the instruments one strategy trades. Instruments may be
// grouped by asset class or given as a flat list, or both.
type StrategyConfig struct {
	Name   string `yaml:"name"`
	Signal string `yaml:"signal"`

	Currencies  []string `yaml:"currencies"`
	Indices     []string `yaml:"indices"`
	Commodities []string `yaml:"commodities"`
	Metals      []string `yaml:"metals"`
	Bonds       []string `yaml:"bonds"`
	Crypto      []string `yaml:"crypto"`
	Instruments []string `yaml:"instruments"`
}

// Universe returns the traded instruments in the order currencies, indices,
// commodities, metals, bonds, crypto, then the flat list. Duplicates keep
// their first position.
func (s StrategyConfig) Universe() []string {
	var out []string
	seen := map[string]bool{}
	for _, group := range [][]string{s.Currencies, s.Indices, s.Commodities, s.Metals, s.Bonds, s.Crypto, s.Instruments} {
		for _, id := range group {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads the config and its strategy files, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	inline := c.Strategies
	c.Strategies = nil
	for _, f := range c.StrategyFiles {
		s, err := LoadStrategyFile(resolve(path, f))
		if err != nil {
			return nil, err
		}
		c.Strategies = append(c.Strategies, s)
	}
	c.Strategies = append(c.Strategies, inline...)
	if c.Data.CSV != "" {
		c.Data.CSV = resolve(path, c.Data.CSV)
	}
	return &c, nil
}

// resolve interprets rel relative to the directory of the config file when
// such a file exists, and relative to the working directory otherwise.
func resolve(configPath, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	cand := filepath.Join(filepath.Dir(configPath), rel)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return rel
}

type strategyFileWrapper struct {
	Strategy StrategyConfig `yaml:"strategy"`
}

// LoadStrategyFile reads a single strategy definition.
func LoadStrategyFile(path string) (StrategyConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return StrategyConfig{}, err
	}
	var w strategyFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return StrategyConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	if w.Strategy.Name == "" {
		w.Strategy.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return w.Strategy, nil
}

func (c *Config) applyDefaults() {
	if c.InitialCapital == 0 {
		c.InitialCapital = backtest.DefaultInitialCapital
	}
	if c.Data.Source == "" {
		c.Data.Source = SourceCSV
	}
	if c.Data.DSN == "" {
		c.Data.DSN = os.Getenv("DATABASE_URL")
	}
	for i := range c.Strategies {
		// A strategy named after a signal variant needs no explicit signal.
		if c.Strategies[i].Signal == "" {
			c.Strategies[i].Signal = c.Strategies[i].Name
		}
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if c.VolTarget <= 0 || c.VolTarget > 5 {
		errs = append(errs, fmt.Errorf("vol_target must be in (0, 5], got %v", c.VolTarget))
	}
	if c.SimYears < 0 {
		errs = append(errs, fmt.Errorf("sim_years must be >= 0, got %d", c.SimYears))
	}
	if c.SimulationStart != "" {
		if _, err := model.ParseDate(c.SimulationStart); err != nil {
			errs = append(errs, fmt.Errorf("simulation_start: %w", err))
		}
	}
	if c.InitialCapital <= 0 {
		errs = append(errs, fmt.Errorf("initial_capital must be > 0, got %v", c.InitialCapital))
	}
	switch c.Data.Source {
	case SourceCSV:
		if c.Data.CSV == "" {
			errs = append(errs, errors.New("data.csv is required for the csv source"))
		}
	case SourcePostgres:
		if c.Data.DSN == "" {
			errs = append(errs, errors.New("data.dsn (or DATABASE_URL) is required for the postgres source"))
		}
	default:
		errs = append(errs, fmt.Errorf("data.source must be %q or %q, got %q", SourceCSV, SourcePostgres, c.Data.Source))
	}
	for _, code := range c.FXCodes {
		if !valuation.Parse(code).Pair {
			errs = append(errs, fmt.Errorf("fx_codes: %q is not a BASE_QUOTE pair", code))
		}
	}
	if c.Risk.VolFloor < 0 || c.Risk.VolWindow < 0 || c.Risk.HaltWindow < 0 || c.Risk.ScalarLookback < 0 || c.Risk.DefaultScalar < 0 {
		errs = append(errs, errors.New("risk parameters must not be negative"))
	}
	if c.Risk.VolWindow == 1 {
		errs = append(errs, errors.New("risk.vol_window must be at least 2"))
	}
	if c.Risk.ScalarLookback == 1 {
		errs = append(errs, errors.New("risk.scalar_lookback must be at least 2"))
	}
	if c.Indicators.ADXPeriod < 0 || c.Indicators.ADXPeriod == 1 {
		errs = append(errs, fmt.Errorf("indicators.adx_period must be >= 2, got %d", c.Indicators.ADXPeriod))
	}
	if err := c.PairSet().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("indicators.pairs: %w", err))
	}

	if len(c.Strategies) == 0 {
		errs = append(errs, errors.New("at least one strategy is required"))
	}
	names := map[string]bool{}
	for i, s := range c.Strategies {
		label := s.Name
		if label == "" {
			label = fmt.Sprintf("strategies[%d]", i)
			errs = append(errs, fmt.Errorf("%s: name is required", label))
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("strategy %s: duplicate name", label))
		}
		names[s.Name] = true
		if strategy.Canonical(s.Signal) == "" {
			errs = append(errs, fmt.Errorf("strategy %s: unsupported signal %q (want one of %s)",
				label, s.Signal, strings.Join(strategy.Names(), ", ")))
		}
		if len(s.Universe()) == 0 {
			errs = append(errs, fmt.Errorf("strategy %s: no instruments", label))
		}
	}
	return errors.Join(errs...)
}

// Strategy returns the strategy named name.
func (c *Config) Strategy(name string) (StrategyConfig, error) {
	for _, s := range c.Strategies {
		if s.Name == name {
			return s, nil
		}
	}
	return StrategyConfig{}, fmt.Errorf("%w %q", ErrUnknownStrategy, name)
}

// Instruments returns every id the history must provide: each strategy's
// universe, then the fx codes.
func (c *Config) Instruments() []string {
	var out []string
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, s := range c.Strategies {
		for _, id := range s.Universe() {
			add(id)
		}
	}
	for _, id := range c.FXCodes {
		add(strings.TrimSpace(id))
	}
	return out
}

// PairSet returns the configured crossover pairs, or the default table.
func (c *Config) PairSet() indicator.PairSet {
	if len(c.Indicators.Pairs) == 0 {
		return indicator.DefaultPairs()
	}
	out := make(indicator.PairSet, len(c.Indicators.Pairs))
	for i, p := range c.Indicators.Pairs {
		out[i] = indicator.Pair{Fast: p[0], Slow: p[1]}
	}
	return out
}

// IndicatorEngine returns the indicator engine described by the config.
func (c *Config) IndicatorEngine() *indicator.Engine {
	e := indicator.NewEngine(c.PairSet())
	if c.Indicators.ADXPeriod > 0 {
		e.ADXPeriod = c.Indicators.ADXPeriod
	}
	return e
}

// Backtest returns the simulation parameters.
func (c *Config) Backtest() backtest.Config {
	return backtest.Config{
		InitialCapital: c.InitialCapital,
		Lookback:       c.Risk.ScalarLookback,
		DefaultScalar:  c.Risk.DefaultScalar,
		Risk: risk.Params{
			VolTarget:  c.VolTarget,
			VolWindow:  c.Risk.VolWindow,
			VolFloor:   c.Risk.VolFloor,
			HaltWindow: c.Risk.HaltWindow,
		}.WithDefaults(),
		Debug: c.Debug,
	}
}

// StartDate resolves the simulation start against the last history date.
// The zero time means "first date after the warm-up".
func (c *Config) StartDate(last time.Time) (time.Time, error) {
	if c.SimulationStart != "" {
		return model.ParseDate(c.SimulationStart)
	}
	if c.SimYears > 0 {
		return model.Day(last).AddDate(-c.SimYears, 0, 0), nil
	}
	return time.Time{}, nil
}
