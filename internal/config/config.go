// Package config holds the externally supplied game rules: reel count,
// symbol set, paytable values, bet cost, starting balance, credit packages,
// and reveal timings. Loaded from YAML with a compiled-in default; every
// load path validates fail-fast so the engine never runs with undefined
// payout behavior.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tgslot/game-engine/internal/model"
)

// SymbolValue declares one symbol of the enumeration and its paytable value.
type SymbolValue struct {
	Symbol string `yaml:"symbol"`
	Value  int64  `yaml:"value"`
}

// Package declares one purchasable credit bundle.
type Package struct {
	Credits int64  `yaml:"credits"`
	Price   string `yaml:"price"` // TON, decimal string
}

// Reveal controls the timing of the staggered reel reveal. All three may be
// zero (tests, headless operation).
type Reveal struct {
	SpinDuration   time.Duration `yaml:"spin_duration"`   // all reels spin at least this long
	Stagger        time.Duration `yaml:"stagger"`         // delay between successive reels settling
	SettleDuration time.Duration `yaml:"settle_duration"` // time spent settling before stopped
}

// Config is the full game configuration.
type Config struct {
	ReelCount      int           `yaml:"reel_count"`
	BetCost        int64         `yaml:"bet_cost"`
	PayoutBase     int64         `yaml:"payout_base"`
	InitialBalance int64         `yaml:"initial_balance"`
	Symbols        []SymbolValue `yaml:"symbols"`
	Packages       []Package     `yaml:"packages"`
	Reveal         Reveal        `yaml:"reveal"`
}

// Default returns the classic three-reel game: COIN/STAR/BOLT paying
// 1×/2×/3× the base of 100, a 10-credit bet, a 1000-credit starting
// balance, and the standard credit packages.
func Default() *Config {
	return &Config{
		ReelCount:      3,
		BetCost:        10,
		PayoutBase:     100,
		InitialBalance: 1000,
		Symbols: []SymbolValue{
			{Symbol: "COIN", Value: 1},
			{Symbol: "STAR", Value: 2},
			{Symbol: "BOLT", Value: 3},
		},
		Packages: []Package{
			{Credits: 100, Price: "0.1"},
			{Credits: 500, Price: "0.45"},
			{Credits: 1000, Price: "0.8"},
		},
		Reveal: Reveal{
			SpinDuration:   2 * time.Second,
			Stagger:        300 * time.Millisecond,
			SettleDuration: 200 * time.Millisecond,
		},
	}
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the configuration invariants. Any violation is a startup
// error; the engine refuses to initialize on a bad table.
func (c *Config) Validate() error {
	if c.ReelCount <= 0 {
		return fmt.Errorf("reel_count must be positive, got %d", c.ReelCount)
	}
	if c.BetCost <= 0 {
		return fmt.Errorf("bet_cost must be positive, got %d", c.BetCost)
	}
	if c.PayoutBase <= 0 {
		return fmt.Errorf("payout_base must be positive, got %d", c.PayoutBase)
	}
	if c.InitialBalance < 0 {
		return fmt.Errorf("initial_balance must not be negative, got %d", c.InitialBalance)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}

	seen := make(map[string]bool, len(c.Symbols))
	for _, sv := range c.Symbols {
		if sv.Symbol == "" {
			return fmt.Errorf("symbol name must not be empty")
		}
		if seen[sv.Symbol] {
			return fmt.Errorf("duplicate symbol %q", sv.Symbol)
		}
		seen[sv.Symbol] = true
		if sv.Value <= 0 {
			return fmt.Errorf("symbol %q value must be positive, got %d", sv.Symbol, sv.Value)
		}
	}

	for _, p := range c.Packages {
		if p.Credits <= 0 {
			return fmt.Errorf("package credits must be positive, got %d", p.Credits)
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return fmt.Errorf("package price %q: %w", p.Price, err)
		}
		if price.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("package price must be positive, got %s", p.Price)
		}
	}

	if c.Reveal.SpinDuration < 0 || c.Reveal.Stagger < 0 || c.Reveal.SettleDuration < 0 {
		return fmt.Errorf("reveal timings must not be negative")
	}
	return nil
}

// SymbolSet returns the declared symbol enumeration in declaration order.
func (c *Config) SymbolSet() []model.Symbol {
	symbols := make([]model.Symbol, len(c.Symbols))
	for i, sv := range c.Symbols {
		symbols[i] = model.Symbol(sv.Symbol)
	}
	return symbols
}

// Values returns the symbol→value mapping for the paytable.
func (c *Config) Values() map[model.Symbol]int64 {
	values := make(map[model.Symbol]int64, len(c.Symbols))
	for _, sv := range c.Symbols {
		values[model.Symbol(sv.Symbol)] = sv.Value
	}
	return values
}

// CreditPackages converts the configured packages into domain types.
// Call after Validate; an unparsable price here is a programming error.
func (c *Config) CreditPackages() []model.CreditPackage {
	pkgs := make([]model.CreditPackage, len(c.Packages))
	for i, p := range c.Packages {
		price, _ := decimal.NewFromString(p.Price)
		pkgs[i] = model.CreditPackage{Credits: p.Credits, Price: price}
	}
	return pkgs
}
