package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"smartbill/internal/budget"
	"smartbill/internal/core"
	"smartbill/internal/reflow"
)

// Settings are the display knobs read from the optional YAML file.
type Settings struct {
	Budget   BudgetSettings   `yaml:"budget"`
	Currency CurrencySettings `yaml:"currency"`
	Reflow   ReflowSettings   `yaml:"reflow"`
	Savings  SavingsSettings  `yaml:"savings"`
}

type BudgetSettings struct {
	Limit       float64 `yaml:"limit"`
	RecentLimit int     `yaml:"recent_limit"`
}

type CurrencySettings struct {
	Symbol string `yaml:"symbol"`
}

type ReflowSettings struct {
	GroupSize int      `yaml:"group_size"`
	MinLength int      `yaml:"min_length"`
	Markers   []string `yaml:"markers"`
}

type SavingsSettings struct {
	DefaultPercent int `yaml:"default_percent"`
	UploadPercent  int `yaml:"upload_percent"`
}

func DefaultSettings() Settings {
	limit, _ := budget.DefaultLimit.Float64()
	r := reflow.DefaultOptions()
	return Settings{
		Budget:   BudgetSettings{Limit: limit, RecentLimit: 5},
		Currency: CurrencySettings{Symbol: string(core.DefaultCurrency)},
		Reflow: ReflowSettings{
			GroupSize: r.GroupSize,
			MinLength: r.MinLength,
			Markers:   r.Markers,
		},
		Savings: SavingsSettings{
			DefaultPercent: budget.DefaultSavingsPercent,
			UploadPercent:  10,
		},
	}
}

// LoadSettings reads path over the defaults. An empty path returns the
// defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings file: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes YAML over the defaults. Unknown keys are rejected.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return DefaultSettings(), fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return DefaultSettings(), err
	}
	return s, nil
}

func (s Settings) Validate() error {
	var errs []error
	if s.Budget.Limit < 0 {
		errs = append(errs, fmt.Errorf("budget.limit %v: must not be negative", s.Budget.Limit))
	}
	if s.Budget.RecentLimit < 1 {
		errs = append(errs, fmt.Errorf("budget.recent_limit %d: must be at least 1", s.Budget.RecentLimit))
	}
	if strings.TrimSpace(s.Currency.Symbol) == "" {
		errs = append(errs, errors.New("currency.symbol: must not be empty"))
	}
	if s.Reflow.GroupSize < 1 {
		errs = append(errs, fmt.Errorf("reflow.group_size %d: must be at least 1", s.Reflow.GroupSize))
	}
	if s.Reflow.MinLength < 0 {
		errs = append(errs, fmt.Errorf("reflow.min_length %d: must not be negative", s.Reflow.MinLength))
	}
	for _, p := range []struct {
		key string
		v   int
	}{
		{"savings.default_percent", s.Savings.DefaultPercent},
		{"savings.upload_percent", s.Savings.UploadPercent},
	} {
		if p.v < budget.MinSavingsPercent || p.v > budget.MaxSavingsPercent {
			errs = append(errs, fmt.Errorf("%s %d: must be between %d and %d",
				p.key, p.v, budget.MinSavingsPercent, budget.MaxSavingsPercent))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid settings: %w", errors.Join(errs...))
	}
	return nil
}

func (s Settings) BudgetLimit() decimal.Decimal {
	return decimal.NewFromFloat(s.Budget.Limit)
}

func (s Settings) CurrencySymbol() core.Currency {
	return core.Currency(s.Currency.Symbol)
}

func (s Settings) ReflowOptions() reflow.Options {
	return reflow.Options{
		GroupSize: s.Reflow.GroupSize,
		MinLength: s.Reflow.MinLength,
		Markers:   s.Reflow.Markers,
	}
}

// SettingsStore holds the active settings and swaps them atomically on
// reload.
type SettingsStore struct {
	path    string
	current atomic.Pointer[Settings]

	// reloads counts reloads triggered by Watch.
	reloads atomic.Int64
}

// NewSettingsStore loads path once. An empty path keeps the defaults and
// disables reloading.
func NewSettingsStore(path string) (*SettingsStore, error) {
	s, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	store := &SettingsStore{path: path}
	store.current.Store(&s)
	return store, nil
}

// StaticSettings returns a store that never reloads.
func StaticSettings(s Settings) *SettingsStore {
	store := &SettingsStore{}
	store.current.Store(&s)
	return store
}

func (s *SettingsStore) Get() Settings {
	return *s.current.Load()
}

// Reload rereads the file. On error the previous settings stay active.
func (s *SettingsStore) Reload() error {
	if s.path == "" {
		return nil
	}
	next, err := LoadSettings(s.path)
	if err != nil {
		return err
	}
	s.current.Store(&next)
	return nil
}
