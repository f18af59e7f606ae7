package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kcjewelers/quotebuilder/internal/pricing"
)

// ConfigError reports a settings document that could not be used. Callers
// fall back to defaults and surface a warning instead of blocking.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("settings %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Default returns the built-in settings used until the shop saves its own.
func Default() pricing.Settings {
	return pricing.Settings{
		TaxRate:     0.0,
		DepositRate: 0.5,
		Rounding:    pricing.RoundNone,
		MetalRatesPerDWT: map[string]float64{
			"14K Yellow": 0,
			"14K White":  0,
			"18K Yellow": 0,
			"Platinum":   0,
		},
		PlatinumDensityRatio: 1.38,
		PlatinumExtraFee:     0,
		Output: pricing.OutputPrefs{
			QuoteValidDays:          14,
			MaxImagesOnCustomerPage: 6,
		},
	}
}

// Store loads and saves the shop settings document.
type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the settings document, merging it over the built-in defaults so
// fields missing from an older document keep their default values. A missing
// file is not an error. A malformed file returns the defaults alongside a
// ConfigError so the caller can warn without losing the session.
func (s *Store) Load() (pricing.Settings, error) {
	loaded := Default()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return loaded, nil
		}
		return Default(), &ConfigError{Path: s.Path, Err: err}
	}

	if err := json.Unmarshal(data, &loaded); err != nil {
		return Default(), &ConfigError{Path: s.Path, Err: err}
	}
	if err := Validate(loaded); err != nil {
		return Default(), &ConfigError{Path: s.Path, Err: err}
	}

	return loaded, nil
}

// Save validates and writes the settings document atomically.
func (s *Store) Save(settings pricing.Settings) error {
	if err := Validate(settings); err != nil {
		return &ConfigError{Path: s.Path, Err: err}
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return &ConfigError{Path: s.Path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return &ConfigError{Path: s.Path, Err: err}
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &ConfigError{Path: s.Path, Err: err}
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return &ConfigError{Path: s.Path, Err: err}
	}

	return nil
}

// Validate enforces the settings invariants: all rates and ratios
// non-negative, tax and deposit rates fractions below 1.
func Validate(settings pricing.Settings) error {
	if settings.TaxRate < 0 || settings.TaxRate >= 1 {
		return fmt.Errorf("tax_rate must be a fraction in [0, 1), got %v", settings.TaxRate)
	}
	if settings.DepositRate < 0 || settings.DepositRate >= 1 {
		return fmt.Errorf("deposit_rate must be a fraction in [0, 1), got %v", settings.DepositRate)
	}
	if settings.PlatinumDensityRatio < 0 {
		return fmt.Errorf("platinum_density_ratio must be non-negative, got %v", settings.PlatinumDensityRatio)
	}
	if settings.PlatinumExtraFee < 0 {
		return fmt.Errorf("platinum_extra_fee must be non-negative, got %v", settings.PlatinumExtraFee)
	}
	for metal, rate := range settings.MetalRatesPerDWT {
		if rate < 0 {
			return fmt.Errorf("metal rate for %q must be non-negative, got %v", metal, rate)
		}
	}
	switch settings.Rounding {
	case pricing.RoundNone, pricing.RoundDollar, pricing.RoundFive, pricing.RoundTen:
	default:
		return fmt.Errorf("unknown rounding rule %q", settings.Rounding)
	}
	return nil
}
