package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kcjewelers/quotebuilder/internal/pricing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if got.DepositRate != 0.5 || got.PlatinumDensityRatio != 1.38 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.Output.QuoteValidDays != 14 {
		t.Fatalf("expected default quote_valid_days 14, got %d", got.Output.QuoteValidDays)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	want := Default()
	want.TaxRate = 0.0925
	want.Rounding = pricing.RoundFive
	want.MetalRatesPerDWT["14K Yellow"] = 118
	want.Store.Name = "Kizer Cummings"

	if err := store.Save(want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.TaxRate != 0.0925 || got.Rounding != pricing.RoundFive {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.MetalRatesPerDWT["14K Yellow"] != 118 {
		t.Fatalf("metal rate did not round trip: %+v", got.MetalRatesPerDWT)
	}
	if got.Store.Name != "Kizer Cummings" {
		t.Fatalf("store name did not round trip: %q", got.Store.Name)
	}
}

func TestLoad_PartialDocumentKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"tax_rate": 0.08}`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	got, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.TaxRate != 0.08 {
		t.Fatalf("expected tax rate 0.08, got %v", got.TaxRate)
	}
	if got.DepositRate != 0.5 || got.Output.MaxImagesOnCustomerPage != 6 {
		t.Fatalf("missing fields should keep defaults: %+v", got)
	}
}

func TestLoad_MalformedFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"tax_rate": `), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	got, err := NewStore(path).Load()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if got.DepositRate != 0.5 {
		t.Fatalf("expected defaults on malformed document, got %+v", got)
	}
}

func TestSave_RejectsInvalidRates(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	bad := Default()
	bad.TaxRate = 1.5
	if err := store.Save(bad); err == nil {
		t.Fatal("expected error for tax_rate >= 1")
	}

	bad = Default()
	bad.MetalRatesPerDWT["14K Yellow"] = -10
	if err := store.Save(bad); err == nil {
		t.Fatal("expected error for negative metal rate")
	}

	bad = Default()
	bad.Rounding = "nearest_500"
	if err := store.Save(bad); err == nil {
		t.Fatal("expected error for unknown rounding rule")
	}
}
