package pricing

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func testSettings() Settings {
	return Settings{
		TaxRate:     0.08,
		DepositRate: 0.3,
		Rounding:    RoundNone,
		MetalRatesPerDWT: map[string]float64{
			"14K Yellow": 120,
			"14K White":  125,
			"Platinum":   90,
		},
		PlatinumDensityRatio: 1.6,
		PlatinumExtraFee:     50,
		Output:               OutputPrefs{QuoteValidDays: 14, MaxImagesOnCustomerPage: 6},
	}
}

func TestCompute_MetalCost14KYellow(t *testing.T) {
	input := QuoteInput{
		Metal:       "14K Yellow",
		WeightValue: 5,
		WeightUnit:  UnitDWT,
		Tax:         DefaultTaxFlags(),
	}

	b, err := Compute(input, testSettings())
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	nearlyEqual(t, "metalCost", b.MetalCost, 600)
}

func TestCompute_PlatinumDensityAndExtraFee(t *testing.T) {
	input := QuoteInput{
		Metal:               "Platinum",
		WeightValue:         5,
		WeightUnit:          UnitDWT,
		AddPlatinumExtraFee: true,
		Tax:                 DefaultTaxFlags(),
	}

	b, err := Compute(input, testSettings())
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	// 5 DWT × 1.6 density × $90 + $50 fee
	nearlyEqual(t, "metalCost", b.MetalCost, 770)
}

func TestCompute_GramsConvertToDWT(t *testing.T) {
	input := QuoteInput{
		Metal:       "14K Yellow",
		WeightValue: 10,
		WeightUnit:  UnitGrams,
		Tax:         DefaultTaxFlags(),
	}

	b, err := Compute(input, testSettings())
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	nearlyEqual(t, "metalCost", b.MetalCost, 10*GramsToDWT*120)
}

func TestCompute_CustomerSuppliedCenterExcluded(t *testing.T) {
	input := QuoteInput{
		Metal: "14K Yellow",
		Center: CenterStone{
			Desc:             "1.00ct round lab diamond",
			Price:            200,
			CustomerSupplied: true,
		},
		TrimStones: []TrimStoneLine{
			{Desc: "2.5mm round", Qty: 2, PriceEach: 30},
			{Desc: "2.0mm round", Qty: 3, PriceEach: 10},
		},
		Tax: DefaultTaxFlags(),
	}

	b, err := Compute(input, testSettings())
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	nearlyEqual(t, "stoneCost", b.StoneCost, 90)
	nearlyEqual(t, "subtotal", b.SubtotalPreTax, 90)
}

func TestCompute_TaxRoundingDepositGrandTotal(t *testing.T) {
	settings := testSettings()
	settings.Rounding = RoundTen

	input := QuoteInput{
		Metal:              "14K Yellow",
		CenterSettingLabor: 500,
		Tax:                DefaultTaxFlags(),
	}

	b, err := Compute(input, settings)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	nearlyEqual(t, "taxableSubtotal", b.TaxableSubtotal, 500)
	nearlyEqual(t, "tax", b.Tax, 40)
	nearlyEqual(t, "roundedSubtotal", b.RoundedSubtotal, 500)
	nearlyEqual(t, "deposit", b.Deposit, 150)
	nearlyEqual(t, "grandTotal", b.GrandTotal, 540)
}

func TestCompute_TaxUsesUnroundedTaxableSubtotal(t *testing.T) {
	settings := testSettings()
	settings.Rounding = RoundTen
	settings.TaxRate = 0.1

	input := QuoteInput{
		Metal:              "14K Yellow",
		CenterSettingLabor: 503,
		Shipping:           20, // non-taxable by default
		Tax:                DefaultTaxFlags(),
	}

	b, err := Compute(input, settings)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	// Tax on the actual $503 taxable amount, not on the rounded $520 subtotal.
	nearlyEqual(t, "tax", b.Tax, 50.3)
	nearlyEqual(t, "subtotal", b.SubtotalPreTax, 523)
	nearlyEqual(t, "roundedSubtotal", b.RoundedSubtotal, 520)
	nearlyEqual(t, "grandTotal", b.GrandTotal, b.RoundedSubtotal+b.Tax)
	nearlyEqual(t, "nonTaxable", b.NonTaxableSubtotal, 20)
}

func TestCompute_ZeroQuoteIsZeroNotError(t *testing.T) {
	input := QuoteInput{Metal: "14K Yellow", Tax: DefaultTaxFlags()}

	b, err := Compute(input, testSettings())
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	nearlyEqual(t, "subtotal", b.SubtotalPreTax, 0)
	nearlyEqual(t, "grandTotal", b.GrandTotal, 0)
	if len(b.LineItems) != 0 {
		t.Fatalf("expected no line items, got %+v", b.LineItems)
	}
}

func TestCompute_UnknownMetal(t *testing.T) {
	input := QuoteInput{Metal: "10K Rose", Tax: DefaultTaxFlags()}

	_, err := Compute(input, testSettings())
	var unknown *UnknownMetalError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownMetalError, got %v", err)
	}
	if unknown.Metal != "10K Rose" {
		t.Fatalf("unexpected metal in error: %q", unknown.Metal)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	input := QuoteInput{
		CustomerName:       "Jane",
		Metal:              "Platinum",
		WeightValue:        3.2,
		WeightUnit:         UnitDWT,
		CADFee:             150,
		CenterSettingLabor: 85,
		TrimStones:         []TrimStoneLine{{Qty: 4, PriceEach: 22.5}},
		Tax:                DefaultTaxFlags(),
	}
	settings := testSettings()
	settings.Rounding = RoundFive

	first, err := Compute(input, settings)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	second, err := Compute(input, settings)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different breakdowns:\n%+v\n%+v", first, second)
	}
}

func TestComputeOptions_OneBreakdownPerMetal(t *testing.T) {
	input := QuoteInput{WeightValue: 5, WeightUnit: UnitDWT, Tax: DefaultTaxFlags()}

	options, err := ComputeOptions(input, testSettings(), []string{"14K Yellow", "14K White"})
	if err != nil {
		t.Fatalf("ComputeOptions returned error: %v", err)
	}

	if len(options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(options))
	}
	nearlyEqual(t, "yellow metalCost", options[0].MetalCost, 600)
	nearlyEqual(t, "white metalCost", options[1].MetalCost, 625)
}

func TestRoundMoney_Rules(t *testing.T) {
	cases := []struct {
		rule string
		in   float64
		want float64
	}{
		{RoundNone, 123.45, 123.45},
		{RoundDollar, 123.45, 123},
		{RoundDollar, 123.5, 124},
		{RoundFive, 122.49, 120},
		{RoundFive, 122.5, 125},
		{RoundTen, 504.99, 500},
		{RoundTen, 505, 510},
	}

	for _, c := range cases {
		nearlyEqual(t, c.rule, RoundMoney(c.in, c.rule), c.want)
	}
}

func TestRoundMoney_Idempotent(t *testing.T) {
	for _, rule := range []string{RoundNone, RoundDollar, RoundFive, RoundTen} {
		once := RoundMoney(987.65, rule)
		twice := RoundMoney(once, rule)
		nearlyEqual(t, "re-round "+rule, twice, once)
	}
}

func TestValidUntil_FromQuoteDate(t *testing.T) {
	settings := testSettings()
	input := QuoteInput{Metal: "14K Yellow", QuoteDate: "2025-03-01", Tax: DefaultTaxFlags()}

	b, err := Compute(input, settings)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if b.ValidUntil != "2025-03-15" {
		t.Fatalf("expected valid until 2025-03-15, got %q", b.ValidUntil)
	}

	input.QuoteDate = "not-a-date"
	b, err = Compute(input, settings)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if b.ValidUntil != "" {
		t.Fatalf("expected empty valid until for bad date, got %q", b.ValidUntil)
	}
}
