package pricing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GramsToDWT converts grams to pennyweight (historical jeweler factor).
const GramsToDWT = 0.643

// ItemType identifies the kind of jewelry piece being quoted.
type ItemType string

const (
	ItemRing     ItemType = "Ring"
	ItemEarrings ItemType = "Earrings"
	ItemNecklace ItemType = "Necklace"
	ItemPendant  ItemType = "Pendant"
	ItemBracelet ItemType = "Bracelet"
	ItemOther    ItemType = "Other"
)

// ItemTypes lists the selectable item types in form order.
func ItemTypes() []ItemType {
	return []ItemType{ItemRing, ItemEarrings, ItemNecklace, ItemPendant, ItemBracelet, ItemOther}
}

// WeightUnit is the unit the metal weight was entered in.
type WeightUnit string

const (
	UnitDWT   WeightUnit = "DWT"
	UnitGrams WeightUnit = "Grams"
)

// Rounding rules applied to the pre-tax subtotal.
const (
	RoundNone   = "none"
	RoundDollar = "nearest_dollar"
	RoundFive   = "nearest_5"
	RoundTen    = "nearest_10"
)

// StoreInfo is the shop contact block shown on rendered documents.
type StoreInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// OutputPrefs controls document generation details.
type OutputPrefs struct {
	QuoteValidDays          int `json:"quote_valid_days"`
	MaxImagesOnCustomerPage int `json:"max_images_on_customer_page"`
}

// Settings holds the shop-wide configuration every computation and render
// receives explicitly. There is no ambient global copy.
type Settings struct {
	Store                StoreInfo          `json:"store"`
	TaxRate              float64            `json:"tax_rate"`
	DepositRate          float64            `json:"deposit_rate"`
	Rounding             string             `json:"rounding"`
	MetalRatesPerDWT     map[string]float64 `json:"metals_retail_per_dwt"`
	PlatinumDensityRatio float64            `json:"platinum_density_ratio"`
	PlatinumExtraFee     float64            `json:"platinum_extra_fee"`
	LogoPath             string             `json:"logo_path"`
	Output               OutputPrefs        `json:"output"`
}

// RingDetails is populated only when the item type is Ring.
type RingDetails struct {
	FingerSize  string `json:"finger_size"`
	RingWidth   string `json:"ring_width"`
	CenterShape string `json:"center_shape"`
}

// CenterStone describes the center stone line. A customer-supplied stone
// contributes nothing to the priced breakdown; its price is kept for the
// internal document only.
type CenterStone struct {
	Desc             string  `json:"desc"`
	Price            float64 `json:"price"`
	CustomerSupplied bool    `json:"customer_supplied"`
}

// TrimStoneLine is one quantity × unit-price trim stone row.
type TrimStoneLine struct {
	Desc      string  `json:"desc"`
	Qty       int     `json:"qty"`
	PriceEach float64 `json:"price_each"`
}

// TrimSettingLine is one quantity × per-stone-rate setting labor row.
type TrimSettingLine struct {
	Desc         string  `json:"desc"`
	Qty          int     `json:"qty"`
	RatePerStone float64 `json:"rate"`
}

// TaxFlags records per-category taxability for a quote.
type TaxFlags struct {
	CAD         bool `json:"cad"`
	Metal       bool `json:"metal"`
	CenterStone bool `json:"center_stone"`
	TrimStones  bool `json:"trim_stones"`
	Labor       bool `json:"labor"`
	Appraisal   bool `json:"appraisal"`
	Engraving   bool `json:"engraving"`
	Shipping    bool `json:"shipping"`
	Rhodium     bool `json:"rhodium"`
}

// DefaultTaxFlags returns the shop's standing rules: everything taxable
// except shipping.
func DefaultTaxFlags() TaxFlags {
	return TaxFlags{
		CAD:         true,
		Metal:       true,
		CenterStone: true,
		TrimStones:  true,
		Labor:       true,
		Appraisal:   true,
		Engraving:   true,
		Shipping:    false,
		Rhodium:     true,
	}
}

// QuoteInput is everything the form collects for one job.
type QuoteInput struct {
	CustomerName string       `json:"customer_name"`
	JobDesc      string       `json:"job_desc"`
	ItemType     ItemType     `json:"item_type"`
	QuoteDate    string       `json:"quote_date"`
	Notes        string       `json:"notes"`
	Ring         *RingDetails `json:"ring,omitempty"`

	CADFee float64 `json:"cad_fee"`

	Metal               string     `json:"metal"`
	WeightValue         float64    `json:"metal_weight_value"`
	WeightUnit          WeightUnit `json:"metal_weight_unit"`
	AddPlatinumExtraFee bool       `json:"add_platinum_extra_fee"`

	Center     CenterStone     `json:"center_stone"`
	TrimStones []TrimStoneLine `json:"trim_stones"`

	CenterSettingLabor float64           `json:"center_setting_labor"`
	TrimSetting        []TrimSettingLine `json:"trim_setting_lines"`

	Appraisal float64 `json:"appraisal"`
	Engraving float64 `json:"engraving"`
	Shipping  float64 `json:"shipping"`
	Rhodium   float64 `json:"rhodium"`

	Tax TaxFlags `json:"tax_flags"`

	Images []string `json:"images,omitempty"`
}

// LineDetail is one sub-row under a multi-line item (trim stones, trim setting).
type LineDetail struct {
	Desc   string  `json:"desc"`
	Qty    int     `json:"qty"`
	Each   float64 `json:"each"`
	Amount float64 `json:"amount"`
}

// LineItem is one priced row of the quote.
type LineItem struct {
	Label   string       `json:"label"`
	Amount  float64      `json:"amount"`
	Taxable bool         `json:"taxable"`
	Kind    string       `json:"kind"`
	Details []LineDetail `json:"details,omitempty"`
}

// Breakdown is the full priced output for a single metal. It is a pure
// function of (QuoteInput, Settings) and is persisted as a snapshot.
type Breakdown struct {
	Metal     string     `json:"metal"`
	LineItems []LineItem `json:"line_items"`

	MetalCost float64 `json:"metal_cost"`
	StoneCost float64 `json:"stone_cost"`
	LaborCost float64 `json:"labor_cost"`
	FeeTotal  float64 `json:"fee_total"`

	TaxableSubtotal    float64 `json:"taxable_subtotal"`
	NonTaxableSubtotal float64 `json:"non_taxable_subtotal"`
	SubtotalPreTax     float64 `json:"subtotal_pre_tax"`
	RoundedSubtotal    float64 `json:"rounded_subtotal"`
	Tax                float64 `json:"tax"`
	Deposit            float64 `json:"deposit"`
	GrandTotal         float64 `json:"grand_total"`

	TaxRate     float64 `json:"tax_rate"`
	DepositRate float64 `json:"deposit_rate"`
	Rounding    string  `json:"rounding"`
	ValidUntil  string  `json:"valid_until,omitempty"`
}

// BalanceDue is what remains after the deposit.
func (b Breakdown) BalanceDue() float64 {
	return math.Max(0, b.GrandTotal-b.Deposit)
}

// UnknownMetalError reports a metal selection missing from the rate table.
type UnknownMetalError struct {
	Metal string
}

func (e *UnknownMetalError) Error() string {
	return fmt.Sprintf("metal %q is not in the metal rate table", e.Metal)
}

// WeightToDWT normalizes an entered weight to pennyweight.
func WeightToDWT(value float64, unit WeightUnit) float64 {
	if unit == UnitGrams {
		return value * GramsToDWT
	}
	return value
}

// RoundMoney applies a rounding rule to an amount, half up. Rounding an
// already-rounded amount returns it unchanged.
func RoundMoney(x float64, rule string) float64 {
	var step int64
	switch strings.ToLower(strings.TrimSpace(rule)) {
	case RoundDollar:
		step = 1
	case RoundFive:
		step = 5
	case RoundTen:
		step = 10
	default:
		return x
	}
	inc := decimal.NewFromInt(step)
	units := decimal.NewFromFloat(x).Div(inc).Round(0)
	rounded, _ := units.Mul(inc).Float64()
	return rounded
}

func isPlatinum(metal string) bool {
	return strings.HasPrefix(strings.ToUpper(metal), "PLAT")
}

// Compute prices a quote for its selected metal. It performs no I/O and is
// deterministic: identical input and settings always produce an identical
// breakdown. Unknown metals return an UnknownMetalError; every other input
// in the domain (non-negative numbers) computes, including the all-zero quote.
func Compute(input QuoteInput, settings Settings) (Breakdown, error) {
	rate, ok := settings.MetalRatesPerDWT[input.Metal]
	if !ok {
		return Breakdown{}, &UnknownMetalError{Metal: input.Metal}
	}

	b := Breakdown{
		Metal:       input.Metal,
		TaxRate:     settings.TaxRate,
		DepositRate: settings.DepositRate,
		Rounding:    settings.Rounding,
		ValidUntil:  validUntil(input.QuoteDate, settings.Output.QuoteValidDays),
	}

	if input.CADFee > 0 {
		b.LineItems = append(b.LineItems, LineItem{
			Label:   "CAD / design fee",
			Amount:  input.CADFee,
			Taxable: input.Tax.CAD,
			Kind:    "cad",
		})
	}

	baseDWT := WeightToDWT(input.WeightValue, input.WeightUnit)
	if baseDWT > 0 {
		dwt := baseDWT
		if isPlatinum(input.Metal) {
			dwt = baseDWT * settings.PlatinumDensityRatio
		}
		b.MetalCost = dwt * rate
		if isPlatinum(input.Metal) && input.AddPlatinumExtraFee {
			b.MetalCost += settings.PlatinumExtraFee
		}
		b.LineItems = append(b.LineItems, LineItem{
			Label:   fmt.Sprintf("Metal (%s)", input.Metal),
			Amount:  b.MetalCost,
			Taxable: input.Tax.Metal,
			Kind:    "metal",
		})
	}

	centerAmount := input.Center.Price
	if input.Center.CustomerSupplied {
		centerAmount = 0
	}
	if input.Center.Desc != "" || centerAmount > 0 {
		label := "Center stone"
		if input.Center.Desc != "" {
			label = "Center stone: " + input.Center.Desc
		}
		if input.Center.CustomerSupplied {
			label += " (customer supplied)"
		}
		b.LineItems = append(b.LineItems, LineItem{
			Label:   label,
			Amount:  centerAmount,
			Taxable: input.Tax.CenterStone,
			Kind:    "center_stone",
		})
	}

	trimTotal := 0.0
	var trimDetails []LineDetail
	for _, row := range input.TrimStones {
		if row.Qty <= 0 || row.PriceEach <= 0 {
			continue
		}
		amt := float64(row.Qty) * row.PriceEach
		trimTotal += amt
		trimDetails = append(trimDetails, LineDetail{Desc: row.Desc, Qty: row.Qty, Each: row.PriceEach, Amount: amt})
	}
	if trimTotal > 0 {
		b.LineItems = append(b.LineItems, LineItem{
			Label:   "Trim stones",
			Amount:  trimTotal,
			Taxable: input.Tax.TrimStones,
			Kind:    "trim_stones",
			Details: trimDetails,
		})
	}
	b.StoneCost = centerAmount + trimTotal

	if input.CenterSettingLabor > 0 {
		b.LineItems = append(b.LineItems, LineItem{
			Label:   "Setting labor (center)",
			Amount:  input.CenterSettingLabor,
			Taxable: input.Tax.Labor,
			Kind:    "labor_center_setting",
		})
	}

	trimSettingTotal := 0.0
	var settingDetails []LineDetail
	for _, row := range input.TrimSetting {
		if row.Qty <= 0 || row.RatePerStone <= 0 {
			continue
		}
		amt := float64(row.Qty) * row.RatePerStone
		trimSettingTotal += amt
		settingDetails = append(settingDetails, LineDetail{Desc: row.Desc, Qty: row.Qty, Each: row.RatePerStone, Amount: amt})
	}
	if trimSettingTotal > 0 {
		b.LineItems = append(b.LineItems, LineItem{
			Label:   "Setting labor (trim)",
			Amount:  trimSettingTotal,
			Taxable: input.Tax.Labor,
			Kind:    "labor_trim_setting",
			Details: settingDetails,
		})
	}
	b.LaborCost = input.CenterSettingLabor + trimSettingTotal

	charges := []struct {
		amount  float64
		label   string
		taxable bool
		kind    string
	}{
		{input.Appraisal, "Appraisal (outside components)", input.Tax.Appraisal, "appraisal"},
		{input.Engraving, "Engraving", input.Tax.Engraving, "engraving"},
		{input.Shipping, "Shipping", input.Tax.Shipping, "shipping"},
		{input.Rhodium, "Rhodium plating", input.Tax.Rhodium, "rhodium"},
	}
	for _, c := range charges {
		if c.amount <= 0 {
			continue
		}
		b.LineItems = append(b.LineItems, LineItem{
			Label:   c.label,
			Amount:  c.amount,
			Taxable: c.taxable,
			Kind:    c.kind,
		})
	}
	b.FeeTotal = input.CADFee + input.Appraisal + input.Engraving + input.Shipping + input.Rhodium

	for _, li := range b.LineItems {
		if li.Taxable {
			b.TaxableSubtotal += li.Amount
		} else {
			b.NonTaxableSubtotal += li.Amount
		}
	}
	b.SubtotalPreTax = b.TaxableSubtotal + b.NonTaxableSubtotal

	// Tax is owed on the actual taxable amount; rounding only moves the
	// pre-tax subtotal the customer sees.
	b.Tax = b.TaxableSubtotal * settings.TaxRate
	b.RoundedSubtotal = RoundMoney(b.SubtotalPreTax, settings.Rounding)
	b.Deposit = b.RoundedSubtotal * settings.DepositRate
	b.GrandTotal = b.RoundedSubtotal + b.Tax

	return b, nil
}

// ComputeOptions prices the same job for several metals side by side. The
// form preview uses this; only the metal the user saves is persisted.
func ComputeOptions(input QuoteInput, settings Settings, metals []string) ([]Breakdown, error) {
	options := make([]Breakdown, 0, len(metals))
	for _, metal := range metals {
		in := input
		in.Metal = metal
		b, err := Compute(in, settings)
		if err != nil {
			return nil, err
		}
		options = append(options, b)
	}
	return options, nil
}

func validUntil(quoteDate string, validDays int) string {
	if validDays <= 0 {
		return ""
	}
	d, err := time.Parse("2006-01-02", quoteDate)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, validDays).Format("2006-01-02")
}
