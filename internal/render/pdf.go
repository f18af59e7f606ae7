package render

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/kcjewelers/quotebuilder/internal/pricing"
	"github.com/kcjewelers/quotebuilder/internal/quotes"
)

// CustomerPDF renders the customer-facing document: no internal notes, no
// customer-supplied stone cost, with the attachment image grid.
func CustomerPDF(q quotes.StoredQuote, settings pricing.Settings, quoteDir string) ([]byte, error) {
	return buildPDF(q, settings, quoteDir, true)
}

// InternalPDF renders the shop copy with the full breakdown, internal notes
// and the customer-supplied stone cost.
func InternalPDF(q quotes.StoredQuote, settings pricing.Settings, quoteDir string) ([]byte, error) {
	return buildPDF(q, settings, quoteDir, false)
}

func buildPDF(q quotes.StoredQuote, settings pricing.Settings, quoteDir string, customerView bool) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.Letter).
		WithLeftMargin(15).
		WithRightMargin(15).
		WithTopMargin(12).
		Build()
	m := maroto.New(cfg)

	if logo := logoFile(settings); logo != "" {
		m.AddRow(20, image.NewFromFileCol(12, logo, props.Rect{Center: true, Percent: 80}))
	}
	for _, l := range contactLines(settings.Store) {
		m.AddRows(text.NewRow(5, l, props.Text{Size: 8, Align: align.Center}))
	}

	m.AddRows(text.NewRow(12, "Custom Jewelry Quote", props.Text{
		Size:  16,
		Style: fontstyle.Bold,
		Align: align.Center,
		Top:   3,
	}))

	for _, l := range headerLines(q) {
		m.AddRows(text.NewRow(6, l, props.Text{Size: 10}))
	}

	if !customerView {
		if q.Input.Notes != "" {
			m.AddRows(text.NewRow(5, "Notes (internal):", props.Text{Size: 9, Style: fontstyle.Italic}))
			m.AddRows(text.NewRow(8, q.Input.Notes, props.Text{Size: 9}))
		}
		if q.Input.Center.CustomerSupplied && q.Input.Center.Price > 0 {
			m.AddRows(text.NewRow(5,
				fmt.Sprintf("Customer-supplied center stone (not billed): %s", money0(q.Input.Center.Price)),
				props.Text{Size: 9, Style: fontstyle.Italic}))
		}
	}

	if customerView {
		addImageGrid(m, existingImages(q, quoteDir, settings.Output.MaxImagesOnCustomerPage))
	}

	addLineItems(m, q.Breakdown.LineItems)
	addTotals(m, q.Breakdown)

	m.AddRows(text.NewRow(8, DefaultFooter, props.Text{Size: 8, Style: fontstyle.Italic, Top: 4}))

	doc, err := m.Generate()
	if err != nil {
		name := "internal document"
		if customerView {
			name = "customer document"
		}
		return nil, &RenderError{Doc: name, Err: err}
	}
	return doc.GetBytes(), nil
}

func addImageGrid(m core.Maroto, paths []string) {
	for i := 0; i < len(paths); i += 3 {
		end := i + 3
		if end > len(paths) {
			end = len(paths)
		}
		cols := make([]core.Col, 0, 3)
		for _, p := range paths[i:end] {
			cols = append(cols, image.NewFromFileCol(4, p, props.Rect{Center: true, Percent: 90}))
		}
		m.AddRow(45, cols...)
	}
}

func addLineItems(m core.Maroto, items []pricing.LineItem) {
	m.AddRows(text.NewRow(7, "Line items", props.Text{Size: 11, Style: fontstyle.Bold, Top: 2}))
	m.AddRows(line.NewRow(2))
	m.AddRow(5,
		text.NewCol(9, "Description", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(3, "Amount", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)

	for _, li := range items {
		m.AddRow(5,
			text.NewCol(9, li.Label, props.Text{Size: 9}),
			text.NewCol(3, money0(li.Amount), props.Text{Size: 9, Align: align.Right}),
		)
		for _, d := range li.Details {
			label := fmt.Sprintf("%d × %s", d.Qty, money0(d.Each))
			if d.Desc != "" {
				label = d.Desc + " — " + label
			}
			m.AddRow(4,
				text.NewCol(9, label, props.Text{Size: 8, Left: 4}),
				text.NewCol(3, money0(d.Amount), props.Text{Size: 8, Align: align.Right}),
			)
		}
	}
}

func addTotals(m core.Maroto, b pricing.Breakdown) {
	m.AddRows(line.NewRow(3))

	addTotal := func(label, value string, bold bool) {
		style := fontstyle.Normal
		if bold {
			style = fontstyle.Bold
		}
		m.AddRow(5,
			text.NewCol(9, label, props.Text{Size: 10, Style: style, Align: align.Right}),
			text.NewCol(3, value, props.Text{Size: 10, Style: style, Align: align.Right}),
		)
	}

	addTotal("Subtotal (pre-tax)", money0(b.SubtotalPreTax), false)
	if b.Rounding != pricing.RoundNone && b.Rounding != "" {
		addTotal("Rounded subtotal (pre-tax)", money0(b.RoundedSubtotal), false)
	}
	addTotal(fmt.Sprintf("Tax (%.2f%%)", b.TaxRate*100), money2(b.Tax), false)
	addTotal("Total (with tax)", money2(b.GrandTotal), true)
	addTotal(fmt.Sprintf("Deposit (%.0f%%)", b.DepositRate*100), money2(b.Deposit), false)
	addTotal("Balance due at pickup", money2(b.BalanceDue()), false)
}
