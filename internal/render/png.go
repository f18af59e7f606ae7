package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/kcjewelers/quotebuilder/internal/pricing"
	"github.com/kcjewelers/quotebuilder/internal/quotes"
)

// Letter ratio at 150 DPI.
const (
	pngWidth  = 1275
	pngHeight = 1650
	pngMargin = 90
)

// SummaryPNG renders a condensed one-image summary of the stored quote,
// suitable for texting to a customer.
func SummaryPNG(q quotes.StoredQuote, settings pricing.Settings, quoteDir string) ([]byte, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, &RenderError{Doc: "summary image", Err: err}
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, &RenderError{Doc: "summary image", Err: err}
	}

	title, err := newFace(bold, 44)
	if err != nil {
		return nil, &RenderError{Doc: "summary image", Err: err}
	}
	heading, err := newFace(bold, 28)
	if err != nil {
		return nil, &RenderError{Doc: "summary image", Err: err}
	}
	body, err := newFace(regular, 22)
	if err != nil {
		return nil, &RenderError{Doc: "summary image", Err: err}
	}
	small, err := newFace(regular, 18)
	if err != nil {
		return nil, &RenderError{Doc: "summary image", Err: err}
	}

	canvas := image.NewRGBA(image.Rect(0, 0, pngWidth, pngHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	y := pngMargin

	// Logo is optional: a missing or unreadable file just leaves the space.
	if logo := logoFile(settings); logo != "" {
		if h := drawLogo(canvas, logo, y); h > 0 {
			y += h + 16
		}
	}
	for _, l := range contactLines(settings.Store) {
		y += 24
		drawTextCentered(canvas, small, y, l)
	}

	y += 56
	drawTextCentered(canvas, title, y, "Custom Jewelry Quote")
	y += 28

	for _, l := range headerLines(q) {
		y += 34
		drawText(canvas, body, pngMargin, y, l)
	}

	if len(q.Images) > 0 {
		y = drawImageGrid(canvas, q, quoteDir, settings, y+20)
	}

	y += 48
	drawText(canvas, heading, pngMargin, y, "Line items")
	y += 14
	fillRect(canvas, pngMargin, y, pngWidth-pngMargin, y+3, color.Black)

	items := q.Breakdown.LineItems
	shown := items
	if len(shown) > 8 {
		shown = shown[:8]
	}
	for _, li := range shown {
		y += 30
		drawText(canvas, small, pngMargin, y, li.Label)
		drawTextRight(canvas, small, pngWidth-pngMargin, y, money0(li.Amount))
	}
	if len(items) > 8 {
		y += 26
		drawText(canvas, small, pngMargin, y, "… (more items in PDF)")
	}

	b := q.Breakdown
	totals := []struct {
		label string
		value string
	}{
		{"Subtotal (pre-tax)", money0(b.SubtotalPreTax)},
		{fmt.Sprintf("Tax (%.2f%%)", b.TaxRate*100), money2(b.Tax)},
		{"Total (with tax)", money2(b.GrandTotal)},
		{fmt.Sprintf("Deposit (%.0f%%)", b.DepositRate*100), money2(b.Deposit)},
		{"Balance due at pickup", money2(b.BalanceDue())},
	}
	if b.Rounding != pricing.RoundNone && b.Rounding != "" {
		totals = append(totals[:1], append([]struct {
			label string
			value string
		}{{"Rounded subtotal (pre-tax)", money0(b.RoundedSubtotal)}}, totals[1:]...)...)
	}

	y += 48
	drawText(canvas, heading, pngMargin, y, "Totals")
	y += 14
	fillRect(canvas, pngMargin, y, pngWidth-pngMargin, y+3, color.Black)
	for _, row := range totals {
		y += 32
		drawText(canvas, body, pngMargin, y, row.label)
		drawTextRight(canvas, body, pngWidth-pngMargin, y, row.value)
	}

	drawText(canvas, small, pngMargin, pngHeight-60, DefaultFooter)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, &RenderError{Doc: "summary image", Err: err}
	}
	return buf.Bytes(), nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

func drawText(dst *image.RGBA, face font.Face, x, y int, s string) {
	d := font.Drawer{Dst: dst, Src: image.Black, Face: face, Dot: fixed.P(x, y)}
	d.DrawString(s)
}

func drawTextRight(dst *image.RGBA, face font.Face, right, y int, s string) {
	w := font.MeasureString(face, s).Ceil()
	drawText(dst, face, right-w, y, s)
}

func drawTextCentered(dst *image.RGBA, face font.Face, y int, s string) {
	w := font.MeasureString(face, s).Ceil()
	drawText(dst, face, (pngWidth-w)/2, y, s)
}

func fillRect(dst *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	draw.Draw(dst, image.Rect(x0, y0, x1, y1), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// drawLogo draws the logo centered at the top and returns its drawn height,
// or 0 when the file cannot be decoded.
func drawLogo(canvas *image.RGBA, path string, y int) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return 0
	}

	const maxW, maxH = 800, 150
	b := src.Bounds()
	scale := minf(float64(maxW)/float64(b.Dx()), float64(maxH)/float64(b.Dy()), 1.0)
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w <= 0 || h <= 0 {
		return 0
	}

	x := (pngWidth - w) / 2
	xdraw.ApproxBiLinear.Scale(canvas, image.Rect(x, y, x+w, y+h), src, b, xdraw.Over, nil)
	return h
}

// drawImageGrid draws up to two rows of attachment thumbnails and returns
// the new cursor position.
func drawImageGrid(canvas *image.RGBA, q quotes.StoredQuote, quoteDir string, settings pricing.Settings, y int) int {
	paths := existingImages(q, quoteDir, settings.Output.MaxImagesOnCustomerPage)
	if len(paths) == 0 {
		return y
	}

	const (
		cols = 3
		cell = 260
		gap  = 18
	)
	rows := (len(paths) + cols - 1) / cols
	if rows > 2 {
		rows = 2
		paths = paths[:cols*2]
	}

	gridW := cols*cell + (cols-1)*gap
	startX := (pngWidth - gridW) / 2

	for i, p := range paths {
		r := i / cols
		c := i % cols
		x := startX + c*(cell+gap)
		top := y + r*(cell+gap)

		// cell border
		fillRect(canvas, x, top, x+cell, top+2, color.Black)
		fillRect(canvas, x, top+cell-2, x+cell, top+cell, color.Black)
		fillRect(canvas, x, top, x+2, top+cell, color.Black)
		fillRect(canvas, x+cell-2, top, x+cell, top+cell, color.Black)

		drawThumb(canvas, p, x, top, cell)
	}

	return y + rows*cell + (rows-1)*gap
}

func drawThumb(canvas *image.RGBA, path string, cellX, cellY, cell int) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return
	}

	b := src.Bounds()
	scale := minf(float64(cell-8)/float64(b.Dx()), float64(cell-8)/float64(b.Dy()), 1.0)
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w <= 0 || h <= 0 {
		return
	}

	x := cellX + (cell-w)/2
	y := cellY + (cell-h)/2
	xdraw.ApproxBiLinear.Scale(canvas, image.Rect(x, y, x+w, y+h), src, b, xdraw.Over, nil)
}

func minf(values ...float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
