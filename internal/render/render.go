// Package render formats stored quotes into customer-facing and internal
// documents. It never recomputes pricing: every figure comes from the
// breakdown snapshotted at save time, so rendered documents always match the
// persisted version exactly.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kcjewelers/quotebuilder/internal/pricing"
	"github.com/kcjewelers/quotebuilder/internal/quotes"
)

// DefaultFooter is printed when the quote carries no custom disclaimer.
const DefaultFooter = "Prices subject to change due to metal market and stone availability."

// RenderError reports a document that could not be produced. Missing
// optional assets (the logo, an attachment) never cause it; the document is
// rendered without them instead.
type RenderError struct {
	Doc string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Doc, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func money0(x float64) string {
	return "$" + groupThousands(fmt.Sprintf("%.0f", x))
}

func money2(x float64) string {
	s := fmt.Sprintf("%.2f", x)
	intPart, frac, _ := strings.Cut(s, ".")
	return "$" + groupThousands(intPart) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// headerLines builds the text block under the title, shared by both
// document kinds.
func headerLines(q quotes.StoredQuote) []string {
	h := q.Input
	lines := []string{
		fmt.Sprintf("Customer: %s", orDash(h.CustomerName)),
		fmt.Sprintf("Quote #: %s  v%d   Date: %s", q.ID, q.Version, h.QuoteDate),
	}
	if q.Breakdown.ValidUntil != "" {
		lines = append(lines, "Valid until: "+q.Breakdown.ValidUntil)
	}
	if h.JobDesc != "" {
		lines = append(lines, "Job: "+h.JobDesc)
	}
	if h.ItemType != "" {
		lines = append(lines, "Item type: "+string(h.ItemType))
	}
	if h.ItemType == pricing.ItemRing && h.Ring != nil {
		var parts []string
		if h.Ring.FingerSize != "" {
			parts = append(parts, "Size: "+h.Ring.FingerSize)
		}
		if h.Ring.RingWidth != "" {
			parts = append(parts, "Width: "+h.Ring.RingWidth)
		}
		if h.Ring.CenterShape != "" {
			parts = append(parts, "Center shape: "+h.Ring.CenterShape)
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, "   "))
		}
	}
	return lines
}

func contactLines(store pricing.StoreInfo) []string {
	var lines []string
	if store.Name != "" {
		lines = append(lines, store.Name)
	}
	contact := strings.TrimSpace(strings.Join(nonEmpty(store.Phone, store.Email), "  "))
	if contact != "" {
		lines = append(lines, contact)
	}
	if store.Address != "" {
		lines = append(lines, store.Address)
	}
	return lines
}

// existingImages resolves a quote's image refs against its directory and
// keeps only files that are actually present, capped at max.
func existingImages(q quotes.StoredQuote, quoteDir string, max int) []string {
	var paths []string
	for _, ref := range q.Images {
		p := filepath.Join(quoteDir, ref)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		paths = append(paths, p)
		if max > 0 && len(paths) >= max {
			break
		}
	}
	return paths
}

// logoFile returns the logo path when it exists, or empty to skip it.
func logoFile(settings pricing.Settings) string {
	if settings.LogoPath == "" {
		return ""
	}
	if _, err := os.Stat(settings.LogoPath); err != nil {
		return ""
	}
	return settings.LogoPath
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
