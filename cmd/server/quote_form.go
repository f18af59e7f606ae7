package main

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kcjewelers/quotebuilder/internal/pricing"
	"github.com/kcjewelers/quotebuilder/internal/quotes"
)

const maxUploadBytes = 32 << 20

type quoteFormViewData struct {
	baseViewData
	Input          pricing.QuoteInput
	SelectedMetals []string
	Settings       pricing.Settings
	Metals         []metalRate
	ItemTypes      []pricing.ItemType
	Breakdowns     []pricing.Breakdown
	QuoteID        string
}

func (s *server) handleQuoteForm(w http.ResponseWriter, r *http.Request) {
	loaded, warning := s.loadSettings()

	s.renderTemplate(w, "quote_form.html", quoteFormViewData{
		baseViewData: baseViewData{
			WarningMessage: warning,
			ErrorMessage:   r.URL.Query().Get("error"),
		},
		Input:     defaultQuoteInput(),
		Settings:  loaded,
		Metals:    sortedMetalRates(loaded),
		ItemTypes: pricing.ItemTypes(),
	})
}

// defaultQuoteInput is the blank form: standing tax rules, today's date,
// and the platinum fabrication fee on. The fee only applies when a platinum
// metal is chosen, so leaving it checked is harmless for gold quotes.
func defaultQuoteInput() pricing.QuoteInput {
	return pricing.QuoteInput{
		QuoteDate:           time.Now().Format("2006-01-02"),
		AddPlatinumExtraFee: true,
		Tax:                 pricing.DefaultTaxFlags(),
	}
}

// handleQuoteRevise reopens the form prefilled from a stored version so a
// save appends the next version under the same quote number.
func (s *server) handleQuoteRevise(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version := 0
	if raw := r.URL.Query().Get("v"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			http.Error(w, "invalid version", http.StatusBadRequest)
			return
		}
		version = v
	}

	doc, err := s.repo.Load(id, version)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	loaded, warning := s.loadSettings()
	s.renderTemplate(w, "quote_form.html", reviseFormData(doc, loaded, warning))
}

func reviseFormData(doc quotes.StoredQuote, loaded pricing.Settings, warning string) quoteFormViewData {
	var selected []string
	if doc.Input.Metal != "" {
		selected = []string{doc.Input.Metal}
	}
	return quoteFormViewData{
		baseViewData:   baseViewData{WarningMessage: warning},
		Input:          doc.Input,
		SelectedMetals: selected,
		Settings:       loaded,
		Metals:         metalOptions(loaded, selected),
		ItemTypes:      pricing.ItemTypes(),
		QuoteID:        doc.ID,
	}
}

func (s *server) handleQuotePreview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	loaded, warning := s.loadSettings()
	input, selected, err := parseQuoteForm(r)
	data := quoteFormViewData{
		baseViewData:   baseViewData{WarningMessage: warning},
		Input:          input,
		SelectedMetals: selected,
		Settings:       loaded,
		Metals:         metalOptions(loaded, selected),
		ItemTypes:      pricing.ItemTypes(),
		QuoteID:        strings.TrimSpace(r.FormValue("quote_id")),
	}
	if err != nil {
		data.ErrorMessage = err.Error()
		w.WriteHeader(http.StatusBadRequest)
		s.renderTemplate(w, "quote_form.html", data)
		return
	}

	breakdowns, err := pricing.ComputeOptions(input, loaded, selected)
	if err != nil {
		data.ErrorMessage = err.Error()
		w.WriteHeader(http.StatusBadRequest)
		s.renderTemplate(w, "quote_form.html", data)
		return
	}

	data.Breakdowns = breakdowns
	s.renderTemplate(w, "quote_form.html", data)
}

func (s *server) handleQuoteSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	loaded, _ := s.loadSettings()
	input, _, err := parseQuoteForm(r)
	if err != nil {
		redirectWithError(w, r, "/", err.Error())
		return
	}
	if input.Metal == "" {
		redirectWithError(w, r, "/", "pick a metal before saving")
		return
	}

	breakdown, err := pricing.Compute(input, loaded)
	if err != nil {
		redirectWithError(w, r, "/", err.Error())
		return
	}

	id := strings.TrimSpace(r.FormValue("quote_id"))
	if id == "" {
		id, err = s.repo.NextID(time.Now().Year())
		if err != nil {
			log.Printf("allocating quote id: %v", err)
			http.Error(w, "failed to allocate quote number", http.StatusInternalServerError)
			return
		}
	}

	uploads, cleanup, err := saveUploads(r.MultipartForm)
	if err != nil {
		http.Error(w, "failed to read uploaded images", http.StatusInternalServerError)
		return
	}
	defer cleanup()

	version, err := s.repo.Save(id, input, breakdown, uploads)
	if err != nil {
		log.Printf("saving quote %s: %v", id, err)
		http.Error(w, "failed to save quote", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/quotes/%s?success=Saved+version+%d", id, version), http.StatusSeeOther)
}

// saveUploads spools multipart image uploads to temp files so the
// repository can copy them into the quote directory.
func saveUploads(form *multipart.Form) ([]string, func(), error) {
	var paths []string
	cleanup := func() {
		for _, p := range paths {
			_ = os.Remove(p)
		}
	}

	if form == nil {
		return nil, cleanup, nil
	}
	for _, fh := range form.File["images"] {
		if fh.Filename == "" || fh.Size == 0 {
			continue
		}
		p, err := spoolUpload(fh)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		paths = append(paths, p)
	}
	return paths, cleanup, nil
}

func spoolUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return "", fmt.Errorf("spool upload %s: %w", fh.Filename, err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("spool upload %s: %w", fh.Filename, err)
	}
	return tmp.Name(), nil
}

// parseQuoteForm reads the quote form into a pricing input. It returns
// the metals chosen for side-by-side comparison alongside the input;
// input.Metal carries the single metal the quote will be saved under.
func parseQuoteForm(r *http.Request) (pricing.QuoteInput, []string, error) {
	input := pricing.QuoteInput{
		CustomerName: strings.TrimSpace(r.FormValue("customer_name")),
		JobDesc:      strings.TrimSpace(r.FormValue("job_desc")),
		ItemType:     pricing.ItemType(r.FormValue("item_type")),
		QuoteDate:    strings.TrimSpace(r.FormValue("quote_date")),
		Notes:        strings.TrimSpace(r.FormValue("notes")),
		Metal:        strings.TrimSpace(r.FormValue("metal")),
	}
	if input.QuoteDate == "" {
		input.QuoteDate = time.Now().Format("2006-01-02")
	}

	if input.ItemType == pricing.ItemRing {
		input.Ring = &pricing.RingDetails{
			FingerSize:  strings.TrimSpace(r.FormValue("finger_size")),
			RingWidth:   strings.TrimSpace(r.FormValue("ring_width")),
			CenterShape: strings.TrimSpace(r.FormValue("center_shape")),
		}
	}

	var err error
	if input.CADFee, err = parseOptionalFloat(r.FormValue("cad_fee"), "cad_fee"); err != nil {
		return input, nil, err
	}
	if input.WeightValue, err = parseOptionalFloat(r.FormValue("weight"), "weight"); err != nil {
		return input, nil, err
	}
	input.WeightUnit = pricing.WeightUnit(r.FormValue("weight_unit"))
	if input.WeightUnit == "" {
		input.WeightUnit = pricing.UnitDWT
	}
	input.AddPlatinumExtraFee = r.FormValue("add_platinum_extra_fee") == "1"

	input.Center.Desc = strings.TrimSpace(r.FormValue("center_desc"))
	if input.Center.Price, err = parseOptionalFloat(r.FormValue("center_price"), "center_price"); err != nil {
		return input, nil, err
	}
	input.Center.CustomerSupplied = r.FormValue("center_customer_supplied") == "1"

	if input.TrimStones, err = parseTrimStones(r); err != nil {
		return input, nil, err
	}
	if input.CenterSettingLabor, err = parseOptionalFloat(r.FormValue("center_setting_labor"), "center_setting_labor"); err != nil {
		return input, nil, err
	}
	if input.TrimSetting, err = parseTrimSettings(r); err != nil {
		return input, nil, err
	}

	if input.Appraisal, err = parseOptionalFloat(r.FormValue("appraisal"), "appraisal"); err != nil {
		return input, nil, err
	}
	if input.Engraving, err = parseOptionalFloat(r.FormValue("engraving"), "engraving"); err != nil {
		return input, nil, err
	}
	if input.Shipping, err = parseOptionalFloat(r.FormValue("shipping"), "shipping"); err != nil {
		return input, nil, err
	}
	if input.Rhodium, err = parseOptionalFloat(r.FormValue("rhodium"), "rhodium"); err != nil {
		return input, nil, err
	}

	input.Tax = parseTaxFlags(r)

	selected := r.Form["metals[]"]
	if len(selected) == 0 && input.Metal != "" {
		selected = []string{input.Metal}
	}
	if input.Metal == "" && len(selected) == 1 {
		input.Metal = selected[0]
	}

	return input, selected, nil
}

func parseTrimStones(r *http.Request) ([]pricing.TrimStoneLine, error) {
	descs := r.Form["trim_desc[]"]
	qtys := r.Form["trim_qty[]"]
	each := r.Form["trim_each[]"]
	if len(descs) != len(qtys) || len(descs) != len(each) {
		return nil, fmt.Errorf("trim stone rows do not line up")
	}

	var lines []pricing.TrimStoneLine
	for i, desc := range descs {
		desc = strings.TrimSpace(desc)
		qty, err := parseOptionalInt(qtys[i], "trim stone qty")
		if err != nil {
			return nil, err
		}
		price, err := parseOptionalFloat(each[i], "trim stone price")
		if err != nil {
			return nil, err
		}
		if desc == "" && qty == 0 && price == 0 {
			continue
		}
		lines = append(lines, pricing.TrimStoneLine{Desc: desc, Qty: qty, PriceEach: price})
	}
	return lines, nil
}

func parseTrimSettings(r *http.Request) ([]pricing.TrimSettingLine, error) {
	descs := r.Form["trimset_desc[]"]
	qtys := r.Form["trimset_qty[]"]
	rates := r.Form["trimset_rate[]"]
	if len(descs) != len(qtys) || len(descs) != len(rates) {
		return nil, fmt.Errorf("trim setting rows do not line up")
	}

	var lines []pricing.TrimSettingLine
	for i, desc := range descs {
		desc = strings.TrimSpace(desc)
		qty, err := parseOptionalInt(qtys[i], "setting qty")
		if err != nil {
			return nil, err
		}
		rate, err := parseOptionalFloat(rates[i], "setting rate")
		if err != nil {
			return nil, err
		}
		if desc == "" && qty == 0 && rate == 0 {
			continue
		}
		lines = append(lines, pricing.TrimSettingLine{Desc: desc, Qty: qty, RatePerStone: rate})
	}
	return lines, nil
}

func parseTaxFlags(r *http.Request) pricing.TaxFlags {
	on := func(name string) bool { return r.FormValue(name) == "1" }
	return pricing.TaxFlags{
		CAD:         on("tax_cad"),
		Metal:       on("tax_metal"),
		CenterStone: on("tax_center"),
		TrimStones:  on("tax_trim_stones"),
		Labor:       on("tax_labor"),
		Appraisal:   on("tax_appraisal"),
		Engraving:   on("tax_engraving"),
		Shipping:    on("tax_shipping"),
		Rhodium:     on("tax_rhodium"),
	}
}
