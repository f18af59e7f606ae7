package main

import (
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kcjewelers/quotebuilder/internal/config"
	"github.com/kcjewelers/quotebuilder/internal/pricing"
	"github.com/kcjewelers/quotebuilder/internal/quotes"
	"github.com/kcjewelers/quotebuilder/internal/settings"
)

type server struct {
	auth     *authService
	settings *settings.Store
	repo     *quotes.Repo
}

type baseViewData struct {
	ErrorMessage   string
	SuccessMessage string
	WarningMessage string
}

type loginViewData struct {
	baseViewData
}

type settingsViewData struct {
	baseViewData
	Settings pricing.Settings
	Metals   []metalRate
}

type metalRate struct {
	Name     string
	Rate     float64
	Selected bool
}

type quotesViewData struct {
	baseViewData
	Quotes []quotes.ListEntry
}

type quoteDetailViewData struct {
	baseViewData
	Quote    quotes.StoredQuote
	Versions []quotes.VersionInfo
}

func main() {
	cfg := config.Load()

	store := settings.NewStore(cfg.SettingsPath())
	if _, err := store.Load(); err != nil {
		log.Printf("warning: settings unreadable, continuing with defaults: %v", err)
	}

	srv := &server{
		auth:     newAuthService(cfg.AppPassword, cfg.SessionSecret),
		settings: store,
		repo:     quotes.NewRepo(cfg.QuotesDir()),
	}

	r := chi.NewRouter()
	r.Use(srv.authMiddleware)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	r.Get("/", srv.handleQuoteForm)
	r.Get("/login", srv.handleLoginForm)
	r.Post("/login", srv.handleLoginSubmit)
	r.Post("/logout", srv.handleLogout)
	r.Post("/quotes/preview", srv.handleQuotePreview)
	r.Post("/quotes", srv.handleQuoteSave)
	r.Get("/quotes", srv.handleQuotesList)
	r.Get("/quotes/{id}", srv.handleQuoteDetail)
	r.Get("/quotes/{id}/revise", srv.handleQuoteRevise)
	r.Get("/quotes/{id}/customer.pdf", srv.handleCustomerPDF)
	r.Get("/quotes/{id}/internal.pdf", srv.handleInternalPDF)
	r.Get("/quotes/{id}/summary.png", srv.handleSummaryPNG)
	r.Get("/settings", srv.handleSettingsForm)
	r.Post("/settings", srv.handleSettingsSubmit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// loadSettings returns usable settings plus a banner warning when the
// persisted document had to be replaced with defaults.
func (s *server) loadSettings() (pricing.Settings, string) {
	loaded, err := s.settings.Load()
	if err != nil {
		var cfgErr *settings.ConfigError
		if errors.As(err, &cfgErr) {
			return loaded, "Settings file is unreadable; using built-in defaults."
		}
		return loaded, "Settings could not be loaded; using built-in defaults."
	}
	return loaded, ""
}

func (s *server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if isAuthenticated(r, s.auth) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "login.html", loginViewData{})
}

func (s *server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if !s.auth.validatePassword(r.FormValue("password")) {
		w.WriteHeader(http.StatusUnauthorized)
		s.renderTemplate(w, "login.html", loginViewData{baseViewData: baseViewData{ErrorMessage: "Password required."}})
		return
	}

	s.auth.setSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *server) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.List()
	if err != nil {
		http.Error(w, "failed to load quotes", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "quotes.html", quotesViewData{
		baseViewData: baseViewData{SuccessMessage: r.URL.Query().Get("success")},
		Quotes:       list,
	})
}

func (s *server) handleQuoteDetail(w http.ResponseWriter, r *http.Request) {
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

	versions, err := s.repo.ListVersions(id)
	if err != nil {
		http.Error(w, "failed to load quote versions", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "quote_detail.html", quoteDetailViewData{
		baseViewData: baseViewData{SuccessMessage: r.URL.Query().Get("success")},
		Quote:        doc,
		Versions:     versions,
	})
}

func (s *server) handleSettingsForm(w http.ResponseWriter, r *http.Request) {
	loaded, warning := s.loadSettings()
	s.renderTemplate(w, "settings.html", settingsViewData{
		baseViewData: baseViewData{WarningMessage: warning},
		Settings:     loaded,
		Metals:       sortedMetalRates(loaded),
	})
}

func (s *server) handleSettingsSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	parsed, validationErr := parseSettingsForm(r)
	if validationErr != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderTemplate(w, "settings.html", settingsViewData{
			baseViewData: baseViewData{ErrorMessage: validationErr.Error()},
			Settings:     parsed,
			Metals:       sortedMetalRates(parsed),
		})
		return
	}

	if err := s.settings.Save(parsed); err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "settings.html", settingsViewData{
		baseViewData: baseViewData{SuccessMessage: "Settings saved."},
		Settings:     parsed,
		Metals:       sortedMetalRates(parsed),
	})
}

func parseSettingsForm(r *http.Request) (pricing.Settings, error) {
	parsed := settings.Default()

	parsed.Store.Name = strings.TrimSpace(r.FormValue("store_name"))
	parsed.Store.Phone = strings.TrimSpace(r.FormValue("store_phone"))
	parsed.Store.Email = strings.TrimSpace(r.FormValue("store_email"))
	parsed.Store.Address = strings.TrimSpace(r.FormValue("store_address"))
	parsed.LogoPath = strings.TrimSpace(r.FormValue("logo_path"))
	parsed.Rounding = strings.TrimSpace(r.FormValue("rounding"))

	var err error
	if parsed.TaxRate, err = parseFraction(r.FormValue("tax_rate"), "tax_rate"); err != nil {
		return parsed, err
	}
	if parsed.DepositRate, err = parseFraction(r.FormValue("deposit_rate"), "deposit_rate"); err != nil {
		return parsed, err
	}
	if parsed.PlatinumDensityRatio, err = parseOptionalFloat(r.FormValue("platinum_density_ratio"), "platinum_density_ratio"); err != nil {
		return parsed, err
	}
	if parsed.PlatinumExtraFee, err = parseOptionalFloat(r.FormValue("platinum_extra_fee"), "platinum_extra_fee"); err != nil {
		return parsed, err
	}
	if parsed.Output.QuoteValidDays, err = parseOptionalInt(r.FormValue("quote_valid_days"), "quote_valid_days"); err != nil {
		return parsed, err
	}
	if parsed.Output.MaxImagesOnCustomerPage, err = parseOptionalInt(r.FormValue("max_images_on_customer_page"), "max_images_on_customer_page"); err != nil {
		return parsed, err
	}

	names := r.Form["metal_name[]"]
	rates := r.Form["metal_rate[]"]
	if len(names) != len(rates) {
		return parsed, fmt.Errorf("metal names and rates do not line up")
	}
	table := make(map[string]float64, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rate, err := parseOptionalFloat(rates[i], "rate for "+name)
		if err != nil {
			return parsed, err
		}
		table[name] = rate
	}
	if len(table) == 0 {
		return parsed, fmt.Errorf("at least one metal rate is required")
	}
	parsed.MetalRatesPerDWT = table

	return parsed, nil
}

func sortedMetalRates(s pricing.Settings) []metalRate {
	return metalOptions(s, nil)
}

// metalOptions lists the rate table alphabetically, flagging the metals the
// user picked for comparison so the form can re-check them on redisplay.
func metalOptions(s pricing.Settings, selected []string) []metalRate {
	chosen := make(map[string]bool, len(selected))
	for _, name := range selected {
		chosen[name] = true
	}

	out := make([]metalRate, 0, len(s.MetalRatesPerDWT))
	for name, rate := range s.MetalRatesPerDWT {
		out = append(out, metalRate{Name: name, Rate: rate, Selected: chosen[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func parseOptionalFloat(raw, field string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must be zero or greater", field)
	}
	return value, nil
}

func parseOptionalInt(raw, field string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must be zero or greater", field)
	}
	return value, nil
}

func parseFraction(raw, field string) (float64, error) {
	value, err := parseOptionalFloat(raw, field)
	if err != nil {
		return 0, err
	}
	if value >= 1 {
		return 0, fmt.Errorf("%s must be a fraction below 1 (enter 0.08 for 8%%)", field)
	}
	return value, nil
}

func (s *server) renderTemplate(w http.ResponseWriter, page string, data any) {
	templates, err := template.ParseFiles(
		"web/templates/layout.html",
		"web/templates/"+page,
	)
	if err != nil {
		http.Error(w, "failed to parse template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.gateEnabled() {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.Path == "/login" || r.URL.Path == "/static" || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		if !isAuthenticated(r, s.auth) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}
