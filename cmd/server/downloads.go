package main

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kcjewelers/quotebuilder/internal/pricing"
	"github.com/kcjewelers/quotebuilder/internal/quotes"
	"github.com/kcjewelers/quotebuilder/internal/render"
)

func (s *server) handleCustomerPDF(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, "CUSTOMER", "application/pdf", ".pdf", render.CustomerPDF)
}

func (s *server) handleInternalPDF(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, "INTERNAL", "application/pdf", ".pdf", render.InternalPDF)
}

func (s *server) handleSummaryPNG(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, "SUMMARY", "image/png", ".png", render.SummaryPNG)
}

type renderFunc func(quotes.StoredQuote, pricing.Settings, string) ([]byte, error)

func (s *server) serveDocument(w http.ResponseWriter, r *http.Request, tag, contentType, ext string, fn renderFunc) {
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

	quoteDir, err := s.repo.Dir(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	loaded, _ := s.loadSettings()
	data, err := fn(doc, loaded, quoteDir)
	if err != nil {
		log.Printf("rendering %s document for %s v%d: %v", tag, doc.ID, doc.Version, err)
		http.Error(w, "failed to render document", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("Quote_%s_v%d_%s%s", doc.ID, doc.Version, tag, ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}
