package http

import (
	"log/slog"
	"net/http"
	"time"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleIndex renders the dashboard shell. Filter options come from the
// dataset catalog; the panels load themselves over HTMX.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	catalog, err := s.getCatalog(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Catalog read failed", "error", err)
	}

	data := struct {
		Categories    []string
		Manufacturers []string
		From          string
		To            string
	}{
		Categories:    catalog.Categories,
		Manufacturers: catalog.Manufacturers,
	}
	if !catalog.From.IsZero() {
		data.From = catalog.From.Format(dateParamLayout)
		data.To = catalog.To.Format(dateParamLayout)
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handlerTimeout bounds backend reads so a slow source cannot hang a
// dashboard panel.
const handlerTimeout = 7 * time.Second
