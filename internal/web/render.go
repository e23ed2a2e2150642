package web

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/blackbird/internal/exercise"
	"github.com/felixgeelhaar/blackbird/internal/gate"
)

//go:embed templates/*.html
var templateFS embed.FS

// Brand is the name shown in the navbar
const Brand = "Blackbird Academy"

// page is the data every template receives
type page struct {
	Title    string
	Brand    string
	Identity gate.Identity
	// Refresh, when set, becomes a meta refresh ("1" or "0;url=/lessons")
	Refresh string
	Data    any
}

type renderer struct {
	tmpl *template.Template
}

func newRenderer() (*renderer, error) {
	tmpl, err := template.New("pages").Funcs(template.FuncMap{
		"elapsed": exercise.FormatElapsed,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &renderer{tmpl: tmpl}, nil
}

// render executes a page into a buffer first so template errors become a
// clean 500
func (p *renderer) render(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	if data.Brand == "" {
		data.Brand = Brand
	}
	data.Identity = gate.FromContext(r.Context())

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("render page",
			"correlation_id", GetCorrelationID(r.Context()),
			"template", name,
			"error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
