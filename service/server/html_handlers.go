package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

const activityStreamPath = "/api/v1/stream/activity"

// TemplateRenderer executes the embedded HTML pages.
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer parses the embedded templates.
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateRenderer{templates: tmpl, logger: logger}, nil
}

// Render executes name into a buffer and writes it to w only on success.
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data any) error {
	var buf bytes.Buffer
	if err := tr.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

type activityPage struct {
	Wallet     string
	StreamPath string
	Version    string
}

// handleActivityPage serves the live activity page. The wallet comes from
// the {address} path value or ?wallet=; an invalid one is dropped so the
// page falls back to all wallets.
func handleActivityPage(renderer *TemplateRenderer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet := r.PathValue("address")
		if wallet == "" {
			wallet = r.URL.Query().Get("wallet")
		}
		if wallet != "" {
			if err := validateAddress(wallet); err != nil {
				renderer.logger.DebugContext(r.Context(), "ignoring invalid wallet filter", "wallet", wallet, "error", err)
				wallet = ""
			}
		}

		page := activityPage{
			Wallet:     wallet,
			StreamPath: activityStreamPath,
			Version:    Version,
		}
		if err := renderer.Render(w, "activity.html", page); err != nil {
			renderer.logger.ErrorContext(r.Context(), "failed to render activity page", "error", err)
			writeError(w, "failed to render page", http.StatusInternalServerError)
		}
	})
}
