package httpx

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// TemplateRenderer renders the server-side pages.
type TemplateRenderer struct {
	t      *template.Template
	loc    *time.Location
	logger *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Optional: defaults to the embedded templates
	Logger     *slog.Logger // Optional
	// Location is used to show and read dates. Defaults to UTC.
	Location *time.Location
}

// NewTemplateRenderer parses every *.tmpl file of cfg.TemplateFS.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	fsys := cfg.TemplateFS
	if fsys == nil {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			return nil, fmt.Errorf("open embedded templates: %w", err)
		}
		fsys = sub
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	t, err := template.New("root").Funcs(pageFuncs(loc)).ParseFS(fsys, "*.tmpl")
	if err != nil {
		logger.Error("template parsing failed", slog.Any("error", err), slog.String("phase", "initialization"))
		return nil, err
	}
	return &TemplateRenderer{t: t, loc: loc, logger: logger}, nil
}

// Location returns the zone pages are rendered in.
func (r *TemplateRenderer) Location() *time.Location {
	if r == nil || r.loc == nil {
		return time.UTC
	}
	return r.loc
}

// Render executes the named page into a buffer and writes it with status.
// Nothing is written when execution fails.
func (r *TemplateRenderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	if r == nil || r.t == nil {
		return errors.New("template renderer not initialised")
	}
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", slog.String("template", name), slog.Any("error", err))
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// Client disconnects can't be recovered from here.
	_, _ = buf.WriteTo(w)
	return nil
}

// renderOrFail renders a page and falls back to a plain 500.
func (r *TemplateRenderer) renderOrFail(w http.ResponseWriter, status int, name string, data any) {
	if err := r.Render(w, status, name, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
