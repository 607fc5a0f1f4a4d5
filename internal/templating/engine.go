// Package templating renders the admin pages: an html/template layout with
// one template per page plus shared partials that host the editor's markup
// trees.
package templating

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"showroom-popup-builder/internal/markup"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Pages rendered inside layout.html.
var pages = []string{
	"dashboard.html",
	"editor.html",
}

const (
	layoutFile   = "templates/layout.html"
	partialsFile = "templates/partials.html"
)

// Engine handles template parsing and execution.
type Engine struct {
	pages    map[string]*template.Template
	partials *template.Template
}

// Funcs available to every admin template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		// node renders a markup tree. Its text and attributes are escaped when
		// the tree is built, so the output is trusted as-is.
		"node": func(n *markup.Node) template.HTML {
			if n == nil {
				return ""
			}
			return template.HTML(markup.Render(n))
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return t.Local().Format("2006-01-02 15:04")
		},
		"lower": strings.ToLower,
	}
}

// NewEngine parses the embedded layout, pages and partials.
func NewEngine() (*Engine, error) {
	e := &Engine{pages: map[string]*template.Template{}}
	for _, page := range pages {
		ts, err := template.New(page).Funcs(Funcs()).ParseFS(templateFS, layoutFile, partialsFile, "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("error parsing page template %s: %w", page, err)
		}
		e.pages[page] = ts
	}
	partials, err := template.New("partials.html").Funcs(Funcs()).ParseFS(templateFS, partialsFile)
	if err != nil {
		return nil, fmt.Errorf("error parsing partial templates: %w", err)
	}
	e.partials = partials
	return e, nil
}

// Page executes the layout for page. Output is buffered so a failing
// template never leaves a half-written response.
func (e *Engine) Page(w io.Writer, page string, data any) error {
	ts, ok := e.pages[page]
	if !ok {
		return fmt.Errorf("template %s not found in cache", page)
	}
	var buf bytes.Buffer
	if err := ts.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Partial executes one named partial ("editor-panel", "catalog-rows"...).
func (e *Engine) Partial(w io.Writer, name string, data any) error {
	var buf bytes.Buffer
	if err := e.partials.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("failed to execute partial %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// PartialString is Partial into a string, for JSON responses.
func (e *Engine) PartialString(name string, data any) (string, error) {
	var sb strings.Builder
	if err := e.Partial(&sb, name, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Static serves the embedded admin assets (editor.js, admin.css).
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
