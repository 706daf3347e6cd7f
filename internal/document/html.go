package document

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// HTMLRenderer renders documents for inline viewing and printing.
type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

func (r *HTMLRenderer) Format() Format { return FormatHTML }

func (r *HTMLRenderer) Render(t Template, doc any) (*Rendered, error) {
	if err := checkDoc(t, doc); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, string(t)+".html", doc); err != nil {
		return nil, fmt.Errorf("render %s: %w", t, err)
	}
	return &Rendered{Body: buf.Bytes(), ContentType: contentTypeHTML, Filename: filename(t, FormatHTML)}, nil
}
