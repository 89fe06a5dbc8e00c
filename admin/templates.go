package admin

import (
	"embed"
	"html/template"
	"io"

	"github.com/pkg/errors"
)

//go:embed templates
var templateFS embed.FS

// Renderer turns a template name and its data into HTML.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

type templateRenderer struct {
	tmpl *template.Template
}

// NewTemplateRenderer loads the embedded page templates.
func NewTemplateRenderer() (Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse admin templates")
	}
	return &templateRenderer{tmpl: tmpl}, nil
}

func (t *templateRenderer) Render(w io.Writer, name string, data any) error {
	return errors.Wrapf(t.tmpl.ExecuteTemplate(w, name, data), "render %s", name)
}
