package sentinel

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"path"

	template "github.com/goliatone/go-template"
)

// Renderer executes a named page template. Controller depends on this rather than on
// go-template so hosts can plug their own engine.
type Renderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
}

//go:embed templates/*.html
var pageTemplates embed.FS

var requiredPages = []string{"sentinel", "login"}

// NewTemplateRenderer loads templates/*.html from fsys, or from the embedded set when
// fsys is nil. Pages are read through the fs.FS only, never from the working
// directory. Every page the controller renders must be present.
func NewTemplateRenderer(fsys ...fs.FS) (Renderer, error) {
	const baseDir = "templates"
	var source fs.FS = pageTemplates
	if len(fsys) > 0 && fsys[0] != nil {
		source = fsys[0]
	}
	for _, page := range requiredPages {
		if _, err := fs.Stat(source, path.Join(baseDir, page+".html")); err != nil {
			return nil, fmt.Errorf("sentinel: template %s: %w", page, err)
		}
	}
	pages, err := fs.Sub(source, baseDir)
	if err != nil {
		return nil, fmt.Errorf("sentinel: templates: %w", err)
	}
	return template.NewRenderer(
		template.WithFS(pages),
		template.WithExtension(".html"),
	)
}
