package render

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/render"
)

// ErrTemplateNotFound is returned when a template name is not loaded.
var ErrTemplateNotFound = errors.New("template not found")

// Engine loads html templates from one or more file systems. Files under
// layouts/ and partials/ form a shared base set that every other template is
// parsed on top of, so each page template may define blocks used by a layout.
// Later sources override files of the same name from earlier ones.
type Engine struct {
	sources []fs.FS
	funcs   template.FuncMap

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewEngine creates an engine over sources. Call Load before rendering.
func NewEngine(funcs template.FuncMap, sources ...fs.FS) *Engine {
	return &Engine{
		sources:   sources,
		funcs:     funcs,
		templates: map[string]*template.Template{},
	}
}

func isBaseTemplate(name string) bool {
	return strings.HasPrefix(name, "layouts/") || strings.HasPrefix(name, "partials/")
}

// Load parses every *.html file of the sources.
func (e *Engine) Load() error {
	files := map[string][]byte{}
	for _, src := range e.sources {
		if src == nil {
			continue
		}
		err := fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path.Ext(p) != ".html" {
				return nil
			}
			raw, err := fs.ReadFile(src, p)
			if err != nil {
				return err
			}
			files[p] = raw
			return nil
		})
		if err != nil {
			return fmt.Errorf("walk templates: %w", err)
		}
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	base := template.New("").Funcs(e.funcs)
	for _, name := range names {
		if !isBaseTemplate(name) {
			continue
		}
		if _, err := base.New(name).Parse(string(files[name])); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	}

	templates := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if isBaseTemplate(name) {
			continue
		}
		set, err := base.Clone()
		if err != nil {
			return fmt.Errorf("clone base for %s: %w", name, err)
		}
		if _, err := set.New(name).Parse(string(files[name])); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		templates[name] = set
	}

	e.mu.Lock()
	e.templates = templates
	e.mu.Unlock()
	return nil
}

// Has reports whether name was loaded.
func (e *Engine) Has(name string) bool {
	_, ok := e.lookup(name)
	return ok
}

func (e *Engine) lookup(name string) (*template.Template, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tmpl, ok := e.templates[name]
	return tmpl, ok
}

// Render executes the template called name into w.
func (e *Engine) Render(w io.Writer, name string, data interface{}) error {
	tmpl, ok := e.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return tmpl.ExecuteTemplate(w, name, data)
}

// Instance implements gin's render.HTMLRender.
func (e *Engine) Instance(name string, data interface{}) render.Render {
	tmpl, ok := e.lookup(name)
	if !ok {
		tmpl = template.Must(template.New(name).Parse(`template ` + template.HTMLEscapeString(name) + ` not found`))
	}
	return render.HTML{Template: tmpl, Name: name, Data: data}
}
