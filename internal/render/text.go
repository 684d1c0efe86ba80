// Package render turns stored text bodies into HTML and renders page templates.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/simplecms/internal/db"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// TextRenderer converts page, block and article bodies to HTML according to
// their format. Bodies flagged render-as-template are first executed as
// html/template sources against the caller's data.
type TextRenderer struct {
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy

	mu    sync.RWMutex
	funcs template.FuncMap
}

// NewTextRenderer returns a renderer using GitHub flavoured markdown and the
// UGC sanitising policy for markdown output.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
		),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// SetFuncs installs the helper functions available to render-as-template bodies.
func (r *TextRenderer) SetFuncs(funcs template.FuncMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs = funcs
}

// Render converts tb to HTML. data is the context for render-as-template bodies.
func (r *TextRenderer) Render(tb db.TextBlock, data interface{}) (template.HTML, error) {
	text := tb.Text
	if tb.RenderAsTemplate && strings.Contains(text, "{{") {
		executed, err := r.execute(text, data)
		if err != nil {
			return "", err
		}
		text = executed
	}

	switch tb.Format {
	case db.FormatMarkdown:
		return r.renderMarkdown(text)
	case db.FormatTextile, db.FormatRestructuredText:
		return linebreaks(text), nil
	default:
		// html bodies are authored by admins and trusted as-is.
		return template.HTML(text), nil
	}
}

func (r *TextRenderer) execute(source string, data interface{}) (string, error) {
	r.mu.RLock()
	funcs := r.funcs
	r.mu.RUnlock()

	tmpl := template.New("text")
	if funcs != nil {
		tmpl = tmpl.Funcs(funcs)
	}
	tmpl, err := tmpl.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse text template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute text template: %w", err)
	}
	return buf.String(), nil
}

func (r *TextRenderer) renderMarkdown(content string) (template.HTML, error) {
	content, embeds := extractEmbeds(content)
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	safe := r.sanitizer.Sanitize(buf.String())
	return template.HTML(restoreEmbeds(safe, embeds)), nil
}

// linebreaks escapes text and wraps blank-line separated paragraphs in <p>,
// turning single newlines into <br>.
func linebreaks(text string) template.HTML {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return ""
	}
	paragraphs := strings.Split(text, "\n\n")
	var b strings.Builder
	for i, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			b.WriteString("\n\n")
		}
		lines := strings.Split(para, "\n")
		for j, line := range lines {
			lines[j] = template.HTMLEscapeString(line)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return template.HTML(b.String())
}
