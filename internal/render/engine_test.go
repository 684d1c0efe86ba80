package render

import (
	"bytes"
	"html/template"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html":   {Data: []byte(`<html><title>{{block "title" .}}site{{end}}</title>{{template "content" .}}{{template "partials/footer.html" .}}</html>`)},
		"partials/footer.html": {Data: []byte(`<footer>{{shout "bye"}}</footer>`)},
		"cms/page.html":        {Data: []byte(`{{define "title"}}{{.Title}}{{end}}{{define "content"}}<main>{{.Body}}</main>{{end}}{{template "layouts/base.html" .}}`)},
		"cms/plain.html":       {Data: []byte(`{{define "content"}}plain{{end}}{{template "layouts/base.html" .}}`)},
		"notes.txt":            {Data: []byte(`ignored`)},
	}
}

func TestEngineRendersPageOnLayout(t *testing.T) {
	e := NewEngine(template.FuncMap{"shout": strings.ToUpper}, testFS())
	require.NoError(t, e.Load())

	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, "cms/page.html", map[string]string{"Title": "About", "Body": "<hi>"}))
	assert.Equal(t, `<html><title>About</title><main>&lt;hi&gt;</main><footer>BYE</footer></html>`, buf.String())

	buf.Reset()
	require.NoError(t, e.Render(&buf, "cms/plain.html", nil))
	assert.Equal(t, `<html><title>site</title>plain<footer>BYE</footer></html>`, buf.String())

	assert.True(t, e.Has("cms/page.html"))
	assert.False(t, e.Has("layouts/base.html"))
	assert.False(t, e.Has("notes.txt"))

	err := e.Render(&buf, "missing.html", nil)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestEngineLaterSourcesOverride(t *testing.T) {
	override := fstest.MapFS{
		"cms/plain.html": {Data: []byte(`{{define "content"}}custom{{end}}{{template "layouts/base.html" .}}`)},
	}
	e := NewEngine(template.FuncMap{"shout": strings.ToUpper}, testFS(), override)
	require.NoError(t, e.Load())

	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, "cms/plain.html", nil))
	assert.Contains(t, buf.String(), "custom")
}

func TestEngineLoadReportsParseErrors(t *testing.T) {
	e := NewEngine(nil, fstest.MapFS{"bad.html": {Data: []byte(`{{ if }}`)}})
	assert.Error(t, e.Load())
}

func TestEngineInstanceForGin(t *testing.T) {
	e := NewEngine(template.FuncMap{"shout": strings.ToUpper}, testFS())
	require.NoError(t, e.Load())

	w := httptest.NewRecorder()
	require.NoError(t, e.Instance("cms/plain.html", nil).Render(w))
	assert.Contains(t, w.Body.String(), "plain")
}
