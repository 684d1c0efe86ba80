package render

import (
	"strings"
	"testing"

	"github.com/simplecms/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownVideoEmbeds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		markdown string
		wantSrc  string
		platform string
	}{
		{
			name:     "youtube watch",
			markdown: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=1m30s",
			wantSrc:  "https://www.youtube.com/embed/dQw4w9WgXcQ?playsinline=1&amp;rel=0&amp;start=90",
			platform: "youtube",
		},
		{
			name:     "youtube short link without scheme",
			markdown: "youtu.be/abc123",
			wantSrc:  "https://www.youtube.com/embed/abc123",
			platform: "youtube",
		},
		{
			name:     "bilibili",
			markdown: "<https://www.bilibili.com/video/BV1x5411c7mD?p=2>",
			wantSrc:  "player.bilibili.com/player.html?autoplay=0&amp;bvid=BV1x5411c7mD&amp;danmaku=0&amp;page=2",
			platform: "bilibili",
		},
	}

	r := NewTextRenderer()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := r.Render(db.TextBlock{Text: "Intro\n\n" + tt.markdown + "\n\nOutro", Format: db.FormatMarkdown}, nil)
			require.NoError(t, err)
			html := string(out)
			assert.Contains(t, html, "<p>Intro</p>")
			assert.Contains(t, html, `data-video-platform="`+tt.platform+`"`)
			assert.Contains(t, html, tt.wantSrc)
			assert.NotContains(t, html, "CMSVIDEOEMBED")
		})
	}
}

func TestMarkdownVideoEmbedsSkipCodeAndLists(t *testing.T) {
	r := NewTextRenderer()
	source := strings.Join([]string{
		"```",
		"https://www.youtube.com/watch?v=fenced",
		"```",
		"",
		"- https://www.youtube.com/watch?v=listed",
		"",
		"    https://www.youtube.com/watch?v=indented",
		"",
		"see https://www.youtube.com/watch?v=inline for details",
	}, "\n")

	out, err := r.Render(db.TextBlock{Text: source, Format: db.FormatMarkdown}, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<iframe")
}

func TestMarkdownVideoEmbedsIgnoreOtherHosts(t *testing.T) {
	_, embeds := extractEmbeds("https://example.com/youtube\n\nhttps://www.bilibili.com/read/cv1")
	assert.Empty(t, embeds)

	assert.Equal(t, 3723, youtubeSeconds("1h2m3s"))
	assert.Equal(t, 42, youtubeSeconds("42"))
	assert.Zero(t, youtubeSeconds("soon"))
}
