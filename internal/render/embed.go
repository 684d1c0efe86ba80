package render

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// videoEmbed is a player iframe substituted for a bare video link that sits
// on its own line in a markdown body.
type videoEmbed struct {
	Platform string
	Source   string
	EmbedURL string
}

var (
	embedLinePattern  = regexp.MustCompile(`^<?((?:https?://)?\S+?)>?$`)
	listMarkerPattern = regexp.MustCompile(`^(?:[-*+]|\d+\.)\s+`)
	youtubeTimePart   = regexp.MustCompile(`(?i)(\d+)([hms])`)
)

// extractEmbeds replaces standalone video links outside code with
// placeholder paragraphs. The placeholders survive markdown conversion and
// sanitising untouched and are swapped for players by restoreEmbeds.
func extractEmbeds(markdown string) (string, []videoEmbed) {
	if !strings.Contains(markdown, "youtu") && !strings.Contains(markdown, "bilibili") {
		return markdown, nil
	}

	var embeds []videoEmbed
	lines := strings.Split(markdown, "\n")
	fence := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(trimmed, fence):
				fence = ""
			}
			continue
		}
		if fence != "" || strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, ">") || listMarkerPattern.MatchString(trimmed) {
			continue
		}
		match := embedLinePattern.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		embed, ok := parseVideoURL(match[1])
		if !ok {
			continue
		}
		lines[i] = embedPlaceholder(len(embeds))
		embeds = append(embeds, embed)
	}
	if len(embeds) == 0 {
		return markdown, nil
	}
	return strings.Join(lines, "\n"), embeds
}

func restoreEmbeds(rendered string, embeds []videoEmbed) string {
	for i, embed := range embeds {
		placeholder := embedPlaceholder(i)
		if strings.Contains(rendered, "<p>"+placeholder+"</p>") {
			placeholder = "<p>" + placeholder + "</p>"
		}
		rendered = strings.Replace(rendered, placeholder, embed.HTML(), 1)
	}
	return rendered
}

func embedPlaceholder(i int) string {
	return fmt.Sprintf("CMSVIDEOEMBED%dX", i)
}

func fenceMarker(line string) string {
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, marker) {
			return marker
		}
	}
	return ""
}

func parseVideoURL(raw string) (videoEmbed, bool) {
	if !strings.HasPrefix(strings.ToLower(raw), "http://") && !strings.HasPrefix(strings.ToLower(raw), "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return videoEmbed{}, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return videoEmbed{}, false
	}
	if embed, ok := youtubeEmbed(u, raw); ok {
		return embed, true
	}
	return bilibiliEmbed(u, raw)
}

func youtubeEmbed(u *url.URL, source string) (videoEmbed, bool) {
	host := strings.ToLower(u.Hostname())
	path := strings.Trim(u.Path, "/")
	var id string
	switch {
	case host == "youtu.be":
		id = path
	case hostWithin(host, "youtube.com"):
		if path == "watch" {
			id = u.Query().Get("v")
			break
		}
		for _, prefix := range []string{"shorts/", "embed/", "live/"} {
			if strings.HasPrefix(path, prefix) {
				id = strings.TrimPrefix(path, prefix)
			}
		}
	default:
		return videoEmbed{}, false
	}
	id, _, _ = strings.Cut(id, "/")
	if id == "" {
		return videoEmbed{}, false
	}

	params := url.Values{"rel": {"0"}, "playsinline": {"1"}}
	start := u.Query().Get("start")
	if start == "" {
		start = u.Query().Get("t")
	}
	if seconds := youtubeSeconds(start); seconds > 0 {
		params.Set("start", strconv.Itoa(seconds))
	}
	return videoEmbed{
		Platform: "youtube",
		Source:   source,
		EmbedURL: "https://www.youtube.com/embed/" + url.PathEscape(id) + "?" + params.Encode(),
	}, true
}

// youtubeSeconds accepts both "90" and "1m30s".
func youtubeSeconds(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if n, err := strconv.Atoi(value); err == nil {
		return max(n, 0)
	}
	total := 0
	for _, part := range youtubeTimePart.FindAllStringSubmatch(value, -1) {
		n, _ := strconv.Atoi(part[1])
		switch strings.ToLower(part[2]) {
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		case "s":
			total += n
		}
	}
	return total
}

func bilibiliEmbed(u *url.URL, source string) (videoEmbed, bool) {
	if !hostWithin(strings.ToLower(u.Hostname()), "bilibili.com") {
		return videoEmbed{}, false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "video" || segments[1] == "" {
		return videoEmbed{}, false
	}

	id := segments[1]
	params := url.Values{}
	lower := strings.ToLower(id)
	switch {
	case strings.HasPrefix(lower, "bv"):
		params.Set("bvid", id)
	case strings.HasPrefix(lower, "av"):
		params.Set("aid", strings.TrimPrefix(lower, "av"))
	default:
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return videoEmbed{}, false
		}
		params.Set("aid", id)
	}
	page := 1
	if p, err := strconv.Atoi(u.Query().Get("p")); err == nil && p > 0 {
		page = p
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("danmaku", "0")
	params.Set("autoplay", "0")
	return videoEmbed{
		Platform: "bilibili",
		Source:   source,
		EmbedURL: "https://player.bilibili.com/player.html?" + params.Encode(),
	}, true
}

func hostWithin(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// HTML returns the player markup. Every interpolated value is escaped.
func (e videoEmbed) HTML() string {
	title := "视频播放器"
	sandbox := ""
	switch e.Platform {
	case "youtube":
		title = "YouTube 视频播放器"
	case "bilibili":
		title = "B 站视频播放器"
		sandbox = ` sandbox="allow-scripts allow-same-origin allow-presentation"`
	}
	return fmt.Sprintf(
		`<div class="video-embed" data-video-platform="%s" data-video-source="%s">`+
			`<iframe src="%s" title="%s" loading="lazy" allow="clipboard-write; encrypted-media; picture-in-picture; web-share" allowfullscreen frameborder="0" referrerpolicy="strict-origin-when-cross-origin"%s></iframe>`+
			`</div>`,
		html.EscapeString(e.Platform),
		html.EscapeString(e.Source),
		html.EscapeString(e.EmbedURL),
		html.EscapeString(title),
		sandbox,
	)
}
