package db

import (
	"fmt"
	"html/template"
	"strings"
)

// Supported text formats for page, block and article bodies.
const (
	FormatHTML             = "html"
	FormatMarkdown         = "markdown"
	FormatTextile          = "textile"
	FormatRestructuredText = "restructuredtext"
)

// Link target values.
const (
	TargetBlank  = "_blank"
	TargetSelf   = "_self"
	TargetTop    = "_top"
	TargetParent = "_parent"
)

var (
	validFormats = []string{FormatHTML, FormatMarkdown, FormatTextile, FormatRestructuredText}
	validTargets = []string{TargetBlank, TargetSelf, TargetTop, TargetParent}
)

// IsValidFormat reports whether format is empty or a known text format.
func IsValidFormat(format string) bool {
	if format == "" {
		return true
	}
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

// IsValidTarget reports whether target is empty or a known link target.
func IsValidTarget(target string) bool {
	if target == "" {
		return true
	}
	for _, t := range validTargets {
		if t == target {
			return true
		}
	}
	return false
}

// TextBlock 描述可渲染的正文片段。
type TextBlock struct {
	Text             string
	Format           string
	RenderAsTemplate bool
}

// linkAttributes builds the `target="..." href="..."` attribute string used by
// navigation entries, blocks and articles.
func linkAttributes(target, href string) template.HTMLAttr {
	var parts []string
	if target != "" {
		parts = append(parts, fmt.Sprintf(`target="%s"`, template.HTMLEscapeString(target)))
	}
	if href != "" {
		parts = append(parts, fmt.Sprintf(`href="%s"`, template.HTMLEscapeString(href)))
	}
	return template.HTMLAttr(strings.Join(parts, " "))
}
