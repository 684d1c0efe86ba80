package view

import "github.com/simplecms/internal/db"

// Option describes a selectable value for admin forms.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

var (
	formatOptions = []Option{
		{Key: db.FormatHTML, Label: "HTML"},
		{Key: db.FormatMarkdown, Label: "Markdown"},
		{Key: db.FormatTextile, Label: "Textile"},
		{Key: db.FormatRestructuredText, Label: "reStructuredText"},
	}
	targetOptions = []Option{
		{Key: "", Label: "同一窗口"},
		{Key: db.TargetBlank, Label: "新窗口"},
		{Key: db.TargetSelf, Label: "当前框架"},
		{Key: db.TargetTop, Label: "顶层窗口"},
		{Key: db.TargetParent, Label: "父框架"},
	}
)

// FormatOptions lists the text formats for admin selects.
func FormatOptions() []Option {
	return append([]Option(nil), formatOptions...)
}

// TargetOptions lists the link targets for admin selects.
func TargetOptions() []Option {
	return append([]Option(nil), targetOptions...)
}

// ViewOptions turns registered view names into options, with an empty choice first.
func ViewOptions(names []string) []Option {
	options := make([]Option, 0, len(names)+1)
	options = append(options, Option{Key: "", Label: "模板渲染"})
	for _, name := range names {
		options = append(options, Option{Key: name, Label: name})
	}
	return options
}
