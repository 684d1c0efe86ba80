package db

import (
	"html/template"
	"time"

	"gorm.io/gorm"
)

// Article 定义了博客文章模型
type Article struct {
	gorm.Model
	Title            string    `gorm:"size:255;not null"`
	Slug             string    `gorm:"size:255;not null;index"`
	PostDate         time.Time `gorm:"not null;index"`
	Text             string    `gorm:"type:text"`
	Format           string    `gorm:"size:32"`
	RenderAsTemplate bool
	Excerpt          string `gorm:"type:text"`
	KeyImage         string `gorm:"size:255"`
	DisplayImage     bool
	Tags             []Tag      `gorm:"many2many:article_tags;"`
	Categories       []Category `gorm:"many2many:article_categories;"`
	AllowComments    bool
	AuthorID         *uint
	Author           *User  `json:",omitempty"`
	URL              string `gorm:"size:255"`
	Target           string `gorm:"size:32"`
	DisplayTitle     bool
	Active           bool `gorm:"index"`
}

// TableName 指定自定义表名。
func (Article) TableName() string {
	return "articles"
}

// HasExcerpt reports whether an excerpt was written.
func (a *Article) HasExcerpt() bool {
	return a.Excerpt != ""
}

// AbsoluteURL returns the url override or the dated detail path.
func (a *Article) AbsoluteURL() string {
	if a.URL != "" {
		return a.URL
	}
	return "/articles/" + a.PostDate.Format("2006/01/02") + "/" + a.Slug + "/"
}

// LinkAttributes renders the target and href attributes for article links.
func (a *Article) LinkAttributes() template.HTMLAttr {
	return linkAttributes(a.Target, a.AbsoluteURL())
}

// TextBlock returns the article body with its rendering options.
func (a *Article) TextBlock() TextBlock {
	return TextBlock{Text: a.Text, Format: a.Format, RenderAsTemplate: a.RenderAsTemplate}
}
