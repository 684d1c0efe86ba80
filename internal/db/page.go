package db

import (
	"html/template"

	"gorm.io/gorm"
)

// PageGroup is a named bucket of pages such as "main nav", independent of the hierarchy.
type PageGroup struct {
	gorm.Model
	Title string `gorm:"size:255;uniqueIndex;not null"`
}

// Page is a node in a site's navigable content tree. It doubles as a
// navigation entry and as a renderable document.
type Page struct {
	gorm.Model
	Title             string     `gorm:"size:255;not null"`
	Slug              string     `gorm:"size:255;not null;uniqueIndex:idx_pages_site_slug_parent"`
	GroupID           *uint      `gorm:"index"`
	Group             *PageGroup `json:",omitempty"`
	ParentID          *uint      `gorm:"index;uniqueIndex:idx_pages_site_slug_parent"`
	Position          int        `gorm:"not null"`
	SiteID            uint       `gorm:"not null;index;uniqueIndex:idx_pages_site_slug_parent"`
	Homepage          bool
	URL               string `gorm:"size:255"`
	Target            string `gorm:"size:32"`
	PageTitle         string `gorm:"size:255"`
	Text              string `gorm:"type:text"`
	Format            string `gorm:"size:32"`
	RenderAsTemplate  bool
	Template          string `gorm:"size:255"`
	View              string `gorm:"size:255"`
	RedirectURL       string `gorm:"size:255"`
	RedirectPermanent bool
	InheritBlocks     bool
	Active            bool `gorm:"index"`

	// SlugChain is the '/'-joined slug path from the root, filled in by the page service.
	SlugChain string `gorm:"-"`
	// Depth is the number of parent hops to the root, filled in by the page service.
	Depth int `gorm:"-"`
}

// TableName 指定自定义表名。
func (Page) TableName() string {
	return "pages"
}

// DisplayTitle returns the html title override when set.
func (p *Page) DisplayTitle() string {
	if p.PageTitle != "" {
		return p.PageTitle
	}
	return p.Title
}

// AbsoluteURL returns the explicit url override or the slug chain path.
func (p *Page) AbsoluteURL() string {
	if p.URL != "" {
		return p.URL
	}
	chain := p.SlugChain
	if chain == "" {
		chain = p.Slug
	}
	return "/" + chain + "/"
}

// LinkAttributes renders the target and href attributes for navigation markup.
func (p *Page) LinkAttributes() template.HTMLAttr {
	return linkAttributes(p.Target, p.AbsoluteURL())
}

// TextBlock returns the page body with its rendering options.
func (p *Page) TextBlock() TextBlock {
	return TextBlock{Text: p.Text, Format: p.Format, RenderAsTemplate: p.RenderAsTemplate}
}
