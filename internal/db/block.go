package db

import (
	"html/template"

	"gorm.io/gorm"
)

// Object kinds usable in polymorphic references.
const (
	KindPage     = "page"
	KindBlock    = "block"
	KindArticle  = "article"
	KindCategory = "category"
)

// BlockGroup is a named placement zone for block attachments.
type BlockGroup struct {
	gorm.Model
	Title string `gorm:"size:255;uniqueIndex;not null"`
}

// Block 是可复用的内容片段，可以挂载到页面或任意对象上。
type Block struct {
	gorm.Model
	Key              string `gorm:"size:255;index;not null"`
	Title            string `gorm:"size:255"`
	Text             string `gorm:"type:text"`
	Format           string `gorm:"size:32"`
	RenderAsTemplate bool
	Image            string `gorm:"size:255"`
	ImageWidth       int
	ImageHeight      int
	URL              string `gorm:"size:255"`
	Target           string `gorm:"size:32"`
	ContentKind      string `gorm:"size:32"`
	ContentID        *uint
	Active           bool `gorm:"index"`
}

// TableName 指定自定义表名。
func (Block) TableName() string {
	return "blocks"
}

// LinkAttributes renders the target and href attributes of the block link.
func (b *Block) LinkAttributes() template.HTMLAttr {
	return linkAttributes(b.Target, b.URL)
}

// TextBlock returns the block body with its rendering options.
func (b *Block) TextBlock() TextBlock {
	return TextBlock{Text: b.Text, Format: b.Format, RenderAsTemplate: b.RenderAsTemplate}
}

// PageBlock links a page to a block. Position is dense per (page, group).
type PageBlock struct {
	gorm.Model
	PageID   uint        `gorm:"not null;index:idx_page_blocks_scope"`
	BlockID  uint        `gorm:"not null;index"`
	Block    Block       `json:",omitempty"`
	GroupID  *uint       `gorm:"index:idx_page_blocks_scope"`
	Group    *BlockGroup `json:",omitempty"`
	Position int         `gorm:"not null"`
	Active   bool
}

// TableName 指定自定义表名。
func (PageBlock) TableName() string {
	return "page_blocks"
}

// BlockAssociation links a block to any object through a {kind, id} reference.
// Position is dense per (kind, id, group).
type BlockAssociation struct {
	gorm.Model
	ObjectKind string      `gorm:"size:32;not null;index:idx_block_assoc_scope"`
	ObjectID   uint        `gorm:"not null;index:idx_block_assoc_scope"`
	BlockID    uint        `gorm:"not null;index"`
	Block      Block       `json:",omitempty"`
	GroupID    *uint       `gorm:"index:idx_block_assoc_scope"`
	Group      *BlockGroup `json:",omitempty"`
	Position   int         `gorm:"not null"`
	Active     bool
}

// TableName 指定自定义表名。
func (BlockAssociation) TableName() string {
	return "block_associations"
}
