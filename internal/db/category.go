package db

import "gorm.io/gorm"

// Category groups articles. Position is dense among siblings sharing a parent.
type Category struct {
	gorm.Model
	Title    string    `gorm:"size:255;not null"`
	Slug     string    `gorm:"size:255;uniqueIndex;not null"`
	ParentID *uint     `gorm:"index"`
	Position int       `gorm:"not null"`
	Active   bool      `gorm:"index"`
	Articles []Article `gorm:"many2many:article_categories;" json:",omitempty"`
}

// TableName 指定自定义表名。
func (Category) TableName() string {
	return "categories"
}
