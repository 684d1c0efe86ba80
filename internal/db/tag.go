package db

import "gorm.io/gorm"

// Tag 定义了文章标签模型
type Tag struct {
	gorm.Model
	Name      string    `gorm:"unique;not null"`
	Slug      string    `gorm:"unique;not null"`
	SortOrder int       `gorm:"not null"`
	Articles  []Article `gorm:"many2many:article_tags;" json:",omitempty"`
	// ArticleCount is filled by list queries.
	ArticleCount int64 `gorm:"->;-:migration"`
}
