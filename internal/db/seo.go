package db

import "gorm.io/gorm"

// Seo 保存页面或文章的 SEO 元信息，每个对象最多一条。
type Seo struct {
	gorm.Model
	ObjectKind  string `gorm:"size:32;not null;uniqueIndex:idx_seo_object"`
	ObjectID    uint   `gorm:"not null;uniqueIndex:idx_seo_object"`
	Title       string `gorm:"size:255"`
	Description string `gorm:"type:text"`
	Keywords    string `gorm:"type:text"`
}

// TableName 指定自定义表名。
func (Seo) TableName() string {
	return "seo"
}
