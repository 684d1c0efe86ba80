package db

import "time"

// Site 表示一个独立域名下的站点，页面按站点划分。
type Site struct {
	ID              uint   `gorm:"primaryKey"`
	Domain          string `gorm:"size:255;uniqueIndex;not null"`
	Name            string `gorm:"size:255"`
	DefaultTemplate string `gorm:"size:255"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName 指定自定义表名。
func (Site) TableName() string {
	return "sites"
}
