package models

import (
	"time"
)

type Story struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Sid           string    `gorm:"uniqueIndex;size:8;not null" json:"sid"`
	AuthorID      uint      `gorm:"not null;index" json:"author_id"`
	Author        Profile   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Title         string    `gorm:"not null" json:"title"`
	Content       string    `gorm:"type:text" json:"content"` // sanitized HTML
	Excerpt       string    `gorm:"size:500" json:"excerpt"`
	ImageURL      string    `json:"image_url"` // Optional cover image
	Published     bool      `gorm:"default:false;index" json:"published"`
	Featured      bool      `gorm:"default:false;index" json:"featured"`
	ViewCount     int       `gorm:"default:0" json:"view_count"`
	TrendingScore float64   `gorm:"default:0;index" json:"trending_score"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	LikesCount    int        `gorm:"-" json:"likes_count"`
	CommentsCount int        `gorm:"-" json:"comments_count"`
	Categories    []Category `gorm:"-" json:"categories"`
}
