package models

import (
	"time"
)

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;unique" json:"name"`
	Slug        string    `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StoryCategory 故事与分类的关联，无独立身份
type StoryCategory struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	StoryID    uint     `gorm:"not null;index;uniqueIndex:idx_story_category" json:"story_id"`
	Story      Story    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"story"`
	CategoryID uint     `gorm:"not null;index;uniqueIndex:idx_story_category" json:"category_id"`
	Category   Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"category"`
}
