package models

import (
	"time"
)

// Like 点赞/点踩记录。Value 为 1（赞）或 -1（踩），取消则删除整行。
// (story_id, user_id) 唯一索引保证每人每篇至多一行。
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StoryID   uint      `gorm:"not null;index;uniqueIndex:idx_story_user" json:"story_id"`
	Story     Story     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"story"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_story_user" json:"user_id"`
	User      Profile   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	Value     int       `gorm:"not null" json:"value"` // 1 or -1
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
