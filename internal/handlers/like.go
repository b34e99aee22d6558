package handlers

import (
	"fmt"
	"net/http"

	"darktales/internal/db"
	"darktales/internal/middleware"
	"darktales/internal/models"
	"darktales/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

type LikeHandler struct{}

func NewLikeHandler() *LikeHandler {
	return &LikeHandler{}
}

// Like 点赞（value=1）。再点一次取消。
func (h *LikeHandler) Like(c *gin.Context) {
	h.toggle(c, 1)
}

// Dislike 点踩（value=-1）。再点一次取消。
func (h *LikeHandler) Dislike(c *gin.Context) {
	h.toggle(c, -1)
}

// toggle 表态状态机：无→插入，同值→删除，反值→改值。
// (story_id, user_id) 上的唯一索引加 ON CONFLICT 改值，
// 并发重复提交也收敛到每人每篇至多一行。
func (h *LikeHandler) toggle(c *gin.Context, value int) {
	user, exists := c.Get(middleware.CheckUserKey)
	if !exists {
		c.Header("HX-Redirect", "/login")
		c.Status(http.StatusOK)
		return
	}
	currentUser := user.(*models.Profile)

	sid := c.Param("sid")
	var story models.Story
	if err := db.DB.Where("sid = ? AND published = ?", sid, true).First(&story).Error; err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	tx := db.DB.Begin()

	// 同值行存在则本次是取消
	removed := tx.Where("story_id = ? AND user_id = ? AND value = ?", story.ID, currentUser.ID, value).
		Delete(&models.Like{})
	if removed.Error != nil {
		tx.Rollback()
		c.Status(http.StatusInternalServerError)
		return
	}

	if removed.RowsAffected == 0 {
		like := models.Like{
			StoryID: story.ID,
			UserID:  currentUser.ID,
			Value:   value,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "story_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"value": value}),
		}).Create(&like).Error
		if err != nil {
			tx.Rollback()
			c.Status(http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	// 异步刷新热度分
	services.GetTrendingService().ScheduleUpdate(story.ID)
	invalidateListCaches()

	// 返回最新计数（统计 Like 表，而非缓存字段）
	var count int64
	db.DB.Model(&models.Like{}).Where("story_id = ? AND value = ?", story.ID, value).Count(&count)

	if c.GetHeader("HX-Request") != "" {
		c.String(http.StatusOK, fmt.Sprintf("%d", count))
		return
	}
	c.Redirect(http.StatusFound, "/stories/"+sid)
}
