package handlers

import (
	"log"
	"net/http"
	"strings"

	"darktales/internal/db"
	"darktales/internal/middleware"
	"darktales/internal/models"
	"darktales/internal/services"
	"darktales/internal/utils"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct{}

func NewAdminHandler() *AdminHandler {
	return &AdminHandler{}
}

const adminStoriesPerPage = 20

// Dashboard 管理首页：全部故事（含未发布）+ 库表概览
func (h *AdminHandler) Dashboard(c *gin.Context) {
	page := utils.StringToInt(c.Query("page"))
	if page < 1 {
		page = 1
	}

	var total int64
	db.DB.Model(&models.Story{}).Count(&total)

	var stories []models.Story
	db.DB.Preload("Author").
		Order("created_at DESC").
		Limit(adminStoriesPerPage).
		Offset((page - 1) * adminStoriesPerPage).
		Find(&stories)

	totalPages := int((total + adminStoriesPerPage - 1) / adminStoriesPerPage)
	if totalPages == 0 {
		totalPages = 1
	}

	Render(c, http.StatusOK, "admin/dashboard.html", gin.H{
		"Title":       "Admin",
		"Stories":     stories,
		"CurrentPage": page,
		"TotalPages":  totalPages,
		"Total":       total,
		"Stats":       services.DatabaseStatistics(),
	})
}

// ShowCreate 新建故事表单
func (h *AdminHandler) ShowCreate(c *gin.Context) {
	var categories []models.Category
	db.DB.Order("name ASC").Find(&categories)

	Render(c, http.StatusOK, "admin/story_form.html", gin.H{
		"Title":      "New story",
		"Categories": categories,
	})
}

// Create 新建故事
func (h *AdminHandler) Create(c *gin.Context) {
	story, formErr := h.storyFromForm(c, nil)
	if formErr != "" {
		var categories []models.Category
		db.DB.Order("name ASC").Find(&categories)
		Render(c, http.StatusBadRequest, "admin/story_form.html", gin.H{
			"Title":      "New story",
			"Error":      formErr,
			"Story":      story,
			"Categories": categories,
		})
		return
	}

	story.Sid = utils.RandStringBytesMaskImpr(8)
	if err := db.DB.Create(story).Error; err != nil {
		var categories []models.Category
		db.DB.Order("name ASC").Find(&categories)
		Render(c, http.StatusInternalServerError, "admin/story_form.html", gin.H{
			"Title":      "New story",
			"Error":      "Failed to save story",
			"Story":      story,
			"Categories": categories,
		})
		return
	}

	h.replaceCategories(story.ID, c.PostFormArray("category_ids"))
	invalidateListCaches()

	c.Redirect(http.StatusFound, "/admin")
}

// ShowEdit 编辑故事表单
func (h *AdminHandler) ShowEdit(c *gin.Context) {
	story, ok := h.findStory(c)
	if !ok {
		return
	}

	var categories []models.Category
	db.DB.Order("name ASC").Find(&categories)

	selected := make(map[uint]bool)
	var links []models.StoryCategory
	db.DB.Where("story_id = ?", story.ID).Find(&links)
	for _, l := range links {
		selected[l.CategoryID] = true
	}

	Render(c, http.StatusOK, "admin/story_form.html", gin.H{
		"Title":      "Edit story",
		"Story":      story,
		"Categories": categories,
		"Selected":   selected,
	})
}

// Update 保存编辑
func (h *AdminHandler) Update(c *gin.Context) {
	story, ok := h.findStory(c)
	if !ok {
		return
	}

	updated, formErr := h.storyFromForm(c, story)
	if formErr != "" {
		var categories []models.Category
		db.DB.Order("name ASC").Find(&categories)
		Render(c, http.StatusBadRequest, "admin/story_form.html", gin.H{
			"Title":      "Edit story",
			"Error":      formErr,
			"Story":      updated,
			"Categories": categories,
		})
		return
	}

	if err := db.DB.Save(updated).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "Failed to save story")
		return
	}

	h.replaceCategories(story.ID, c.PostFormArray("category_ids"))
	invalidateListCaches()
	utils.GetCache().Delete("story:detail:" + story.Sid)

	c.Redirect(http.StatusFound, "/admin")
}

// Delete 删除故事。评论、点赞和分类关联按外键级联清理。
func (h *AdminHandler) Delete(c *gin.Context) {
	story, ok := h.findStory(c)
	if !ok {
		return
	}

	if err := db.DB.Unscoped().Delete(story).Error; err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	invalidateListCaches()
	utils.GetCache().Delete("story:detail:" + story.Sid)

	c.Header("HX-Redirect", "/admin")
	c.Status(http.StatusOK)
}

// ToggleFeatured 置顶/取消置顶
func (h *AdminHandler) ToggleFeatured(c *gin.Context) {
	story, ok := h.findStory(c)
	if !ok {
		return
	}

	story.Featured = !story.Featured
	db.DB.Model(story).Update("featured", story.Featured)
	invalidateListCaches()

	label := "Feature"
	if story.Featured {
		label = "Unfeature"
	}
	c.String(http.StatusOK, label)
}

// TogglePublished 发布/撤稿
func (h *AdminHandler) TogglePublished(c *gin.Context) {
	story, ok := h.findStory(c)
	if !ok {
		return
	}

	story.Published = !story.Published
	db.DB.Model(story).Update("published", story.Published)
	invalidateListCaches()
	utils.GetCache().Delete("story:detail:" + story.Sid)

	label := "Publish"
	if story.Published {
		label = "Unpublish"
	}
	c.String(http.StatusOK, label)
}

// Stats 单篇故事统计面板
func (h *AdminHandler) Stats(c *gin.Context) {
	story, ok := h.findStory(c)
	if !ok {
		return
	}

	stats, err := services.FetchStoryStatistics(story.ID)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not load statistics")
		return
	}

	Render(c, http.StatusOK, "admin/story_stats.html", gin.H{
		"Title": "Statistics - " + story.Title,
		"Story": story,
		"Stats": stats,
	})
}

// ShowMaintenance 数据库维护页
func (h *AdminHandler) ShowMaintenance(c *gin.Context) {
	Render(c, http.StatusOK, "admin/maintenance.html", gin.H{
		"Title": "Database maintenance",
		"Stats": services.DatabaseStatistics(),
	})
}

// RunMaintenance 执行维护操作：vacuum | analyze | reindex | all
func (h *AdminHandler) RunMaintenance(c *gin.Context) {
	op := c.Param("op")

	var result services.MaintenanceResult
	switch op {
	case "vacuum":
		r := services.RunVacuum()
		result = services.MaintenanceResult{Success: r.Success, Message: r.Message}
	case "analyze":
		r := services.RunAnalyze()
		result = services.MaintenanceResult{Success: r.Success, Message: r.Message}
	case "reindex":
		r := services.RunReindex()
		result = services.MaintenanceResult{Success: r.Success, Message: r.Message}
	case "all":
		result = services.RunAllMaintenance()
	default:
		RenderError(c, http.StatusBadRequest, "Unknown maintenance operation")
		return
	}

	// 维护动过底层存储，整个渲染缓存一起清掉
	utils.GetCache().Purge()

	Render(c, http.StatusOK, "admin/maintenance.html", gin.H{
		"Title":  "Database maintenance",
		"Result": result,
		"Stats":  services.DatabaseStatistics(),
	})
}

// Upload 封面图上传 (AJAX)
func (h *AdminHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image supplied"})
		return
	}
	defer file.Close()

	result, err := services.UploadImage(file, header)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// findStory 按公开 ID 找故事（不限 published，管理端能看到草稿）
func (h *AdminHandler) findStory(c *gin.Context) (*models.Story, bool) {
	sid := c.Param("sid")
	var story models.Story
	if err := db.DB.Where("sid = ?", sid).First(&story).Error; err != nil {
		if c.Request.Method == http.MethodGet {
			RenderError(c, http.StatusNotFound, "Story not found")
		} else {
			c.Status(http.StatusNotFound)
		}
		return nil, false
	}
	return &story, true
}

// storyFromForm 解析并校验表单。返回的错误串为空表示通过。
func (h *AdminHandler) storyFromForm(c *gin.Context, existing *models.Story) (*models.Story, string) {
	story := existing
	if story == nil {
		story = &models.Story{}
	}

	title := strings.TrimSpace(c.PostForm("title"))
	content := c.PostForm("content")

	if title == "" {
		return story, "Title is required"
	}
	if strings.TrimSpace(content) == "" {
		return story, "Content is required"
	}

	story.Title = title
	story.Content = utils.SanitizeStoryHTML(content)
	story.ImageURL = strings.TrimSpace(c.PostForm("image_url"))
	story.Published = c.PostForm("published") == "on"
	story.Featured = c.PostForm("featured") == "on"

	story.Excerpt = strings.TrimSpace(c.PostForm("excerpt"))
	if story.Excerpt == "" {
		story.Excerpt = utils.MakeExcerpt(story.Content, 200)
	}

	if story.AuthorID == 0 {
		user := c.MustGet(middleware.CheckUserKey).(*models.Profile)
		story.AuthorID = user.ID
	}

	return story, ""
}

// replaceCategories 重建故事的分类关联
func (h *AdminHandler) replaceCategories(storyID uint, categoryIDs []string) {
	db.DB.Where("story_id = ?", storyID).Delete(&models.StoryCategory{})
	for _, idStr := range categoryIDs {
		id := utils.StringToInt(idStr)
		if id <= 0 {
			continue
		}
		link := models.StoryCategory{StoryID: storyID, CategoryID: uint(id)}
		if err := db.DB.Create(&link).Error; err != nil {
			log.Printf("failed to link story %d to category %d: %v", storyID, id, err)
		}
	}
}
