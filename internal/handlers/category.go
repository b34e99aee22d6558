package handlers

import (
	"fmt"
	"net/http"

	"darktales/internal/db"
	"darktales/internal/models"
	"darktales/internal/services"
	"darktales/internal/utils"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct{}

func NewCategoryHandler() *CategoryHandler {
	return &CategoryHandler{}
}

// List 所有分类及各自的故事数量
func (h *CategoryHandler) List(c *gin.Context) {
	var categories []models.Category
	db.DB.Order("name ASC").Find(&categories)

	// 批量统计每个分类下已发布故事数
	type CountResult struct {
		CategoryID uint
		Count      int
	}
	var results []CountResult
	db.DB.Model(&models.StoryCategory{}).
		Select("story_categories.category_id, COUNT(*) as count").
		Joins("JOIN stories ON stories.id = story_categories.story_id AND stories.published = ?", true).
		Group("story_categories.category_id").
		Scan(&results)

	countMap := make(map[uint]int)
	for _, r := range results {
		countMap[r.CategoryID] = r.Count
	}

	type CategoryWithCount struct {
		models.Category
		StoryCount int
	}
	withCounts := make([]CategoryWithCount, len(categories))
	for i, cat := range categories {
		withCounts[i] = CategoryWithCount{Category: cat, StoryCount: countMap[cat.ID]}
	}

	Render(c, http.StatusOK, "category/list.html", gin.H{
		"Title":      "Categories",
		"Categories": withCounts,
		"FullURL":    fmt.Sprintf("%s/categories", siteURL()),
	})
}

// Detail 单个分类下的故事，分页
func (h *CategoryHandler) Detail(c *gin.Context) {
	slug := c.Param("slug")

	var category models.Category
	if err := db.DB.Where("slug = ?", slug).First(&category).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Unknown category")
		return
	}

	page := utils.StringToInt(c.Query("page"))
	if page < 1 {
		page = 1
	}

	result, err := services.FetchStories(services.StoryQueryOptions{
		Page:       page,
		PageSize:   storiesPerPage,
		CategoryID: category.ID,
	})
	if err != nil {
		Render(c, http.StatusOK, "category/detail.html", gin.H{
			"Title":      category.Name,
			"Category":   category,
			"FetchError": "Could not load stories right now. Please try again.",
		})
		return
	}

	Render(c, http.StatusOK, "category/detail.html", gin.H{
		"Title":       category.Name,
		"Category":    category,
		"Stories":     result.Stories,
		"CurrentPage": page,
		"TotalPages":  result.TotalPages,
		"Total":       result.Total,
		"Description": category.Description,
		"FullURL":     fmt.Sprintf("%s/categories/%s", siteURL(), category.Slug),
	})
}
