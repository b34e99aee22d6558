package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strings"
	"time"

	"darktales/internal/db"
	"darktales/internal/middleware"
	"darktales/internal/models"
	"darktales/internal/services"
	"darktales/internal/utils"

	"github.com/gin-gonic/gin"
)

type StoryHandler struct{}

func NewStoryHandler() *StoryHandler {
	return &StoryHandler{}
}

const storiesPerPage = 10

// invalidateListCaches 任何影响列表的变更后主动失效相关缓存
func invalidateListCaches() {
	utils.GetCache().Delete("story:home")
	utils.GetCache().Delete("story:list:page:1")
}

func siteURL() string {
	u := os.Getenv("SITE_URL")
	if u == "" {
		u = "http://localhost:8080"
	}
	return strings.TrimSuffix(u, "/")
}

// copyH 渲染前浅拷贝缓存数据。Render 会往 map 里写 CurrentUser 和
// CurrentPath，直接传缓存里的 map 会把上一个请求的身份带给下一个请求。
func copyH(src gin.H) gin.H {
	dst := make(gin.H, len(src)+2)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Home 首页：置顶故事 + 热门 + 最新
func (h *StoryHandler) Home(c *gin.Context) {
	cacheKey := "story:home"
	if cachedData := utils.GetCache().Get(cacheKey); cachedData != nil {
		if hData, ok := cachedData.(gin.H); ok {
			Render(c, http.StatusOK, "story/home.html", copyH(hData))
			return
		}
	}

	featured := true
	featuredPage, err := services.FetchStories(services.StoryQueryOptions{
		Page: 1, PageSize: 1, Featured: &featured,
	})
	if err != nil {
		Render(c, http.StatusOK, "story/home.html", gin.H{
			"Title":      "Dark Tales",
			"FetchError": "Could not load stories right now. Please try again.",
		})
		return
	}

	var featuredStory *models.Story
	if len(featuredPage.Stories) > 0 {
		featuredStory = &featuredPage.Stories[0]
	}

	trending, _ := services.FetchTrendingStories(7, 5)

	recent, err := services.FetchStories(services.StoryQueryOptions{Page: 1, PageSize: storiesPerPage})
	if err != nil {
		Render(c, http.StatusOK, "story/home.html", gin.H{
			"Title":      "Dark Tales",
			"FetchError": "Could not load stories right now. Please try again.",
		})
		return
	}

	var categories []models.Category
	db.DB.Order("name ASC").Find(&categories)

	renderData := gin.H{
		"Title":         "Dark Tales - Horror Stories",
		"FeaturedStory": featuredStory,
		"Trending":      trending,
		"Stories":       recent.Stories,
		"Categories":    categories,
		"Description":   "A collection of horror stories: hauntings, urban legends and things best left unread after midnight.",
		"FullURL":       siteURL(),
	}

	// 写入缓存，有效期 1 分钟
	utils.GetCache().Set(cacheKey, renderData, 1*time.Minute)

	Render(c, http.StatusOK, "story/home.html", copyH(renderData))
}

// List 故事列表，支持 page / category / featured / q 过滤
func (h *StoryHandler) List(c *gin.Context) {
	page := utils.StringToInt(c.Query("page"))
	if page < 1 {
		page = 1
	}

	opts := services.StoryQueryOptions{
		Page:     page,
		PageSize: storiesPerPage,
		Query:    c.Query("q"),
	}

	if f := c.Query("featured"); f == "true" || f == "1" {
		featured := true
		opts.Featured = &featured
	}

	var activeCategory *models.Category
	if slug := c.Query("category"); slug != "" {
		var category models.Category
		if err := db.DB.Where("slug = ?", slug).First(&category).Error; err != nil {
			RenderError(c, http.StatusNotFound, "Unknown category")
			return
		}
		activeCategory = &category
		opts.CategoryID = category.ID
	}

	result, err := services.FetchStories(opts)
	if err != nil {
		Render(c, http.StatusOK, "story/list.html", gin.H{
			"Title":      "Stories",
			"FetchError": "Could not load stories right now. Please try again.",
		})
		return
	}

	var categories []models.Category
	db.DB.Order("name ASC").Find(&categories)

	Render(c, http.StatusOK, "story/list.html", gin.H{
		"Title":          "Stories",
		"Stories":        result.Stories,
		"Categories":     categories,
		"ActiveCategory": activeCategory,
		"Query":          c.Query("q"),
		"CurrentPage":    page,
		"TotalPages":     result.TotalPages,
		"Total":          result.Total,
		"FullURL":        fmt.Sprintf("%s/stories", siteURL()),
	})
}

// Detail 故事详情：正文、作者、分类、评论、点赞数和相关推荐
func (h *StoryHandler) Detail(c *gin.Context) {
	sid := c.Param("sid")

	story, comments, err := services.FetchStory(sid)
	if err != nil {
		if errors.Is(err, services.ErrStoryNotFound) {
			RenderError(c, http.StatusNotFound, "This story has vanished, or never existed.")
			return
		}
		RenderError(c, http.StatusInternalServerError, "Could not load this story. Please try again.")
		return
	}

	type RenderedComment struct {
		models.Comment
		ContentHTML template.HTML
	}
	rendered := make([]RenderedComment, len(comments))
	for i, com := range comments {
		rendered[i] = RenderedComment{
			Comment:     com,
			ContentHTML: utils.RenderMarkdown(com.Content),
		}
	}

	related, relErr := services.FetchRelatedStories(story.ID, 3)
	if relErr != nil {
		// 相关推荐失败不影响详情页
		related = nil
	}

	// 当前用户对这篇故事的表态，用于高亮按钮
	myVote := 0
	if u, exists := c.Get(middleware.CheckUserKey); exists {
		user := u.(*models.Profile)
		var like models.Like
		if err := db.DB.Where("story_id = ? AND user_id = ?", story.ID, user.ID).First(&like).Error; err == nil {
			myVote = like.Value
		}
	}

	description := story.Excerpt
	if description == "" {
		description = utils.MakeExcerpt(story.Content, 150)
	}

	Render(c, http.StatusOK, "story/detail.html", gin.H{
		"Title":         story.Title,
		"Story":         story,
		"StoryContent":  utils.EnhanceHTMLContent(story.Content),
		"Comments":      rendered,
		"Related":       related,
		"MyVote":        myVote,
		"Description":   description,
		"FullURL":       fmt.Sprintf("%s/stories/%s", siteURL(), story.Sid),
		"ImageURL":      story.ImageURL,
		"Author":        story.Author.DisplayName(),
		"PublishedTime": story.CreatedAt.Format(time.RFC3339),
		"ModifiedTime":  story.UpdatedAt.Format(time.RFC3339),
	})
}

// Search 搜索标题、正文和摘要，大小写不敏感，按时间倒序
func (h *StoryHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))

	var stories []models.Story
	var fetchError string
	if query != "" {
		result, err := services.FetchStories(services.StoryQueryOptions{
			Page: 1, PageSize: 50, Query: query,
		})
		if err != nil {
			fetchError = "Search is unavailable right now. Please try again."
		} else {
			stories = result.Stories
		}
	}

	Render(c, http.StatusOK, "search.html", gin.H{
		"Title":      "Search",
		"Query":      query,
		"Stories":    stories,
		"FetchError": fetchError,
		"FullURL":    fmt.Sprintf("%s/search?q=%s", siteURL(), query),
	})
}

// CreateComment 发表评论。空内容在任何写入前就被拒绝。
func (h *StoryHandler) CreateComment(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.Profile)
	sid := c.Param("sid")

	var story models.Story
	if err := db.DB.Where("sid = ? AND published = ?", sid, true).First(&story).Error; err != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}

	content := strings.TrimSpace(c.PostForm("content"))
	if content == "" {
		c.Redirect(http.StatusFound, "/stories/"+sid+"?status=empty_comment")
		return
	}

	comment := models.Comment{
		StoryID: story.ID,
		UserID:  user.ID,
		Content: content,
	}

	if err := db.DB.Create(&comment).Error; err != nil {
		c.Redirect(http.StatusFound, "/stories/"+sid+"?status=comment_failed")
		return
	}

	// 评论数影响列表和热度
	invalidateListCaches()
	services.GetTrendingService().ScheduleUpdate(story.ID)

	c.Redirect(http.StatusFound, "/stories/"+sid+"#comment-"+fmt.Sprint(comment.ID))
}
