package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"darktales/internal/db"
	"darktales/internal/middleware"
	"darktales/internal/models"
	"darktales/internal/utils"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAdminRouter 直接把管理员塞进上下文，守卫本身在 middleware 包单测
func newAdminRouter(admin *models.Profile) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CheckUserKey, admin)
		c.Next()
	})

	h := NewAdminHandler()
	r.POST("/admin/stories/:sid/featured", h.ToggleFeatured)
	r.POST("/admin/stories/:sid/published", h.TogglePublished)
	r.DELETE("/admin/stories/:sid", h.Delete)
	return r
}

func createAdmin(t *testing.T) *models.Profile {
	t.Helper()
	admin := &models.Profile{Username: "boss", Email: "boss@example.com", Password: "x", Role: "admin"}
	require.NoError(t, db.DB.Create(admin).Error)
	return admin
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestToggleFeatured(t *testing.T) {
	setupTestDB(t)
	_, story := createFixtureStory(t, true)
	r := newAdminRouter(createAdmin(t))

	path := "/admin/stories/" + story.Sid + "/featured"

	// 按钮文案随新状态翻转，htmx 直接换 innerHTML
	w := do(r, http.MethodPost, path)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Unfeature", w.Body.String())

	var got models.Story
	require.NoError(t, db.DB.First(&got, story.ID).Error)
	assert.True(t, got.Featured)

	w = do(r, http.MethodPost, path)
	assert.Equal(t, "Feature", w.Body.String())
	require.NoError(t, db.DB.First(&got, story.ID).Error)
	assert.False(t, got.Featured)
}

func TestTogglePublished(t *testing.T) {
	setupTestDB(t)
	_, draft := createFixtureStory(t, false)
	r := newAdminRouter(createAdmin(t))

	path := "/admin/stories/" + draft.Sid + "/published"

	w := do(r, http.MethodPost, path)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Unpublish", w.Body.String())

	var got models.Story
	require.NoError(t, db.DB.First(&got, draft.ID).Error)
	assert.True(t, got.Published)

	w = do(r, http.MethodPost, path)
	assert.Equal(t, "Publish", w.Body.String())
	require.NoError(t, db.DB.First(&got, draft.ID).Error)
	assert.False(t, got.Published)
}

// 删除故事连带清掉评论、表态和分类关联
func TestDeleteStoryCascades(t *testing.T) {
	setupTestDB(t)
	reader := &models.Profile{Username: "reader", Email: "reader@example.com", Password: "x", Role: "user"}
	require.NoError(t, db.DB.Create(reader).Error)
	ghosts := &models.Category{Name: "Ghost Stories", Slug: "ghost-stories"}
	require.NoError(t, db.DB.Create(ghosts).Error)

	_, story := createFixtureStory(t, true)
	require.NoError(t, db.DB.Create(&models.Comment{StoryID: story.ID, UserID: reader.ID, Content: "gone soon"}).Error)
	require.NoError(t, db.DB.Create(&models.Like{StoryID: story.ID, UserID: reader.ID, Value: 1}).Error)
	require.NoError(t, db.DB.Create(&models.StoryCategory{StoryID: story.ID, CategoryID: ghosts.ID}).Error)

	r := newAdminRouter(createAdmin(t))

	w := do(r, http.MethodDelete, "/admin/stories/"+story.Sid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("HX-Redirect"))

	var count int64
	db.DB.Model(&models.Story{}).Where("id = ?", story.ID).Count(&count)
	assert.EqualValues(t, 0, count, "story row must be gone")
	db.DB.Model(&models.Comment{}).Where("story_id = ?", story.ID).Count(&count)
	assert.EqualValues(t, 0, count, "comments must cascade")
	db.DB.Model(&models.Like{}).Where("story_id = ?", story.ID).Count(&count)
	assert.EqualValues(t, 0, count, "likes must cascade")
	db.DB.Model(&models.StoryCategory{}).Where("story_id = ?", story.ID).Count(&count)
	assert.EqualValues(t, 0, count, "category links must cascade")

	// 分类本身不受影响
	var categories int64
	db.DB.Model(&models.Category{}).Count(&categories)
	assert.EqualValues(t, 1, categories)
}

func TestDeleteMissingStory(t *testing.T) {
	setupTestDB(t)
	r := newAdminRouter(createAdmin(t))

	w := do(r, http.MethodDelete, "/admin/stories/nosuchid")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// 维护操作后渲染缓存整体失效
func TestRunMaintenancePurgesRenderCache(t *testing.T) {
	setupTestDB(t)
	utils.GetCache().Set("story:home", gin.H{"Title": "stale"}, time.Minute)
	utils.GetCache().Set("story:list:page:1", gin.H{"Title": "stale"}, time.Minute)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	render := multitemplate.NewRenderer()
	render.AddFromString("admin/maintenance.html", "ok")
	r.HTMLRender = render
	r.POST("/admin/maintenance/:op", NewAdminHandler().RunMaintenance)

	w := do(r, http.MethodPost, "/admin/maintenance/vacuum")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, utils.GetCache().Get("story:home"))
	assert.Nil(t, utils.GetCache().Get("story:list:page:1"))
}

func TestCreateStoryFromForm(t *testing.T) {
	setupTestDB(t)
	admin := createAdmin(t)
	var ghosts models.Category
	require.NoError(t, db.DB.Create(&models.Category{Name: "Ghost Stories", Slug: "ghost-stories"}).Error)
	require.NoError(t, db.DB.Where("slug = ?", "ghost-stories").First(&ghosts).Error)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CheckUserKey, admin)
		c.Next()
	})
	h := NewAdminHandler()
	r.POST("/admin/stories/new", h.Create)

	form := url.Values{
		"title":        {"The last train"},
		"content":      {"<p>It never stops here.</p><script>alert(1)</script>"},
		"published":    {"on"},
		"category_ids": {"1"},
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/stories/new", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))

	var story models.Story
	require.NoError(t, db.DB.Where("title = ?", "The last train").First(&story).Error)
	assert.Len(t, story.Sid, 8)
	assert.Equal(t, admin.ID, story.AuthorID)
	assert.True(t, story.Published)
	assert.NotContains(t, story.Content, "<script") // 入库前已消毒
	assert.NotEmpty(t, story.Excerpt)               // 没填摘要时从正文生成

	var links int64
	db.DB.Model(&models.StoryCategory{}).Where("story_id = ?", story.ID).Count(&links)
	assert.EqualValues(t, 1, links)
}
