package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"darktales/internal/middleware"
	"darktales/internal/models"
	"darktales/internal/utils"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// newHomeRouter 用字符串模板只渲染当前用户名，盯住缓存命中时的身份注入
func newHomeRouter(current **models.Profile) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	render := multitemplate.NewRenderer()
	render.AddFromString("story/home.html",
		`user={{if .CurrentUser}}{{.CurrentUser.Username}}{{else}}anonymous{{end}}`)
	r.HTMLRender = render

	r.Use(func(c *gin.Context) {
		if *current != nil {
			c.Set(middleware.CheckUserKey, *current)
		}
		c.Next()
	})
	r.GET("/", NewStoryHandler().Home)
	return r
}

func getHome(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

// 首页缓存只存数据，不存身份：登录用户灌热缓存后，
// 匿名访客命中同一份缓存必须仍然是匿名。
func TestHomeCacheDoesNotLeakUser(t *testing.T) {
	setupTestDB(t)
	utils.GetCache().Purge()
	author, _ := createFixtureStory(t, true)

	var current *models.Profile
	r := newHomeRouter(&current)

	current = author
	w := getHome(r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user=writer", w.Body.String())

	current = nil
	w = getHome(r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user=anonymous", w.Body.String())

	// 反向也成立：匿名灌的缓存不抹掉登录身份
	current = author
	w = getHome(r)
	assert.Equal(t, "user=writer", w.Body.String())
}
