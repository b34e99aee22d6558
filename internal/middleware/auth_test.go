package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"darktales/internal/db"
	"darktales/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

func setupTestDB(t *testing.T) {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:mwtest%d?mode=memory&cache=shared", n)

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(gdb))
	db.DB = gdb
}

// newTestRouter 挂上会话和守卫，外加一个只给测试用的登录入口
func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.Use(LoadUser())

	r.GET("/testlogin/:id", func(c *gin.Context) {
		session := sessions.Default(c)
		session.Set("user_id", uint(mustAtoi(c.Param("id"))))
		_ = session.Save()
		c.Status(http.StatusOK)
	})

	auth := r.Group("/", AuthRequired())
	auth.GET("/member", func(c *gin.Context) { c.String(http.StatusOK, "member ok") })

	admin := r.Group("/admin", AdminRequired())
	admin.GET("/panel", func(c *gin.Context) { c.String(http.StatusOK, "admin ok") })

	return r
}

func mustAtoi(s string) int {
	var n int
	fmt.Sscanf(s, "%d", &n)
	return n
}

func login(t *testing.T, r *gin.Engine, userID uint) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/testlogin/%d", userID), nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Result().Cookies()
}

func get(r *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredRedirectsAnonymous(t *testing.T) {
	setupTestDB(t)
	r := newTestRouter()

	w := get(r, "/member", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?redirect=%2Fmember", w.Header().Get("Location"))
}

func TestAuthRequiredPassesLoggedIn(t *testing.T) {
	setupTestDB(t)
	user := &models.Profile{Username: "reader", Email: "reader@example.com", Password: "x", Role: "user"}
	require.NoError(t, db.DB.Create(user).Error)

	r := newTestRouter()
	cookies := login(t, r, user.ID)

	w := get(r, "/member", cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "member ok", w.Body.String())
}

func TestAdminRequiredRedirectsAnonymousToLogin(t *testing.T) {
	setupTestDB(t)
	r := newTestRouter()

	w := get(r, "/admin/panel", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?redirect=%2Fadmin%2Fpanel", w.Header().Get("Location"))
}

func TestAdminRequiredRejectsNonAdmin(t *testing.T) {
	setupTestDB(t)
	user := &models.Profile{Username: "reader", Email: "reader@example.com", Password: "x", Role: "user"}
	require.NoError(t, db.DB.Create(user).Error)

	r := newTestRouter()
	cookies := login(t, r, user.ID)

	// 已登录但不是管理员：跳回首页，不是登录页
	w := get(r, "/admin/panel", cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestAdminRequiredPassesAdmin(t *testing.T) {
	setupTestDB(t)
	admin := &models.Profile{Username: "boss", Email: "boss@example.com", Password: "x", Role: "admin"}
	require.NoError(t, db.DB.Create(admin).Error)

	r := newTestRouter()
	cookies := login(t, r, admin.ID)

	w := get(r, "/admin/panel", cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin ok", w.Body.String())
}

// 会话里的用户已经不存在（比如被删号）：角色查不出来就拒绝
func TestAdminRequiredFailsClosedOnMissingProfile(t *testing.T) {
	setupTestDB(t)
	r := newTestRouter()
	cookies := login(t, r, 424242)

	w := get(r, "/admin/panel", cookies)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}
