package middleware

import (
	"log"
	"net/http"
	"net/url"

	"darktales/internal/db"
	"darktales/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckUserKey = "user"

// LoadUser retrieves user from session and sets to context
func LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")

		if userID != nil {
			var user models.Profile
			result := db.DB.First(&user, userID)
			if result.Error == nil {
				c.Set(CheckUserKey, &user)
			}
		}
		c.Next()
	}
}

// AuthRequired ensures a user is logged in.
// 未登录跳转到登录页，并带上原始路径供登录后跳回。
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		if userID == nil {
			c.Redirect(http.StatusFound, "/login?redirect="+url.QueryEscape(c.Request.URL.Path))
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired 管理端守卫。角色只有一个权威来源：profiles 表。
// LoadUser 已经把当前用户放进上下文时直接用（省一次查询），
// 否则按会话里的 user_id 回查一次；查询失败一律拒绝，跳回首页。
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		if userID == nil {
			c.Redirect(http.StatusFound, "/login?redirect="+url.QueryEscape(c.Request.URL.Path))
			c.Abort()
			return
		}

		if u, exists := c.Get(CheckUserKey); exists {
			if user, ok := u.(*models.Profile); ok && user.IsAdmin() {
				c.Next()
				return
			}
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}

		var user models.Profile
		if err := db.DB.First(&user, userID).Error; err != nil {
			log.Printf("admin guard: failed to load profile %v: %v", userID, err)
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		if !user.IsAdmin() {
			log.Printf("admin guard: user %d denied for %s", user.ID, c.Request.URL.Path)
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Set(CheckUserKey, &user)
		c.Next()
	}
}
