package handlers

import (
	"net/http"
	"strings"

	"darktales/internal/db"
	"darktales/internal/models"
	"darktales/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// safeRedirect 只接受站内路径，防止开放跳转
func safeRedirect(target string) string {
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return target
	}
	return "/"
}

func (h *AuthHandler) ShowRegister(c *gin.Context) {
	Render(c, http.StatusOK, "auth/register.html", gin.H{
		"Title":    "Sign up",
		"Redirect": c.Query("redirect"),
	})
}

func (h *AuthHandler) Register(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	redirect := c.PostForm("redirect")

	renderErr := func(message string) {
		Render(c, http.StatusBadRequest, "auth/register.html", gin.H{
			"Title":    "Sign up",
			"Error":    message,
			"Email":    email,
			"Username": username,
			"Redirect": redirect,
		})
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		renderErr("Please enter a valid email address")
		return
	}
	if username == "" {
		username = parts[0]
	}
	if len(password) < 6 {
		renderErr("Password must be at least 6 characters")
		return
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		renderErr("Sign up failed, please try again")
		return
	}

	user := models.Profile{
		Username: username,
		Email:    email,
		Password: hash,
		Role:     "user",
	}
	if err := db.DB.Create(&user).Error; err != nil {
		renderErr("That email or username is already taken")
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.Redirect(http.StatusFound, safeRedirect(redirect))
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "auth/login.html", gin.H{
		"Title":    "Log in",
		"Redirect": c.Query("redirect"),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	redirect := c.PostForm("redirect")

	var user models.Profile
	if err := db.DB.Where("email = ?", email).First(&user).Error; err != nil {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{
			"Title": "Log in", "Error": "Wrong email or password", "Email": email, "Redirect": redirect,
		})
		return
	}

	if !utils.CheckPasswordHash(password, user.Password) {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{
			"Title": "Log in", "Error": "Wrong email or password", "Email": email, "Redirect": redirect,
		})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.Redirect(http.StatusFound, safeRedirect(redirect))
}

// Logout 立即清会话并跳回首页，无任何人为延迟
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/")
}
