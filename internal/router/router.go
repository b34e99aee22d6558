package router

import (
	"darktales/internal/handlers"
	"darktales/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine) {
	// Handlers
	authHandler := handlers.NewAuthHandler()
	storyHandler := handlers.NewStoryHandler()
	likeHandler := handlers.NewLikeHandler()
	categoryHandler := handlers.NewCategoryHandler()
	adminHandler := handlers.NewAdminHandler()

	// 公共路由 (Public Routes)
	r.GET("/", storyHandler.Home)                      // 首页
	r.GET("/stories", storyHandler.List)               // 故事列表
	r.GET("/stories/:sid", storyHandler.Detail)        // 故事详情页
	r.GET("/categories", categoryHandler.List)         // 分类列表
	r.GET("/categories/:slug", categoryHandler.Detail) // 分类下的故事
	r.GET("/search", storyHandler.Search)              // 搜索页面

	r.GET("/signup", authHandler.ShowRegister) // 注册页面
	r.POST("/signup", authHandler.Register)    // 提交注册
	r.GET("/login", authHandler.ShowLogin)     // 登录页面
	r.POST("/login", authHandler.Login)        // 提交登录
	r.GET("/logout", authHandler.Logout)       // 退出登录

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/stories/:sid/comments", storyHandler.CreateComment) // 发表评论
		authorized.POST("/stories/:sid/like", likeHandler.Like)               // 点赞
		authorized.POST("/stories/:sid/dislike", likeHandler.Dislike)         // 点踩
	}

	// 管理路由 (Admin Routes) — 服务端守卫，客户端检查不可信
	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("", adminHandler.Dashboard)                            // 管理首页
		admin.GET("/stories/new", adminHandler.ShowCreate)               // 新建故事页面
		admin.POST("/stories/new", adminHandler.Create)                  // 提交新建
		admin.GET("/stories/:sid/edit", adminHandler.ShowEdit)           // 编辑故事页面
		admin.POST("/stories/:sid/edit", adminHandler.Update)            // 提交编辑
		admin.DELETE("/stories/:sid", adminHandler.Delete)               // 删除故事
		admin.POST("/stories/:sid/featured", adminHandler.ToggleFeatured)   // 置顶开关
		admin.POST("/stories/:sid/published", adminHandler.TogglePublished) // 发布开关
		admin.GET("/stories/:sid/stats", adminHandler.Stats)             // 单篇统计

		admin.GET("/maintenance", adminHandler.ShowMaintenance)    // 维护面板
		admin.POST("/maintenance/:op", adminHandler.RunMaintenance) // 执行维护操作

		admin.POST("/upload", adminHandler.Upload) // 封面图上传
	}
}
