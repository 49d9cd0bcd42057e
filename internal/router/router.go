// Package router 开发服务器路由配置
package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/weiwangfds/scijournal/config"
	_ "github.com/weiwangfds/scijournal/docs" // swagger docs
	"github.com/weiwangfds/scijournal/internal/handler"
	"github.com/weiwangfds/scijournal/internal/middleware"
	"github.com/weiwangfds/scijournal/internal/service/backend"
	"gorm.io/gorm"
)

// Router 路由配置
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
}

// NewRouter 创建路由实例
func NewRouter(db *gorm.DB, cfg config.ServerConfig) *Router {
	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	// 初始化服务
	authService := backend.NewAuthService(db, cfg.JWTSecret, cfg.JWTExpiry)
	entryService := backend.NewEntryService(db)
	categoryService := backend.NewCategoryService(db)
	preferenceService := backend.NewPreferenceService(db)

	// 初始化处理器
	authHandler := handler.NewAuthHandler(authService)
	entryHandler := handler.NewEntryHandler(entryService)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	preferenceHandler := handler.NewPreferenceHandler(preferenceService)

	// 使用中间件
	loggerMiddleware := middleware.NewLoggerMiddleware()
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware.RequestID())
	engine.Use(loggerMiddleware.RequestLogger())

	// 配置CORS
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader, "Retry-After"},
		MaxAge:        86400,
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	engine.Use(cors.New(corsConfig))

	// Swagger文档路由
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// API路由组
	api := engine.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateLimitBurst))
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
		}

		authed := api.Group("")
		authed.Use(middleware.Auth(authService))

		// 日记接口，/stats 需注册在 /:id 之前
		entries := authed.Group("/entries")
		{
			entries.POST("", entryHandler.CreateEntry)
			entries.GET("", entryHandler.ListEntries)
			entries.GET("/stats", entryHandler.GetEntryStats)
			entries.GET("/:id", entryHandler.GetEntry)
			entries.PUT("/:id", entryHandler.UpdateEntry)
			entries.DELETE("/:id", entryHandler.DeleteEntry)
		}

		// 分类接口
		categories := authed.Group("/categories")
		{
			categories.GET("", categoryHandler.GetCategories)
			categories.POST("", categoryHandler.CreateCategory)
			categories.GET("/:id", categoryHandler.GetCategory)
			categories.PUT("/:id", categoryHandler.UpdateCategory)
			categories.DELETE("/:id", categoryHandler.DeleteCategory)
		}

		// 用户偏好接口
		user := authed.Group("/user")
		{
			user.GET("/preferences", preferenceHandler.GetUserPreferences)
			user.PUT("/preferences", preferenceHandler.UpdateUserPreferences)
		}
	}

	return &Router{
		engine: engine,
		db:     db,
	}
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetDB 获取数据库连接
func (r *Router) GetDB() *gorm.DB {
	return r.db
}
