package router

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"haruboard/internal/handlers"
	"haruboard/internal/middleware"
	"haruboard/internal/repository"
	"haruboard/internal/services"
	"haruboard/internal/telemetry"
	"haruboard/web"
)

const (
	SessionCookie = "haru_session"
	serviceName   = "haruboard"
)

type Deps struct {
	Log      *zap.Logger
	DB       *gorm.DB
	Sessions *services.SessionStore
	Posts    repository.PostRepository

	SessionSecret string
	Secure        bool
	PageSize      int

	// Sentry and Tracing install the reporting middleware.
	Sentry  bool
	Tracing bool
}

// New builds the engine with every page registered.
func New(d Deps) (*gin.Engine, error) {
	r := gin.New()

	renderer, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	r.HTMLRender = renderer

	r.Use(middleware.Recovery(d.Log))
	if d.Sentry {
		r.Use(telemetry.SentryMiddleware())
	}
	if d.Tracing {
		r.Use(telemetry.TracingMiddleware(serviceName))
	}
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	store := cookie.NewStore([]byte(d.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   d.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(SessionCookie, store))

	r.StaticFS("/static", http.FS(web.Static()))

	health := handlers.NewHealthHandler(d.DB)
	r.GET("/healthz", health.Check)

	// 会话在所有页面之前解析完成
	pages := r.Group("/")
	pages.Use(middleware.LoadSession(d.Sessions, d.Log))
	RegisterRoutes(pages, d)

	r.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/")
	})
	return r, nil
}

func RegisterRoutes(r *gin.RouterGroup, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Sessions, d.Log)
	boardHandler := handlers.NewBoardHandler(d.Posts, d.PageSize, d.Log)

	// 公共路由 (Public Routes)
	guest := r.Group("/")
	guest.Use(middleware.RedirectIfAuthenticated())
	{
		guest.GET("/login", authHandler.ShowLogin) // 登录页面
		guest.POST("/login", authHandler.Login)    // 提交登录
		guest.GET("/signup", authHandler.ShowSignup)
		guest.POST("/signup", authHandler.Signup)
	}
	r.POST("/logout", authHandler.Logout)
	r.GET("/logout", authHandler.Logout)

	// 受保护路由 (Protected Routes)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/", boardHandler.List)                    // 帖子列表
		authorized.GET("/board/write", boardHandler.ShowWrite)    // 发帖页面
		authorized.POST("/board/write", boardHandler.Write)       // 提交发帖
		authorized.GET("/board/:id", boardHandler.Detail)         // 帖子详情
		authorized.GET("/board/edit/:id", boardHandler.ShowEdit)  // 编辑页面
		authorized.POST("/board/edit/:id", boardHandler.Update)   // 提交编辑
		authorized.POST("/board/:id/delete", boardHandler.Delete) // 删除帖子
		authorized.DELETE("/board/:id", boardHandler.Delete)
	}
}
