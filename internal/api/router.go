package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/free99/config"
	_ "github.com/d60-Lab/free99/docs"
	"github.com/d60-Lab/free99/internal/api/handler"
	"github.com/d60-Lab/free99/internal/api/middleware"
)

// NewRouter 组装中间件与 /api/v1 路由
func NewRouter(cfg *config.Config, h *handler.Handler, tokens middleware.TokenParser) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(),
		middleware.Sentry(),
		middleware.ReportErrors(),
		middleware.Logger(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.Server.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gzip.Gzip(gzip.DefaultCompression),
		otelgin.Middleware(cfg.Tracing.ServiceName),
	)

	r.GET("/health", h.Health)
	if cfg.Server.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.Auth(tokens)
	v1 := r.Group("/api/v1")
	{
		a := v1.Group("/auth")
		a.POST("/register", h.Register)
		a.POST("/verify-email", h.VerifyEmail)
		a.POST("/login", h.Login)
		a.GET("/me", auth, h.Me)

		v1.GET("/users/:id", h.GetUserProfile)

		l := v1.Group("/listings")
		l.GET("", h.ListFeed)
		l.GET("/:id", h.GetListing)
		l.GET("/mine", auth, h.ListMyPostings)
		l.GET("/claimed/me", auth, h.ListMyClaims)
		l.POST("", auth, h.CreateListing)
		l.DELETE("/:id", auth, h.DeleteListing)
		l.POST("/:id/claim", auth, h.ClaimListing)
		l.GET("/:id/events", auth, h.ListEvents)

		m := v1.Group("/messages", auth)
		m.POST("", h.SendMessage)
		m.GET("/threads", h.ListThreads)
		m.POST("/threads", h.CreateThread)
		m.POST("/threads/listing/:listing_id", h.StartListingThread)
		m.GET("/threads/:id", h.ListMessages)
		m.POST("/threads/:id/read", h.MarkThreadRead)
		m.POST("/threads/:id/mute", h.SetThreadMuted)
		m.DELETE("/threads/:id/:message_id", h.DeleteMessage)
	}
	return r
}
