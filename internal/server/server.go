package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"crawford.app/podcastserver/internal/config"
	"crawford.app/podcastserver/internal/metrics"
	"crawford.app/podcastserver/internal/middleware"
	"crawford.app/podcastserver/pkg/ratelimiter"
	"crawford.app/podcastserver/pkg/storage"
	"crawford.app/podcastserver/pkg/token"

	adminHttp "crawford.app/podcastserver/internal/modules/admin/delivery/http"
	adminService "crawford.app/podcastserver/internal/modules/admin/service"

	liveHttp "crawford.app/podcastserver/internal/modules/live/delivery/http"
	liveRepo "crawford.app/podcastserver/internal/modules/live/repository"
	liveService "crawford.app/podcastserver/internal/modules/live/service"

	podcastHttp "crawford.app/podcastserver/internal/modules/podcast/delivery/http"
	podcastRepo "crawford.app/podcastserver/internal/modules/podcast/repository"
	podcastService "crawford.app/podcastserver/internal/modules/podcast/service"

	searchService "crawford.app/podcastserver/internal/modules/search/service"

	userHttp "crawford.app/podcastserver/internal/modules/user/delivery/http"
	userRepo "crawford.app/podcastserver/internal/modules/user/repository"
	userService "crawford.app/podcastserver/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the external clients the server is built on. Redis and
// Meili are optional.
type Dependencies struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Meili   meilisearch.ServiceManager
	Storage storage.AssetStorage
	Logger  *zap.Logger
}

type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.L()
	}

	tokens, err := token.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	cooldown := ratelimiter.NewCooldown(deps.Redis, cfg.RateLimitUpload)

	var meiliSvc searchService.MeiliSearchService
	if deps.Meili != nil {
		meiliSvc = searchService.NewMeiliSearchService(deps.Meili, logger)
	}

	userRepository := userRepo.NewUserRepository(deps.DB)
	podcastRepository := podcastRepo.NewRepository(deps.DB)
	liveRepository := liveRepo.NewRepository(deps.DB)

	authSvc := userService.NewAuthService(userRepository, tokens, cfg.AllowAdminSignup, logger)
	authHandler := userHttp.NewAuthHandler(authSvc)

	podcastSvc := podcastService.NewService(podcastRepository, deps.Storage, podcastService.Options{
		Cooldown:  cooldown,
		Meili:     meiliSvc,
		Metrics:   collector,
		Logger:    logger,
		URLPrefix: cfg.UploadURLPrefix,
	})
	podcastHandler := podcastHttp.NewPodcastHandler(podcastSvc, cfg.MaxUploadMB<<20)

	liveSvc := liveService.NewService(liveRepository, liveService.Options{
		Cooldown: cooldown,
		Meili:    meiliSvc,
		Metrics:  collector,
		Logger:   logger,
	})
	liveHandler := liveHttp.NewLiveStreamHandler(liveSvc)

	adminSvc := adminService.NewAdminService(userRepository, podcastRepository, liveRepository, podcastSvc, meiliSvc, logger)
	adminHandler := adminHttp.NewAdminHandler(adminSvc, podcastSvc, liveSvc)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = 32 << 20

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimit(cfg.HTTPRateRPS, cfg.HTTPRateBurst))

	if cfg.StorageDriver == "local" {
		router.Static(cfg.UploadURLPrefix, cfg.UploadDir)
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Crawford podcast API"})
	})

	authMiddleware := middleware.NewAuthMiddleware(userRepository, tokens)

	api := router.Group("/api")
	api.GET("/health", healthCheck(deps.DB))

	registerRoutes(api, authMiddleware, routeHandlers{
		auth:     authHandler,
		podcasts: podcastHandler,
		live:     liveHandler,
		admin:    adminHandler,
	})

	// registered after the routes so /metrics sees them all
	p := ginprometheus.NewPrometheus("gin")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		if route := c.FullPath(); route != "" {
			return route
		}
		return "unmatched"
	}
	p.Use(router)

	return &Server{
		engine: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}, nil
}

type routeHandlers struct {
	auth     *userHttp.AuthHandler
	podcasts *podcastHttp.PodcastHandler
	live     *liveHttp.LiveStreamHandler
	admin    *adminHttp.AdminHandler
}

func registerRoutes(api *gin.RouterGroup, authMW *middleware.AuthMiddleware, h routeHandlers) {
	// Public routes
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.auth.Register)
		auth.POST("/token", h.auth.Token)
		auth.GET("/me", authMW.RequireAuth(), h.auth.Me)
		auth.PUT("/me", authMW.RequireAuth(), h.auth.UpdateMe)
	}

	protected := api.Group("")
	protected.Use(authMW.RequireAuth())
	{
		podcasts := protected.Group("/podcasts")
		podcasts.GET("", h.podcasts.ListPodcasts)
		podcasts.GET("/search", h.podcasts.SearchPodcasts)
		podcasts.GET("/:id", h.podcasts.GetPodcast)
		podcasts.POST("/:id/play", h.podcasts.PlayPodcast)

		publishPodcasts := podcasts.Group("")
		publishPodcasts.Use(authMW.RequireLecturerOrAdmin())
		publishPodcasts.POST("", h.podcasts.CreatePodcast)
		publishPodcasts.PUT("/:id", h.podcasts.UpdatePodcast)
		publishPodcasts.DELETE("/:id", h.podcasts.DeletePodcast)

		live := protected.Group("/live")
		live.GET("", h.live.ListStreams)
		live.GET("/search", h.live.SearchStreams)
		live.GET("/:id", h.live.GetStream)
		live.POST("/:id/join", h.live.JoinStream)
		live.POST("/:id/leave", h.live.LeaveStream)

		publishLive := live.Group("")
		publishLive.Use(authMW.RequireLecturerOrAdmin())
		publishLive.POST("", h.live.CreateStream)
		publishLive.PUT("/:id", h.live.UpdateStream)
		publishLive.DELETE("/:id", h.live.DeleteStream)

		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMW.RequireAdmin())
		{
			adminGroup.POST("/users", h.admin.CreateUser)
			adminGroup.GET("/users", h.admin.ListUsers)
			adminGroup.GET("/users/:id", h.admin.GetUser)
			adminGroup.PUT("/users/:id", h.admin.UpdateUser)
			adminGroup.DELETE("/users/:id", h.admin.DeleteUser)

			adminGroup.GET("/podcasts", h.admin.ListPodcasts)
			adminGroup.DELETE("/podcasts/:id", h.admin.DeletePodcast)

			adminGroup.GET("/live-streams", h.admin.ListLiveStreams)
			adminGroup.PUT("/live-streams/:id", h.admin.UpdateLiveStream)
			adminGroup.PUT("/live-streams/:id/status", h.admin.UpdateLiveStreamStatus)
			adminGroup.DELETE("/live-streams/:id", h.admin.DeleteLiveStream)
		}
	}
}

// Run blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Run() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			zap.L().Error("health check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":   "degraded",
				"database": "disconnected",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "connected"})
	}
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
