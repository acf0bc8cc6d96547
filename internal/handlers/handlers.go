package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/thebookish/proofsnap/internal/config"
	"github.com/thebookish/proofsnap/internal/middleware"
	"github.com/thebookish/proofsnap/internal/models"
	"github.com/thebookish/proofsnap/internal/repository"
	"github.com/thebookish/proofsnap/internal/service"
	"github.com/thebookish/proofsnap/internal/storage"
)

type HandlerSet struct {
	log            zerolog.Logger
	cfg            *config.AppConfig
	authService    *service.AuthService
	uploadService  *service.UploadService
	shareService   *service.ShareService
	captureService *service.CaptureService
	db             *pgxpool.Pool
	cache          *redis.Client
	store          *storage.ObjectStore
	users          *repository.UserRepository
	sessions       *repository.SessionRepository
	screenshots    *repository.ScreenshotRepository
	links          *repository.ShareLinkRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	screenshotRepo := repository.NewScreenshotRepository(db)
	linkRepo := repository.NewShareLinkRepository(db)

	auth := service.NewAuthService(userRepo, sessionRepo, cache, cfg, log)
	share := service.NewShareService(screenshotRepo, linkRepo, cache, cfg.Share, log)
	upload := service.NewUploadService(screenshotRepo, linkRepo, store, share, log)
	capture := service.NewCaptureService(upload, cfg.Capture, log)

	return HandlerSet{
		log:            log,
		cfg:            cfg,
		authService:    auth,
		uploadService:  upload,
		shareService:   share,
		captureService: capture,
		db:             db,
		cache:          cache,
		store:          store,
		users:          userRepo,
		sessions:       sessionRepo,
		screenshots:    screenshotRepo,
		links:          linkRepo,
	}
}

// CaptureService exposes the capture session registry for the scheduler's
// expiry sweep.
func (h HandlerSet) CaptureService() *service.CaptureService {
	return h.captureService
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.SignUp)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)

		protected := v1.Group("/auth")
		protected.Use(
			middleware.Auth(h.cfg, h.users, h.sessions),
			middleware.Signature(h.cfg, h.cache),
		)
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:deviceId", h.RevokeSession)
	}

	// Public share-token resolution: the token is the capability, no auth.
	v1.GET("/share/:token", h.ResolveShare)

	shots := v1.Group("/screenshots")
	shots.Use(
		middleware.Auth(h.cfg, h.users, h.sessions),
		middleware.Signature(h.cfg, h.cache),
	)
	shots.POST("", h.UploadScreenshots)
	shots.GET("", h.ListScreenshots)
	shots.GET("/:id", h.GetScreenshot)
	shots.DELETE("/:id", h.DeleteScreenshot)
	shots.POST("/:id/share", h.CreateShareLink)
	shots.GET("/:id/report", h.GenerateReport)

	capture := v1.Group("/capture/sessions")
	capture.Use(
		middleware.Auth(h.cfg, h.users, h.sessions),
		middleware.Signature(h.cfg, h.cache),
	)
	capture.POST("", h.OpenCapture)
	capture.POST("/:id/gestures", h.CaptureGesture)
	capture.POST("/:id/finalize", h.FinalizeCapture)
	capture.DELETE("/:id", h.CancelCapture)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg, h.users, h.sessions),
		middleware.Signature(h.cfg, h.cache),
		middleware.RequireRoles(models.UserRoleAdmin, models.UserRoleSuperAdmin),
	)
	admin.GET("/screenshots", h.AdminListScreenshots)
}

func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get("current_user")
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}
