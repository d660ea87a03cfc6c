// Package api wires together all HTTP routes for the ProjectHub backend.
//
// Route grouping:
//   - /health and /ready are unauthenticated probes outside /api.
//   - /api/auth/* and the invitation preview are public and sit behind the
//     stricter auth rate limit tier. /api/auth/me is the exception: it needs a
//     token and shares the general tier.
//   - Everything else under /api requires a bearer token. Team, project and
//     task authorization is decided by the services; the router only adds the
//     coarse admin and self-or-admin gates on the user routes.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/projecthub/projecthub/internal/api/accounts"
	"github.com/projecthub/projecthub/internal/api/response"
	"github.com/projecthub/projecthub/internal/api/teams"
	"github.com/projecthub/projecthub/internal/api/work"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/config"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/jobs"
	"github.com/projecthub/projecthub/internal/middleware"
	"github.com/projecthub/projecthub/internal/notify"
	"github.com/projecthub/projecthub/internal/services"
	"github.com/projecthub/projecthub/internal/storage"
	"github.com/projecthub/projecthub/internal/storage/local"

	// Import storage backends to register them
	_ "github.com/projecthub/projecthub/internal/storage/azure"
	_ "github.com/projecthub/projecthub/internal/storage/gcs"
	_ "github.com/projecthub/projecthub/internal/storage/s3"
)

// Version is reported by /version and the version command. It is set at
// build time with -ldflags "-X github.com/projecthub/projecthub/internal/api.Version=...".
var Version = "dev"

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	purger       *jobs.InvitationPurger
	mailer       *notify.Mailer
	limiterStops []func()
}

// Shutdown stops all background goroutines and waits, bounded by ctx, for
// emails still being delivered. It should be called after the HTTP server has
// been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown(ctx context.Context) {
	slog.Info("stopping background services")
	if bg.purger != nil {
		bg.purger.Stop()
	}
	for _, stop := range bg.limiterStops {
		stop()
	}
	if bg.mailer != nil {
		if err := bg.mailer.Wait(ctx); err != nil {
			slog.Warn("gave up waiting for outbound email", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router and starts the background
// jobs the routes depend on.
func NewRouter(cfg *config.Config, db *sqlx.DB) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()
	response.IncludeStack(!cfg.Server.IsProduction())

	// Initialize storage backend
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	tokens, err := auth.NewTokenIssuer(auth.TokenOptions{
		Secret:               cfg.Auth.JWTSecret,
		Issuer:               cfg.Auth.Issuer,
		Expiry:               cfg.Auth.TokenExpiry,
		ResetExpiry:          cfg.Auth.ResetTokenExpiry,
		AllowGeneratedSecret: !cfg.Server.IsProduction(),
	})
	if err != nil {
		return nil, nil, err
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	teamRepo := repositories.NewTeamRepository(db)
	invitationRepo := repositories.NewInvitationRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	activityRepo := repositories.NewActivityRepository(db)

	// Outbound email
	mailer := notify.NewMailer(notify.NewDispatcher(&cfg.Notifications), notify.OptionsFromConfig(cfg))

	// Services
	teamService := services.NewTeamService(teamRepo, userRepo, invitationRepo, notificationRepo, projectRepo, mailer, cfg.Invitations.TTL)
	accountService := services.NewAccountService(userRepo, teamService, tokens, mailer).WithBcryptCost(cfg.Auth.BcryptCost)
	workNotifier := services.NewWorkNotifier(userRepo, notificationRepo, mailer)
	projectService := services.NewProjectService(projectRepo, workNotifier)
	taskService := services.NewTaskService(taskRepo, projectRepo, workNotifier)
	userService := services.NewUserService(userRepo, storageBackend)
	notificationService := services.NewNotificationService(notificationRepo)

	// Rate limiters
	bg := &BackgroundServices{mailer: mailer}
	var generalLimiter, authLimiter middleware.Limiter
	if cfg.Security.RateLimiting.Enabled {
		general := middleware.DefaultRateLimitConfig()
		if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
			general.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
		}
		if cfg.Security.RateLimiting.Burst > 0 {
			general.BurstSize = cfg.Security.RateLimiting.Burst
		}
		authTier := middleware.AuthRateLimitConfig()
		if cfg.Security.RateLimiting.AuthRequestsPerMinute > 0 {
			authTier.RequestsPerMinute = cfg.Security.RateLimiting.AuthRequestsPerMinute
		}

		var stop func()
		generalLimiter, stop, err = middleware.NewLimiter(cfg.Security.RateLimiting, general, "general")
		if err != nil {
			return nil, nil, err
		}
		bg.limiterStops = append(bg.limiterStops, stop)
		authLimiter, stop, err = middleware.NewLimiter(cfg.Security.RateLimiting, authTier, "auth")
		if err != nil {
			bg.Shutdown(context.Background())
			return nil, nil, err
		}
		bg.limiterStops = append(bg.limiterStops, stop)
	}
	rateLimit := func(l middleware.Limiter, tier string) gin.HandlerFunc {
		if l == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimitMiddleware(l, tier)
	}

	// Invitation purge job
	bg.purger = jobs.NewInvitationPurger(invitationRepo, cfg.Invitations.PurgeInterval)
	go bg.purger.Start(context.Background())

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes storage backend probe)
	router.GET("/ready", readinessHandler(db, storageBackend))

	// API version
	router.GET("/version", versionHandler())

	// Locally stored avatars are served by the API itself
	if ls, ok := storageBackend.(*local.LocalStorage); ok {
		prefix := cfg.Storage.Local.PublicURL
		if prefix == "" || strings.Contains(prefix, "://") {
			prefix = "/uploads"
		}
		router.Static(prefix, ls.BasePath())
	}

	authHandlers := accounts.NewAuthHandlers(accountService)
	userHandlers := accounts.NewUserHandlers(userService, cfg.Storage.MaxAvatarBytes)
	teamHandlers := teams.NewHandlers(teamService)
	projectHandlers := work.NewProjectHandlers(projectService)
	taskHandlers := work.NewTaskHandlers(taskService)
	notificationHandlers := work.NewNotificationHandlers(notificationService)
	dashboardHandlers := work.NewDashboardHandlers(taskRepo, activityRepo)

	requireAuth := middleware.AuthMiddleware(accountService)

	apiGroup := router.Group("/api")
	{
		// Public endpoints, stricter limit against credential stuffing
		authGroup := apiGroup.Group("/auth")
		authGroup.Use(rateLimit(authLimiter, "auth"))
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
			authGroup.POST("/forgot-password", authHandlers.ForgotPasswordHandler())
			authGroup.POST("/reset-password", authHandlers.ResetPasswordHandler())
		}
		apiGroup.GET("/auth/me", rateLimit(generalLimiter, "general"), requireAuth, authHandlers.MeHandler())
		apiGroup.GET("/invitations/:token", rateLimit(authLimiter, "auth"), teamHandlers.PreviewInvitationHandler())

		authenticated := apiGroup.Group("")
		authenticated.Use(rateLimit(generalLimiter, "general"))
		authenticated.Use(requireAuth)
		authenticated.Use(middleware.ActivityMiddleware(activityRepo, cfg.Activity))
		{
			authenticated.POST("/invitations/:token/accept", teamHandlers.AcceptInvitationHandler())

			usersGroup := authenticated.Group("/users")
			{
				usersGroup.GET("", userHandlers.ListUsersHandler())
				usersGroup.GET("/:id", userHandlers.GetUserHandler())
				usersGroup.PUT("/:id", middleware.RequireSelfOrAdmin("id"), userHandlers.UpdateUserHandler())
				usersGroup.DELETE("/:id", middleware.RequireAdmin(), userHandlers.DeleteUserHandler())
				usersGroup.POST("/:id/avatar", userHandlers.UploadAvatarHandler())
			}

			teamsGroup := authenticated.Group("/teams")
			{
				teamsGroup.GET("", teamHandlers.ListTeamsHandler())
				teamsGroup.POST("", teamHandlers.CreateTeamHandler())
				teamsGroup.GET("/:id", teamHandlers.GetTeamHandler())
				teamsGroup.PUT("/:id", teamHandlers.UpdateTeamHandler())
				teamsGroup.DELETE("/:id", teamHandlers.DeleteTeamHandler())

				teamsGroup.POST("/:id/members", teamHandlers.AddMemberHandler())
				teamsGroup.DELETE("/:id/members/:userId", teamHandlers.RemoveMemberHandler())
				teamsGroup.PATCH("/:id/members/:userId", teamHandlers.UpdateMemberRoleHandler())

				teamsGroup.POST("/:id/invite", teamHandlers.InviteHandler())
				teamsGroup.GET("/:id/invitations", teamHandlers.ListInvitationsHandler())
				teamsGroup.DELETE("/:id/invitations/:invitationId", teamHandlers.RevokeInvitationHandler())
			}

			projectsGroup := authenticated.Group("/projects")
			{
				projectsGroup.GET("", projectHandlers.ListProjectsHandler())
				projectsGroup.POST("", projectHandlers.CreateProjectHandler())
				projectsGroup.GET("/:id", projectHandlers.GetProjectHandler())
				projectsGroup.PUT("/:id", projectHandlers.UpdateProjectHandler())
				projectsGroup.DELETE("/:id", projectHandlers.DeleteProjectHandler())
			}

			tasksGroup := authenticated.Group("/tasks")
			{
				tasksGroup.GET("", taskHandlers.ListTasksHandler())
				tasksGroup.POST("", taskHandlers.CreateTaskHandler())
				tasksGroup.GET("/:id", taskHandlers.GetTaskHandler())
				tasksGroup.PUT("/:id", taskHandlers.UpdateTaskHandler())
				tasksGroup.PATCH("/:id/status", taskHandlers.UpdateStatusHandler())
				tasksGroup.DELETE("/:id", taskHandlers.DeleteTaskHandler())
			}

			notificationsGroup := authenticated.Group("/notifications")
			{
				notificationsGroup.GET("", notificationHandlers.ListHandler())
				notificationsGroup.GET("/unread-count", notificationHandlers.UnreadCountHandler())
				notificationsGroup.PATCH("/read-all", notificationHandlers.MarkAllReadHandler())
				notificationsGroup.PATCH("/:id/read", notificationHandlers.MarkReadHandler())
				notificationsGroup.DELETE("/:id", notificationHandlers.DeleteHandler())
			}

			authenticated.GET("/dashboard/stats", dashboardHandlers.StatsHandler())
			authenticated.GET("/activity", middleware.RequireAdmin(), dashboardHandlers.ActivityHandler())
		}
	}

	return router, bg, nil
}

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database and avatar storage.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. Unlike
// /health it also probes the storage backend, so avatar uploads failing
// takes the instance out of rotation.
func readinessHandler(db Pinger, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// A known-absent path exercises credentials and connectivity without writing.
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the build version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs one structured record per request.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	skip := map[string]bool{"/health": true, "/ready": true}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if skip[path] && c.Writer.Status() < http.StatusBadRequest {
			return
		}
		// Invitation tokens are bearer credentials for joining a team.
		if c.Param("token") != "" {
			path = c.FullPath()
		}
		logRequest(c, time.Since(start), path, redactQuery(query))
	}
}

// redactedQueryParams are replaced with "REDACTED" in request logs.
var redactedQueryParams = []string{"token"}

func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	redacted := false
	for _, key := range redactedQueryParams {
		if _, ok := values[key]; ok {
			values.Set(key, "REDACTED")
			redacted = true
		}
	}
	if !redacted {
		return raw
	}
	return values.Encode()
}

// logRequest writes the request record through the global slog handler,
// which emits JSON or text depending on logging.format.
func logRequest(c *gin.Context, latency time.Duration, path, query string) {
	status := c.Writer.Status()
	level := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", status),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("client_ip", c.ClientIP()),
		slog.String("request_id", c.GetString(middleware.RequestIDKey)),
		slog.String("user_agent", c.Request.UserAgent()),
	}
	if userID := c.GetString(middleware.UserIDKey); userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		methods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
