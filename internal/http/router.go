package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/campuskit/schoolhub/internal/auth"
	"github.com/campuskit/schoolhub/internal/cache"
	"github.com/campuskit/schoolhub/internal/config"
	"github.com/campuskit/schoolhub/internal/domain/user"
	"github.com/campuskit/schoolhub/internal/http/handlers"
	"github.com/campuskit/schoolhub/internal/http/middlewares"
	mailx "github.com/campuskit/schoolhub/internal/mail"
	"github.com/campuskit/schoolhub/internal/observability"
	"github.com/campuskit/schoolhub/internal/redisclient"
	"github.com/campuskit/schoolhub/internal/repo/postgres"
	"github.com/campuskit/schoolhub/internal/security"
	"github.com/campuskit/schoolhub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func NewRouter(cfg config.Config, log *slog.Logger, pool *pgxpool.Pool, mailer mailx.Mailer, rdb *redisclient.Client, prom *observability.Prom, reg *prometheus.Registry) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(otelgin.Middleware("schoolhub-api"))
	r.Use(prom.HTTPMetrics())

	// health
	ping := func(ctx context.Context) error {
		if pool == nil {
			return nil
		}
		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	studentsRepo := postgres.NewStudentsRepo(pool, prom)
	classesRepo := postgres.NewClassesRepo(pool, prom)
	attendanceRepo := postgres.NewAttendanceRepo(pool, prom)

	// auth core
	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL())
	resets := auth.NewResetManager(cfg.ResetTokenTTL())
	authSvc := service.NewAuth(usersRepo, hasher, tokens, resets, mailer, log)

	// rate limiting for the unauthenticated auth endpoints; Redis when
	// configured so the window is shared across instances
	var windowStore middlewares.WindowStore = middlewares.NewMemoryWindowStore()
	if rdb != nil {
		windowStore = middlewares.NewRedisWindowStore(rdb)
	}
	limiter := middlewares.NewRateLimiter(windowStore, cfg.AuthRateLimit, cfg.AuthRateWindow)

	authmw := middlewares.NewAuthMiddleware(tokens)

	// handlers
	authHandler := handlers.NewAuthHandler(authSvc, cfg)
	studentsHandler := handlers.NewStudentsHandler(studentsRepo)
	classesHandler := handlers.NewClassesHandler(classesRepo)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceRepo)
	staffHandler := handlers.NewStaffHandler(usersRepo, authSvc, cache.New(30*time.Second))

	v1 := r.Group("/api/v1")

	ar := v1.Group("/auth")
	{
		public := ar.Group("")
		public.Use(limiter.RateLimiterMiddleware(middlewares.KeyByIP))
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
		public.POST("/forgotpassword", authHandler.ForgotPassword)
		public.PUT("/resetpassword/:resettoken", authHandler.ResetPassword)

		private := ar.Group("")
		private.Use(authmw.RequireAuth())
		private.Use(limiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
		private.GET("/me", authHandler.Me)
		private.PUT("/updatedetails", authHandler.UpdateDetails)
		private.PUT("/updatepassword", authHandler.UpdatePassword)
	}

	staffOnly := []string{user.RoleAdmin, user.RoleTeacher}

	st := v1.Group("/students")
	st.Use(authmw.RequireAuth(), authmw.RequireRole(staffOnly...))
	{
		st.POST("", studentsHandler.Create)
		st.GET("", studentsHandler.List)
		st.GET("/:id", studentsHandler.Get)
		st.PUT("/:id", studentsHandler.Update)
		st.DELETE("/:id", studentsHandler.Deactivate)
		st.GET("/:id/attendance", attendanceHandler.StudentSummary)
	}

	// Any staff member can read classes and handle attendance; changing
	// the class catalogue itself is an admin concern.
	cl := v1.Group("/classes")
	cl.Use(authmw.RequireAuth())
	{
		adminOnly := authmw.RequireRole(user.RoleAdmin)
		anyStaff := authmw.RequireRole(staffOnly...)

		cl.POST("", adminOnly, classesHandler.Create)
		cl.PUT("/:id", adminOnly, classesHandler.Update)
		cl.DELETE("/:id", adminOnly, classesHandler.Delete)

		cl.GET("", anyStaff, classesHandler.List)
		cl.GET("/:id", anyStaff, classesHandler.Get)
		cl.POST("/:id/attendance", anyStaff, attendanceHandler.Mark)
		cl.GET("/:id/attendance", anyStaff, attendanceHandler.ListForClass)
	}

	sf := v1.Group("/staff")
	sf.Use(authmw.RequireAuth(), authmw.RequireRole(user.RoleAdmin))
	{
		sf.GET("", staffHandler.List)
		sf.POST("", staffHandler.Create)
		sf.DELETE("/:id", staffHandler.Deactivate)
	}

	return r
}
