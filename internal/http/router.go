package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/swiftloan/api/internal/auth"
	"github.com/swiftloan/api/internal/cache"
	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/http/handlers"
	"github.com/swiftloan/api/internal/http/middlewares"
	"github.com/swiftloan/api/internal/observability"
	"github.com/swiftloan/api/internal/queue/redisclient"
	"github.com/swiftloan/api/internal/repo/postgres"
	"github.com/swiftloan/api/internal/storage"
)

const serviceName = "swiftloan-api"

// localCache adapts the in-process TTL cache to the dashboard cache
// interface used when Redis is absent.
type localCache struct {
	c *cache.Cache
}

func (l localCache) GetString(ctx context.Context, key string) (string, bool, error) {
	v, ok := l.c.Get(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (l localCache) SetString(ctx context.Context, key, val string, ttl time.Duration) error {
	l.c.Set(key, val)
	return nil
}

type RouterDeps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redisclient.Client // nil when not configured
	Prom     *observability.Prom
	PromReg  *prometheus.Registry
	JWT      *auth.Manager
	Uploader storage.Uploader
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(10 << 20))
	r.Use(middlewares.RequireJSON())
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	if d.Cfg.OTELEndpoint != "" {
		r.Use(otelgin.Middleware(serviceName))
	}

	authMW := middlewares.NewAuthMiddleware(d.JWT)
	r.Use(authMW.Gate())

	// repositories
	usersRepo := postgres.NewUsersRepo(d.Pool, d.Prom)
	loansRepo := postgres.NewLoansRepo(d.Pool, d.Prom)
	ticketsRepo := postgres.NewTicketsRepo(d.Pool, d.Prom)
	jobsRepo := postgres.NewJobsRepo(d.Pool, d.Prom)
	statsRepo := postgres.NewStatsRepo(d.Pool, d.Prom)

	// health
	pingDB := func() error {
		if d.Pool == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		return d.Pool.Ping(ctx)
	}
	var pingRedis func() error
	if d.Redis != nil {
		pingRedis = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			return d.Redis.Ping(ctx)
		}
	}

	health := handlers.NewHealthHandler(pingDB, pingRedis)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.PromReg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.PromReg, promhttp.HandlerOpts{})))
	}

	// handlers
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, d.JWT, d.Cfg)
	usersHandler := handlers.NewUsersHandler(usersRepo)
	loansHandler := handlers.NewLoansHandler(loansRepo)
	adminLoans := handlers.NewAdminLoansHandler(loansRepo, jobsRepo)
	supportHandler := handlers.NewSupportHandler(ticketsRepo)
	adminSupport := handlers.NewAdminSupportHandler(ticketsRepo, jobsRepo)
	uploadHandler := handlers.NewUploadHandler(d.Uploader, d.Prom)
	adminJobs := handlers.NewAdminJobsHandler(jobsRepo)

	// dashboard aggregation is cached in Redis; without Redis an
	// in-process TTL cache still spares the fan-out queries
	var dashCache handlers.DashboardCache = localCache{c: cache.New(30 * time.Second)}
	if d.Redis != nil {
		dashCache = d.Redis
	}
	dashboard := handlers.NewDashboardHandler(statsRepo, usersRepo, loansRepo, dashCache)

	// login and registration take the brunt of credential stuffing
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)

	authGroup := r.Group("/api/auth")
	authGroup.Use(authLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/logout", authHandler.Logout)
	}

	loanGroup := r.Group("/api/loan")
	loanGroup.Use(authMW.RequireAuth())
	{
		loanGroup.POST("/apply", loansHandler.Apply)
		loanGroup.GET("/status", loansHandler.Status)
		loanGroup.PUT("/repay/:id", loansHandler.Repay)
		loanGroup.PUT("/withdraw/:id", loansHandler.Withdraw)
	}

	supportGroup := r.Group("/api/support")
	supportGroup.Use(authMW.RequireAuth())
	{
		supportGroup.POST("/create", supportHandler.Create)
		supportGroup.GET("/tickets", supportHandler.ListMine)
		supportGroup.GET("/tickets/:id", supportHandler.GetMine)
	}

	userGroup := r.Group("/api/user")
	userGroup.Use(authMW.RequireAuth())
	{
		userGroup.GET("/me", usersHandler.Me)
		userGroup.PUT("/update", usersHandler.Update)
		userGroup.GET("/dashboard", dashboard.User)
	}

	r.POST("/api/upload", authMW.RequireAuth(), uploadHandler.Upload)

	adminGroup := r.Group("/api/admin")
	adminGroup.Use(authMW.RequireAuth(), authMW.RequireRole("admin"))
	{
		adminGroup.GET("/dashboard", dashboard.Admin)
		adminGroup.GET("/user", usersHandler.AdminList)

		adminGroup.GET("/loans", adminLoans.List)
		adminGroup.GET("/loans/:id", adminLoans.Get)
		adminGroup.PUT("/loans/:id", adminLoans.Decide)

		adminGroup.GET("/support", adminSupport.List)
		adminGroup.GET("/support/:id", adminSupport.Get)
		adminGroup.POST("/support/:id/reply", adminSupport.Reply)
		adminGroup.PUT("/support/:id", adminSupport.Update)

		adminGroup.GET("/jobs", adminJobs.List)
		adminGroup.GET("/jobs/:id", adminJobs.GetByID)
		adminGroup.POST("/jobs/:id/retry", adminJobs.Retry)
	}

	return r
}
