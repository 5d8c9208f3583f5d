package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "reliefboard/docs"
	"reliefboard/internal/apiclient"
	"reliefboard/internal/config"
	"reliefboard/internal/contact"
	"reliefboard/internal/handlers"
	"reliefboard/internal/kml"
	"reliefboard/internal/middleware"
	"reliefboard/internal/pdf"
	"reliefboard/internal/query"
	"reliefboard/internal/realtime"
	"reliefboard/internal/repositories"
	"reliefboard/internal/routes"
	"reliefboard/internal/services"
	"reliefboard/internal/utils"
)

// App is the wired gateway.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	registry *services.Registry
	hub      *realtime.Hub
	db       *sql.DB
	snaps    repositories.SnapshotRepository
}

func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === DB (optional: only the warm-start snapshot lives there) ===
	var snapshots services.SnapshotStore
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		a.snaps = repositories.NewSnapshotRepository(db, cfg.Database.SnapshotTable)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = a.snaps.EnsureSchema(ctx)
		cancel()
		if err != nil {
			// стартуем без снимков, база может подняться позже
			logger.Warn("[app][db] snapshot table unavailable", zap.Error(err))
		}
		snapshots = a.snaps
	}

	// === Notifications ===
	var notifiers services.Notifiers
	tg, err := services.NewTelegramService(cfg.Telegram.Token, cfg.Telegram.ChatID, logger.Named("telegram"))
	if err != nil {
		a.Close()
		return nil, err
	}
	if tg != nil {
		notifiers = append(notifiers, tg)
	}
	if cfg.Email.SMTPHost != "" && len(cfg.Email.To) > 0 {
		notifiers = append(notifiers, services.NewEmailService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
			cfg.Email.To,
		))
	}

	// === Upstream + caches ===
	cacheOpts := query.Options{
		StaleTime: cfg.Cache.StaleTime,
		GCTime:    cfg.Cache.GCTime,
		Retry: query.RetryPolicy{
			MaxRetries: cfg.Cache.MaxRetries,
			BaseDelay:  cfg.Cache.RetryBase,
			MaxDelay:   cfg.Cache.RetryMax,
		},
		Logger:     logger.Named("query"),
		Registerer: reg,
	}
	base := apiclient.New(apiclient.Config{
		BaseURL:       cfg.API.BaseURL,
		Prefix:        cfg.API.Prefix,
		Timeout:       cfg.API.Timeout,
		RatePerSecond: cfg.API.RatePerSecond,
		Burst:         cfg.API.Burst,
	}, nil, &http.Client{}, logger.Named("api"))

	a.hub = realtime.NewHub(logger.Named("ws"))
	a.registry = services.NewRegistry(services.RegistryOptions{
		NewAPI:      func(token string) services.TaskAPI { return base.WithToken(token) },
		Cache:       cacheOpts,
		Notifier:    notifiers,
		Events:      a.hub,
		Snapshots:   snapshots,
		SessionIdle: cfg.Auth.SessionIdle,
		Logger:      logger.Named("tasks"),
	})

	tokens := utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := services.NewAuthService(cfg.Auth.Accounts, tokens, logger.Named("auth"))
	mapService := services.NewMapService(
		kml.NewLoader(cfg.Map.KMLSource, &http.Client{}, logger.Named("kml")),
		query.New(cacheOpts),
		logger.Named("map"),
	)
	dir, err := contact.LoadDirectory(cfg.Contacts.Path)
	if err != nil {
		a.Close()
		return nil, err
	}

	// === Handlers ===
	h := routes.Handlers{
		Auth:    handlers.NewAuthHandler(authService, a.registry, logger),
		Tasks:   handlers.NewTaskHandler(a.registry, logger),
		Map:     handlers.NewMapHandler(mapService),
		Contact: handlers.NewContactHandler(dir),
		Export:  handlers.NewExportHandler(a.registry, pdf.NewDocumentGenerator(cfg.PDF.FontPath), logger),
		Events:  handlers.NewEventsHandler(a.hub, logger),
		Health: handlers.NewHealthHandler(map[string]func() int{
			"sessions":   a.registry.Sessions,
			"ws_clients": a.hub.Clients,
		}),
	}

	// === Gin ===
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Named("http")))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.NewHTTPMetrics(reg).Middleware())
	router.Use(corsMiddleware(cfg.Server.CORSOrigins))

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Роуты (JWT/RBAC внутри SetupRoutes)
	routes.SetupRoutes(router, h, authService)
	a.router = router
	return a, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.router }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	bgCtx, stopBg := context.WithCancel(ctx)
	defer stopBg()
	go a.registry.Run(bgCtx)
	if a.snaps != nil {
		go a.trimSnapshots(bgCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("[app][http] listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("[app][http] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
	}
	stopBg()
	a.Close()
	return runErr
}

func (a *App) trimSnapshots(ctx context.Context) {
	t := time.NewTicker(10 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.snaps.Trim(ctx, a.cfg.Database.KeepSnapshots)
			if err != nil {
				a.logger.Warn("[app][snapshot][trim][err]", zap.Error(err))
				continue
			}
			if n > 0 {
				a.logger.Debug("[app][snapshot][trim]", zap.Int64("deleted", n))
			}
		}
	}
}

// Close releases websocket clients, background refetches and the database.
func (a *App) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.registry != nil {
		a.registry.Wait()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("[app][db] close", zap.Error(err))
		}
		a.db = nil
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(c *gin.Context) {
		origin := "*"
		if len(allowed) > 0 {
			origin = c.GetHeader("Origin")
			if !allowed[origin] {
				origin = ""
			}
			c.Writer.Header().Add("Vary", "Origin")
		}
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
