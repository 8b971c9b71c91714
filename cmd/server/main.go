package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/audit"
	"github.com/AnshRaj112/storefront-backend/internal/config"
	"github.com/AnshRaj112/storefront-backend/internal/database"
	"github.com/AnshRaj112/storefront-backend/internal/handlers"
	"github.com/AnshRaj112/storefront-backend/internal/logger"
	"github.com/AnshRaj112/storefront-backend/internal/middleware"
	"github.com/AnshRaj112/storefront-backend/internal/routes"
	"github.com/AnshRaj112/storefront-backend/internal/services"
	"github.com/AnshRaj112/storefront-backend/pkg/utils"
)

// catalog collections are public to read and cached; owned collections are
// scoped to the logged-in user.
var (
	catalogCollections = []string{"products", "categories", "coupons"}
	ownedCollections   = []string{"carts", "addresses"}
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	lg := logger.New(cfg.Environment, cfg.LogLevel)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	if err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB, lg); err != nil {
		lg.Error("Failed to connect to MongoDB", zap.Error(err))
		lg.Info("Troubleshooting: check MONGODB_URI, network access and that the cluster is running")
		return err
	}
	defer database.Disconnect()

	if err := database.EnsureIndexes(ctx, database.DB, lg); err != nil {
		return err
	}

	// Postgres backs the auth audit log only; without it auditing is off.
	var recorder *audit.Recorder
	if cfg.PostgresURI != "" {
		if err := database.ConnectPostgres(ctx, cfg.PostgresURI, lg); err != nil {
			lg.Warn("⚠️  PostgreSQL unavailable, auth audit log disabled", zap.Error(err))
		} else {
			defer database.DisconnectPostgres()
			recorder = audit.NewRecorder(database.PostgresDB)
		}
	} else {
		lg.Info("POSTGRES_URI not set, auth audit log disabled")
	}

	// Redis backs the catalog list cache only.
	var cache *services.CacheService
	if cfg.RedisURI != "" {
		if err := database.ConnectRedis(ctx, cfg.RedisURI, lg); err != nil {
			lg.Warn("⚠️  Redis unavailable, list cache disabled", zap.Error(err))
		} else {
			defer database.DisconnectRedis()
			cache = services.NewCacheService(database.RedisClient, cfg.CacheTTL)
		}
	} else {
		lg.Info("REDIS_URI not set, list cache disabled")
	}

	var uploader handlers.ImageUploader
	if cfg.CloudinaryConfigured() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			lg.Warn("Failed to initialize Cloudinary, file uploads will not be available", zap.Error(err))
		} else {
			uploader = cld
			lg.Info("✅ Cloudinary service initialized")
		}
	} else {
		lg.Warn("Cloudinary credentials not found, file uploads will not be available")
	}

	mailer, err := services.NewMailer(cfg, lg)
	if err != nil {
		return err
	}

	users := services.NewMongoUserStore(database.DB)
	authOpts := []services.AuthOption{
		services.WithLogger(lg),
		services.WithPublicURL(cfg.PublicURL),
	}
	var auditRec services.AuditRecorder
	var events handlers.AuthEvents
	if recorder != nil {
		auditRec, events = recorder, recorder
		authOpts = append(authOpts, services.WithAudit(recorder))
	}
	auth := services.NewAuthService(
		users,
		services.NewJWTSigner(cfg.JWTSecret, cfg.JWTExpiresIn, time.Now),
		utils.NewBcryptHasher(cfg.BcryptCost),
		mailer,
		authOpts...,
	)

	reviews := services.NewReviewService(
		services.NewMongoReviewStore(database.DB),
		services.NewRatingRecalculator(database.DB),
		cache,
		lg,
	)

	orders := services.NewOrderService(
		services.NewMongoOrderStore(database.DB),
		services.NewMongoInventory(database.DB),
		mailer,
		cache,
		lg,
		services.WithTrackingURL(cfg.PublicURL),
	)

	stats := handlers.NewStatsHandler(services.NewCatalogStats(database.DB), lg)
	var resources []routes.Resource
	for _, name := range catalogCollections {
		res := routes.Resource{
			Path:    name,
			Handler: handlers.NewResourceHandler(services.NewResourceStore(database.DB, name), lg, handlers.Cached(cache)),
			Catalog: true,
		}
		switch name {
		case services.ProductsCollection:
			res.Presets, res.Stats = handlers.ProductPresets(), stats.Products
		case services.CategoriesCollection:
			res.Presets, res.Stats = handlers.CategoryPresets(), stats.Categories
		}
		resources = append(resources, res)
	}
	for _, name := range ownedCollections {
		resources = append(resources, routes.Resource{
			Path:    name,
			Handler: handlers.NewResourceHandler(services.NewResourceStore(database.DB, name), lg, handlers.OwnedBy("user")),
		})
	}

	metrics := middleware.NewMetrics()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer(lg))
	r.Use(middleware.RequestLogger(lg, cfg.TrustProxy))
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	if cfg.IsProduction() {
		r.Use(middleware.HostCheck(publicHost(cfg.PublicURL)))
		lg.Info("✅ Production security enabled (HSTS, host check)")
	}

	routes.SetupRoutes(r, routes.Handlers{
		Sessions:  auth,
		Auth:      handlers.NewAuthHandler(auth, lg),
		Users:     handlers.NewUserHandler(services.NewUserService(users, auditRec, lg), events, lg),
		Reviews:   handlers.NewReviewHandler(reviews, lg),
		Orders:    handlers.NewOrderHandler(orders, lg),
		Upload:    handlers.NewUploadHandler(uploader, lg),
		Resources: resources,
		Metrics:   metrics,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("🚀 Storefront backend running", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// publicHost is the bare hostname of PUBLIC_URL, used for the host check.
func publicHost(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
