package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"diagramdb/internal/auth"
	"diagramdb/internal/config"
	"diagramdb/internal/database"
	"diagramdb/internal/handlers"
	"diagramdb/internal/middlewares"
	"diagramdb/internal/realtime"
	"diagramdb/internal/routes"
	"diagramdb/internal/services"
	"diagramdb/internal/storage"
	"diagramdb/internal/storage/postgres"
	"diagramdb/internal/storage/sqlite"
)

func NewServer() *http.Server {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.TokenSecret == "" {
		log.Fatal("ACCESS_TOKEN_SECRET environment variable is required")
	}

	pool := newPool(cfg)

	localStore, err := sqlite.Open(cfg.LocalStorePath, "")
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}

	broker := newBroker(cfg)

	resolve := func(user *auth.Identity) storage.Store {
		var remote storage.Store
		if pool != nil && user != nil {
			remote = postgres.NewStore(pool, user.ID)
		}
		return storage.Select(remote, localStore, pool != nil, user)
	}

	// Dependency injection
	verifier := auth.NewVerifier([]byte(cfg.TokenSecret))
	diagramService := services.NewDiagramService(resolve)

	realtimeOpts := []services.RealtimeOption{services.WithKeepalive(cfg.PresenceKeepalive)}
	if cfg.Debug {
		realtimeOpts = append(realtimeOpts, services.WithLogger(log.New(os.Stderr, "realtime: ", log.LstdFlags)))
	}
	realtimeService := services.NewRealtimeService(broker, realtimeOpts...)

	diagramHandler := handlers.NewDiagramHandler(diagramService)
	contentHandler := handlers.NewContentHandler(diagramService)
	configHandler := handlers.NewConfigHandler(diagramService)
	realtimeHandler := handlers.NewRealtimeHandler(realtimeService)

	router := gin.Default()
	router.Use(newCORS(cfg))

	routes.RegisterRoutes(
		router,
		middlewares.Authenticate(verifier),
		diagramHandler,
		contentHandler,
		configHandler,
		realtimeHandler,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

// newPool connects to postgres and runs migrations, or returns nil when the
// remote backend is not configured and storage should stay local.
func newPool(cfg config.Config) *pgxpool.Pool {
	if !cfg.RemoteEnabled() {
		log.Println("DB_HOST not set, using local store only")
		return nil
	}

	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.RunMigrations(pool); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	return pool
}

func newBroker(cfg config.Config) realtime.Broker {
	if cfg.RedisAddr == "" {
		log.Println("REDIS_ADDR not set, using in-process presence broker")
		return realtime.NewMemoryBroker()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	// Fail fast with a clear message
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
	}
	log.Println("Connected to Redis successfully")

	return realtime.NewRedisBroker(rdb)
}

func newCORS(cfg config.Config) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	return cors.New(corsConfig)
}
