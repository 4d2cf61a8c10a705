package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtoyanMikhail/deviceauth/internal/auth"
	"github.com/AtoyanMikhail/deviceauth/internal/cache"
	"github.com/AtoyanMikhail/deviceauth/internal/config"
	"github.com/AtoyanMikhail/deviceauth/internal/handler"
	"github.com/AtoyanMikhail/deviceauth/internal/hasher"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/AtoyanMikhail/deviceauth/internal/metrics"
	"github.com/AtoyanMikhail/deviceauth/internal/repository"
	"github.com/AtoyanMikhail/deviceauth/internal/storage"
	"github.com/AtoyanMikhail/deviceauth/internal/token"
	"github.com/AtoyanMikhail/deviceauth/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal(err.Error())
	}

	logger.Initialize(os.Stdout)
	l := logger.Global()
	l.SetLevel(logger.ParseLevel(cfg.Log.Level))
	defer l.Sync()

	store, err := repository.NewPostgresStore(cfg.Database, l)
	if err != nil {
		l.Fatal("Failed to connect to database", logger.Error(err))
	}
	defer store.Close()

	if err := store.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		l.Fatal("Failed to run migrations", logger.Error(err))
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis, l)
	if err != nil {
		l.Fatal("Failed to connect to Redis", logger.Error(err))
	}
	defer redisCache.Close()

	objects, err := storage.NewS3Storage(cfg.Storage, l)
	if err != nil {
		l.Fatal("Failed to create object storage", logger.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	codec := token.NewCodec(
		token.DomainConfig{Secret: cfg.JWT.AccessSecret, TTL: cfg.JWT.AccessTokenTTL.Std()},
		token.DomainConfig{Secret: cfg.JWT.RefreshSecret, TTL: cfg.JWT.RefreshTokenTTL.Std()},
	)

	manager := auth.NewManager(store, hasher.NewBcrypt(cfg.Hasher.Cost), codec, objects, m, l)
	gate := auth.NewGate(store, codec, m, l)
	avatarURLs := cache.NewAvatarURLCache(redisCache, avatarURLTTL(cfg), l)
	profiles := user.NewService(store, objects, avatarURLs, m, l)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.New(manager, profiles, gate, m, l, cfg.Server.MaxUploadBytes).Router()
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	router.GET("/ready", func(c *gin.Context) {
		if err := redisCache.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORS.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		l.Info("Server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Server error", logger.Error(err))
		}
	}()

	<-done
	l.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error("Forced shutdown", logger.Error(err))
		return
	}
	l.Info("Server stopped gracefully")
}

// avatarURLTTL keeps cached URLs from outliving the presigned URLs they hold.
func avatarURLTTL(cfg *config.Config) time.Duration {
	ttl, presign := cfg.Redis.TTL.Std(), cfg.Storage.PresignTTL.Std()
	if ttl >= presign {
		return presign * 5 / 6
	}
	return ttl
}
