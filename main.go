package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/leafdoctor/internal/auth"
	"github.com/example/leafdoctor/internal/config"
	"github.com/example/leafdoctor/internal/diagnosis"
	"github.com/example/leafdoctor/internal/grpcclient"
	"github.com/example/leafdoctor/internal/handlers"
	"github.com/example/leafdoctor/internal/inference"
	"github.com/example/leafdoctor/internal/logging"
	"github.com/example/leafdoctor/internal/repository"
	"github.com/example/leafdoctor/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		logger.Fatal("failed to load model profile", zap.Error(err))
	}
	analyzer, demo, err := diagnosis.NewAnalyzer(profile, nil)
	if err != nil {
		logger.Fatal("invalid model profile", zap.Error(err))
	}

	db := initDatabase(ctx, cfg.DatabaseDSN, logger)
	repo := repository.NewDiagnosisRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	var cache usecase.Cache
	if cfg.CacheBackend == "memory" {
		logger.Info("using in-process result cache")
		cache = usecase.NewMemoryCache()
	} else {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
		defer redisClient.Close()
		cache = usecase.NewRedisCache(redisClient)
	}

	primary, closer := initProvider(ctx, cfg, len(profile.Labels), logger)
	if closer != nil {
		defer closer.Close()
	}
	predictor := inference.NewFallback(primary, demo, logger)

	uc := usecase.NewDiagnosisUseCase(repo, cache, predictor, analyzer, logger)

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize

	authMiddleware := auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience)
	if cfg.AuthDisabled {
		logger.Warn("authentication disabled, all requests run as anonymous")
		authMiddleware = auth.AnonymousMiddleware()
	}

	handlers.RegisterRoutes(r, uc, authMiddleware, handlers.Options{PublicURL: cfg.PublicURL})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	logger.Info("leaf doctor API listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("mode", string(predictor.Mode())),
	)
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// initProvider picks the remote classifier, then the local TFLite model. When
// neither can be initialized the service runs in demo mode.
func initProvider(ctx context.Context, cfg *config.Config, labels int, logger *zap.Logger) (inference.Provider, io.Closer) {
	if cfg.ClassifierAddr != "" {
		provider, conn, err := grpcclient.DialLeafClassifier(ctx, cfg.ClassifierAddr, cfg.ClassifierTTL, logger)
		if err == nil {
			return provider, conn
		}
		logger.Warn("leaf classifier unavailable", zap.Error(err))
	}
	if cfg.TFLiteModel != "" {
		provider, err := inference.NewTFLiteProvider(cfg.TFLiteModel, labels, cfg.TFLiteThreads, logger)
		if err == nil {
			return provider, provider
		}
		logger.Warn("tflite model unavailable", zap.Error(err))
	}
	logger.Warn("no inference provider available, demo mode activated")
	return nil, nil
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
