package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"auth-api/internal/config"
	apphttp "auth-api/internal/http"
	"auth-api/internal/password"
	"auth-api/internal/repository"
	"auth-api/internal/repository/postgres"
	"auth-api/internal/repository/sqlite"
	"auth-api/internal/service"
	"auth-api/internal/token"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	issuer, err := token.NewIssuer(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.TokenTTL())
	if err != nil {
		logger.Fatalf("%v: %v", config.ErrConfiguration, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openUserRepository(ctx, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer closeStore()

	hasher := password.NewBcryptHasher(cfg.Auth.BcryptCost)
	authService, err := service.NewAuthService(users, hasher, issuer)
	if err != nil {
		logger.Fatalf("build auth service: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := apphttp.NewRouter(apphttp.NewHandler(authService, users, logger))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"bcrypt_cost": hasher.Cost(),
			"token_ttl":   issuer.TTL().String(),
			"algorithm":   cfg.Auth.Algorithm,
		}).Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// sqlitePath reports the database file named by a sqlite:// or file: URL.
func sqlitePath(databaseURL string) (string, bool) {
	for _, scheme := range []string{"sqlite://", "file:"} {
		if path, ok := strings.CutPrefix(databaseURL, scheme); ok {
			return path, true
		}
	}
	return "", false
}

// openUserRepository picks the storage backend from the DATABASE_URL scheme.
// sqlite://path and file:path select the embedded SQLite store; anything else is handed to pgx.
func openUserRepository(ctx context.Context, databaseURL string, logger *logrus.Logger) (repository.UserRepository, func(), error) {
	if path, ok := sqlitePath(databaseURL); ok {
		if path == "" {
			return nil, nil, fmt.Errorf("%w: sqlite path is empty", config.ErrConfiguration)
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using sqlite database %s", path)
		return sqlite.NewUserRepository(db), func() { _ = db.Close() }, nil
	}

	pool, err := postgres.Open(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	cfg := pool.Config().ConnConfig
	logger.Infof("using postgres database %s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)
	return postgres.NewUserRepository(pool), pool.Close, nil
}
