package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fortirent-auth/internal/core/auth"
	"fortirent-auth/internal/core/cache"
	"fortirent-auth/internal/core/config"
	"fortirent-auth/internal/core/database"
	"fortirent-auth/internal/core/logger"
	"fortirent-auth/internal/core/server"
	"fortirent-auth/internal/domain"
	"fortirent-auth/internal/events"
	"fortirent-auth/internal/mailer"
	"fortirent-auth/internal/repo"
	"fortirent-auth/internal/service"
	"fortirent-auth/internal/transport/http/router"
	"fortirent-auth/pkg/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	// 存储（失败会直接 Fatal）
	users := mustOpenUsers(cfg, log)

	hasher, err := utils.NewPasswordHasher(cfg.Auth.HashScheme, cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatal("password hasher", zap.String("scheme", cfg.Auth.HashScheme), zap.Error(err))
	}

	// JWT
	jwter := &auth.JWTer{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		SessionTTL: cfg.JWT.SessionTTL,
		ResetTTL:   cfg.JWT.ResetTTL,
	}

	sender, err := mailer.New(cfg.Mail, log)
	if err != nil {
		log.Fatal("mailer", zap.String("driver", cfg.Mail.Driver), zap.Error(err))
	}

	opts := []service.Option{service.WithResetTTL(cfg.JWT.ResetTTL)}

	// Redis 可选：一次性重置令牌 + 重置邮件限流
	if cfg.Redis.Addr != "" {
		rc := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis unavailable, reset tokens stay reusable until expiry", zap.Error(err))
		} else {
			opts = append(opts, service.WithLedger(rc), service.WithThrottle(rc))
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
		cancel()
		defer rc.Close()
	}

	// NATS 可选：账号事件
	if cfg.NATS.URL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, cfg.App.Name)
		if err != nil {
			log.Warn("nats unavailable, events disabled", zap.Error(err))
		} else {
			opts = append(opts, service.WithEvents(pub))
			defer pub.Close()
			log.Info("nats connected", zap.String("url", cfg.NATS.URL))
		}
	}

	policy := service.Policy{
		MinPasswordLength:   cfg.Auth.PasswordMinLength,
		MaxPasswordLength:   utils.MaxPasswordBytes,
		MaxPasswordAge:      cfg.Auth.PasswordMaxAge,
		HistorySize:         cfg.Auth.PasswordHistory,
		ResetBaseURL:        cfg.App.ClientURL,
		ResetThrottleLimit:  cfg.Auth.ResetThrottleLimit,
		ResetThrottleWindow: cfg.Auth.ResetThrottleWindow,
	}
	svc := service.NewAuthService(users, hasher, jwter, sender, policy, log.Named("auth"), opts...)

	// 路由（用户端）
	r := router.NewAPIEngine(log, server.Options{
		Name:        cfg.App.Name,
		Mode:        server.ModeFor(cfg.App.Env),
		CORSOrigins: cfg.App.CORSOrigins,
	}, svc)

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("auth api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
		zap.String("mail_driver", cfg.Mail.Driver),
		zap.String("hash_scheme", cfg.Auth.HashScheme),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("auth api start FAILED", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("auth api stopped gracefully")
}

func mustOpenUsers(cfg *config.Config, l *zap.Logger) domain.UserRepository {
	if cfg.DB.Driver == "memory" {
		l.Warn("using in-memory user store, data is lost on restart")
		return repo.NewMemoryUserRepo()
	}
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	}, l)
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	// 自动迁移
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			l.Fatal("automigrate failed", zap.Error(err))
		}
		l.Info("automigrate done")
	}
	return repo.NewUserRepo(db)
}
