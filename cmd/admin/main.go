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
	"fortirent-auth/internal/core/config"
	"fortirent-auth/internal/core/database"
	"fortirent-auth/internal/core/logger"
	"fortirent-auth/internal/core/server"
	"fortirent-auth/internal/domain"
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

	// DB 连接（失败直接 Fatal）；后台不负责迁移
	users := mustOpenUsers(cfg, log)

	// 依赖：会话校验与用户端共用同一套签名配置
	jwter := &auth.JWTer{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		SessionTTL: cfg.JWT.SessionTTL,
		ResetTTL:   cfg.JWT.ResetTTL,
	}
	hasher, err := utils.NewPasswordHasher(cfg.Auth.HashScheme, cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatal("password hasher", zap.Error(err))
	}
	sender, err := mailer.New(cfg.Mail, log)
	if err != nil {
		log.Fatal("mailer", zap.Error(err))
	}
	policy := service.Policy{
		MinPasswordLength: cfg.Auth.PasswordMinLength,
		MaxPasswordLength: utils.MaxPasswordBytes,
		MaxPasswordAge:    cfg.Auth.PasswordMaxAge,
		HistorySize:       cfg.Auth.PasswordHistory,
		ResetBaseURL:      cfg.App.ClientURL,
	}
	authSvc := service.NewAuthService(users, hasher, jwter, sender, policy, log.Named("auth"))
	dir := service.NewUserDirectory(users)

	// 路由（后台端）
	r := router.NewAdminEngine(log, server.Options{
		Name: cfg.App.Name + "-admin",
		Mode: server.ModeFor(cfg.App.Env),
	}, authSvc, dir)

	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(addr, r, 5*time.Second, 10*time.Second, 60*time.Second)

	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("admin api start FAILED", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("admin api stopped gracefully")
}

func mustOpenUsers(cfg *config.Config, l *zap.Logger) domain.UserRepository {
	if cfg.DB.Driver == "memory" {
		l.Warn("admin api on in-memory store sees no users from the auth api")
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
	return repo.NewUserRepo(db)
}
