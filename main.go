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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huifen-rgb/vibe-coding-remover/config"
	"github.com/huifen-rgb/vibe-coding-remover/handler"
	"github.com/huifen-rgb/vibe-coding-remover/service"
	"github.com/huifen-rgb/vibe-coding-remover/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting matte server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.Int("display_width", cfg.Matte.DisplayWidth))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化Redis，连接失败时不使用缓存
	var cache service.ResultCache
	if cfg.Redis.Enabled {
		redisService := service.NewRedisService(&cfg.Redis)
		defer redisService.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisService.Ping(pingCtx)
		cancel()
		if err != nil {
			utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			utils.Logger.Info("redis connected successfully")
			cache = redisService
		}
	}

	store := service.NewSessionStore(cfg.Matte.SessionTTL, cfg.Matte.MaxSessions)
	go pruneSessions(ctx, store, cfg.Matte.SessionTTL)

	matteService := service.NewMatteService(&cfg.Matte, cache)
	sessionHandler := handler.NewSessionHandler(cfg, store, matteService)

	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(sessionHandler, handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		BuildID:   BuildID,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.Logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Logger.Fatal("failed to start server", zap.Error(err))
	}
	utils.Logger.Info("server stopped")
}

// pruneSessions 定期清理过期会话
func pruneSessions(ctx context.Context, store *service.SessionStore, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Prune()
		}
	}
}
