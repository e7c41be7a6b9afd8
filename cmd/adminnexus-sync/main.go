package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Babylonias/adminnexus-portal/internal/app"
	"github.com/Babylonias/adminnexus-portal/internal/config"
	"github.com/Babylonias/adminnexus-portal/internal/domain"
	"github.com/Babylonias/adminnexus-portal/internal/gateway"

	logpkg "github.com/Babylonias/adminnexus-portal/common/logger"

	"go.uber.org/zap"
)

func main() {
	var (
		once       = flag.Bool("once", false, "Sync every collection once (and export if EXPORT_PATH is set), then exit")
		login      = flag.String("login", "", "Log in with this email (password read from ADMIN_PASSWORD) and store the token")
		logout     = flag.Bool("logout", false, "Remove the stored token and exit")
		purgeCache = flag.Bool("purge-cache", false, "Delete all collection snapshots from redis and exit")
		whoami     = flag.Bool("whoami", false, "Print the profile of the authenticated user and exit")
		changePass = flag.Bool("change-password", false, "Change the current user's password (ADMIN_PASSWORD -> NEW_PASSWORD) and exit")
	)
	flag.Parse()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "adminnexus-sync")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 创建服务
	svc, err := app.NewService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create sync service", zap.Error(err))
	}

	// 一次性命令
	if *login != "" || *logout || *purgeCache || *whoami || *changePass || *once {
		code := runCommand(svc, log, command{
			email:          *login,
			logout:         *logout,
			purgeCache:     *purgeCache,
			whoami:         *whoami,
			changePassword: *changePass,
		})
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = svc.Stop(stopCtx)
		cancel()
		_ = log.Sync()
		os.Exit(code)
	}

	log.Info("Starting adminnexus-sync service")

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 启动服务（在 goroutine 中）
	errChan := make(chan error, 1)
	go func() {
		if err := svc.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// 等待信号或错误
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
		cancel()
	}

	// 停止服务
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil {
		log.Error("Error stopping service", zap.Error(err))
	}

	log.Info("Service stopped")
}

type command struct {
	email          string
	logout         bool
	purgeCache     bool
	whoami         bool
	changePassword bool
}

// runCommand 执行一次性命令，返回进程退出码
func runCommand(svc *app.Service, log *zap.Logger, cmd command) int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch {
	case cmd.email != "":
		if _, err := svc.Session().Login(ctx, cmd.email, os.Getenv("ADMIN_PASSWORD")); err != nil {
			log.Error("Login failed", zap.String("reason", gateway.UserMessage(err)), zap.Error(err))
			return 1
		}
	case cmd.whoami:
		me, err := svc.Accounts().Profile(ctx)
		if err != nil {
			log.Error("Failed to load profile", zap.String("reason", gateway.UserMessage(err)), zap.Error(err))
			return 1
		}
		fmt.Printf("%s <%s> (id %s)\n", me.DisplayName(), me.Email, me.ID)
	case cmd.changePassword:
		err := svc.Accounts().ChangePassword(ctx, domain.PasswordChange{
			CurrentPassword: os.Getenv("ADMIN_PASSWORD"),
			NewPassword:     os.Getenv("NEW_PASSWORD"),
		})
		if err != nil {
			log.Error("Password change failed", zap.String("reason", gateway.UserMessage(err)), zap.Error(err))
			return 1
		}
		log.Info("Password changed")
	case cmd.logout:
		if err := svc.Session().Logout(ctx); err != nil {
			log.Error("Logout failed", zap.Error(err))
			return 1
		}
	case cmd.purgeCache:
		n, err := svc.PurgeSnapshots(ctx)
		if err != nil {
			log.Error("Failed to purge snapshots", zap.Error(err))
			return 1
		}
		log.Info("Snapshots purged", zap.Int("count", n))
	default:
		if err := svc.SyncOnce(ctx); err != nil {
			log.Error("Sync failed", zap.String("reason", gateway.UserMessage(err)), zap.Error(err))
			return 1
		}
	}
	return 0
}
