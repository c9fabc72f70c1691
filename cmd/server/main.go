package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"volunteer-hub/config"
	"volunteer-hub/internal/repository"
	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/database"
	"volunteer-hub/pkg/lock"
	applogger "volunteer-hub/pkg/logger"
	"volunteer-hub/pkg/redis"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

// App 各子命令共享的依赖
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	rdb    *redis.Client // Redis 不可用时为 nil
}

var (
	configPath string
	app        *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "volunteer-hub",
		Short:         "志愿者-活动匹配与出勤管理服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（默认 ./config/config.yaml）")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(finalizeCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// initApp 加载配置并初始化日志；数据库与 Redis 由子命令按需连接
func initApp() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	app = &App{cfg: cfg, logger: logger}
	return nil
}

// connectDB 连接数据库，migrate=true 时执行迁移
func (a *App) connectDB(migrate bool) error {
	db, err := database.NewDB(&a.cfg.Database, a.cfg.Log.Level, a.logger)
	if err != nil {
		return err
	}
	a.db = db

	if migrate {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
		}
		if err := database.RunMigrations(sqlDB, a.logger); err != nil {
			return err
		}
	}
	return nil
}

// connectRedis Redis 可选：连接失败时降级运行，不中断启动
func (a *App) connectRedis() {
	rdb, err := redis.NewClient(&a.cfg.Redis, a.logger)
	if err != nil {
		a.logger.Warn("Redis 连接失败，信誉分缓存、分布式锁、Token 吊销与限流将不可用", zap.Error(err))
		return
	}
	a.rdb = rdb
}

// buildServices 组装 Repository → Service，返回通知派发器供调用方启动
func (a *App) buildServices() (*service.Service, *service.NotificationDispatcher) {
	repo := repository.NewRepository(a.db)
	dispatcher := service.NewNotificationDispatcher(repo, a.cfg.Notification.QueueSize, a.logger)

	// 接口字段只在依赖存在时赋值，避免带类型的 nil
	deps := service.Deps{Notifier: dispatcher}
	var remote lock.RemoteLocker
	if a.rdb != nil {
		deps.Cache = a.rdb
		remote = a.rdb
	}
	deps.Locker = lock.NewPairLocker(remote, a.cfg.Attendance.LockTimeout, a.cfg.Attendance.LockTTL, a.logger)

	return service.NewService(a.cfg, repo, deps, a.logger), dispatcher
}

// runDispatcher 启动通知派发器，返回的 stop 会等待队列投递完毕
func runDispatcher(d *service.NotificationDispatcher) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (a *App) close() {
	if a == nil {
		return
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	_ = a.logger.Sync()
}
