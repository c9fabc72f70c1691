package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"volunteer-hub/internal/api/handler"
	"volunteer-hub/internal/api/router"
	"volunteer-hub/internal/metrics"
	"volunteer-hub/internal/service"
	"volunteer-hub/pkg/jwt"
)

func serveCmd() *cobra.Command {
	var sweepInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(sweepInterval)
		},
	}
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 5*time.Minute, "自动结算已结束活动的间隔，0 表示关闭")
	return cmd
}

func runServe(sweepInterval time.Duration) error {
	cfg, logger := app.cfg, app.logger

	logger.Info("应用启动中...",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	if err := app.connectDB(true); err != nil {
		return err
	}
	app.connectRedis()

	// ── 指标 ──
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)
	metrics.SetBuildInfo(version)

	// ── 依赖注入: Repository → Service → Handler ──
	svc, dispatcher := app.buildServices()
	stopDispatcher := runDispatcher(dispatcher)
	defer stopDispatcher()

	jwtMgr := jwt.NewManager(&cfg.Auth)
	h := handler.NewHandler(svc)

	opts := router.Options{
		Metrics: router.MetricsHandler(reg),
		Ready: func() error {
			sqlDB, err := app.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
	}
	if app.rdb != nil {
		opts.Blacklist = app.rdb
		opts.Limiter = app.rdb
	}
	engine := router.Setup(cfg, h, jwtMgr, opts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sweepInterval > 0 {
		go runSweeper(ctx, svc.Attendance, sweepInterval, logger)
	}

	// ── 启动 HTTP 服务器（优雅关闭） ──
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP 服务器异常: %w", err)
	case <-ctx.Done():
	}

	logger.Info("收到关闭信号，开始优雅关闭...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已关闭")
	return nil
}

// runSweeper 定期结算已结束的活动
func runSweeper(ctx context.Context, svc service.AttendanceService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summaries, err := svc.SweepDueEvents(ctx)
			if err != nil {
				logger.Error("自动结算失败", zap.Error(err))
				continue
			}
			if len(summaries) > 0 {
				logger.Info("自动结算完成", zap.Int("events", len(summaries)))
			}
		}
	}
}
