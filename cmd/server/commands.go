package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"volunteer-hub/pkg/database"
	"volunteer-hub/pkg/jwt"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "应用所有未执行的迁移",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.connectDB(true)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "回滚迁移",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connectDB(false); err != nil {
				return err
			}
			sqlDB, err := app.db.DB()
			if err != nil {
				return err
			}
			return database.RollbackMigrations(sqlDB, steps, app.logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "回滚步数")

	cmd.AddCommand(up, down)
	return cmd
}

func finalizeCmd() *cobra.Command {
	var eventID string

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "结算指定活动：补记缺席、自动签退并置为 completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connectDB(false); err != nil {
				return err
			}
			app.connectRedis()

			svc, dispatcher := app.buildServices()
			stop := runDispatcher(dispatcher)
			defer stop()

			summary, err := svc.Attendance.FinalizeEvent(cmd.Context(), eventID)
			if err != nil {
				return fmt.Errorf("结算活动失败: %w", err)
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "活动 ID")
	cmd.MarkFlagRequired("event")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "结算所有已结束但未结算的活动",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.connectDB(false); err != nil {
				return err
			}
			app.connectRedis()

			svc, dispatcher := app.buildServices()
			stop := runDispatcher(dispatcher)
			defer stop()

			summaries, err := svc.Attendance.SweepDueEvents(cmd.Context())
			if err != nil {
				return fmt.Errorf("批量结算失败: %w", err)
			}
			app.logger.Info("批量结算完成", zap.Int("events", len(summaries)))
			return printJSON(summaries)
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "运维 Token 管理",
	}

	var userID, role string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "签发 Access Token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case jwt.RoleAdmin, jwt.RoleCoordinator, jwt.RoleVolunteer:
			default:
				return fmt.Errorf("未知角色: %s", role)
			}
			if ttl <= 0 {
				ttl = app.cfg.Auth.AccessTokenTTL
			}
			token, err := jwt.NewManager(&app.cfg.Auth).GenerateAccessTokenWithTTL(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "用户 ID（志愿者角色为 volunteer_id）")
	issue.Flags().StringVar(&role, "role", jwt.RoleAdmin, "角色: admin / coordinator / volunteer")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "有效期，缺省取 auth.access_token_ttl")
	issue.MarkFlagRequired("user")

	var token string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "吊销 Access Token（需要 Redis）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := jwt.NewManager(&app.cfg.Auth).ParseToken(token)
			if err != nil {
				return fmt.Errorf("解析 Token 失败: %w", err)
			}
			app.connectRedis()
			if app.rdb == nil {
				return fmt.Errorf("Redis 不可用，无法吊销 Token")
			}

			remaining := time.Until(claims.ExpiresAt.Time)
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := app.rdb.BlacklistToken(ctx, claims.ID, remaining); err != nil {
				return fmt.Errorf("吊销 Token 失败: %w", err)
			}
			app.logger.Info("Token 已吊销", zap.String("jti", claims.ID), zap.String("user_id", claims.UserID))
			return nil
		},
	}
	revoke.Flags().StringVar(&token, "token", "", "待吊销的 Access Token")
	revoke.MarkFlagRequired("token")

	cmd.AddCommand(issue, revoke)
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
