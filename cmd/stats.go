package cmd

import (
	"context"
	"fmt"
	"time"

	"vidrelay/app/config"
	"vidrelay/app/database"
	"vidrelay/app/logger"
	"vidrelay/app/service"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "打印累计与最近 24 小时的统计",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := logger.New(cfg.Log)
		defer log.Close()

		if err := database.Init(cfg, log); err != nil {
			return err
		}
		defer database.Close()

		ctx := context.Background()
		stats := service.NewStatsService(database.GetDB())
		users := service.NewUserService(database.GetDB(), cfg.Bot.DefaultLanguage, log)

		global, err := stats.Global(ctx)
		if err != nil {
			return fmt.Errorf("读取统计失败: %w", err)
		}
		day, err := stats.Since(ctx, time.Now().Add(-24*time.Hour))
		if err != nil {
			return fmt.Errorf("读取统计失败: %w", err)
		}
		count, err := users.Count(ctx)
		if err != nil {
			return fmt.Errorf("读取用户数失败: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "用户: %d\n", count)
		fmt.Fprintf(out, "累计: %d 个视频, %.2f MB, %.1f 秒\n",
			global.TotalVideos, float64(global.TotalBytes)/(1<<20), float64(global.TotalMillis)/1000)
		fmt.Fprintf(out, "24 小时: %d 个视频, %.2f MB\n", day.Videos, float64(day.TotalBytes)/(1<<20))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
