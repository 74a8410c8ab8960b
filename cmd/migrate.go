package cmd

import (
	"vidrelay/app/config"
	"vidrelay/app/database"
	"vidrelay/app/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "迁移数据库表结构并写入默认数据",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		log := logger.New(cfg.Log)
		defer log.Close()

		if err := database.Init(cfg, log); err != nil {
			log.Fatalf("数据库迁移失败: %v", err)
		}
		defer database.Close()
		log.Info("数据库迁移完成")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
