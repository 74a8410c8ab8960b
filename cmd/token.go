package cmd

import (
	"fmt"

	"vidrelay/app/auth"
	"vidrelay/app/config"

	"github.com/spf13/cobra"
)

var tokenAdminID int64

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "为管理员签发管理接口令牌",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if tokenAdminID == 0 && len(cfg.Bot.AdminIDs) > 0 {
			tokenAdminID = cfg.Bot.AdminIDs[0]
		}
		token, err := auth.NewJWTService(cfg).GenerateToken(tokenAdminID)
		if err != nil {
			return fmt.Errorf("签发令牌失败: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenAdminID, "admin", 0, "管理员 Telegram ID，默认取配置中的第一个")
	rootCmd.AddCommand(tokenCmd)
}
