package main

import (
	"fmt"

	"github.com/bitfantasy/mojing/internal/middleware"
	"github.com/spf13/cobra"
)

var (
	tokenUserID string
	tokenName   string
	tokenRoles  []string
	tokenPerms  []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发访问令牌（运维/联调用）",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is not configured")
		}
		token, err := middleware.IssueToken(cfg.JWT.Secret, cfg.JWT.Issuer, tokenUserID, tokenName,
			tokenRoles, tokenPerms, cfg.JWT.AccessTokenExpire)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "admin", "用户 ID")
	tokenCmd.Flags().StringVar(&tokenName, "name", "管理员", "显示名，出库单 operator 缺省值")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "roles", []string{"admin"}, "角色")
	tokenCmd.Flags().StringSliceVar(&tokenPerms, "perms", []string{"*"}, "权限")
}
