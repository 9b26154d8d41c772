// Package main 为启用认证的部署签发设备令牌。
package main

import (
	"fmt"
	"os"
	"time"

	"farmassist-server-go/src/configs"
	"farmassist-server-go/src/core/auth"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	deviceID string
	tokenTTL time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "token",
	Short: "签发设备令牌",
	Long: `使用 server.auth.secret_env 指定的密钥为设备签发HS256令牌。

客户端请求时携带:
  Authorization: Bearer <token>`,
	RunE: runMint,
}

func init() {
	rootCmd.Flags().StringVar(&deviceID, "device", "", "设备ID，写入令牌的device_id")
	rootCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTokenTTL, "令牌有效期")
	_ = rootCmd.MarkFlagRequired("device")
}

func runMint(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "未找到 .env 文件，使用系统环境变量")
	}

	config, _, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if !config.Server.Auth.Enabled {
		fmt.Fprintln(os.Stderr, "⚠️  server.auth.enabled 为 false，服务端不会校验该令牌")
	}

	token, err := mintToken(os.Getenv(config.Server.Auth.SecretEnv), deviceID, tokenTTL)
	if err != nil {
		return fmt.Errorf("签发令牌失败 (%s): %w", config.Server.Auth.SecretEnv, err)
	}

	fmt.Println(token)
	return nil
}

// mintToken 签发令牌，ttl必须为正数
func mintToken(secret, device string, ttl time.Duration) (string, error) {
	if device == "" {
		return "", fmt.Errorf("device is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %v", ttl)
	}
	at, err := auth.NewAuthToken(secret)
	if err != nil {
		return "", err
	}
	return at.WithTTL(ttl).GenerateToken(device)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
