package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"farmassist-server-go/src/configs"
	"farmassist-server-go/src/core/gateway"
	"farmassist-server-go/src/core/normalize"
	"farmassist-server-go/src/core/providers/llm"
	"farmassist-server-go/src/core/types"
	"farmassist-server-go/src/core/utils"

	// 导入所有providers以确保init函数被调用
	_ "farmassist-server-go/src/core/providers/llm/ollama"
	_ "farmassist-server-go/src/core/providers/llm/openai"

	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("=== 上游连通性检查 ===")

	if err := godotenv.Load(); err != nil {
		log.Printf("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	config, path, err := configs.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("使用配置文件: %s", path)

	for _, name := range config.ResolveSecrets() {
		fmt.Printf("⚠️  环境变量未设置: %s\n", name)
	}

	logger := utils.NewConsoleLogger(config.Log.LogLevel, nil)

	name, llmConfig, ok := config.SelectedLLM()
	if !ok {
		log.Fatalf("未找到选中的LLM配置: %q", name)
	}
	fmt.Printf("选中的LLM: %s (type=%s, model=%s, vision_model=%s)\n",
		name, llmConfig.Type, llmConfig.ModelName, llmConfig.VisionModelName)

	provider, err := llm.Create(llmConfig.Type, llm.ConfigFromYAML(name, llmConfig))
	if err != nil {
		log.Fatalf("创建LLM提供者失败: %v", err)
	}
	defer provider.Cleanup()

	retryConfig := gateway.RetryConfigFrom(config.Proxy)
	fmt.Printf("重试配置: 次数=%d 初始延迟=%v 最大延迟=%v\n",
		retryConfig.Attempts, retryConfig.InitialDelay, retryConfig.MaxDelay)

	gw := gateway.New(provider, retryConfig, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result := gw.Complete(ctx, gateway.Call{
		Proxy:    "connectivity",
		Strategy: normalize.StrategyChat,
		Request: types.CompletionRequest{
			Messages:  []types.Message{{Role: types.RoleUser, Content: "Reply with OK"}},
			MaxTokens: 10,
		},
	})

	fmt.Printf("\n请求ID: %s\n", result.RequestID)
	fmt.Printf("  分类: %s\n", result.Kind)
	fmt.Printf("  上游状态码: %d\n", result.UpstreamStatus)
	fmt.Printf("  尝试次数: %d\n", result.Attempts)
	fmt.Printf("  耗时: %v\n", result.Latency)

	if result.Kind.IsFailure() || result.Kind == types.KindCanceled {
		fmt.Printf("\n❌ 连通性检查失败: %v\n", result.Err)
		os.Exit(1)
	}
	fmt.Printf("  回复: %v\n", result.Outcome.Value)
	fmt.Println("\n✅ 连通性检查通过！")
}
