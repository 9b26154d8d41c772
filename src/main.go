package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"farmassist-server-go/src/analysis"
	"farmassist-server-go/src/chat"
	"farmassist-server-go/src/configs"
	"farmassist-server-go/src/configs/database"
	"farmassist-server-go/src/configs/server"
	"farmassist-server-go/src/core/auth"
	"farmassist-server-go/src/core/gateway"
	"farmassist-server-go/src/core/image"
	"farmassist-server-go/src/core/monitor"
	"farmassist-server-go/src/core/providers/llm"
	"farmassist-server-go/src/core/utils"
	"farmassist-server-go/src/tips"

	// 导入所有providers以确保init函数被调用
	_ "farmassist-server-go/src/core/providers/llm/ollama"
	_ "farmassist-server-go/src/core/providers/llm/openai"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// service 挂载到 /api 下的HTTP服务
type service interface {
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}

// components 启动时构建好的共享组件
type components struct {
	provider  llm.Provider
	gateway   *gateway.Gateway
	monitor   *monitor.Monitor
	images    *image.Processor
	authToken *auth.AuthToken
}

func LoadConfigAndLogger() (*configs.Config, *utils.Logger, error) {
	// 加载配置,默认使用.config.yaml
	config, configPath, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 初始化日志系统
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(fmt.Sprintf("日志系统初始化成功, 配置文件路径: %s", configPath))

	// 密钥缺失不阻止启动，请求时返回500和兜底结果
	for _, name := range config.ResolveSecrets() {
		logger.Warn("环境变量未设置，相关请求将返回兜底结果", map[string]interface{}{"env": name})
	}

	return config, logger, nil
}

// BuildProvider 根据selected_module.LLM创建提供者
func BuildProvider(config *configs.Config, logger *utils.Logger) (llm.Provider, error) {
	name, llmConfig, ok := config.SelectedLLM()
	if !ok {
		return nil, fmt.Errorf("未找到选中的LLM配置: %q", name)
	}

	provider, err := llm.Create(llmConfig.Type, llm.ConfigFromYAML(name, llmConfig))
	if err != nil {
		return nil, err
	}

	logger.Info("LLM提供者初始化成功", map[string]interface{}{
		"name":         name,
		"type":         llmConfig.Type,
		"model":        llmConfig.ModelName,
		"vision_model": llmConfig.VisionModelName,
	})
	return provider, nil
}

func buildComponents(config *configs.Config, logger *utils.Logger) (*components, error) {
	provider, err := BuildProvider(config, logger)
	if err != nil {
		return nil, err
	}

	// 初始化数据库连接，未设置DATABASE_URL时只在内存中统计
	db, dbType, err := database.InitDB(os.Getenv("DATABASE_URL"))
	if err != nil {
		return nil, err
	}
	var store monitor.Store
	if db != nil {
		store = monitor.NewGormStore(db)
		logger.Info("调用记录持久化已启用", map[string]interface{}{"db_type": dbType})
	}

	mon := monitor.New(config.Proxy.FailureAlertThreshold, store, logger)

	var authToken *auth.AuthToken
	if config.Server.Auth.Enabled {
		authToken, err = auth.NewAuthToken(config.Server.Auth.Secret)
		if err != nil {
			return nil, fmt.Errorf("已启用认证但未设置 %s: %w", config.Server.Auth.SecretEnv, err)
		}
	}

	return &components{
		provider:  provider,
		gateway:   gateway.New(provider, gateway.RetryConfigFrom(config.Proxy), mon, logger),
		monitor:   mon,
		images:    image.NewProcessor(&config.Security, logger),
		authToken: authToken,
	}, nil
}

func StartHttpServer(config *configs.Config, logger *utils.Logger, comps *components, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	// 初始化Gin引擎
	if config.Log.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(gateway.CORS(config.Proxy.CORSAllowedOrigin))

	// API路由全部挂载到/api前缀下
	apiGroup := router.Group("/api")
	services := []service{
		analysis.NewDefaultAnalysisService(comps.gateway, comps.images, comps.authToken, logger),
		tips.NewDefaultTipsService(comps.gateway, comps.authToken, logger),
		chat.NewDefaultChatService(comps.gateway, comps.authToken, logger),
		server.NewDefaultCfgService(config, comps.gateway, comps.monitor, comps.images, logger),
	}
	for _, svc := range services {
		if err := svc.Start(groupCtx, router, apiGroup); err != nil {
			return nil, err
		}
	}

	// HTTP Server（支持优雅关机）
	httpServer := &http.Server{
		Addr:              config.Server.IP + ":" + strconv.Itoa(config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("Gin 服务已启动，访问地址: http://%s", httpServer.Addr))

		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败", map[string]interface{}{"error": err.Error()})
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP 服务启动失败", map[string]interface{}{"error": err.Error()})
			return err
		}
		return nil
	})

	return httpServer, nil
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// 等待信号，或者服务自身出错退出
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case sig := <-sigChan:
		logger.Info(fmt.Sprintf("接收到系统信号: %v，开始优雅关闭服务", sig))
	case err := <-done:
		if err != nil {
			logger.Error("服务异常退出", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		return
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("服务关闭过程中出现错误", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		logger.Info("所有服务已优雅关闭")
	case <-time.After(15 * time.Second):
		logger.Error("服务关闭超时，强制退出")
		os.Exit(1)
	}
}

func main() {
	// 先加载 .env，密钥在读取配置时解析
	if err := godotenv.Load(); err != nil {
		fmt.Println("未找到 .env 文件，使用系统环境变量")
	}

	config, logger, err := LoadConfigAndLogger()
	if err != nil {
		fmt.Println("加载配置或初始化日志系统失败:", err)
		os.Exit(1)
	}
	defer logger.Close()

	comps, err := buildComponents(config, logger)
	if err != nil {
		logger.Error("初始化组件失败", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer comps.provider.Cleanup()
	// 等待调用记录写完再退出
	defer comps.monitor.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, groupCtx := errgroup.WithContext(ctx)

	if _, err := StartHttpServer(config, logger, comps, g, groupCtx); err != nil {
		logger.Error("启动 Http 服务失败", map[string]interface{}{"error": err.Error()})
		cancel()
		os.Exit(1)
	}

	GracefulShutdown(cancel, logger, g)

	logger.Info("程序已成功退出")
}
