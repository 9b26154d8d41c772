package server

import (
	"context"

	"github.com/gin-gonic/gin"
)

// CfgService 运行状态服务接口
type CfgService interface {
	Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error
}
