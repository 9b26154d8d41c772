package monitor

import (
	"context"

	"farmassist-server-go/src/models"

	"gorm.io/gorm"
)

// Store 调用记录持久化接口
type Store interface {
	Save(ctx context.Context, inv *models.ProxyInvocation) error
}

// GormStore 基于gorm的调用记录存储
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建存储，db需已完成迁移
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Save 写入一条调用记录
func (s *GormStore) Save(ctx context.Context, inv *models.ProxyInvocation) error {
	return s.db.WithContext(ctx).Create(inv).Error
}

// Recent 查询某个代理最近的调用记录，proxy为空时查询全部
func (s *GormStore) Recent(ctx context.Context, proxy string, limit int) ([]models.ProxyInvocation, error) {
	var records []models.ProxyInvocation
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if proxy != "" {
		query = query.Where("proxy = ?", proxy)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
