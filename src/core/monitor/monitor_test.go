package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"farmassist-server-go/src/core/types"
	"farmassist-server-go/src/core/utils"
	"farmassist-server-go/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func invocation(id int, proxy string, kind types.Kind) *models.ProxyInvocation {
	return &models.ProxyInvocation{
		RequestID: fmt.Sprintf("req-%s-%d", proxy, id),
		Proxy:     proxy,
		Kind:      string(kind),
	}
}

func TestMonitor_AlertsOncePerStreak(t *testing.T) {
	var out bytes.Buffer
	m := New(3, nil, utils.NewConsoleLogger("error", &out))

	for i := 0; i < 5; i++ {
		m.Record(invocation(i, "tips", types.KindUpstream))
	}
	stats := m.Snapshot()["tips"]
	assert.Equal(t, 5, stats.ConsecutiveFailures)
	assert.Equal(t, 1, stats.Alerts)
	assert.Equal(t, 1, strings.Count(out.String(), "代理连续失败"))
	assert.Equal(t, []string{"tips"}, m.Degraded())

	m.Record(invocation(10, "tips", types.KindNone))
	assert.Empty(t, m.Degraded())
	assert.Equal(t, 0, m.Snapshot()["tips"].ConsecutiveFailures)

	for i := 20; i < 23; i++ {
		m.Record(invocation(i, "tips", types.KindRateLimited))
	}
	assert.Equal(t, 2, m.Snapshot()["tips"].Alerts)
}

func TestMonitor_ConfigErrorAlertsImmediately(t *testing.T) {
	m := New(10, nil, utils.NewConsoleLogger("error", nil))
	m.Record(invocation(1, "chat", types.KindConfig))

	stats := m.Snapshot()["chat"]
	assert.Equal(t, 1, stats.Alerts)
	assert.EqualValues(t, 1, stats.ConfigErrors)
	assert.Equal(t, []string{"chat"}, m.Degraded())
}

func TestMonitor_Counters(t *testing.T) {
	m := New(100, nil, utils.NewConsoleLogger("error", nil))

	kinds := []types.Kind{types.KindNone, types.KindNone, types.KindRateLimited, types.KindQuota, types.KindUpstream, types.KindCanceled}
	for i, kind := range kinds {
		inv := invocation(i, "analysis", kind)
		inv.Fallback = kind != types.KindNone || i == 1
		m.Record(inv)
	}

	stats := m.Snapshot()["analysis"]
	assert.EqualValues(t, 6, stats.Total)
	assert.EqualValues(t, 2, stats.Success)
	assert.EqualValues(t, 5, stats.Fallback)
	assert.EqualValues(t, 1, stats.RateLimited)
	assert.EqualValues(t, 1, stats.Quota)
	assert.EqualValues(t, 1, stats.UpstreamErrors)
	assert.EqualValues(t, 1, stats.Canceled)
	// 取消不打断也不延长连续失败
	assert.Equal(t, 3, stats.ConsecutiveFailures)
	assert.Equal(t, types.KindCanceled, stats.LastKind)
}

func TestMonitor_SeparateProxies(t *testing.T) {
	m := New(2, nil, utils.NewConsoleLogger("error", nil))
	m.Record(invocation(1, "chat", types.KindUpstream))
	m.Record(invocation(1, "tips", types.KindUpstream))
	assert.Empty(t, m.Degraded())
}

type failingStore struct{}

func (failingStore) Save(context.Context, *models.ProxyInvocation) error {
	return errors.New("disk full")
}

func TestMonitor_StoreErrorIsLogged(t *testing.T) {
	var out bytes.Buffer
	m := New(5, failingStore{}, utils.NewConsoleLogger("warn", &out))
	m.Record(invocation(1, "chat", types.KindNone))
	m.Close()
	assert.Contains(t, out.String(), "保存调用记录失败")
	assert.EqualValues(t, 1, m.Snapshot()["chat"].Total)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接各自独立，限制为单连接
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func TestGormStore_SaveAndRecent(t *testing.T) {
	store := NewGormStore(openTestDB(t))
	m := New(5, store, utils.NewConsoleLogger("error", nil))

	for i := 0; i < 4; i++ {
		m.Record(invocation(i, "tips", types.KindNone))
	}
	m.Record(invocation(9, "chat", types.KindQuota))
	m.Close()

	ctx := context.Background()
	tips, err := store.Recent(ctx, "tips", 3)
	require.NoError(t, err)
	assert.Len(t, tips, 3)
	for _, r := range tips {
		assert.Equal(t, "tips", r.Proxy)
	}

	all, err := store.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "quota", all[0].Kind)
}

type blockingStore struct {
	release chan struct{}
	saved   atomic.Int32
}

func (s *blockingStore) Save(context.Context, *models.ProxyInvocation) error {
	<-s.release
	s.saved.Add(1)
	return nil
}

func TestMonitor_SlowStoreDoesNotBlockRecord(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	m := New(5, store, utils.NewConsoleLogger("error", nil))

	for i := 0; i < 3; i++ {
		m.Record(invocation(i, "analysis", types.KindNone))
	}
	assert.EqualValues(t, 3, m.Snapshot()["analysis"].Total)
	assert.EqualValues(t, 0, store.saved.Load())

	close(store.release)
	m.Close()
	assert.EqualValues(t, 3, store.saved.Load())

	// 关闭后的记录只计数，不再写入
	m.Record(invocation(7, "analysis", types.KindNone))
	m.Close()
	assert.EqualValues(t, 3, store.saved.Load())
	assert.EqualValues(t, 4, m.Snapshot()["analysis"].Total)
}

func TestMonitor_CloseWithoutStore(t *testing.T) {
	m := New(5, nil, utils.NewConsoleLogger("error", nil))
	m.Record(invocation(1, "tips", types.KindNone))
	m.Close()
	assert.EqualValues(t, 1, m.Snapshot()["tips"].Total)
}
