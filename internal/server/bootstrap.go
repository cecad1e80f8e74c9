package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AsemElenawy/simtool-Nanohub/internal/cache"
	"github.com/AsemElenawy/simtool-Nanohub/internal/catalog"
	"github.com/AsemElenawy/simtool-Nanohub/internal/config"
	"github.com/AsemElenawy/simtool-Nanohub/internal/metrics"
)

// Runtime 汇总服务进程内共享的长生命周期组件，整站复用一份实例。
type Runtime struct {
	Store   cache.Store
	Catalog *catalog.Cached
	Metrics *metrics.Metrics
}

// Bootstrap 按“磁盘缓存 → 目录扫描缓存 → 指标”的顺序构建运行时。
func Bootstrap(cfg config.ServerConfig, logger *logrus.Logger) (*Runtime, error) {
	store, err := cache.NewStore(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	scanner := catalog.NewScanner(store.Root(), logger)
	cached, err := catalog.NewCached(scanner, cfg.CatalogTTL.DurationValue(), cfg.CatalogCacheSize)
	if err != nil {
		return nil, fmt.Errorf("初始化目录缓存失败: %w", err)
	}

	return &Runtime{
		Store:   store,
		Catalog: cached,
		Metrics: metrics.New(),
	}, nil
}

// Close 释放后台资源。
func (r *Runtime) Close() {
	if r == nil || r.Catalog == nil {
		return
	}
	r.Catalog.Close()
}
