package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const catalogKey = "catalog"

// Cached 在 ristretto 中记住最近一次扫描结果，TTL 内重复请求不再遍历磁盘。
// 并发的未命中只触发一次扫描。
type Cached struct {
	source Source
	ttl    time.Duration
	rc     *ristretto.Cache[string, *Catalog]

	mu         sync.Mutex
	inflight   *scanCall
	generation uint64
}

type scanCall struct {
	wg  sync.WaitGroup
	val *Catalog
	err error
}

// NewCached 包装 source；ttl <= 0 时不缓存，每次都直接扫描。
func NewCached(source Source, ttl time.Duration, maxCost int64) (*Cached, error) {
	if maxCost <= 0 {
		maxCost = 1
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, *Catalog]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cached{source: source, ttl: ttl, rc: rc}, nil
}

// Scan 返回缓存的目录，未命中时调用底层扫描器。
func (c *Cached) Scan(ctx context.Context) (*Catalog, error) {
	if c.ttl <= 0 {
		return c.source.Scan(ctx)
	}
	if v, ok := c.rc.Get(catalogKey); ok {
		return v, nil
	}

	c.mu.Lock()
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		call.wg.Wait()
		return call.val, call.err
	}
	call := &scanCall{}
	call.wg.Add(1)
	c.inflight = call
	generation := c.generation
	c.mu.Unlock()

	call.val, call.err = c.source.Scan(ctx)

	c.mu.Lock()
	// 扫描期间发生过写入则结果可能已过期，不写回缓存。
	if call.err == nil && generation == c.generation {
		c.rc.SetWithTTL(catalogKey, call.val, 1, c.ttl)
		c.rc.Wait()
	}
	c.inflight = nil
	c.mu.Unlock()
	call.wg.Done()

	return call.val, call.err
}

// Invalidate 丢弃缓存结果，上传成功后调用。
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.rc.Del(catalogKey)
	c.mu.Unlock()
}

// Close 释放 ristretto 的后台协程。
func (c *Cached) Close() {
	c.rc.Close()
}
