package geocode

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"geoman-h3/internal/logger"
	"geoman-h3/internal/metrics"

	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
)

// Cache：候选结果缓存；键由 Cached 构造
type Cache interface {
	Get(ctx context.Context, key string) ([]Result, bool)
	Set(ctx context.Context, key string, v []Result)
}

// 文档注释：进程内 LRU 缓存
// 背景：同一地址在短时间内被多个会话重复搜索（边输入边查询），命中后不再访问外部服务
// 约束：容量满时淘汰最久未用项；过期项在读取时删除
type LRU struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
}

type entry struct {
	k   string
	v   []Result
	exp time.Time
}

func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element)}
}

func (c *LRU) Get(_ context.Context, k string) ([]Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		it := e.Value.(entry)
		if time.Now().Before(it.exp) {
			c.lst.MoveToFront(e)
			return it.v, true
		}
		c.lst.Remove(e)
		delete(c.dict, k)
	}
	return nil, false
}

func (c *LRU) Set(_ context.Context, k string, v []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := entry{k: k, v: v, exp: time.Now().Add(c.ttl)}
	if e, ok := c.dict[k]; ok {
		e.Value = it
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(it)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(entry).k)
		c.lst.Remove(back)
	}
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

// 文档注释：Redis 缓存
// 值为候选结果的 GeoJSON FeatureCollection 文本，按 TTL 过期；Redis 故障视为未命中
type RedisCache struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisCache(rc *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rc: rc, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, k string) ([]Result, bool) {
	b, err := c.rc.Get(ctx, k).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Warn("geocode_cache_redis_error", "op", "get", "key", k, "err", err)
		}
		return nil, false
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		logger.L().Warn("geocode_cache_decode_error", "key", k, "err", err)
		return nil, false
	}
	return FromFeatureCollection(fc), true
}

func (c *RedisCache) Set(ctx context.Context, k string, v []Result) {
	b, err := json.Marshal(FeatureCollection(v))
	if err != nil {
		logger.L().Warn("geocode_cache_encode_error", "key", k, "err", err)
		return
	}
	if err := c.rc.Set(ctx, k, b, c.ttl).Err(); err != nil {
		logger.L().Warn("geocode_cache_redis_error", "op", "set", "key", k, "err", err)
	}
}

// 文档注释：带缓存的数据源装饰器
// 约束：只缓存成功结果（含空结果）；失败不写缓存，下次重新请求
type Cached struct {
	p     Provider
	cache Cache
}

func NewCached(p Provider, cache Cache) *Cached { return &Cached{p: p, cache: cache} }

func (c *Cached) Name() string { return c.p.Name() }

func CacheKey(provider, query string) string {
	return "geocode:" + provider + ":" + strings.ToLower(strings.TrimSpace(query))
}

func (c *Cached) Forward(ctx context.Context, query string) ([]Result, error) {
	key := CacheKey(c.p.Name(), query)
	if v, ok := c.cache.Get(ctx, key); ok {
		metrics.GeocodeCacheHitsTotal.Inc()
		logger.L().Debug("geocode_cache_hit", "key", key, "results", len(v))
		return v, nil
	}
	metrics.GeocodeCacheMissesTotal.Inc()
	v, err := c.p.Forward(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, v)
	return v, nil
}
