// 包 utils：Redis 连接工具
package utils

import (
	"context"
	"time"

	"geoman-h3/internal/config"
	"geoman-h3/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：按配置打开 Redis 客户端并做一次 PING
// 约束：REDIS_ENABLE 未开启返回 nil；PING 失败时关闭客户端并返回 nil，调用方回退到进程内缓存
func OpenRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if !cfg.RedisEnable {
		return nil
	}
	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr(), Password: cfg.RedisPass, DB: cfg.RedisDB})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pctx).Err(); err != nil {
		logger.L().Warn("redis_unavailable", "addr", cfg.RedisAddr(), "err", err)
		_ = rc.Close()
		return nil
	}
	logger.L().Info("redis_connected", "addr", cfg.RedisAddr(), "db", cfg.RedisDB)
	return rc
}
