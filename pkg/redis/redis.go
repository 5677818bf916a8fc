package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ahmedharby13/FCI-Tanta-University-Attendance-System/config"
)

// Client Redis 客户端封装
// 当前用于接口限流与统计结果缓存
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 接口限流 ──

// CheckRateLimit 固定窗口计数限流
// 窗口内第一次请求设置过期时间，计数超过 limit 返回 false
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// ── 统计缓存 ──

const statsCachePrefix = "stats:class:"

// GetStatsCache 读取班级统计缓存，未命中返回 ("", nil)
func (c *Client) GetStatsCache(ctx context.Context, classID string) (string, error) {
	v, err := c.rdb.Get(ctx, statsCachePrefix+classID).Result()
	if err == goredis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// SetStatsCache 写入班级统计缓存
func (c *Client) SetStatsCache(ctx context.Context, classID, payload string, ttl time.Duration) error {
	return c.rdb.Set(ctx, statsCachePrefix+classID, payload, ttl).Err()
}

// InvalidateStatsCache 删除班级统计缓存（写入考勤后调用）
func (c *Client) InvalidateStatsCache(ctx context.Context, classID string) error {
	return c.rdb.Del(ctx, statsCachePrefix+classID).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
