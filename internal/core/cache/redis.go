package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	RDB    *redis.Client
	Prefix string
}

func New(addr, pass string, db int) *Cache {
	return &Cache{
		RDB:    redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		Prefix: "fortirent:",
	}
}

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }

// MarkUsed 把一次性令牌 id 记为已用；首次返回 true，重放返回 false
func (c *Cache) MarkUsed(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.RDB.SetNX(ctx, c.key("used", jti), 1, ttl).Result()
}

func (c *Cache) Release(ctx context.Context, jti string) error {
	return c.RDB.Del(ctx, c.key("used", jti)).Err()
}

// IsUsed 只读检查，不写入
func (c *Cache) IsUsed(ctx context.Context, jti string) (bool, error) {
	n, err := c.RDB.Exists(ctx, c.key("used", jti)).Result()
	return n > 0, err
}

// Allow 固定窗口计数；窗口内第 limit+1 次起返回 false。
// subject 先做 sha256，避免把邮箱明文写进 redis。
// 不用 EXPIRE NX（需 redis 7）；没有 TTL 的计数键在这里补上
func (c *Cache) Allow(ctx context.Context, subject string, limit int, window time.Duration) (bool, error) {
	key := c.key("throttle", hashKey(subject))
	pipe := c.RDB.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if ttl.Val() < 0 {
		if err := c.RDB.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return incr.Val() <= int64(limit), nil
}

func (c *Cache) key(kind, id string) string { return c.Prefix + kind + ":" + id }

func hashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
