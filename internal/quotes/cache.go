package quotes

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const cacheKeyPrefix = "quote:"

type Cache struct {
	redis *redis.Client
	ttl   time.Duration
	log   *logrus.Logger
}

func NewCache(redisClient *redis.Client, ttl time.Duration, log *logrus.Logger) *Cache {
	return &Cache{redis: redisClient, ttl: ttl, log: log}
}

// Get returns the cached price for symbol and whether there was a hit.
func (c *Cache) Get(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	res, err := c.redis.Get(ctx, cacheKeyPrefix+symbol).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	price, err := decimal.NewFromString(res)
	if err != nil {
		c.log.Warnf("dropping unparseable cached quote for %s: %q", symbol, res)
		return decimal.Zero, false, nil
	}
	return price, true, nil
}

func (c *Cache) Set(ctx context.Context, symbol string, price decimal.Decimal) error {
	return c.redis.Set(ctx, cacheKeyPrefix+symbol, price.String(), c.ttl).Err()
}
