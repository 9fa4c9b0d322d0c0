package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	sharedcache "github.com/radieske/sports-bet-ledger/internal/shared/cache"
)

// VersionKey é incrementada a cada mutação administrativa do catálogo.
// As chaves de listagem embutem a versão, então uma mutação invalida tudo de uma vez.
const VersionKey = "catalog:version"

type Cache struct {
	R   redis.Cmdable
	TTL time.Duration
}

func New(r redis.Cmdable, ttl time.Duration) *Cache { return &Cache{R: r, TTL: ttl} }

func keyListing(version int64, view, sport string) string {
	return fmt.Sprintf("catalog:v%d:matches:%s:%s", version, view, strings.ToLower(sport))
}

func keyCategories(version int64) string {
	return fmt.Sprintf("catalog:v%d:categories", version)
}

// Version lê a versão corrente; chave ausente é a versão 0.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	v, err := c.R.Get(ctx, VersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// Bump invalida todas as listagens em cache
func (c *Cache) Bump(ctx context.Context) error {
	return c.R.Incr(ctx, VersionKey).Err()
}

func (c *Cache) GetListing(ctx context.Context, version int64, view, sport string, dst any) (bool, error) {
	return sharedcache.GetJSON(ctx, c.R, keyListing(version, view, sport), dst)
}

func (c *Cache) SetListing(ctx context.Context, version int64, view, sport string, v any) error {
	return sharedcache.SetJSON(ctx, c.R, keyListing(version, view, sport), v, c.TTL)
}

func (c *Cache) GetCategories(ctx context.Context, version int64, dst any) (bool, error) {
	return sharedcache.GetJSON(ctx, c.R, keyCategories(version), dst)
}

func (c *Cache) SetCategories(ctx context.Context, version int64, v any) error {
	return sharedcache.SetJSON(ctx, c.R, keyCategories(version), v, c.TTL)
}
