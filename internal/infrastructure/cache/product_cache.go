package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bibbank/microfinance/internal/domain/model"
)

const keyPrefix = "microfinance:product:"

// ProductCache implements port.ProductCache on Redis. Entries expire after
// ttl; revisions invalidate explicitly.
type ProductCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewProductCache creates a Redis-backed product cache.
func NewProductCache(client redis.Cmdable, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// productRecord is the cached form of one product version.
type productRecord struct {
	CreatedAt time.Time          `json:"created_at"`
	Terms     model.ProductTerms `json:"terms"`
	ID        string             `json:"id"`
	TenantID  string             `json:"tenant_id"`
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	Version   int                `json:"version"`
}

func key(tenantID, id string) string {
	return keyPrefix + tenantID + ":" + id
}

// Get returns the cached latest version, if any.
func (c *ProductCache) Get(ctx context.Context, tenantID, id string) (model.LoanProduct, bool, error) {
	raw, err := c.client.Get(ctx, key(tenantID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.LoanProduct{}, false, nil
	}
	if err != nil {
		return model.LoanProduct{}, false, fmt.Errorf("get product %s: %w", id, err)
	}
	product, err := decode(raw)
	if err != nil {
		return model.LoanProduct{}, false, err
	}
	return product, true, nil
}

// Set caches product as the latest version.
func (c *ProductCache) Set(ctx context.Context, product model.LoanProduct) error {
	raw, err := encode(product)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key(product.TenantID(), product.ID()), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set product %s: %w", product.ID(), err)
	}
	return nil
}

// Invalidate drops the cached entry.
func (c *ProductCache) Invalidate(ctx context.Context, tenantID, id string) error {
	if err := c.client.Del(ctx, key(tenantID, id)).Err(); err != nil {
		return fmt.Errorf("invalidate product %s: %w", id, err)
	}
	return nil
}

func encode(p model.LoanProduct) ([]byte, error) {
	raw, err := json.Marshal(productRecord{
		CreatedAt: p.CreatedAt(),
		Terms:     p.Terms(),
		ID:        p.ID(),
		TenantID:  p.TenantID(),
		Code:      p.Code(),
		Name:      p.Name(),
		Version:   p.Version(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode product %s: %w", p.ID(), err)
	}
	return raw, nil
}

func decode(raw []byte) (model.LoanProduct, error) {
	var r productRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.LoanProduct{}, fmt.Errorf("decode cached product: %w", err)
	}
	return model.ReconstructLoanProduct(r.ID, r.TenantID, r.Code, r.Name, r.Version, r.Terms, r.CreatedAt), nil
}
