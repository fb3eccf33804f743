package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"warp-quiz-server/internal/domain"
)

// BankLoader fetches bank content from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankCache caches whole banks as JSON blobs in Redis and falls back to a
// loader on cache miss. Stored as: SET warp:bank:{bankID} {json} EX ttl.
type BankCache struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewBankCache(client *redis.Client, loader BankLoader, ttl time.Duration) *BankCache {
	return &BankCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *BankCache) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := c.cached(ctx, bankID); ok {
		return bank, nil
	}

	result, err, _ := c.sf.Do(bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := c.cached(ctx, bankID); ok {
			return bank, nil
		}

		bank, err := c.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}

		data, err := json.Marshal(bank)
		if err != nil {
			return domain.Bank{}, fmt.Errorf("marshal bank: %w", err)
		}
		_ = c.client.Set(ctx, c.key(bankID), data, c.ttlWithJitter()).Err()
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

func (c *BankCache) cached(ctx context.Context, bankID string) (domain.Bank, bool) {
	// redis.Nil and transport failures both count as a miss; the loader
	// is the source of truth.
	data, err := c.client.Get(ctx, c.key(bankID)).Bytes()
	if err != nil {
		return domain.Bank{}, false
	}
	var bank domain.Bank
	if err := json.Unmarshal(data, &bank); err != nil {
		return domain.Bank{}, false
	}
	return bank, true
}

func (c *BankCache) key(bankID string) string {
	return "warp:bank:" + bankID
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
