package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"warp-quiz-server/internal/domain"
)

// BankLoader fetches bank content from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankCache caches banks with TTL to avoid repeated archive hits.
type BankCache struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	bank      domain.Bank
	expiresAt time.Time
}

func NewBankCache(loader BankLoader, ttl time.Duration) *BankCache {
	return &BankCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

func (c *BankCache) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[bankID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.bank, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(bankID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[bankID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.bank, nil
		}
		c.mu.RUnlock()

		bank, err := c.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}

		c.mu.Lock()
		c.cache[bankID] = cachedBank{
			bank:      bank,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

// StaticBankLoader is a loader backed by an in-memory map (tests/demos).
type StaticBankLoader struct {
	banks map[string]domain.Bank
}

func NewStaticBankLoader(banks map[string]domain.Bank) *StaticBankLoader {
	return &StaticBankLoader{banks: banks}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, bankID string) (domain.Bank, error) {
	if bank, ok := l.banks[bankID]; ok {
		return bank, nil
	}
	return domain.Bank{}, domain.ErrBankNotFound
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
