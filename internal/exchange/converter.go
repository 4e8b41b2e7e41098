package exchange

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// rateTTL bounds how long a fetched rate is reused. Rates move slowly, so a
// stale read during a concurrent refresh is acceptable.
const rateTTL = 24 * time.Hour

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// Converter converts amounts between ISO currency codes through a
// RateProvider, caching each ordered pair for rateTTL. The cache lives for
// the process lifetime; ClearCache is the only invalidation hook.
type Converter struct {
	provider RateProvider

	mu    sync.RWMutex
	rates map[string]cachedRate

	now func() time.Time // injectable for tests
}

// NewConverter creates a converter over the given rate provider.
func NewConverter(provider RateProvider) *Converter {
	return &Converter{
		provider: provider,
		rates:    make(map[string]cachedRate),
		now:      time.Now,
	}
}

// Convert converts amount from one currency to another, rounded to 2
// decimals. Same-currency conversion short-circuits with no provider call.
// A provider failure is returned as-is; callers must treat it as a hard stop
// for the transaction rather than saving an unconverted amount.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return round2(amount), nil
	}

	rate, err := c.rate(ctx, from, to)
	if err != nil {
		return 0, err
	}

	converted := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate))
	f, _ := converted.Round(2).Float64()
	return f, nil
}

func (c *Converter) rate(ctx context.Context, from, to string) (float64, error) {
	key := from + "-" + to

	c.mu.RLock()
	cached, ok := c.rates[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(cached.fetchedAt) < rateTTL {
		return cached.rate, nil
	}

	// Concurrent misses for the same pair may each fetch; last writer wins.
	rate, err := c.provider.PairRate(ctx, from, to)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.rates[key] = cachedRate{rate: rate, fetchedAt: c.now()}
	c.mu.Unlock()

	return rate, nil
}

// ClearCache drops every cached rate.
func (c *Converter) ClearCache() {
	c.mu.Lock()
	c.rates = make(map[string]cachedRate)
	c.mu.Unlock()
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
