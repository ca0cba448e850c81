package plan

import (
	"fmt"
	"strings"
)

// Tier is a plan level.
type Tier string

const (
	TierNone  Tier = ""
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

// Tiers lists every known tier from highest to lowest.
var Tiers = []Tier{TierElite, TierPro, TierBasic}

func (t Tier) String() string {
	if t == TierNone {
		return "none"
	}
	return string(t)
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierBasic, TierPro, TierElite:
		return true
	}
	return false
}

// ParseTier converts a stored tier name back into a Tier.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TierNone
}

// Config holds the per-tier daily limits and the price ids each tier is sold at.
type Config struct {
	BasicDailyLimit int      `env:"PLAN_BASIC_DAILY_LIMIT" envDefault:"5"`
	ProDailyLimit   int      `env:"PLAN_PRO_DAILY_LIMIT" envDefault:"25"`
	EliteDailyLimit int      `env:"PLAN_ELITE_DAILY_LIMIT" envDefault:"100"`
	BasicPriceIDs   []string `env:"PLAN_BASIC_PRICE_IDS" envSeparator:","`
	ProPriceIDs     []string `env:"PLAN_PRO_PRICE_IDS" envSeparator:","`
	ElitePriceIDs   []string `env:"PLAN_ELITE_PRICE_IDS" envSeparator:","`
}

// Catalog maps tiers to their daily limits and price ids.
// A Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	limits map[Tier]int
	prices map[string]Tier
}

// NewCatalog builds a catalog from limits and price-id tables.
// A price id may belong to one tier only.
func NewCatalog(limits map[Tier]int, prices map[Tier][]string) (*Catalog, error) {
	c := &Catalog{
		limits: make(map[Tier]int, len(limits)),
		prices: make(map[string]Tier),
	}
	for t, n := range limits {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTier, t)
		}
		c.limits[t] = n
	}
	for t, ids := range prices {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTier, t)
		}
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if prev, ok := c.prices[id]; ok && prev != t {
				return nil, fmt.Errorf("%w: %s is mapped to %s and %s", ErrDuplicatePrice, id, prev, t)
			}
			c.prices[id] = t
		}
	}
	return c, nil
}

// NewCatalogFromConfig builds a catalog from environment configuration.
func NewCatalogFromConfig(cfg Config) (*Catalog, error) {
	return NewCatalog(
		map[Tier]int{
			TierBasic: cfg.BasicDailyLimit,
			TierPro:   cfg.ProDailyLimit,
			TierElite: cfg.EliteDailyLimit,
		},
		map[Tier][]string{
			TierBasic: cfg.BasicPriceIDs,
			TierPro:   cfg.ProPriceIDs,
			TierElite: cfg.ElitePriceIDs,
		},
	)
}

// DailyLimit returns the configured daily allowance for t.
// Unknown tiers and unconfigured tiers return 0.
func (c *Catalog) DailyLimit(t Tier) int {
	if c == nil {
		return 0
	}
	return c.limits[t]
}
