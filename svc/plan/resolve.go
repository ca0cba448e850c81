package plan

import (
	"strings"

	"github.com/dmitrymomot/imgcompare/svc/ledger"
)

// Resolve derives a tier from a price.
//
// The first strategy that matches wins:
//  1. the price id is listed in the catalog
//  2. the lookup key contains a tier name, case-insensitively
//  3. the nickname contains a tier name, case-insensitively
//
// Name matching tries tiers from highest to lowest. TierNone is returned
// when nothing matches.
func (c *Catalog) Resolve(p ledger.Price) Tier {
	if c != nil && p.ID != "" {
		if t, ok := c.prices[p.ID]; ok {
			return t
		}
	}
	if t := matchName(p.LookupKey); t != TierNone {
		return t
	}
	return matchName(p.Nickname)
}

// ResolveSubscription resolves the tier of the subscription's primary item.
func (c *Catalog) ResolveSubscription(s ledger.Subscription) Tier {
	p, ok := s.PrimaryPrice()
	if !ok {
		return TierNone
	}
	return c.Resolve(p)
}

func matchName(s string) Tier {
	s = strings.ToLower(s)
	if s == "" {
		return TierNone
	}
	for _, t := range Tiers {
		if strings.Contains(s, string(t)) {
			return t
		}
	}
	return TierNone
}
