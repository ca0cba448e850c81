// Package plan maps ledger prices to plan tiers and decides whether a
// subscription grants access.
//
// # Tiers
//
// Three tiers are sold, TierBasic, TierPro and TierElite. TierNone stands
// for "no plan" and never has an allowance.
//
// # Catalog
//
// A Catalog holds the daily limit of each tier and the price ids each tier
// is sold at. It is built from environment configuration:
//
//	PLAN_BASIC_DAILY_LIMIT=5
//	PLAN_PRO_DAILY_LIMIT=25
//	PLAN_ELITE_DAILY_LIMIT=100
//	PLAN_PRO_PRICE_IDS=price_pro_monthly,price_pro_yearly
//
// Catalog.Resolve tries an exact price id match first, then a tier name
// inside the price lookup key, then inside the price nickname. Name
// matching checks the higher tiers first, so "elite-pro bundle" resolves
// to elite. Prices that match nothing resolve to TierNone.
//
// # Usability
//
// Usable implements two status sets. Strict admits trialing and active
// subscriptions and is used for enforcement. Lenient also admits past_due
// and unpaid and is used for display only. Both honour scheduled
// cancellations: access ends at the effective cancellation time.
package plan
