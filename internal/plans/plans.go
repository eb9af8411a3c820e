// Package plans holds the subscription tiers and the limits each one grants.
package plans

const (
	Free  = "free"
	Basic = "basic"
	Pro   = "pro"
)

const (
	GiB int64 = 1 << 30
	TiB int64 = 1 << 40
)

// Unlimited marks an AI allowance without a ceiling.
const Unlimited = -1

type Limits struct {
	StorageBytes  int64 `json:"storage_bytes"`
	AIGenerations int   `json:"ai_generations"`
	Domains       int   `json:"domains"`
	PriceCents    int64 `json:"price_cents"`
}

var table = map[string]Limits{
	Free:  {StorageBytes: 15 * GiB, AIGenerations: 10, Domains: 0, PriceCents: 0},
	Basic: {StorageBytes: 100 * GiB, AIGenerations: 50, Domains: 1, PriceCents: 1200},
	Pro:   {StorageBytes: 4 * TiB, AIGenerations: Unlimited, Domains: 2, PriceCents: 2900},
}

// Lookup returns the limits of a plan. Unknown identifiers get the free tier.
func Lookup(plan string) Limits {
	if l, ok := table[plan]; ok {
		return l
	}
	return table[Free]
}

func IsValid(plan string) bool {
	_, ok := table[plan]
	return ok
}

// IsPaid reports whether the plan can be bought through checkout.
func IsPaid(plan string) bool {
	return plan == Basic || plan == Pro
}

// AllowsGeneration reports whether another AI generation fits in the allowance
// after creditsUsed generations.
func (l Limits) AllowsGeneration(creditsUsed int) bool {
	if l.AIGenerations == Unlimited {
		return true
	}
	return creditsUsed < l.AIGenerations
}

// FitsStorage reports whether used+additional bytes stay within the quota.
func (l Limits) FitsStorage(used, additional int64) bool {
	return additional <= l.StorageBytes-used
}
