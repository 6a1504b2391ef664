// Package tier provides subscription tier value types and pure functions.
package tier

// Tier represents a subscription level (immutable value type).
type Tier struct {
	Name              string
	WordLimit         int   // Total word budget, 0 = unlimited
	DailyWordLimit    int   // 0 = unlimited
	MonthlyWordLimit  int   // 0 = unlimited
	PriceCents        int64 // Monthly price in cents
	MaxCallsPerWindow int   // Rate limit: calls per window
	Features          []string
}

// IsUnlimited checks if the tier has no total word cap.
// This is a PURE function.
func (t Tier) IsUnlimited() bool {
	return t.WordLimit <= 0
}

// HasFeature checks whether the tier carries a capability tag.
// This is a PURE function.
func (t Tier) HasFeature(name string) bool {
	for _, f := range t.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Catalog is a read-only mapping from tier name to Tier.
// Built once at startup; never mutated after load.
type Catalog struct {
	tiers       map[string]Tier
	defaultName string
}

// NewCatalog builds a catalog from a list of tiers.
// defaultName designates the fail-open tier for unknown names;
// if it does not name a configured tier, the cheapest tier is used.
func NewCatalog(tiers []Tier, defaultName string) *Catalog {
	m := make(map[string]Tier, len(tiers))
	for _, t := range tiers {
		m[t.Name] = t
	}
	if _, ok := m[defaultName]; !ok {
		defaultName = cheapest(tiers)
	}
	return &Catalog{tiers: m, defaultName: defaultName}
}

// Get returns the tier for a name. Unrecognized names fall back to the
// default tier; this is a deliberate fail-open-to-minimum policy, so the
// second return reports whether the name was known rather than an error.
func (c *Catalog) Get(name string) (Tier, bool) {
	if t, ok := c.tiers[name]; ok {
		return t, true
	}
	return c.tiers[c.defaultName], false
}

// Default returns the designated fallback tier.
func (c *Catalog) Default() Tier {
	return c.tiers[c.defaultName]
}

// List returns all tiers keyed by name. The returned map is a copy.
func (c *Catalog) List() map[string]Tier {
	out := make(map[string]Tier, len(c.tiers))
	for k, v := range c.tiers {
		out[k] = v
	}
	return out
}

func cheapest(tiers []Tier) string {
	if len(tiers) == 0 {
		return ""
	}
	best := tiers[0]
	for _, t := range tiers[1:] {
		if t.PriceCents < best.PriceCents {
			best = t
		}
	}
	return best.Name
}

// Defaults returns the built-in tier table used when none is configured.
// The numbers mirror the hosted service's plan limits and are example
// configuration, not a contract.
func Defaults() []Tier {
	return []Tier{
		{
			Name:              "Free",
			WordLimit:         500,
			DailyWordLimit:    500,
			MonthlyWordLimit:  500,
			PriceCents:        0,
			MaxCallsPerWindow: 5,
			Features:          []string{"humanize"},
		},
		{
			Name:              "Basic",
			WordLimit:         1500,
			DailyWordLimit:    1500,
			MonthlyWordLimit:  30000,
			PriceCents:        200000,
			MaxCallsPerWindow: 20,
			Features:          []string{"humanize", "detect"},
		},
		{
			Name:              "Premium",
			WordLimit:         8000,
			DailyWordLimit:    8000,
			MonthlyWordLimit:  200000,
			PriceCents:        500000,
			MaxCallsPerWindow: 100,
			Features:          []string{"humanize", "detect", "priority"},
		},
	}
}
