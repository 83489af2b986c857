package entitlements

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

type PlanID string

const (
	PlanBasic      PlanID = "basic"
	PlanPro        PlanID = "pro"
	PlanEnterprise PlanID = "enterprise"
)

// Plan holds the entitlements a purchase of the plan grants.
type Plan struct {
	ID              PlanID          `json:"id"`
	MaxBusinesses   int             `json:"max_businesses"`
	MonthlyMessages int             `json:"monthly_messages"`
	Price           decimal.Decimal `json:"price"`
}

// Catalog is the static, read-only table of purchasable plans.
type Catalog struct {
	plans    map[PlanID]Plan
	fallback PlanID
}

// NewCatalog builds a catalog. fallback must be one of plans; it is what
// unknown plan ids resolve to.
func NewCatalog(fallback PlanID, plans ...Plan) *Catalog {
	c := &Catalog{plans: make(map[PlanID]Plan, len(plans)), fallback: fallback}
	for _, p := range plans {
		c.plans[p.ID] = p
	}
	if _, ok := c.plans[fallback]; !ok {
		panic("entitlements: fallback plan " + string(fallback) + " is not in the catalog")
	}
	return c
}

// DefaultCatalog returns the plans sold today.
func DefaultCatalog() *Catalog {
	return NewCatalog(PlanBasic,
		Plan{ID: PlanBasic, MaxBusinesses: 1, MonthlyMessages: 1000, Price: decimal.RequireFromString("10.00")},
		Plan{ID: PlanPro, MaxBusinesses: 5, MonthlyMessages: 10000, Price: decimal.RequireFromString("50.00")},
		Plan{ID: PlanEnterprise, MaxBusinesses: 50, MonthlyMessages: 100000, Price: decimal.RequireFromString("200.00")},
	)
}

func normalizePlanID(id string) PlanID {
	return PlanID(strings.ToLower(strings.TrimSpace(id)))
}

// Lookup returns the plan for id without falling back.
func (c *Catalog) Lookup(id string) (Plan, bool) {
	p, ok := c.plans[normalizePlanID(id)]
	return p, ok
}

// Resolve returns the plan for id, or the most restrictive plan when id is
// unknown. Payment transitions must never fail on a bad plan id.
func (c *Catalog) Resolve(id string) Plan {
	if p, ok := c.Lookup(id); ok {
		return p
	}
	log.Warnf("[Entitlements] Unknown plan %q, falling back to %q", id, c.fallback)
	return c.plans[c.fallback]
}

// Plans lists the catalog ordered by price.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out
}
