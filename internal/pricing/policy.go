// Package pricing maps team size onto a per-credit price.
package pricing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charlesng35/teamcredits/pkg/money"
)

// Tier grants Percent off the base price to teams of at least MinTeamSize members.
type Tier struct {
	MinTeamSize int
	Percent     int
}

// DefaultTiers are the volume discounts offered to larger teams.
var DefaultTiers = []Tier{
	{MinTeamSize: 100, Percent: 35},
	{MinTeamSize: 50, Percent: 30},
	{MinTeamSize: 15, Percent: 25},
	{MinTeamSize: 5, Percent: 20},
}

// Quote is the price of a credit purchase at a given team size.
type Quote struct {
	TeamSize        int         `json:"team_size"`
	Amount          int64       `json:"amount"`
	DiscountPercent int         `json:"discount_percent"`
	UnitPrice       money.Money `json:"unit_price"`
	Total           money.Money `json:"total"`
}

// Policy prices credits from a fixed base price. It is immutable and safe for
// concurrent use.
type Policy struct {
	base  money.Money
	tiers []Tier
}

// NewPolicy builds a Policy. Tiers are sorted by descending threshold so the
// largest qualifying tier wins; nil tiers selects DefaultTiers.
func NewPolicy(base money.Money, tiers []Tier) (*Policy, error) {
	if !base.IsPositive() {
		return nil, errors.New("pricing: base price must be positive")
	}
	if tiers == nil {
		tiers = DefaultTiers
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	for _, tier := range sorted {
		if tier.Percent < 0 || tier.Percent >= 100 {
			return nil, errors.New("pricing: tier percent must be within [0, 100)")
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinTeamSize > sorted[j].MinTeamSize
	})

	return &Policy{base: base, tiers: sorted}, nil
}

// BasePrice returns the undiscounted per-credit price.
func (p *Policy) BasePrice() money.Money {
	return p.base
}

// Discount returns the discount percent for teamSize. Negative sizes are treated as zero.
func (p *Policy) Discount(teamSize int) int {
	if teamSize < 0 {
		teamSize = 0
	}
	for _, tier := range p.tiers {
		if teamSize >= tier.MinTeamSize {
			return tier.Percent
		}
	}
	return 0
}

// UnitPrice returns the discounted per-credit price for teamSize. The result is
// always at least one minor unit.
func (p *Policy) UnitPrice(teamSize int) money.Money {
	return p.base.Discount(p.Discount(teamSize))
}

// Quote prices amount credits for a team of teamSize members. It fails when
// amount is not positive or the total does not fit in int64 minor units.
func (p *Policy) Quote(teamSize int, amount int64) (Quote, error) {
	if amount < 1 {
		return Quote{}, fmt.Errorf("pricing: amount %d must be positive", amount)
	}
	if teamSize < 0 {
		teamSize = 0
	}
	unit := p.UnitPrice(teamSize)
	total, err := unit.Multiply(amount)
	if err != nil {
		return Quote{}, fmt.Errorf("pricing: total for %d credits: %w", amount, err)
	}
	return Quote{
		TeamSize:        teamSize,
		Amount:          amount,
		DiscountPercent: p.Discount(teamSize),
		UnitPrice:       unit,
		Total:           total,
	}, nil
}
