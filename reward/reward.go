// Package reward computes reward-point redemption allocations for product
// lines. All functions are pure; fetching the available balance is the
// caller's concern.
package reward

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Line is one product line eligible for redemption.
type Line struct {
	Key          string
	UnitPrice    decimal.Decimal
	Qty          int
	MaxRewardPct decimal.Decimal
}

// Cap returns the redemption cap for the line:
// unitPrice * qty * maxRewardPct / 100, or zero when no percentage is set.
func (l Line) Cap() decimal.Decimal {
	if !l.MaxRewardPct.IsPositive() {
		return decimal.Zero
	}
	qty := decimal.NewFromInt(int64(l.Qty))
	return l.UnitPrice.Mul(qty).Mul(l.MaxRewardPct).Div(hundred).Round(2)
}

// Share is the per-line outcome of an allocation, in cart iteration order.
type Share struct {
	Key    string
	Cap    decimal.Decimal
	Redeem decimal.Decimal
}

// Allocation is the result of distributing a requested redemption across the
// eligible lines.
type Allocation struct {
	// OrderCap is the sum of all positive line caps.
	OrderCap decimal.Decimal
	// RedeemMax is min(availablePoints, OrderCap), floored at zero.
	RedeemMax decimal.Decimal
	// Requested is the caller's requested amount clamped to [0, RedeemMax].
	Requested decimal.Decimal
	// Shares holds one entry per input line, in input order.
	Shares []Share
}

// Total returns the sum of the allocated per-line redemptions.
func (a Allocation) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range a.Shares {
		sum = sum.Add(s.Redeem)
	}
	return sum
}

// ShareFor returns the allocated redemption for the given line key.
func (a Allocation) ShareFor(key string) decimal.Decimal {
	for _, s := range a.Shares {
		if s.Key == key {
			return s.Redeem
		}
	}
	return decimal.Zero
}

// Plan distributes requested redemption points across lines.
//
// The fill policy is first-eligible-line priority: lines are exhausted
// greedily in cart iteration order until the clamped request runs out. This
// is a deliberately simple policy, not a global optimization. Every
// intermediate value is rounded to 2 decimal places so floating drift can
// never push the remainder negative.
func Plan(lines []Line, availablePoints, requested decimal.Decimal) Allocation {
	orderCap := decimal.Zero
	caps := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		caps[i] = l.Cap()
		orderCap = orderCap.Add(caps[i])
	}
	orderCap = orderCap.Round(2)

	redeemMax := decimal.Min(availablePoints, orderCap)
	if redeemMax.IsNegative() {
		redeemMax = decimal.Zero
	}

	req := clamp(requested, redeemMax).Round(2)

	alloc := Allocation{
		OrderCap:  orderCap,
		RedeemMax: redeemMax,
		Requested: req,
		Shares:    make([]Share, len(lines)),
	}

	remaining := req
	for i, l := range lines {
		alloc.Shares[i] = Share{Key: l.Key, Cap: caps[i]}
		if !caps[i].IsPositive() || !remaining.IsPositive() {
			continue
		}
		redeem := decimal.Min(remaining, caps[i]).Round(2)
		alloc.Shares[i].Redeem = redeem
		remaining = remaining.Sub(redeem).Round(2)
	}

	return alloc
}

func clamp(v, ceil decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(v, ceil)
}
