package boq

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultWeight   = 1
	maxWeight       = 10
	maxPercent      = 100
	defaultTitle    = "Project BOQ"
	defaultCurrency = "UGX"
)

// centPlaces is the scale of every money column
const centPlaces = 2

// Round2 rounds to cents, half to even
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.RoundBank(centPlaces)
}

// BudgetCost is quantity times rate, rounded to cents
func BudgetCost(quantity, rate decimal.Decimal) decimal.Decimal {
	return Round2(quantity.Mul(rate))
}

// Variance is budget minus actual, rounded to cents
func Variance(budget, actual decimal.Decimal) decimal.Decimal {
	return Round2(budget.Sub(actual))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampWeight bounds a weight to 0..10; nil means the default of 1
func ClampWeight(w *int) int {
	if w == nil {
		return defaultWeight
	}
	return clamp(*w, 0, maxWeight)
}

// ClampPercent bounds a completion percentage to 0..100; nil means 0
func ClampPercent(p *int) int {
	if p == nil {
		return 0
	}
	return clamp(*p, 0, maxPercent)
}

// Leaves returns the items no other item names as its parent
func Leaves(items []*Item) []*Item {
	parents := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		if it.ParentItemID != nil {
			parents[*it.ParentItemID] = true
		}
	}
	var out []*Item
	for _, it := range items {
		if !parents[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

// WeightedCompletion averages leaf completion weighted by weight_out_of_10.
// With every leaf at weight 0 it falls back to the plain mean, and with no
// leaves it is 0. The result is not rounded.
func WeightedCompletion(items []*Item) float64 {
	leaves := Leaves(items)
	if len(leaves) == 0 {
		return 0
	}

	var totalWeight, weighted, plain float64
	for _, it := range leaves {
		w := float64(it.WeightOutOf10) / maxWeight
		p := float64(it.PercentComplete) / maxPercent
		totalWeight += w
		weighted += w * p
		plain += float64(it.PercentComplete)
	}
	if totalWeight <= 0 {
		return plain / float64(len(leaves))
	}
	return weighted / totalWeight * maxPercent
}

// Summarize totals the items of one header
func Summarize(header *Header, items []*Item) Summary {
	s := Summary{
		HeaderID:        header.ID,
		ProjectID:       header.ProjectID,
		TotalItems:      len(items),
		TotalBudgetCost: decimal.Zero,
		TotalActualCost: decimal.Zero,
	}
	for _, it := range items {
		s.TotalBudgetCost = s.TotalBudgetCost.Add(it.BudgetCost)
		s.TotalActualCost = s.TotalActualCost.Add(it.ActualCost)
	}
	s.TotalBudgetCost = Round2(s.TotalBudgetCost)
	s.TotalActualCost = Round2(s.TotalActualCost)
	s.TotalVariance = Variance(s.TotalBudgetCost, s.TotalActualCost)
	s.WeightedCompletion = Round2(decimal.NewFromFloat(WeightedCompletion(items))).InexactFloat64()
	return s
}

// Tree nests items under their parents; items whose parent is absent are
// roots. Input order is kept among siblings.
func Tree(items []*Item) []*Item {
	byID := make(map[uuid.UUID]*Item, len(items))
	for _, it := range items {
		it.Children = []*Item{}
		byID[it.ID] = it
	}
	roots := []*Item{}
	for _, it := range items {
		if it.ParentItemID != nil {
			if parent, ok := byID[*it.ParentItemID]; ok && parent != it {
				parent.Children = append(parent.Children, it)
				continue
			}
		}
		roots = append(roots, it)
	}
	return roots
}
