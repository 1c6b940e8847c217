package boq

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestBudgetAndVariance(t *testing.T) {
	assertDecimal(t, "3750", BudgetCost(dec("12.5"), dec("300")))
	assertDecimal(t, "0.33", BudgetCost(dec("1"), dec("0.333")))
	assertDecimal(t, "1.01", BudgetCost(dec("0.335"), dec("3.0149")))
	assertDecimal(t, "-250.5", Variance(dec("1000"), dec("1250.5")))
	assertDecimal(t, "0", Variance(dec("0.1").Add(dec("0.2")), dec("0.3")))
}

func TestRound2HalfEven(t *testing.T) {
	tests := []struct {
		quantity, rate, want string
	}{
		{"1.015", "1", "1.02"},
		{"0.125", "1", "0.12"},
		{"0.135", "1", "0.14"},
		{"2.675", "1", "2.68"},
		{"0.5", "0.025", "0.01"},
		{"1.005", "1", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.quantity+"x"+tt.rate, func(t *testing.T) {
			assertDecimal(t, tt.want, BudgetCost(dec(tt.quantity), dec(tt.rate)))
		})
	}
}

func TestClamps(t *testing.T) {
	assert.Equal(t, 1, ClampWeight(nil))
	assert.Equal(t, 0, ClampWeight(intp(-3)))
	assert.Equal(t, 10, ClampWeight(intp(42)))
	assert.Equal(t, 7, ClampWeight(intp(7)))

	assert.Equal(t, 0, ClampPercent(nil))
	assert.Equal(t, 100, ClampPercent(intp(150)))
	assert.Equal(t, 0, ClampPercent(intp(-1)))
}

func item(weight, percent int, parent *uuid.UUID) *Item {
	return &Item{ID: uuid.New(), WeightOutOf10: weight, PercentComplete: percent, ParentItemID: parent}
}

func TestWeightedCompletion(t *testing.T) {
	t.Run("no items", func(t *testing.T) {
		assert.Zero(t, WeightedCompletion(nil))
	})

	t.Run("weighted leaves", func(t *testing.T) {
		// (2*50 + 8*100) / 10 = 90
		items := []*Item{item(2, 50, nil), item(8, 100, nil)}
		assert.InDelta(t, 90.0, WeightedCompletion(items), 1e-9)
	})

	t.Run("parents are ignored", func(t *testing.T) {
		parent := item(10, 0, nil)
		child := item(1, 40, &parent.ID)
		items := []*Item{parent, child}
		assert.InDelta(t, 40.0, WeightedCompletion(items), 1e-9)
	})

	t.Run("zero weights fall back to mean", func(t *testing.T) {
		items := []*Item{item(0, 20, nil), item(0, 60, nil)}
		assert.InDelta(t, 40.0, WeightedCompletion(items), 1e-9)
	})
}

func TestSummarize(t *testing.T) {
	h := &Header{ID: uuid.New(), ProjectID: uuid.New()}
	items := []*Item{
		{ID: uuid.New(), BudgetCost: dec("100.10"), ActualCost: dec("50.05"), WeightOutOf10: 1, PercentComplete: 33},
		{ID: uuid.New(), BudgetCost: dec("200.20"), ActualCost: dec("300.00"), WeightOutOf10: 2, PercentComplete: 67},
	}

	s := Summarize(h, items)

	assert.Equal(t, h.ID, s.HeaderID)
	assert.Equal(t, 2, s.TotalItems)
	assertDecimal(t, "300.30", s.TotalBudgetCost)
	assertDecimal(t, "350.05", s.TotalActualCost)
	assertDecimal(t, "-49.75", s.TotalVariance)
	// (1*33 + 2*67) / 3 = 55.666...
	assert.Equal(t, 55.67, s.WeightedCompletion)
}

func TestTree(t *testing.T) {
	root := item(1, 0, nil)
	child := item(1, 0, &root.ID)
	grandchild := item(1, 0, &child.ID)
	missing := uuid.New()
	orphan := item(1, 0, &missing)

	roots := Tree([]*Item{grandchild, root, orphan, child})

	assert.Equal(t, []*Item{root, orphan}, roots)
	assert.Equal(t, []*Item{child}, root.Children)
	assert.Equal(t, []*Item{grandchild}, child.Children)
	assert.Empty(t, grandchild.Children)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(&Header{ID: uuid.New()}, nil)

	assert.Zero(t, s.TotalItems)
	assertDecimal(t, "0", s.TotalBudgetCost)
	assertDecimal(t, "0", s.TotalVariance)
	assert.Zero(t, s.WeightedCompletion)
}
