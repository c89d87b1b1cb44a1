package taxreconciler

import (
	"ops-monitor/internal/opsmonitor/data"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func item(price string, quantity int) data.LineItem {
	return data.LineItem{Name: "item " + price, UnitPrice: d(price), Quantity: quantity}
}

func assertMultipliers(t *testing.T, expected []string, got []decimal.Decimal) {
	t.Helper()
	require.Len(t, got, len(expected))
	for i := range expected {
		assert.True(t, d(expected[i]).Equal(got[i]), "multiplier %d: expected %s, got %s", i, expected[i], got[i])
	}
}

func TestReconcile_Empty(t *testing.T) {
	res, err := Reconcile(nil, decimal.Zero, d("36.5"))
	require.NoError(t, err)
	assert.Equal(t, NoneMethod, res.Method)
	assert.Empty(t, res.Multipliers)
	assert.Empty(t, res.Amounts)
	assert.True(t, res.RefundTotal.IsZero())
}

func TestReconcile_NoTax(t *testing.T) {
	res, err := Reconcile([]data.LineItem{item("10", 1), item("4.5", 2)}, decimal.Zero, d("2"))
	require.NoError(t, err)
	assert.Equal(t, NoneMethod, res.Method)
	assert.Equal(t, AuthoritativeConfidence, res.Confidence)
	assertMultipliers(t, []string{"1", "1"}, res.Multipliers)
	assertMultipliers(t, []string{"20", "9"}, res.Amounts)
}

func TestReconcile_AllTaxed(t *testing.T) {
	items := []data.LineItem{item("10", 2), item("5", 1)}
	res, err := Reconcile(items, d("25").Mul(d("0.16")), d("0.16"))
	require.NoError(t, err)
	assert.Equal(t, AllMethod, res.Method)
	assertMultipliers(t, []string{"1.16", "1.16"}, res.Multipliers)
}

func TestReconcile_AllTaxedWithinEpsilon(t *testing.T) {
	res, err := Reconcile([]data.LineItem{item("25", 1)}, d("4.04"), d("1"))
	require.NoError(t, err)
	assert.Equal(t, AllMethod, res.Method)
}

func TestReconcile_ExactSubset(t *testing.T) {
	items := []data.LineItem{item("50", 1), item("30", 1)}
	res, err := Reconcile(items, d("50").Mul(d("0.16")), d("0.16"))
	require.NoError(t, err)
	assert.Equal(t, ExactMethod, res.Method)
	assert.Equal(t, HeuristicConfidence, res.Confidence)
	assertMultipliers(t, []string{"1.16", "1"}, res.Multipliers)
}

func TestReconcile_ExactSubsetPrefersIncludeFirst(t *testing.T) {
	// {30, 20} and {50} both match, search order picks the former
	items := []data.LineItem{item("30", 1), item("20", 1), item("50", 1)}
	res, err := Reconcile(items, d("8"), d("1"))
	require.NoError(t, err)
	assert.Equal(t, ExactMethod, res.Method)
	assertMultipliers(t, []string{"1.16", "1.16", "1"}, res.Multipliers)
}

func TestReconcile_ExactSubsetUsesQuantity(t *testing.T) {
	items := []data.LineItem{item("7", 1), item("12.5", 2), item("3", 4)}
	// taxed: 12.5 x 2 = 25
	res, err := Reconcile(items, d("4"), d("1"))
	require.NoError(t, err)
	assert.Equal(t, ExactMethod, res.Method)
	assertMultipliers(t, []string{"1", "1.16", "1"}, res.Multipliers)
}

func TestReconcile_ProportionalWhenNoSubset(t *testing.T) {
	items := []data.LineItem{item("10", 1), item("20", 1)}
	res, err := Reconcile(items, d("1"), d("1"))
	require.NoError(t, err)
	assert.Equal(t, ProportionalMethod, res.Method)
	assert.Equal(t, LowConfidence, res.Confidence)
	expected := d("1").Add(d("1").Div(d("30")))
	assertMultipliers(t, []string{expected.String(), expected.String()}, res.Multipliers)
}

func TestReconcile_ProportionalAboveSearchBound(t *testing.T) {
	items := make([]data.LineItem, 22)
	for i := range items {
		items[i] = item("1", 1)
	}
	// a single taxed item would match, but 22 items are past the search bound
	res, err := Reconcile(items, d("0.16"), d("1"))
	require.NoError(t, err)
	assert.Equal(t, ProportionalMethod, res.Method)
	assert.Len(t, res.Multipliers, 22)
	assert.True(t, res.Multipliers[0].Equal(d("1").Add(d("0.16").Div(d("22")))))
}

func TestReconcile_TaxReconstructs(t *testing.T) {
	tests := []struct {
		name  string
		items []data.LineItem
		tax   string
	}{
		{name: "all", items: []data.LineItem{item("12.40", 1), item("7.60", 1)}, tax: "3.2"},
		{name: "exact", items: []data.LineItem{item("50", 1), item("30", 1), item("9.99", 1)}, tax: "8"},
		{name: "exact with rounding", items: []data.LineItem{item("19.99", 1), item("4.01", 1), item("33", 1)}, tax: "3.84"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res, err := Reconcile(test.items, d(test.tax), d("1"))
			require.NoError(t, err)
			require.Contains(t, []Method{AllMethod, ExactMethod}, res.Method)
			gross, net := decimal.Zero, decimal.Zero
			for i, it := range test.items {
				gross = gross.Add(it.UnitPrice.Mul(res.Multipliers[i]))
				net = net.Add(it.UnitPrice)
			}
			assert.True(t, gross.Sub(net).Sub(d(test.tax)).Abs().LessThan(Epsilon), "gross %s net %s", gross, net)
		})
	}
}

func TestReconcile_ZeroPricedItemsExempt(t *testing.T) {
	items := []data.LineItem{item("0", 1), item("10", 1)}
	res, err := Reconcile(items, d("1.6"), d("2"))
	require.NoError(t, err)
	assert.Equal(t, AllMethod, res.Method)
	assertMultipliers(t, []string{"1", "1.16"}, res.Multipliers)
	assertMultipliers(t, []string{"0", "23.2"}, res.Amounts)
	assert.True(t, d("23.2").Equal(res.RefundTotal))
}

func TestReconcile_Amounts(t *testing.T) {
	items := []data.LineItem{item("50", 1), item("30", 2)}
	res, err := Reconcile(items, d("8"), d("40"))
	require.NoError(t, err)
	assert.Equal(t, ExactMethod, res.Method)
	assertMultipliers(t, []string{"2320", "1200"}, res.Amounts)
	assert.True(t, d("4720").Equal(res.RefundTotal))
}

func TestReconcile_Errors(t *testing.T) {
	_, err := Reconcile([]data.LineItem{item("0", 3)}, d("5"), d("1"))
	assert.ErrorIs(t, err, ErrReconciliation)

	_, err = Reconcile(nil, d("5"), d("1"))
	assert.ErrorIs(t, err, ErrReconciliation)

	_, err = Reconcile([]data.LineItem{item("10", 1)}, d("-1"), d("1"))
	assert.ErrorIs(t, err, ErrReconciliation)
}

func TestFindSubset(t *testing.T) {
	values := []decimal.Decimal{d("5"), d("9"), d("13")}

	chosen, ok := findSubset(values, d("22"))
	require.True(t, ok)
	assert.Equal(t, []bool{false, true, true}, chosen)

	_, ok = findSubset(values, d("100"))
	assert.False(t, ok)

	chosen, ok = findSubset(values, d("0.01"))
	require.True(t, ok)
	assert.Equal(t, []bool{false, false, false}, chosen)
}

func TestReconcile_UnreachableTargetIsCheap(t *testing.T) {
	items := make([]data.LineItem, MaxExactItems)
	for i := range items {
		items[i] = item(decimal.NewFromInt(int64(i+1)).String(), 1)
	}
	tests := []struct {
		name string
		tax  string
	}{
		{name: "above every subset", tax: "1000"},
		{name: "between integer sums", tax: "16.88"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			started := time.Now()
			res, err := Reconcile(items, d(test.tax), d("1"))
			require.NoError(t, err)
			assert.Equal(t, ProportionalMethod, res.Method)
			assert.Less(t, time.Since(started), 500*time.Millisecond)
		})
	}
}

// firstSubset enumerates include-first without any pruning.
func firstSubset(values []decimal.Decimal, target decimal.Decimal) ([]bool, bool) {
	n := len(values)
	for mask := 0; mask < 1<<n; mask++ {
		chosen := make([]bool, n)
		sum := decimal.Zero
		for i := range n {
			// bit n-1-i clear means values[i] is included, which walks include-first order
			if mask&(1<<(n-1-i)) == 0 {
				chosen[i] = true
				sum = sum.Add(values[i])
			}
		}
		if sum.Sub(target).Abs().LessThan(Epsilon) {
			return chosen, true
		}
	}
	return nil, false
}

func TestFindSubset_MatchesUnprunedOrder(t *testing.T) {
	tests := []struct {
		values []string
		target string
	}{
		{values: []string{"5", "9", "13"}, target: "22"},
		{values: []string{"10", "10", "10", "20"}, target: "20"},
		{values: []string{"1.25", "3.75", "2.5", "2.5", "5"}, target: "5"},
		{values: []string{"0", "7", "0", "3"}, target: "3"},
		{values: []string{"4", "6", "8"}, target: "9.5"},
		{values: []string{"12.99", "4.01", "8.5"}, target: "17.02"},
	}
	for _, test := range tests {
		t.Run(strings.Join(test.values, "+")+"="+test.target, func(t *testing.T) {
			values := make([]decimal.Decimal, len(test.values))
			for i, v := range test.values {
				values[i] = d(v)
			}
			expected, expectedOK := firstSubset(values, d(test.target))
			got, ok := findSubset(values, d(test.target))
			assert.Equal(t, expectedOK, ok)
			assert.Equal(t, expected, got)
		})
	}
}
