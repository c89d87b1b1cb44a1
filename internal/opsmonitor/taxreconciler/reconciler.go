// Package taxreconciler reconstructs which line items of an invoice were taxed
// from the aggregate tax reported by the legacy system, and derives the
// refundable gross amount of each item in a second currency.
//
// The result is a reconstruction, not ground truth: the aggregate alone does
// not determine per-item taxability. Confidence tells callers how far to trust it.
package taxreconciler

import (
	"errors"
	"fmt"
	"ops-monitor/internal/opsmonitor/data"

	"github.com/shopspring/decimal"
)

// MaxExactItems bounds the subset search, which is exponential in the item count.
const MaxExactItems = 20

var (
	TaxRate = decimal.RequireFromString("0.16")
	Epsilon = decimal.RequireFromString("0.05")
)

var ErrReconciliation = errors.New("tax cannot be reconciled")

type Method string

const (
	NoneMethod         = Method("none")
	AllMethod          = Method("all")
	ExactMethod        = Method("exact")
	ProportionalMethod = Method("proportional")
)

type Confidence string

const (
	AuthoritativeConfidence = Confidence("authoritative")
	HeuristicConfidence     = Confidence("heuristic")
	LowConfidence           = Confidence("low")
)

type Result struct {
	Method       Method
	Confidence   Confidence
	Multipliers  []decimal.Decimal
	Amounts      []decimal.Decimal
	NetTotal     decimal.Decimal
	ReportedTax  decimal.Decimal
	ExchangeRate decimal.Decimal
	RefundTotal  decimal.Decimal
}

// Reconcile decides a tax multiplier per item and converts each item's taxed
// unit price with rate. It keeps no state and is safe for concurrent use.
func Reconcile(items []data.LineItem, reportedTax, rate decimal.Decimal) (Result, error) {
	if reportedTax.IsNegative() {
		return Result{}, fmt.Errorf("%w: negative reported tax %s", ErrReconciliation, reportedTax)
	}

	values := make([]decimal.Decimal, len(items))
	netTotal := decimal.Zero
	for i, item := range items {
		values[i] = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		netTotal = netTotal.Add(values[i])
	}

	res := Result{
		NetTotal:     netTotal,
		ReportedTax:  reportedTax,
		ExchangeRate: rate,
		Confidence:   AuthoritativeConfidence,
	}
	taxed := decimal.NewFromInt(1).Add(TaxRate)

	switch {
	case reportedTax.IsZero():
		res.Method = NoneMethod
		res.Multipliers = uniform(len(items), decimal.NewFromInt(1))
	case reportedTax.Sub(netTotal.Mul(TaxRate)).Abs().LessThan(Epsilon):
		res.Method = AllMethod
		res.Multipliers = uniform(len(items), taxed)
	default:
		subset, found := findSubset(values, reportedTax.Div(TaxRate))
		if found {
			res.Method = ExactMethod
			res.Confidence = HeuristicConfidence
			res.Multipliers = make([]decimal.Decimal, len(items))
			for i, inSubset := range subset {
				res.Multipliers[i] = decimal.NewFromInt(1)
				if inSubset {
					res.Multipliers[i] = taxed
				}
			}
			break
		}
		if !netTotal.IsPositive() {
			return Result{}, fmt.Errorf("%w: reported tax %s over net total %s", ErrReconciliation, reportedTax, netTotal)
		}
		res.Method = ProportionalMethod
		res.Confidence = LowConfidence
		res.Multipliers = uniform(len(items), decimal.NewFromInt(1).Add(reportedTax.Div(netTotal)))
	}

	res.Amounts = make([]decimal.Decimal, len(items))
	res.RefundTotal = decimal.Zero
	for i, item := range items {
		// unpriced items are promotional inclusions and never taxed
		if item.UnitPrice.IsZero() {
			res.Multipliers[i] = decimal.NewFromInt(1)
		}
		res.Amounts[i] = item.UnitPrice.Mul(res.Multipliers[i]).Mul(rate)
		res.RefundTotal = res.RefundTotal.Add(res.Amounts[i].Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return res, nil
}

// findSubset looks for items whose values add up to target within Epsilon.
// Branches include an item before excluding it, so the first match in that
// order wins when several subsets fit.
func findSubset(values []decimal.Decimal, target decimal.Decimal) ([]bool, bool) {
	if len(values) > MaxExactItems {
		return nil, false
	}
	// remaining[i] is the most values[i:] can still add to a sum.
	remaining := make([]decimal.Decimal, len(values)+1)
	remaining[len(values)] = decimal.Zero
	for i := len(values) - 1; i >= 0; i-- {
		remaining[i] = remaining[i+1].Add(decimal.Max(values[i], decimal.Zero))
	}
	chosen := make([]bool, len(values))
	s := subsetSearch{
		values:    values,
		remaining: remaining,
		target:    target,
		upper:     target.Add(Epsilon),
		lower:     target.Sub(Epsilon),
		chosen:    chosen,
		dead:      make(map[searchState]struct{}),
	}
	if s.run(0, decimal.Zero) {
		return chosen, true
	}
	return nil, false
}

type subsetSearch struct {
	values    []decimal.Decimal
	remaining []decimal.Decimal
	target    decimal.Decimal
	upper     decimal.Decimal
	lower     decimal.Decimal
	chosen    []bool
	dead      map[searchState]struct{}
}

type searchState struct {
	sum string
	idx int
}

// run reports whether values[idx:] can complete sum to the target. States
// that fail once are remembered in dead and never expanded again.
func (s *subsetSearch) run(idx int, sum decimal.Decimal) bool {
	if sum.GreaterThan(s.upper) {
		return false
	}
	if sum.Add(s.remaining[idx]).LessThanOrEqual(s.lower) {
		return false
	}
	if idx == len(s.values) {
		return sum.Sub(s.target).Abs().LessThan(Epsilon)
	}
	state := searchState{idx: idx, sum: sum.String()}
	if _, ok := s.dead[state]; ok {
		return false
	}
	s.chosen[idx] = true
	if s.run(idx+1, sum.Add(s.values[idx])) {
		return true
	}
	s.chosen[idx] = false
	if s.run(idx+1, sum) {
		return true
	}
	s.dead[state] = struct{}{}
	return false
}

func uniform(n int, value decimal.Decimal) []decimal.Decimal {
	res := make([]decimal.Decimal, n)
	for i := range res {
		res[i] = value
	}
	return res
}
