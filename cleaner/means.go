package cleaner

import "github.com/shopspring/decimal"

// categoryMeans tracks the running mean price per category plus a global
// fallback. The state lives for one pipeline run and feeds the imputation of
// records whose price could not be parsed; imputed prices are never fed back
// into the accumulator.
type categoryMeans struct {
	byCategory map[string]*runningMean
	global     runningMean
}

type runningMean struct {
	sum decimal.Decimal
	n   int64
}

func newCategoryMeans() *categoryMeans {
	return &categoryMeans{byCategory: make(map[string]*runningMean)}
}

func (m *categoryMeans) observe(category string, price decimal.Decimal) {
	rm, ok := m.byCategory[category]
	if !ok {
		rm = &runningMean{}
		m.byCategory[category] = rm
	}
	rm.add(price)
	m.global.add(price)
}

// mean returns the category mean when the category has observations,
// falling back to the global mean. ok is false before any observation.
func (m *categoryMeans) mean(category string) (decimal.Decimal, bool) {
	if rm, ok := m.byCategory[category]; ok && rm.n > 0 {
		return rm.mean(), true
	}
	if m.global.n > 0 {
		return m.global.mean(), true
	}
	return decimal.Zero, false
}

func (rm *runningMean) add(price decimal.Decimal) {
	rm.sum = rm.sum.Add(price)
	rm.n++
}

func (rm *runningMean) mean() decimal.Decimal {
	return rm.sum.Div(decimal.NewFromInt(rm.n)).Round(2)
}
