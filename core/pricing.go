package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PricingSource resolves a symbol's price as of a given time. Contracts
// receive one per Step and must treat it as a pure lookup.
type PricingSource interface {
	Price(symbol string, t time.Time) (decimal.Decimal, error)
}

// StaticPricingSource returns a fixed price per symbol regardless of time,
// useful for tests and contracts with no daily mark.
type StaticPricingSource struct {
	prices map[string]decimal.Decimal
}

// NewStaticPricingSource constructs a StaticPricingSource from a symbol ->
// price map.
func NewStaticPricingSource(prices map[string]decimal.Decimal) *StaticPricingSource {
	cp := make(map[string]decimal.Decimal, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &StaticPricingSource{prices: cp}
}

// Price implements PricingSource.
func (s *StaticPricingSource) Price(symbol string, _ time.Time) (decimal.Decimal, error) {
	p, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, newValidationError("no static price registered for %s", symbol)
	}
	return p, nil
}

// pricePoint is one observation in a symbol's time series.
type pricePoint struct {
	t time.Time
	p decimal.Decimal
}

// TimeSeriesPricingSource resolves a symbol's price at t as the latest
// observation at or before t, via binary search over each symbol's sorted
// observation list.
type TimeSeriesPricingSource struct {
	series map[string][]pricePoint
}

// NewTimeSeriesPricingSource constructs an empty time-series source.
func NewTimeSeriesPricingSource() *TimeSeriesPricingSource {
	return &TimeSeriesPricingSource{series: make(map[string][]pricePoint)}
}

// AddObservation records a price observation for symbol at t. Observations
// may be added out of order; they are kept sorted by time internally.
func (s *TimeSeriesPricingSource) AddObservation(symbol string, t time.Time, price decimal.Decimal) {
	points := s.series[symbol]
	points = append(points, pricePoint{t: t, p: price})
	sort.Slice(points, func(i, j int) bool { return points[i].t.Before(points[j].t) })
	s.series[symbol] = points
}

// Price implements PricingSource: the latest observation at or before t,
// found via binary search (bisect-right equivalent).
func (s *TimeSeriesPricingSource) Price(symbol string, t time.Time) (decimal.Decimal, error) {
	points, ok := s.series[symbol]
	if !ok || len(points) == 0 {
		return decimal.Zero, newValidationError("no price series registered for %s", symbol)
	}
	idx := sort.Search(len(points), func(i int) bool { return points[i].t.After(t) })
	if idx == 0 {
		return decimal.Zero, newValidationError("no observation for %s at or before %s", symbol, t)
	}
	return points[idx-1].p, nil
}
