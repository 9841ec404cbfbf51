// Package usage enforces a hard spend ceiling on a metered external resource.
//
// A Guard keeps a process-wide ledger of cumulative spend and units. Callers ask
// CanProceed with an estimate before a billed call and report actual usage with
// RecordUsage afterwards. The check does not reserve budget: concurrent callers
// may each pass with the same remaining headroom, so the ceiling can be overshot
// by at most the sum of in-flight estimates. The ledger is not persisted.
package usage

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"diet-cookbook/internal/observability/metrics"
)

// ErrNegativeUsage is returned when a report carries negative units or a rate is negative.
var ErrNegativeUsage = errors.New("usage: negative units or rate")

// Report is the usage a protected operation reports back.
type Report struct {
	UnitsIn  int64
	UnitsOut int64
}

// Total returns UnitsIn + UnitsOut.
func (r Report) Total() int64 {
	return r.UnitsIn + r.UnitsOut
}

// Pricing is the cost per unit in each direction.
type Pricing struct {
	PerUnitIn  float64
	PerUnitOut float64
}

// PricingPer1K converts prices quoted per 1,000 units, as providers usually quote tokens.
func PricingPer1K(in, out float64) Pricing {
	return Pricing{PerUnitIn: in / 1000, PerUnitOut: out / 1000}
}

// GPT35TurboPricing approximates gpt-3.5-turbo pricing in USD.
var GPT35TurboPricing = PricingPer1K(0.0005, 0.0015)

// Cost returns the price of r under p.
func (p Pricing) Cost(r Report) float64 {
	return float64(r.UnitsIn)*p.PerUnitIn + float64(r.UnitsOut)*p.PerUnitOut
}

// Snapshot is a consistent view of a Guard's ledger.
type Snapshot struct {
	Resource  string  `json:"resource"`
	Spend     float64 `json:"spend"`
	Units     int64   `json:"units"`
	Ceiling   float64 `json:"ceiling"`
	Remaining float64 `json:"remaining"`
}

// Exhausted reports whether no budget remains.
func (s Snapshot) Exhausted() bool {
	return s.Remaining <= 0
}

// Guard is a mutex-protected spend ledger with a fixed ceiling.
type Guard struct {
	resource string
	ceiling  float64

	mu    sync.Mutex
	spend float64
	units int64

	denialLog rate.Sometimes
}

// NewGuard creates a Guard for the named resource. The ceiling must not be negative.
func NewGuard(resource string, ceiling float64) (*Guard, error) {
	if resource == "" {
		return nil, errors.New("usage: resource name cannot be empty")
	}
	if ceiling < 0 {
		return nil, fmt.Errorf("usage: ceiling must not be negative, got %v", ceiling)
	}
	g := &Guard{
		resource:  resource,
		ceiling:   ceiling,
		denialLog: rate.Sometimes{First: 3, Interval: time.Minute},
	}
	metrics.SetUsage(resource, 0, 0, ceiling)
	return g, nil
}

// CanProceed reports whether spend + estimatedCost stays within the ceiling.
// An estimate that lands exactly on the ceiling is allowed. Negative and NaN
// estimates are refused.
func (g *Guard) CanProceed(estimatedCost float64) bool {
	if estimatedCost < 0 || math.IsNaN(estimatedCost) {
		metrics.RecordUsageDenied(g.resource)
		slog.Warn("invalid cost estimate, call refused",
			slog.String("resource", g.resource),
			slog.Float64("estimate", estimatedCost))
		return false
	}

	g.mu.Lock()
	spend := g.spend
	ok := spend+estimatedCost <= g.ceiling
	g.mu.Unlock()

	if !ok {
		metrics.RecordUsageDenied(g.resource)
		g.denialLog.Do(func() {
			slog.Warn("usage ceiling reached, call refused",
				slog.String("resource", g.resource),
				slog.Float64("spend", spend),
				slog.Float64("estimate", estimatedCost),
				slog.Float64("ceiling", g.ceiling))
		})
	}
	return ok
}

// RecordUsage adds unitsIn*rateIn + unitsOut*rateOut to the spend and
// unitsIn + unitsOut to the unit count, and returns the cost added.
func (g *Guard) RecordUsage(unitsIn, unitsOut int64, rateIn, rateOut float64) (float64, error) {
	if unitsIn < 0 || unitsOut < 0 || rateIn < 0 || rateOut < 0 {
		return 0, ErrNegativeUsage
	}
	cost := float64(unitsIn)*rateIn + float64(unitsOut)*rateOut

	g.mu.Lock()
	g.spend += cost
	g.units += unitsIn + unitsOut
	spend, units := g.spend, g.units
	g.mu.Unlock()

	metrics.SetUsage(g.resource, spend, units, g.ceiling)
	slog.Debug("usage recorded",
		slog.String("resource", g.resource),
		slog.Int64("units_in", unitsIn),
		slog.Int64("units_out", unitsOut),
		slog.Float64("cost", cost),
		slog.Float64("spend", spend))
	return cost, nil
}

// Record is RecordUsage with a Report and Pricing.
func (g *Guard) Record(r Report, p Pricing) (float64, error) {
	return g.RecordUsage(r.UnitsIn, r.UnitsOut, p.PerUnitIn, p.PerUnitOut)
}

// Remaining returns ceiling - spend, which is negative once the ceiling was overshot.
func (g *Guard) Remaining() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ceiling - g.spend
}

// Snapshot returns the current ledger.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Resource:  g.resource,
		Spend:     g.spend,
		Units:     g.units,
		Ceiling:   g.ceiling,
		Remaining: g.ceiling - g.spend,
	}
}

// Resource returns the name of the metered resource.
func (g *Guard) Resource() string {
	return g.resource
}
