package services

import (
	"sync"
	"time"
)

// Revenue status names and their exact multiplier/threshold contract.
const (
	RevenueUnderTarget = "under_target"
	RevenueOnTarget    = "on_target"
	RevenueNearLimit   = "near_limit"
	RevenueAtLimit     = "at_limit"
)

// DefaultMaxMonthlyRevenue is $500,000 in cents.
const DefaultMaxMonthlyRevenue int64 = 50_000_000

// RevenueGovernorDeps configures the governor.
type RevenueGovernorDeps struct {
	MaxMonthlyRevenue int64
	Logger            EventLogger
	Clock             func() time.Time
}

// StandardRevenueGovernor tracks daily and monthly revenue against caps.
// State is process-local and intentionally unpersisted; a restart starts the
// counters from zero.
type StandardRevenueGovernor struct {
	maxMonthly int64
	maxDaily   int64
	logger     EventLogger
	clock      func() time.Time

	mu        sync.Mutex
	daily     int64
	monthly   int64
	lastReset time.Time
}

// NewRevenueGovernor constructs the governor. The daily cap derives from the
// monthly cap as maxMonthly/30.
func NewRevenueGovernor(deps RevenueGovernorDeps) *StandardRevenueGovernor {
	if deps.MaxMonthlyRevenue <= 0 {
		deps.MaxMonthlyRevenue = DefaultMaxMonthlyRevenue
	}
	if deps.Logger == nil {
		deps.Logger = noopEventLogger
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &StandardRevenueGovernor{
		maxMonthly: deps.MaxMonthlyRevenue,
		maxDaily:   deps.MaxMonthlyRevenue / 30,
		logger:     deps.Logger,
		clock:      deps.Clock,
		lastReset:  deps.Clock().UTC(),
	}
}

// AddRevenue records an order amount and reports whether both counters are
// still at or under their caps. Calendar rollovers reset the counters first:
// a new day zeroes the daily total, a new month additionally zeroes the
// monthly total.
func (g *StandardRevenueGovernor) AddRevenue(amount int64) bool {
	now := g.clock().UTC()

	g.mu.Lock()
	defer g.mu.Unlock()

	if !sameDay(now, g.lastReset) {
		g.daily = 0
		if !sameMonth(now, g.lastReset) {
			g.monthly = 0
		}
		g.lastReset = now
	}

	g.daily += amount
	g.monthly += amount
	return g.daily <= g.maxDaily && g.monthly <= g.maxMonthly
}

// Status buckets the worse of the two counter percentages. Thresholds and
// multipliers are contractual values.
func (g *StandardRevenueGovernor) Status() RevenueStatus {
	g.mu.Lock()
	daily := percentOf(g.daily, g.maxDaily)
	monthly := percentOf(g.monthly, g.maxMonthly)
	g.mu.Unlock()

	worst := daily
	if monthly > worst {
		worst = monthly
	}

	status := RevenueStatus{DailyPercentage: daily, MonthlyPercentage: monthly}
	switch {
	case worst > 95:
		status.Status = RevenueAtLimit
		status.AdSpendMultiplier = 0
		status.ShouldOfferPromotions = false
	case worst > 80:
		status.Status = RevenueNearLimit
		status.AdSpendMultiplier = 0.3
		status.ShouldOfferPromotions = false
	case worst > 50:
		status.Status = RevenueOnTarget
		status.AdSpendMultiplier = 0.8
		status.ShouldOfferPromotions = true
	default:
		status.Status = RevenueUnderTarget
		status.AdSpendMultiplier = 1.0
		status.ShouldOfferPromotions = true
	}
	return status
}

func percentOf(amount, cap int64) float64 {
	if cap <= 0 {
		return 0
	}
	return float64(amount) / float64(cap) * 100
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
