package hemat

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// CreditsPerUSD is the conversion rate between billed credits and dollars.
const CreditsPerUSD = 100000.0

const defaultDailyBudgetUSD = 0.5

// Resource types used for cost accounting. Unknown types are charged at the
// flat request rate.
const (
	ResourceTweet    = "tweet"
	ResourceUser     = "user"
	ResourceFollower = "follower"
	ResourceRequest  = "request"
)

// CreditRates maps a resource type to its cost in credits per 1000 items.
// The request rate doubles as the minimum charge of any call and as the
// fallback for unknown resource types.
type CreditRates map[string]float64

// DefaultCreditRates returns the published prices. A thousand tweets cost 15
// credits, yet a single-tweet call still bills the 15 credit request floor.
func DefaultCreditRates() CreditRates {
	return CreditRates{
		ResourceTweet:    15,
		ResourceUser:     18,
		ResourceFollower: 15,
		ResourceRequest:  15,
	}
}

func (r CreditRates) rateFor(resourceType string) float64 {
	if rate, ok := r[resourceType]; ok {
		return rate
	}
	return r[ResourceRequest]
}

// UsageEntry records a single billed call.
type UsageEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Endpoint     string    `json:"endpoint"`
	ResourceType string    `json:"type"`
	Count        int       `json:"count"`
	Credits      float64   `json:"credits"`
	USD          float64   `json:"usd"`
}

// BudgetStatus is a point-in-time snapshot of the ledger.
type BudgetStatus struct {
	DailyBudgetUSD     float64   `json:"daily_budget_usd"`
	DailyBudgetCredits float64   `json:"daily_budget_credits"`
	SpentTodayCredits  float64   `json:"spent_today_credits"`
	SpentTodayUSD      float64   `json:"spent_today_usd"`
	RemainingCredits   float64   `json:"remaining_credits"`
	RemainingUSD       float64   `json:"remaining_usd"`
	PercentUsed        float64   `json:"percent_used"`
	RequestCount       int64     `json:"request_count"`
	LastReset          time.Time `json:"last_reset"`
	NextReset          time.Time `json:"next_reset"`
}

// BudgetConfig configures a BudgetTracker. Zero values fall back to the
// defaults noted on each field.
type BudgetConfig struct {
	// DailyBudgetUSD is the spending cap per day. Default 0.5.
	DailyBudgetUSD float64
	// ResetHour is the local hour (0-23) at which the daily spend resets.
	// Default 0 (midnight).
	ResetHour int
	// Rates overrides the per-1000-item credit prices.
	Rates CreditRates
	// UsageLogPath appends one JSON line per billed call when set.
	UsageLogPath string
	// Clock drives reset timing. Default is the system clock.
	Clock Clock
	// Logger receives reset and sink failure notices. Default discards.
	Logger Logger
}

// BudgetTracker enforces a daily spending cap measured in credits. The spend
// counter resets lazily: the first check or charge after the configured reset
// hour zeroes it, and at most once per boundary.
//
// All methods are safe for concurrent use.
type BudgetTracker struct {
	mu           sync.Mutex
	dailyBudget  float64 // credits
	spentToday   float64 // credits
	totalSpent   float64 // credits
	requestCount int64
	lastReset    time.Time
	resetHour    int
	rates        CreditRates
	history      []UsageEntry
	logPath      string
	clock        Clock
	logger       Logger
}

// NewBudgetTracker creates a ledger from cfg, filling unset fields with
// defaults.
func NewBudgetTracker(cfg BudgetConfig) *BudgetTracker {
	if cfg.DailyBudgetUSD <= 0 {
		cfg.DailyBudgetUSD = defaultDailyBudgetUSD
	}
	if cfg.ResetHour < 0 || cfg.ResetHour > 23 {
		cfg.ResetHour = 0
	}
	if cfg.Rates == nil {
		cfg.Rates = DefaultCreditRates()
	}
	if cfg.Clock == nil {
		cfg.Clock = NewClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger{}
	}
	b := &BudgetTracker{
		dailyBudget: cfg.DailyBudgetUSD * CreditsPerUSD,
		resetHour:   cfg.ResetHour,
		rates:       cfg.Rates,
		logPath:     cfg.UsageLogPath,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
	b.lastReset = b.resetAnchor(cfg.Clock.Now())
	return b
}

// RequestRate returns the flat per-request charge in credits. The rate table
// is immutable after construction, so no lock is needed.
func (b *BudgetTracker) RequestRate() float64 {
	return b.rates.rateFor(ResourceRequest)
}

// CalculateCost returns the credit cost of count items of resourceType.
// The result is never below the flat request rate, so even a zero-item call
// is charged the minimum.
func (b *BudgetTracker) CalculateCost(resourceType string, count int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.costLocked(resourceType, count)
}

func (b *BudgetTracker) costLocked(resourceType string, count int) float64 {
	cost := b.rates.rateFor(resourceType) * float64(count) / 1000
	if minimum := b.rates.rateFor(ResourceRequest); cost < minimum {
		cost = minimum
	}
	return cost
}

// CheckBudget reports whether a call costing estimatedCost credits fits in
// what remains of today's budget. It applies the lazy daily reset first.
func (b *BudgetTracker) CheckBudget(estimatedCost float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetLocked()
	return b.spentToday+estimatedCost <= b.dailyBudget
}

// CanAfford reports whether count items of resourceType fit in the remaining
// budget, along with the credit cost that would be charged.
func (b *BudgetTracker) CanAfford(resourceType string, count int) (bool, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetLocked()
	cost := b.costLocked(resourceType, count)
	return b.spentToday+cost <= b.dailyBudget, cost
}

// RecordUsage charges the ledger for a completed call and returns the credits
// charged. The entry is appended to the in-memory history and, when a usage
// log is configured, to the JSONL sink. Sink failures are logged, never
// returned; accounting must not fail a call that already succeeded.
func (b *BudgetTracker) RecordUsage(endpoint, resourceType string, count int) float64 {
	b.mu.Lock()
	b.maybeResetLocked()
	cost := b.costLocked(resourceType, count)
	b.spentToday += cost
	b.totalSpent += cost
	b.requestCount++
	entry := UsageEntry{
		Timestamp:    b.clock.Now(),
		Endpoint:     endpoint,
		ResourceType: resourceType,
		Count:        count,
		Credits:      cost,
		USD:          cost / CreditsPerUSD,
	}
	b.history = append(b.history, entry)
	b.mu.Unlock()

	if b.logPath != "" {
		b.appendToLog(entry)
	}
	return cost
}

// Status returns a snapshot of today's spend after applying the lazy reset.
func (b *BudgetTracker) Status() BudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetLocked()

	remaining := b.dailyBudget - b.spentToday
	percent := 0.0
	if b.dailyBudget > 0 {
		percent = b.spentToday / b.dailyBudget * 100
	}
	return BudgetStatus{
		DailyBudgetUSD:     b.dailyBudget / CreditsPerUSD,
		DailyBudgetCredits: b.dailyBudget,
		SpentTodayCredits:  b.spentToday,
		SpentTodayUSD:      b.spentToday / CreditsPerUSD,
		RemainingCredits:   remaining,
		RemainingUSD:       remaining / CreditsPerUSD,
		PercentUsed:        percent,
		RequestCount:       b.requestCount,
		LastReset:          b.lastReset,
		NextReset:          b.lastReset.AddDate(0, 0, 1),
	}
}

// resetAnchor returns the most recent daily boundary at or before now: today
// at the reset hour, or yesterday's when the hour has not arrived yet.
func (b *BudgetTracker) resetAnchor(now time.Time) time.Time {
	anchor := time.Date(now.Year(), now.Month(), now.Day(), b.resetHour, 0, 0, 0, now.Location())
	if anchor.After(now) {
		anchor = anchor.AddDate(0, 0, -1)
	}
	return anchor
}

// maybeResetLocked zeroes today's spend once the clock crosses the boundary
// following lastReset. lastReset then moves to the new boundary, so repeated
// calls inside the same day are no-ops. Caller must hold b.mu.
func (b *BudgetTracker) maybeResetLocked() {
	now := b.clock.Now()
	if now.Before(b.lastReset.AddDate(0, 0, 1)) {
		return
	}
	previous := b.spentToday
	b.spentToday = 0
	b.lastReset = b.resetAnchor(now)
	b.logger.Info("Daily budget reset",
		"previousSpendCredits", previous,
		"budgetCredits", b.dailyBudget,
		"resetHour", b.resetHour,
	)
}

// appendToLog writes entry as one JSON line. The file is opened per write so
// a crash never leaves a dangling handle.
func (b *BudgetTracker) appendToLog(entry UsageEntry) {
	line, err := json.Marshal(entry)
	if err != nil {
		b.logger.Warn("Failed to encode usage entry", "error", err)
		return
	}
	f, err := os.OpenFile(b.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		b.logger.Warn("Failed to open usage log", "path", b.logPath, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		b.logger.Warn("Failed to append usage entry", "path", b.logPath, "error", err)
	}
}
