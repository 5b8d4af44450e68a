// Package ratelimit bounds how many actions the orchestrator may dispatch,
// per cycle, per action kind, and per channel, with an adaptive cooldown
// that lengthens after repeated rejections — generalizing the teacher's
// WebhookRateLimiter (sliding-window hit counting with pruning) onto the
// action vocabulary instead of webhook keys, and backing the steady-state
// budget with golang.org/x/time/rate token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config controls the limiter's budgets.
type Config struct {
	MaxActionsPerCycle   int
	MaxActionsPerKind    map[string]int
	MaxActionsPerChannel int
	ChannelWindow        time.Duration
	BurstCooldownBase    time.Duration
	BurstCooldownMax     time.Duration
}

// Default returns sane defaults matching spec.md's conservative bounds.
func Default() Config {
	return Config{
		MaxActionsPerCycle: 5,
		MaxActionsPerKind: map[string]int{
			"send_chat_message": 3,
			"send_social_post":  2,
			"generate_image":    1,
		},
		MaxActionsPerChannel: 2,
		ChannelWindow:        10 * time.Minute,
		BurstCooldownBase:    30 * time.Second,
		BurstCooldownMax:     15 * time.Minute,
	}
}

type channelEntry struct {
	hits      int
	windowEnd time.Time
}

// Limiter tracks per-cycle, per-kind, per-channel budgets plus an
// adaptive cooldown triggered by repeated rejections.
type Limiter struct {
	mu  sync.Mutex
	cfg Config

	cycleUsed   int
	kindUsed    map[string]int
	kindBuckets map[string]*rate.Limiter

	channels map[string]*channelEntry

	consecutiveRejections int
	cooldownUntil         time.Time
}

// New constructs a Limiter. Each action kind in cfg.MaxActionsPerKind
// gets its own token bucket refilling once per ChannelWindow, so a kind
// exhausted mid-cycle recovers smoothly rather than resetting abruptly
// at cycle boundaries.
func New(cfg Config) *Limiter {
	buckets := make(map[string]*rate.Limiter, len(cfg.MaxActionsPerKind))
	for kind, limit := range cfg.MaxActionsPerKind {
		every := cfg.ChannelWindow
		if every <= 0 {
			every = time.Minute
		}
		r := rate.Every(every / time.Duration(max(limit, 1)))
		buckets[kind] = rate.NewLimiter(r, limit)
	}
	return &Limiter{
		cfg:         cfg,
		kindUsed:    make(map[string]int),
		kindBuckets: buckets,
		channels:    make(map[string]*channelEntry),
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ResetCycle clears per-cycle counters; called by the orchestrator at
// the start of each decision cycle. Cross-cycle state (channel windows,
// cooldown) is untouched.
func (l *Limiter) ResetCycle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cycleUsed = 0
	l.kindUsed = make(map[string]int)
}

// Allow reports whether an action of the given kind, targeting the given
// channel (empty if not channel-scoped), may be dispatched right now. It
// does not touch the cycle, per-kind or per-channel counters; call Commit
// after the action actually executes. Where the kind has a token bucket,
// Allow itself takes a token from it once the earlier checks pass.
func (l *Limiter) Allow(kind, channelID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.cooldownUntil.IsZero() && time.Now().Before(l.cooldownUntil) {
		return false
	}
	if l.cycleUsed >= l.cfg.MaxActionsPerCycle {
		return false
	}
	if limit, ok := l.cfg.MaxActionsPerKind[kind]; ok && l.kindUsed[kind] >= limit {
		return false
	}
	if b, ok := l.kindBuckets[kind]; ok && !b.Allow() {
		return false
	}
	if channelID != "" && l.cfg.MaxActionsPerChannel > 0 {
		now := time.Now()
		entry := l.channels[channelID]
		if entry == nil || now.After(entry.windowEnd) {
			entry = &channelEntry{windowEnd: now.Add(l.cfg.ChannelWindow)}
			l.channels[channelID] = entry
		}
		if entry.hits >= l.cfg.MaxActionsPerChannel {
			return false
		}
	}
	return true
}

// Commit records that an allowed action was dispatched, consuming its
// budget across all applicable dimensions.
func (l *Limiter) Commit(kind, channelID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cycleUsed++
	l.kindUsed[kind]++
	if channelID != "" {
		now := time.Now()
		entry := l.channels[channelID]
		if entry == nil || now.After(entry.windowEnd) {
			entry = &channelEntry{windowEnd: now.Add(l.cfg.ChannelWindow)}
			l.channels[channelID] = entry
		}
		entry.hits++
	}
	l.consecutiveRejections = 0
}

// Reject records an attempted action that Allow denied, escalating the
// adaptive burst cooldown exponentially up to BurstCooldownMax.
func (l *Limiter) Reject() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consecutiveRejections++
	cooldown := l.cfg.BurstCooldownBase << uint(l.consecutiveRejections-1)
	if cooldown <= 0 || cooldown > l.cfg.BurstCooldownMax {
		cooldown = l.cfg.BurstCooldownMax
	}
	l.cooldownUntil = time.Now().Add(cooldown)
}

// Snapshot exposes the limiter's current counters for the payload
// builder to surface to the model.
type Snapshot struct {
	CycleUsed      int
	CycleLimit     int
	KindUsed       map[string]int
	CooldownActive bool
	CooldownUntil  time.Time
}

func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	kindUsed := make(map[string]int, len(l.kindUsed))
	for k, v := range l.kindUsed {
		kindUsed[k] = v
	}
	return Snapshot{
		CycleUsed:      l.cycleUsed,
		CycleLimit:     l.cfg.MaxActionsPerCycle,
		KindUsed:       kindUsed,
		CooldownActive: !l.cooldownUntil.IsZero() && time.Now().Before(l.cooldownUntil),
		CooldownUntil:  l.cooldownUntil,
	}
}
