package ratelimit

import (
	"testing"
	"time"
)

func TestCycleGateEnforcesMinInterval(t *testing.T) {
	cfg := DefaultCycleConfig()
	cfg.MinCycleInterval = time.Minute
	g := NewCycleGate(cfg)

	now := time.Now()
	ok, _ := g.CanProcess(now)
	if !ok {
		t.Fatalf("expected first cycle allowed")
	}
	g.Record(now)

	ok, wait := g.CanProcess(now.Add(10 * time.Second))
	if ok {
		t.Fatalf("expected cycle denied before min interval elapses")
	}
	if wait <= 0 {
		t.Fatalf("expected positive wait duration")
	}

	ok, _ = g.CanProcess(now.Add(time.Minute + time.Second))
	if !ok {
		t.Fatalf("expected cycle allowed once min interval elapses")
	}
}

func TestCycleGateBurstEscalatesAdaptiveMultiplier(t *testing.T) {
	cfg := DefaultCycleConfig()
	cfg.MinCycleInterval = time.Millisecond
	cfg.MaxBurstCycles = 2
	cfg.BurstWindow = time.Minute
	cfg.CooldownMultiplier = 5
	g := NewCycleGate(cfg)

	base := time.Now()
	for i := 0; i < 4; i++ {
		g.Record(base.Add(time.Duration(i) * time.Millisecond))
	}
	if g.AdaptiveMultiplier() <= 1.0 {
		t.Fatalf("expected burst to escalate adaptive multiplier, got %f", g.AdaptiveMultiplier())
	}
}

func TestCycleGateDecayReturnsTowardOne(t *testing.T) {
	cfg := DefaultCycleConfig()
	cfg.DecayPerCleanCycle = 0.5
	g := NewCycleGate(cfg)
	g.adaptiveMultiplier = 2.0
	g.DecayOne()
	if g.adaptiveMultiplier != 1.5 {
		t.Fatalf("expected multiplier to decay to 1.5, got %f", g.adaptiveMultiplier)
	}
	g.DecayOne()
	g.DecayOne()
	if g.adaptiveMultiplier != 1.0 {
		t.Fatalf("expected multiplier to floor at 1.0, got %f", g.adaptiveMultiplier)
	}
}
