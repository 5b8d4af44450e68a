package ratelimit

import (
	"testing"
	"time"
)

func TestAllowRespectsCycleLimit(t *testing.T) {
	cfg := Default()
	cfg.MaxActionsPerCycle = 2
	cfg.MaxActionsPerKind = map[string]int{"wait": 10}
	l := New(cfg)

	if !l.Allow("wait", "") {
		t.Fatalf("expected first action allowed")
	}
	l.Commit("wait", "")
	if !l.Allow("wait", "") {
		t.Fatalf("expected second action allowed")
	}
	l.Commit("wait", "")
	if l.Allow("wait", "") {
		t.Fatalf("expected third action to be denied by cycle cap")
	}
}

func TestResetCycleClearsCounters(t *testing.T) {
	cfg := Default()
	cfg.MaxActionsPerCycle = 1
	l := New(cfg)
	l.Commit("send_chat_message", "")
	if l.Allow("send_chat_message", "") {
		t.Fatalf("expected cycle exhausted before reset")
	}
	l.ResetCycle()
	if !l.Allow("send_chat_message", "") {
		t.Fatalf("expected budget restored after ResetCycle")
	}
}

func TestChannelLimitIsPerChannel(t *testing.T) {
	cfg := Default()
	cfg.MaxActionsPerCycle = 100
	cfg.MaxActionsPerKind = map[string]int{"send_chat_message": 100}
	cfg.MaxActionsPerChannel = 1
	l := New(cfg)

	if !l.Allow("send_chat_message", "c1") {
		t.Fatalf("expected first action on c1 allowed")
	}
	l.Commit("send_chat_message", "c1")
	if l.Allow("send_chat_message", "c1") {
		t.Fatalf("expected second action on c1 denied")
	}
	if !l.Allow("send_chat_message", "c2") {
		t.Fatalf("expected action on distinct channel c2 allowed")
	}
}

func TestRejectEscalatesCooldownMonotonically(t *testing.T) {
	cfg := Default()
	cfg.BurstCooldownBase = time.Millisecond
	cfg.BurstCooldownMax = time.Hour
	l := New(cfg)

	l.Reject()
	first := l.cooldownUntil
	l.Reject()
	second := l.cooldownUntil
	if !second.After(first) {
		t.Fatalf("expected cooldown to lengthen monotonically on repeated rejection")
	}
}

func TestCommitResetsConsecutiveRejections(t *testing.T) {
	cfg := Default()
	cfg.BurstCooldownBase = time.Millisecond
	l := New(cfg)
	l.Reject()
	l.Commit("wait", "")
	if l.consecutiveRejections != 0 {
		t.Fatalf("expected Commit to clear consecutive rejection count")
	}
}
