package federatedchat

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

func TestBatcherCombinesWithinWindow(t *testing.T) {
	b := newBatcher(5*time.Second, 5)
	var flushed []*worldstate.Message
	b.onFlush(func(m *worldstate.Message) { flushed = append(flushed, m) })
	defer b.Close()

	base := time.Now()
	for i := 0; i < 5; i++ {
		b.Add(&worldstate.Message{
			ID: "m" + string(rune('0'+i)), ChannelID: "c1", AuthorID: "u1",
			Content: "part", Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}

	if len(flushed) != 1 {
		t.Fatalf("expected one flushed batch at cap, got %d", len(flushed))
	}
	if flushed[0].Metadata["batched"] != "true" || flushed[0].Metadata["count"] != "5" {
		t.Fatalf("expected batched metadata with count 5, got %+v", flushed[0].Metadata)
	}
	if len(flushed[0].Batched) != 5 {
		t.Fatalf("expected 5 preserved per-message entries, got %d", len(flushed[0].Batched))
	}
}

func TestBatcherDoesNotCombineDifferentSenders(t *testing.T) {
	b := newBatcher(5*time.Second, 5)
	var flushed []*worldstate.Message
	b.onFlush(func(m *worldstate.Message) { flushed = append(flushed, m) })
	defer b.Close()

	now := time.Now()
	b.Add(&worldstate.Message{ID: "a", ChannelID: "c1", AuthorID: "u1", Content: "hi", Timestamp: now})
	b.Add(&worldstate.Message{ID: "b", ChannelID: "c1", AuthorID: "u2", Content: "yo", Timestamp: now})

	if len(flushed) != 0 {
		t.Fatalf("expected no immediate flush below cap, got %d", len(flushed))
	}
}
