package worldstate

import (
	"testing"
	"time"
)

func TestAddMessageDedup(t *testing.T) {
	s := New()
	m := &Message{ID: "m1", ChannelID: "c1", Content: "hello", Timestamp: time.Now()}
	if !s.AddMessage(m) {
		t.Fatalf("expected first insert to succeed")
	}
	if s.AddMessage(m) {
		t.Fatalf("expected duplicate message ID to be rejected")
	}
	if got := len(s.Messages("c1", 0)); got != 1 {
		t.Fatalf("expected 1 message, got %d", got)
	}
}

func TestAddMessageRetentionCap(t *testing.T) {
	s := New(WithMaxMessagesPerChannel(3))
	base := time.Now()
	for i := 0; i < 10; i++ {
		s.AddMessage(&Message{
			ID:        string(rune('a' + i)),
			ChannelID: "c1",
			Content:   "x",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	msgs := s.Messages("c1", 0)
	if len(msgs) != 3 {
		t.Fatalf("expected retention cap of 3, got %d", len(msgs))
	}
	if msgs[len(msgs)-1].ID != string(rune('a'+9)) {
		t.Fatalf("expected newest message retained, got %q", msgs[len(msgs)-1].ID)
	}
}

func TestRecordActionCap(t *testing.T) {
	s := New(WithMaxActionHistory(2))
	for i := 0; i < 5; i++ {
		s.RecordAction(&ActionRecord{ID: string(rune('a' + i)), Kind: ActionWait, CreatedAt: time.Now()})
	}
	if got := len(s.Actions(0)); got != 2 {
		t.Fatalf("expected action history capped at 2, got %d", got)
	}
}

func TestBatchMessagesPreservesTimestamps(t *testing.T) {
	t0 := time.Now()
	msgs := []*Message{
		{ID: "1", AuthorID: "u1", ChannelID: "c1", Content: "hi", Timestamp: t0},
		{ID: "2", AuthorID: "u1", ChannelID: "c1", Content: "there", Timestamp: t0.Add(time.Second)},
		{ID: "3", AuthorID: "u2", ChannelID: "c1", Content: "hey", Timestamp: t0.Add(2 * time.Second)},
	}
	batched := BatchMessages(msgs)
	if len(batched) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batched))
	}
	if len(batched[0].Batched) != 2 {
		t.Fatalf("expected first batch to fold 2 messages, got %d", len(batched[0].Batched))
	}
	if !batched[0].Batched[0].Timestamp.Equal(t0) {
		t.Fatalf("expected original timestamp preserved in batch")
	}
}

func TestRecentBotMessagesFiltersShortContent(t *testing.T) {
	s := New()
	now := time.Now()
	s.AddMessage(&Message{ID: "short", ChannelID: "c1", IsFromBot: true, Content: "hi", Timestamp: now})
	s.AddMessage(&Message{ID: "long", ChannelID: "c1", IsFromBot: true, Content: "this is a much longer bot message", Timestamp: now})
	msgs := s.RecentBotMessages(now.Add(-time.Hour))
	if len(msgs) != 1 || msgs[0].ID != "long" {
		t.Fatalf("expected only the >20 char message, got %v", msgs)
	}
}

func TestMarkUndecryptableEvictsOldest(t *testing.T) {
	s := New()
	base := time.Now()
	for i := 0; i < DefaultMaxUndecryptable+5; i++ {
		s.MarkUndecryptable(&UndecryptableEvent{
			EventID:   string(rune(i)),
			FirstSeen: base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	if got := len(s.UnresolvedUndecryptable()); got > DefaultMaxUndecryptable {
		t.Fatalf("expected undecryptable set capped at %d, got %d", DefaultMaxUndecryptable, got)
	}
}
