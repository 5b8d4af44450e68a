package federatedchat

import (
	"strconv"
	"sync"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// batchKey groups pending messages by the sender+channel pair spec.md
// §4.1.2 batches on.
type batchKey struct {
	channelID, senderID string
}

type pendingBatch struct {
	first *worldstate.Message
	parts []worldstate.BatchedMessage
	combinedContent string
	lastSeen        time.Time
}

// batcher folds same-sender messages arriving within a 5-second window
// in the same channel (up to maxCount) into one logical Message with
// metadata {batched: true, count: N}, per spec.md §4.1.2. Each
// constituent message's original content and timestamp survive in
// worldstate.Message.Batched, per SPEC_FULL.md §13 item 1.
type batcher struct {
	mu       sync.Mutex
	window   time.Duration
	maxCount int
	pending  map[batchKey]*pendingBatch
	flush    func(*worldstate.Message)
	stop     chan struct{}
}

func newBatcher(window time.Duration, maxCount int) *batcher {
	b := &batcher{
		window:   window,
		maxCount: maxCount,
		pending:  make(map[batchKey]*pendingBatch),
		stop:     make(chan struct{}),
	}
	return b
}

// onFlush registers the callback invoked when a batch closes, either
// because it hit maxCount or because the background sweep found it
// older than window with no new arrivals. Must be called before the
// first Add.
func (b *batcher) onFlush(fn func(*worldstate.Message)) {
	b.flush = fn
	go b.sweepLoop()
}

func (b *batcher) sweepLoop() {
	ticker := time.NewTicker(b.window)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case now := <-ticker.C:
			b.mu.Lock()
			var ready []*worldstate.Message
			for k, p := range b.pending {
				if now.Sub(p.lastSeen) >= b.window {
					ready = append(ready, finalize(p))
					delete(b.pending, k)
				}
			}
			b.mu.Unlock()
			for _, m := range ready {
				b.flush(m)
			}
		}
	}
}

// Add enqueues msg into its sender+channel batch, flushing it
// immediately through the onFlush callback if the batch has now
// reached maxCount.
func (b *batcher) Add(msg *worldstate.Message) {
	b.mu.Lock()
	key := batchKey{channelID: msg.ChannelID, senderID: msg.AuthorID}
	p, ok := b.pending[key]
	if !ok || msg.Timestamp.Sub(p.first.Timestamp) > b.window {
		p = &pendingBatch{first: msg, combinedContent: msg.Content, lastSeen: msg.Timestamp}
		p.parts = []worldstate.BatchedMessage{{Content: msg.Content, Timestamp: msg.Timestamp}}
		b.pending[key] = p
	} else {
		p.combinedContent += "\n" + msg.Content
		p.parts = append(p.parts, worldstate.BatchedMessage{Content: msg.Content, Timestamp: msg.Timestamp})
		p.lastSeen = msg.Timestamp
	}

	var ready *worldstate.Message
	if len(p.parts) >= b.maxCount {
		ready = finalize(p)
		delete(b.pending, key)
	}
	b.mu.Unlock()

	if ready != nil && b.flush != nil {
		b.flush(ready)
	}
}

func finalize(p *pendingBatch) *worldstate.Message {
	out := *p.first
	out.Content = p.combinedContent
	out.Timestamp = p.lastSeen
	out.Batched = p.parts
	if len(p.parts) > 1 {
		if out.Metadata == nil {
			out.Metadata = map[string]string{}
		}
		out.Metadata["batched"] = "true"
		out.Metadata["count"] = strconv.Itoa(len(p.parts))
	}
	return &out
}

func (b *batcher) Close() { close(b.stop) }
