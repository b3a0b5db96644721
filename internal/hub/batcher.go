package hub

import (
	"strings"
	"sync"
	"time"
)

// outputBatcher coalesces terminal output chunks per session so a
// fast-scrolling PTY does not turn into one websocket frame per read.
type outputBatcher struct {
	mu       sync.Mutex
	pending  map[string]*pendingOutput
	interval time.Duration
	onFlush  func(msg TermDataMessage)
}

type pendingOutput struct {
	chunks []string
	timer  *time.Timer
}

func newOutputBatcher(interval time.Duration, onFlush func(TermDataMessage)) *outputBatcher {
	return &outputBatcher{
		pending:  make(map[string]*pendingOutput),
		interval: interval,
		onFlush:  onFlush,
	}
}

func (b *outputBatcher) Add(sessionID, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, exists := b.pending[sessionID]
	if !exists {
		p = &pendingOutput{}
		b.pending[sessionID] = p
	}
	p.chunks = append(p.chunks, data)

	if p.timer == nil {
		p.timer = time.AfterFunc(b.interval, func() {
			b.Flush(sessionID)
		})
	}
}

// Flush emits whatever is pending for one session immediately. Called on
// the batch timer and on session exit so the final output precedes the
// exit notification.
func (b *outputBatcher) Flush(sessionID string) {
	b.mu.Lock()
	p, exists := b.pending[sessionID]
	if !exists {
		b.mu.Unlock()
		return
	}
	delete(b.pending, sessionID)
	if p.timer != nil {
		p.timer.Stop()
	}
	b.mu.Unlock()

	if b.onFlush != nil && len(p.chunks) > 0 {
		b.onFlush(TermDataMessage{
			Type:      "term_data",
			SessionID: sessionID,
			Data:      strings.Join(p.chunks, ""),
		})
	}
}

func (b *outputBatcher) FlushAll() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.Flush(id)
	}
}
