package logging

import (
	"sync"
	"time"
)

// LogEntry is one record as kept in the ring buffer and sent on the log
// stream.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer keeps the most recent entries. Sequence numbers start at 1 and
// entry seq lives in slot seq % capacity.
type RingBuffer struct {
	mu    sync.RWMutex
	slots []LogEntry
	last  uint64
}

func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{slots: make([]LogEntry, max(capacity, 1))}
}

// Write stores entry, evicting the oldest when full, and returns it with its
// sequence number set.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.last++
	entry.Seq = rb.last
	rb.slots[rb.last%uint64(len(rb.slots))] = entry
	return entry
}

// ReadAll returns every retained entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Tail(0)
}

// Tail returns up to n of the newest entries, oldest first. n <= 0 means all.
func (rb *RingBuffer) Tail(n int) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	held := rb.held()
	if held == 0 {
		return nil
	}
	if n <= 0 || n > held {
		n = held
	}
	out := make([]LogEntry, 0, n)
	for seq := rb.last - uint64(n) + 1; seq <= rb.last; seq++ {
		out = append(out, rb.slots[seq%uint64(len(rb.slots))])
	}
	return out
}

func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.held()
}

func (rb *RingBuffer) held() int {
	return int(min(rb.last, uint64(len(rb.slots))))
}
