package logger

import (
	"sync"
	"time"
)

// Warning is a retained warn/error log entry.
type Warning struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// WarningBuffer retains the most recent warn/error messages in a fixed-size
// ring. Read endpoints use it to flag best-effort results as partial.
type WarningBuffer struct {
	mu   sync.Mutex
	buf  []Warning
	next int
	full bool
}

func NewWarningBuffer(size int) *WarningBuffer {
	if size <= 0 {
		size = 64
	}
	return &WarningBuffer{buf: make([]Warning, size)}
}

func (b *WarningBuffer) Add(level, msg string) {
	b.mu.Lock()
	b.buf[b.next] = Warning{Level: level, Message: msg, At: time.Now()}
	b.next = (b.next + 1) % len(b.buf)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
}

// Recent returns warnings newer than since, oldest first.
func (b *WarningBuffer) Recent(since time.Time) []Warning {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.next
	if b.full {
		n = len(b.buf)
	}
	out := make([]Warning, 0, n)
	start := 0
	if b.full {
		start = b.next
	}
	for i := 0; i < n; i++ {
		w := b.buf[(start+i)%len(b.buf)]
		if w.At.After(since) {
			out = append(out, w)
		}
	}
	return out
}
