package jancode

import (
	"sync"
	"time"
)

// DebounceDelay is how long a complete 13-digit entry must sit unchanged
// before the lookup fires. Rapid input events within the window collapse into
// a single lookup.
const DebounceDelay = 100 * time.Millisecond

// Entry models the manual code field. Every update is sanitized; when the
// value reaches exactly 13 digits the configured callback fires after a short
// debounce that re-checks the value has not changed in the interim.
type Entry struct {
	mu      sync.Mutex
	value   string
	delay   time.Duration
	onReady func(code string)
	timer   *time.Timer
}

// NewEntry returns an Entry that invokes onReady with each complete,
// debounced code. onReady must not be nil.
func NewEntry(onReady func(code string)) *Entry {
	return &Entry{delay: DebounceDelay, onReady: onReady}
}

// Update sanitizes raw input, stores it as the current value and returns it.
// A 13-digit value arms the debounce timer; a shorter value disarms any
// pending trigger.
func (e *Entry) Update(raw string) string {
	clean := Sanitize(raw)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.value = clean
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if len(clean) != Length {
		return clean
	}

	armed := clean
	e.timer = time.AfterFunc(e.delay, func() {
		e.mu.Lock()
		unchanged := e.value == armed
		e.mu.Unlock()
		if unchanged {
			e.onReady(armed)
		}
	})
	return clean
}

// Value returns the current sanitized value.
func (e *Entry) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Reset clears the field and disarms any pending trigger.
func (e *Entry) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = ""
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
