// Package progress fans out human-readable status lines from the sync
// worker to any number of observers (console, log file, UI).
package progress

import "sync"

// Event is one unit of progress output. Line reports whether the text
// should be terminated with a line break; when false the observer should
// append the text in place (used for "path... done!" style output).
type Event struct {
	Text string
	Line bool
}

// Notifier broadcasts events to all subscribers. Emit never blocks: an
// observer that falls behind its channel buffer misses events rather
// than stalling the sync worker.
type Notifier struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers a new observer and returns its event channel.
// buffer controls how many events may queue before drops occur.
func (n *Notifier) Subscribe(buffer int) <-chan Event {
	if buffer < 1 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		close(ch)
		return ch
	}
	n.subs = append(n.subs, ch)
	return ch
}

// Emit delivers an event to every subscriber without blocking.
func (n *Notifier) Emit(text string, line bool) {
	ev := Event{Text: text, Line: line}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Write emits text that should be appended in place.
func (n *Notifier) Write(text string) {
	n.Emit(text, false)
}

// WriteLine emits text that terminates a line.
func (n *Notifier) WriteLine(text string) {
	n.Emit(text, true)
}

// Close closes all subscriber channels. Emit after Close is a no-op.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for _, ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
