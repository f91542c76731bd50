package scanner

import (
	"time"

	"contagem/internal/domain"
)

// Debouncer drops a code equal to the last accepted one when it arrives
// within window of that acceptance. Different codes always pass.
type Debouncer struct {
	window time.Duration
	last   string
	lastAt time.Time
	seen   bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

func (d *Debouncer) Accept(ev domain.ScanEvent) bool {
	if d.seen && ev.Code == d.last && ev.At.Sub(d.lastAt) < d.window {
		return false
	}
	d.last, d.lastAt, d.seen = ev.Code, ev.At, true
	return true
}
