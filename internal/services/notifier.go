package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"contagem/internal/apperr"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification is a transient toast. It is never persisted.
type Notification struct {
	ID      string      `json:"id"`
	Level   Level       `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message,omitempty"`
	Kind    apperr.Kind `json:"kind,omitempty"`
	Ticket  string      `json:"ticket,omitempty"`
	At      time.Time   `json:"at"`
}

// Notifier receives notifications that happen after the request that caused
// them has already returned.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Inbox buffers notifications for one operator until the page polls them.
// The oldest entries are dropped once max is reached.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	max   int
}

func NewInbox(max int) *Inbox {
	if max <= 0 {
		max = 50
	}
	return &Inbox{max: max}
}

func (b *Inbox) Notify(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
	if len(b.items) > b.max {
		b.items = b.items[len(b.items)-b.max:]
	}
}

// Drain returns and clears everything queued so far.
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

func errorNotification(title string, err error, ticket string) Notification {
	return Notification{
		Level:   LevelError,
		Title:   title,
		Message: apperr.SafeMessage(err),
		Kind:    apperr.KindOf(err),
		Ticket:  ticket,
	}
}
