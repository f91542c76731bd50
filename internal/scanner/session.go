// Package scanner turns a camera stream into distinct decoded codes and
// resolves each one against the catalog.
package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"contagem/internal/apperr"
	"contagem/internal/domain"
	applog "contagem/internal/log"
)

type EventKind string

const (
	ProductFound      EventKind = "product_found"
	ProductNotFound   EventKind = "product_not_found"
	LookupError       EventKind = "lookup_error"
	PermissionDenied  EventKind = "permission_denied"
	DeviceUnavailable EventKind = "device_unavailable"
)

type Event struct {
	Kind  EventKind
	Code  string
	Entry *domain.CatalogEntry
	Err   error
	At    time.Time
}

type Lookup interface {
	FindByCode(ctx context.Context, code string) (*domain.CatalogEntry, error)
}

type Config struct {
	Provider MediaProvider
	Decoder  Decoder
	Lookup   Lookup
	OnEvent  func(Event)
	Debounce time.Duration
	Now      func() time.Time
}

// Session binds one camera to the visibility of one scanning surface.
// Start(true) acquires the camera, Start(false) releases it before returning.
// Each successful acquisition is released exactly once: on stop, on a
// device or permission failure, or on Close.
type Session struct {
	cfg Config

	mu     sync.Mutex
	gen    uint64
	stream Stream
	cancel context.CancelFunc
}

func NewSession(cfg Config) *Session {
	if cfg.Decoder == nil {
		cfg.Decoder = NewZXingDecoder()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 1500 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.OnEvent == nil {
		cfg.OnEvent = func(Event) {}
	}
	return &Session{cfg: cfg}
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Start follows the surface visibility. Repeating the current visibility is
// a no-op. A failed acquisition is returned to the caller as a
// PermissionDenied or DeviceUnavailable error and is not emitted as an event;
// only failures of a running stream reach OnEvent.
func (s *Session) Start(ctx context.Context, visible bool) error {
	if !visible {
		s.stop()
		return nil
	}

	s.mu.Lock()
	if s.stream != nil {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	stream, err := s.cfg.Provider.Open(ctx)
	if err != nil {
		return classify(err)
	}

	s.mu.Lock()
	if s.gen != gen || s.stream != nil {
		// stopped or restarted while the camera was being opened
		s.mu.Unlock()
		_ = stream.Close()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	s.stream = stream
	s.cancel = cancel
	s.mu.Unlock()

	go s.loop(loopCtx, gen, stream, NewDebouncer(s.cfg.Debounce))
	return nil
}

// Close is teardown; it is Start(false) under another name.
func (s *Session) Close() { s.stop() }

func (s *Session) SetTorch(on bool) error {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return ErrNotStreaming
	}
	return stream.SetTorch(on)
}

func (s *Session) stop() {
	s.mu.Lock()
	s.gen++
	stream, cancel := s.stream, s.cancel
	s.stream, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		_ = stream.Close()
	}
}

// release drops stream if it still belongs to generation gen.
func (s *Session) release(gen uint64, stream Stream) bool {
	s.mu.Lock()
	if s.gen != gen || s.stream != stream {
		s.mu.Unlock()
		return false
	}
	s.gen++
	cancel := s.cancel
	s.stream, s.cancel = nil, nil
	s.mu.Unlock()
	cancel()
	_ = stream.Close()
	return true
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Session) loop(ctx context.Context, gen uint64, stream Stream, deb *Debouncer) {
	for img := range stream.Frames() {
		if ctx.Err() != nil {
			continue // drain until Close shuts the channel
		}
		code, err := s.cfg.Decoder.Decode(img)
		if err != nil {
			if !IsDecodeNoise(err) {
				applog.Background("scanner.decode.fail", err, nil)
			}
			continue
		}
		if code == "" {
			continue
		}
		scan := domain.ScanEvent{Code: code, At: s.cfg.Now()}
		if !deb.Accept(scan) {
			continue
		}

		ev := s.resolve(ctx, scan)
		if !s.current(gen) {
			return // session moved on while the lookup was in flight
		}
		s.emit(ev)
	}

	// channel closed: either we closed it, or the device went away
	if err := stream.Err(); err != nil && s.release(gen, stream) {
		s.emit(failureEvent(classify(err), s.cfg.Now()))
	}
}

func (s *Session) resolve(ctx context.Context, scan domain.ScanEvent) Event {
	entry, err := s.cfg.Lookup.FindByCode(ctx, scan.Code)
	switch {
	case err != nil:
		return Event{Kind: LookupError, Code: scan.Code, Err: err, At: scan.At}
	case entry == nil:
		return Event{Kind: ProductNotFound, Code: scan.Code, At: scan.At}
	default:
		return Event{Kind: ProductFound, Code: scan.Code, Entry: entry, At: scan.At}
	}
}

func (s *Session) emit(ev Event) { s.cfg.OnEvent(ev) }

// classify maps camera failures into the user-facing taxonomy. Anything that
// is not an explicit permission refusal counts as the device being unavailable.
func classify(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, ErrPermissionDenied) {
		return apperr.Wrap(apperr.PermissionDenied, apperr.MsgDenied, err)
	}
	return apperr.Wrap(apperr.DeviceUnavailable, apperr.MsgNoDevice, err)
}

func failureEvent(err error, now time.Time) Event {
	kind := DeviceUnavailable
	if apperr.Is(err, apperr.PermissionDenied) {
		kind = PermissionDenied
	}
	return Event{Kind: kind, Err: err, At: now}
}
