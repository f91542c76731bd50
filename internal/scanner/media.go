package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // frames arrive as JPEG or PNG snapshots
	_ "image/png"
	"io"
	"sync"
)

var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera unavailable")
	ErrTorchUnsupported  = errors.New("torch not supported by this camera")
	ErrNotStreaming      = errors.New("no active camera stream")
)

// Stream is an exclusive handle on a camera. Frames is closed when the
// device stops; Err then tells why (nil for a normal Close).
type Stream interface {
	Frames() <-chan image.Image
	Err() error
	SetTorch(on bool) error
	Close() error
}

// MediaProvider hands out camera streams. Open honours the user's
// permission state and fails with ErrPermissionDenied or ErrDeviceUnavailable.
type MediaProvider interface {
	Open(ctx context.Context) (Stream, error)
}

type Permission int

const (
	PermissionPrompt Permission = iota
	PermissionGranted
	PermissionRefused
)

// PushProvider is a MediaProvider fed from outside: the operator's browser
// owns the real camera and uploads snapshots, plus permission and device
// state changes, over HTTP. Only one stream may be open at a time.
type PushProvider struct {
	buffer int

	mu         sync.Mutex
	permission Permission
	torchCap   bool
	current    *pushStream
}

func NewPushProvider(buffer int) *PushProvider {
	if buffer <= 0 {
		buffer = 4
	}
	return &PushProvider{buffer: buffer}
}

func (p *PushProvider) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.permission == PermissionRefused {
		return nil, ErrPermissionDenied
	}
	if p.current != nil {
		return nil, fmt.Errorf("%w: camera already in use", ErrDeviceUnavailable)
	}
	s := &pushStream{owner: p, frames: make(chan image.Image, p.buffer), torchCap: p.torchCap}
	p.current = s
	return s, nil
}

// SetPermission records what the browser reported. Revoking permission ends
// the open stream with ErrPermissionDenied.
func (p *PushProvider) SetPermission(perm Permission) {
	p.mu.Lock()
	p.permission = perm
	cur := p.current
	p.mu.Unlock()
	if perm == PermissionRefused && cur != nil {
		cur.stop(ErrPermissionDenied)
	}
}

// SetTorchCapability records whether the browser's track exposes a torch.
func (p *PushProvider) SetTorchCapability(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.torchCap = ok
	if p.current != nil {
		p.current.mu.Lock()
		p.current.torchCap = ok
		p.current.mu.Unlock()
	}
}

// ReportDeviceError ends the open stream, e.g. when the browser's video
// track ended or getUserMedia failed with NotReadableError.
func (p *PushProvider) ReportDeviceError(reason string) {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur != nil {
		cur.stop(fmt.Errorf("%w: %s", ErrDeviceUnavailable, reason))
	}
}

// Push hands a frame to the open stream. Frames are dropped, not queued,
// when the decoder is behind.
func (p *PushProvider) Push(img image.Image) error {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur == nil {
		return ErrNotStreaming
	}
	cur.offer(img)
	return nil
}

// PushEncoded decodes a JPEG/PNG snapshot and pushes it.
func (p *PushProvider) PushEncoded(r io.Reader) error {
	img, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return p.Push(img)
}

// TorchState reports the torch state the browser should apply.
func (p *PushProvider) TorchState() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return false
	}
	p.current.mu.Lock()
	defer p.current.mu.Unlock()
	return p.current.torch
}

func (p *PushProvider) detach(s *pushStream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == s {
		p.current = nil
	}
}

type pushStream struct {
	owner  *PushProvider
	frames chan image.Image

	mu       sync.Mutex
	closed   bool
	err      error
	torch    bool
	torchCap bool
}

func (s *pushStream) Frames() <-chan image.Image { return s.frames }

func (s *pushStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *pushStream) SetTorch(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotStreaming
	}
	if !s.torchCap {
		return ErrTorchUnsupported
	}
	s.torch = on
	return nil
}

func (s *pushStream) Close() error {
	s.stop(nil)
	return nil
}

func (s *pushStream) offer(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- img:
	default:
	}
}

func (s *pushStream) stop(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	close(s.frames)
	s.mu.Unlock()
	s.owner.detach(s)
}
