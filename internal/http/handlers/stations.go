package handlers

import (
	"context"
	"sync"
	"time"

	applog "contagem/internal/log"
	"contagem/internal/scanner"
	"contagem/internal/services"
	"contagem/internal/workflow"
)

// Station is everything one logged-in operator works with: the counting
// workflow, the camera fed by their browser and the toast inbox.
type Station struct {
	Inbox    *services.Inbox
	Workflow *workflow.Workflow
	Camera   *scanner.PushProvider
	Scanner  *scanner.Session

	lastSeen time.Time // guarded by Stations.mu
}

type StationConfig struct {
	Catalog      *services.CatalogService
	Registration *services.RegistrationService
	SearchLimit  int
	Debounce     time.Duration

	// IdleTimeout evicts stations nobody touched for that long. Zero keeps
	// them until logout.
	IdleTimeout time.Duration
	Now         func() time.Time
}

// Stations keys stations by the sid cookie. There is at most one scanner
// session per sid.
type Stations struct {
	cfg StationConfig

	mu sync.Mutex
	m  map[string]*Station

	quit     chan struct{}
	quitOnce sync.Once
}

func NewStations(cfg StationConfig) *Stations {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Stations{cfg: cfg, m: map[string]*Station{}, quit: make(chan struct{})}
	if cfg.IdleTimeout > 0 {
		go s.sweepLoop(cfg.IdleTimeout / 2)
	}
	return s
}

func (s *Stations) Get(sid string) *Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[sid]
	if !ok {
		st = s.build(sid)
		s.m[sid] = st
	}
	st.lastSeen = s.cfg.Now()
	return st
}

func (s *Stations) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sweep drops every station idle for longer than IdleTimeout, releasing its
// camera, and reports how many went.
func (s *Stations) Sweep() int {
	if s.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := s.cfg.Now().Add(-s.cfg.IdleTimeout)
	var stale []*Station
	s.mu.Lock()
	for sid, st := range s.m {
		if st.lastSeen.Before(cutoff) {
			stale = append(stale, st)
			delete(s.m, sid)
		}
	}
	s.mu.Unlock()
	for _, st := range stale {
		st.Scanner.Close()
	}
	if len(stale) > 0 {
		applog.Background("station.evict", nil, map[string]any{"count": len(stale)})
	}
	return len(stale)
}

func (s *Stations) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

func (s *Stations) build(sid string) *Station {
	st := &Station{
		Inbox:  services.NewInbox(50),
		Camera: scanner.NewPushProvider(2),
	}
	st.Workflow = workflow.New(s.cfg.Catalog, s.cfg.Registration, st.Inbox, s.cfg.SearchLimit)
	st.Scanner = scanner.NewSession(scanner.Config{
		Provider: st.Camera,
		Lookup:   s.cfg.Catalog,
		Debounce: s.cfg.Debounce,
		OnEvent: func(ev scanner.Event) {
			applog.Background("scanner."+string(ev.Kind), ev.Err, map[string]any{"sid": sid, "code": ev.Code})
			switch ev.Kind {
			case scanner.ProductFound, scanner.ProductNotFound:
				// a resolved read closes the scanning dialog
				_ = st.Scanner.Start(context.Background(), false)
			}
			st.Workflow.OnScan(ev)
		},
	})
	return st
}

// Drop releases the camera and forgets the station.
func (s *Stations) Drop(sid string) {
	s.mu.Lock()
	st, ok := s.m[sid]
	delete(s.m, sid)
	s.mu.Unlock()
	if ok {
		st.Scanner.Close()
	}
}

func (s *Stations) CloseAll() {
	s.quitOnce.Do(func() { close(s.quit) })
	s.mu.Lock()
	all := s.m
	s.m = map[string]*Station{}
	s.mu.Unlock()
	for _, st := range all {
		st.Scanner.Close()
	}
}
