// Package workflow is the per-operator counting state machine:
//
//	Idle -> Searching -> QuantityEntry -> Committing -> Idle
//
// A product reaches QuantityEntry either by a manual pick from search results
// or by a barcode scan. Search responses carry a token so a late answer to an
// abandoned query never overwrites a newer one.
package workflow

import (
	"context"
	"errors"
	"sync"

	"contagem/internal/apperr"
	"contagem/internal/domain"
	"contagem/internal/scanner"
	"contagem/internal/services"
	"contagem/internal/validate"
)

type State string

const (
	Idle          State = "idle"
	Searching     State = "searching"
	QuantityEntry State = "quantity"
	Committing    State = "committing"
)

var ErrBadTransition = errors.New("workflow: action not allowed in current state")

type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]domain.CatalogEntry, error)
}

type Submitter interface {
	SubmitExisting(entry domain.CatalogEntry, qtyText, scannedCode string, n services.Notifier) (services.Ticket, error)
}

// Snapshot is a copy of the workflow safe to render.
type Snapshot struct {
	State       State                 `json:"state"`
	Query       string                `json:"query"`
	Results     []domain.CatalogEntry `json:"results"`
	Entry       *domain.CatalogEntry  `json:"entry,omitempty"`
	ScannedCode string                `json:"scanned_code,omitempty"`
}

type Workflow struct {
	searcher  Searcher
	submitter Submitter
	notifier  services.Notifier
	limit     int

	mu      sync.Mutex
	state   State
	query   string
	token   uint64
	results []domain.CatalogEntry
	entry   *domain.CatalogEntry
	scanned string
}

func New(searcher Searcher, submitter Submitter, notifier services.Notifier, limit int) *Workflow {
	return &Workflow{
		searcher:  searcher,
		submitter: submitter,
		notifier:  notifier,
		limit:     limit,
		state:     Idle,
		results:   []domain.CatalogEntry{},
	}
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Snapshot {
	s := Snapshot{
		State:       w.state,
		Query:       w.query,
		Results:     append([]domain.CatalogEntry{}, w.results...),
		ScannedCode: w.scanned,
	}
	if w.entry != nil {
		e := *w.entry
		s.Entry = &e
	}
	return s
}

// SetQuery records new search text and returns the token that results for
// it must present. search is false when the text is too short to query.
func (w *Workflow) SetQuery(text string) (token uint64, search bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Idle && w.state != Searching {
		return 0, false, ErrBadTransition
	}
	w.token++
	w.query = text
	w.results = []domain.CatalogEntry{}
	if !validate.Searchable(text) {
		w.state = Idle
		return w.token, false, nil
	}
	w.state = Searching
	return w.token, true, nil
}

// ApplyResults stores results unless they are stale. It reports whether the
// results were kept.
func (w *Workflow) ApplyResults(token uint64, text string, results []domain.CatalogEntry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if token != w.token || text != w.query || w.state != Searching {
		return false
	}
	w.results = append([]domain.CatalogEntry{}, results...)
	return true
}

// Search runs SetQuery, the store call and ApplyResults. The store call is
// made without holding the lock so other events can be handled meanwhile.
func (w *Workflow) Search(ctx context.Context, text string) (Snapshot, error) {
	token, search, err := w.SetQuery(text)
	if err != nil || !search {
		return w.Snapshot(), err
	}
	results, err := w.searcher.Search(ctx, text, w.limit)
	if err != nil {
		return w.Snapshot(), err
	}
	w.ApplyResults(token, text, results)
	return w.Snapshot(), nil
}

// Select binds a manually picked catalog entry.
func (w *Workflow) Select(entry domain.CatalogEntry) error {
	return w.resolve(entry, "")
}

// ScanFound binds an entry resolved from a barcode together with the raw code.
func (w *Workflow) ScanFound(entry domain.CatalogEntry, code string) error {
	return w.resolve(entry, code)
}

func (w *Workflow) resolve(entry domain.CatalogEntry, code string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Idle && w.state != Searching {
		return ErrBadTransition
	}
	w.token++ // any search still in flight is now stale
	w.entry = &entry
	w.scanned = code
	w.query = ""
	w.results = []domain.CatalogEntry{}
	w.state = QuantityEntry
	return nil
}

// ScanNotFound leaves the state as it is and raises a toast.
func (w *Workflow) ScanNotFound(code string) {
	w.notify(services.Notification{
		Level:   services.LevelError,
		Title:   apperr.MsgNoProduct,
		Message: "O código de barras " + code + " não está cadastrado.",
		Kind:    apperr.NotFound,
	})
}

// Cancel drops the bound entry and goes back to Idle.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Committing {
		return
	}
	w.token++
	w.resetLocked()
}

// Confirm submits the quantity. On a valid quantity the workflow is already
// back in Idle when Confirm returns, before the record is persisted.
func (w *Workflow) Confirm(qtyText string) (services.Ticket, error) {
	w.mu.Lock()
	if w.state != QuantityEntry || w.entry == nil {
		w.mu.Unlock()
		return services.Ticket{}, ErrBadTransition
	}
	entry, code := *w.entry, w.scanned
	w.state = Committing
	w.mu.Unlock()

	t, err := w.submitter.SubmitExisting(entry, qtyText, code, w.notifier)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.state = QuantityEntry
		return services.Ticket{}, err
	}
	w.resetLocked()
	return t, nil
}

// OnScan routes a scanner event into the workflow.
func (w *Workflow) OnScan(ev scanner.Event) {
	switch ev.Kind {
	case scanner.ProductFound:
		if ev.Entry == nil {
			return
		}
		if err := w.ScanFound(*ev.Entry, ev.Code); err != nil {
			w.notify(services.Notification{Level: services.LevelInfo, Title: "Leitura ignorada", Message: "Conclua o produto atual antes de escanear outro."})
		}
	case scanner.ProductNotFound:
		w.ScanNotFound(ev.Code)
	case scanner.LookupError:
		w.notify(services.Notification{Level: services.LevelError, Title: "Erro na busca", Message: apperr.SafeMessage(ev.Err), Kind: apperr.KindOf(ev.Err)})
	case scanner.PermissionDenied, scanner.DeviceUnavailable:
		w.notify(services.Notification{Level: services.LevelError, Title: "Erro na câmera", Message: apperr.SafeMessage(ev.Err), Kind: apperr.KindOf(ev.Err)})
	}
}

func (w *Workflow) resetLocked() {
	w.state = Idle
	w.entry = nil
	w.scanned = ""
	w.query = ""
	w.results = []domain.CatalogEntry{}
}

func (w *Workflow) notify(n services.Notification) {
	if w.notifier != nil {
		w.notifier.Notify(n)
	}
}
