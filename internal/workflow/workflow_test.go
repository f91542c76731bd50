package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"contagem/internal/apperr"
	"contagem/internal/domain"
	"contagem/internal/scanner"
	"contagem/internal/services"
)

var parafuso = domain.CatalogEntry{Code: "P001", SupplierRef: "DCH26", Description: "Parafuso M6", Brand: "Ciser", Barcode: "7891000100011"}

type fakeSearcher struct {
	results []domain.CatalogEntry
	err     error
	calls   int
	// before runs while Search is "in flight"
	before func()
}

func (f *fakeSearcher) Search(_ context.Context, text string, _ int) ([]domain.CatalogEntry, error) {
	f.calls++
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.CatalogEntry
	for _, e := range f.results {
		if strings.Contains(strings.ToLower(e.SupplierRef+e.Description), strings.ToLower(text)) {
			out = append(out, e)
		}
	}
	return out, nil
}

type submission struct {
	entry domain.CatalogEntry
	qty   string
	code  string
}

type fakeSubmitter struct {
	mu   sync.Mutex
	subs []submission
	// seen is the workflow state observed while submitting
	seen State
	wf   *Workflow
}

func (f *fakeSubmitter) SubmitExisting(entry domain.CatalogEntry, qtyText, code string, _ services.Notifier) (services.Ticket, error) {
	if f.wf != nil {
		f.seen = f.wf.Snapshot().State
	}
	if qtyText == "0" || qtyText == "" {
		return services.Ticket{}, apperr.New(apperr.Validation, apperr.MsgBadQty)
	}
	f.mu.Lock()
	f.subs = append(f.subs, submission{entry, qtyText, code})
	f.mu.Unlock()
	return services.Ticket{ID: "t1", Title: "Produto registrado!"}, nil
}

func newWorkflow(results ...domain.CatalogEntry) (*Workflow, *fakeSearcher, *fakeSubmitter, *services.Inbox) {
	s := &fakeSearcher{results: results}
	sub := &fakeSubmitter{}
	inbox := services.NewInbox(10)
	w := New(s, sub, inbox, 5)
	sub.wf = w
	return w, s, sub, inbox
}

func TestManualSearchSelectConfirm(t *testing.T) {
	w, _, sub, _ := newWorkflow(parafuso, domain.CatalogEntry{Code: "P002", SupplierRef: "DCH27", Description: "Parafuso M8"})
	ctx := context.Background()

	snap, err := w.Search(ctx, "DCH26")
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != Searching || len(snap.Results) != 1 || snap.Results[0].Description != "Parafuso M6" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if err := w.Select(snap.Results[0]); err != nil {
		t.Fatal(err)
	}
	snap = w.Snapshot()
	if snap.State != QuantityEntry || snap.Entry == nil || snap.Entry.Code != "P001" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Results) != 0 || snap.Query != "" {
		t.Fatal("selection should clear the search")
	}

	if _, err := w.Confirm("12"); err != nil {
		t.Fatal(err)
	}
	if sub.seen != Committing {
		t.Fatalf("state during submit = %s, want committing", sub.seen)
	}
	if got := w.Snapshot(); got.State != Idle || got.Entry != nil {
		t.Fatalf("after confirm = %+v", got)
	}
	if len(sub.subs) != 1 || sub.subs[0].qty != "12" || sub.subs[0].code != "" {
		t.Fatalf("subs = %+v", sub.subs)
	}
}

func TestShortQueryDoesNotSearch(t *testing.T) {
	w, s, _, _ := newWorkflow(parafuso)
	snap, err := w.Search(context.Background(), " D ")
	if err != nil {
		t.Fatal(err)
	}
	if s.calls != 0 || snap.State != Idle || len(snap.Results) != 0 {
		t.Fatalf("calls=%d snap=%+v", s.calls, snap)
	}
}

func TestStaleResultsAreDropped(t *testing.T) {
	w, _, _, _ := newWorkflow()
	old, _, _ := w.SetQuery("par")
	cur, _, _ := w.SetQuery("paraf")

	if w.ApplyResults(old, "par", []domain.CatalogEntry{parafuso}) {
		t.Fatal("stale token applied")
	}
	if !w.ApplyResults(cur, "paraf", []domain.CatalogEntry{parafuso}) {
		t.Fatal("current token rejected")
	}
	if got := w.Snapshot(); len(got.Results) != 1 {
		t.Fatalf("results = %+v", got.Results)
	}
}

func TestSearchOvertakenByScan(t *testing.T) {
	w, s, _, _ := newWorkflow(parafuso)
	s.before = func() {
		// a scan resolves while the search request is still out
		_ = w.ScanFound(parafuso, "7891000100011")
	}
	snap, err := w.Search(context.Background(), "parafuso")
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != QuantityEntry || len(snap.Results) != 0 || snap.ScannedCode != "7891000100011" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestScanFoundCarriesCode(t *testing.T) {
	w, _, sub, _ := newWorkflow()
	e := parafuso
	w.OnScan(scanner.Event{Kind: scanner.ProductFound, Code: "7891000100011", Entry: &e})

	snap := w.Snapshot()
	if snap.State != QuantityEntry || snap.Entry.Description != "Parafuso M6" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, err := w.Confirm("3"); err != nil {
		t.Fatal(err)
	}
	if sub.subs[0].code != "7891000100011" {
		t.Fatalf("barcode not forwarded: %+v", sub.subs[0])
	}
}

func TestScanNotFoundKeepsState(t *testing.T) {
	w, _, _, inbox := newWorkflow(parafuso)
	_, _ = w.Search(context.Background(), "parafuso")
	before := w.Snapshot()

	w.OnScan(scanner.Event{Kind: scanner.ProductNotFound, Code: "999"})

	after := w.Snapshot()
	if after.State != before.State || after.Query != before.Query || len(after.Results) != len(before.Results) {
		t.Fatalf("state changed: %+v -> %+v", before, after)
	}
	got := inbox.Drain()
	if len(got) != 1 || got[0].Title != apperr.MsgNoProduct || got[0].Level != services.LevelError {
		t.Fatalf("notifications = %+v", got)
	}
}

func TestScanWhileEnteringQuantityIsIgnored(t *testing.T) {
	w, _, _, inbox := newWorkflow()
	_ = w.Select(parafuso)
	other := domain.CatalogEntry{Code: "P003", Description: "Trena 5m"}
	w.OnScan(scanner.Event{Kind: scanner.ProductFound, Code: "7891112223335", Entry: &other})

	if got := w.Snapshot(); got.Entry.Code != "P001" {
		t.Fatalf("bound entry replaced: %+v", got.Entry)
	}
	if n := inbox.Drain(); len(n) != 1 {
		t.Fatalf("notifications = %+v", n)
	}
}

func TestCameraFailureNotifies(t *testing.T) {
	w, _, _, inbox := newWorkflow()
	w.OnScan(scanner.Event{Kind: scanner.PermissionDenied, Err: apperr.New(apperr.PermissionDenied, apperr.MsgDenied)})
	got := inbox.Drain()
	if len(got) != 1 || got[0].Kind != apperr.PermissionDenied || got[0].Message != apperr.MsgDenied {
		t.Fatalf("notifications = %+v", got)
	}
	if w.Snapshot().State != Idle {
		t.Fatal("camera failure must not move the workflow")
	}
}

func TestCancel(t *testing.T) {
	w, _, _, _ := newWorkflow()
	_ = w.ScanFound(parafuso, "7891000100011")
	w.Cancel()
	snap := w.Snapshot()
	if snap.State != Idle || snap.Entry != nil || snap.ScannedCode != "" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestConfirmInvalidQuantityStaysInEntry(t *testing.T) {
	w, _, sub, _ := newWorkflow()
	_ = w.Select(parafuso)
	_, err := w.Confirm("0")
	if !apperr.Is(err, apperr.Validation) {
		t.Fatalf("err = %v", err)
	}
	if snap := w.Snapshot(); snap.State != QuantityEntry || snap.Entry == nil {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(sub.subs) != 0 {
		t.Fatal("nothing should be submitted")
	}
}

func TestConfirmWithoutEntry(t *testing.T) {
	w, _, _, _ := newWorkflow()
	if _, err := w.Confirm("1"); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("err = %v", err)
	}
}
