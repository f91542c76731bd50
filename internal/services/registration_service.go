package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"contagem/internal/apperr"
	"contagem/internal/domain"
	applog "contagem/internal/log"
	"contagem/internal/validate"
)

// CountStore is the write side used by registration.
type CountStore interface {
	Insert(ctx context.Context, rec *domain.CountRecord) error
	NextNewProductCode(ctx context.Context) (string, error)
}

// Ticket is the synchronous half of a submission: the input was valid and the
// record has been handed to the background writer. The caller resets its form
// as soon as it holds a Ticket; the outcome arrives later through a Notifier.
type Ticket struct {
	ID       string `json:"ticket"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Quantity int    `json:"quantity"`
	IsNew    bool   `json:"is_new"`
}

// RegistrationService persists count records with optimistic completion.
// Failures are reported after the fact and never retried.
type RegistrationService struct {
	Store   CountStore
	Timeout time.Duration

	wg sync.WaitGroup
}

func NewRegistrationService(store CountStore, timeout time.Duration) *RegistrationService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RegistrationService{Store: store, Timeout: timeout}
}

// SubmitExisting counts a catalogued product. scannedCode is stored when the
// product was resolved from a barcode scan.
func (s *RegistrationService) SubmitExisting(entry domain.CatalogEntry, qtyText, scannedCode string, n Notifier) (Ticket, error) {
	qty, ok := validate.Qty(qtyText)
	if !ok {
		return Ticket{}, apperr.New(apperr.Validation, apperr.MsgBadQty)
	}
	if entry.Code == "" {
		return Ticket{}, apperr.New(apperr.NotFound, apperr.MsgNoProduct)
	}
	rec := &domain.CountRecord{
		ProductCode: entry.Code,
		Quantity:    qty,
		IsNew:       false,
		Barcode:     scannedCode,
	}
	t := Ticket{
		ID:       uuid.NewString(),
		Title:    "Produto registrado!",
		Message:  fmt.Sprintf("%s — QTD: %d", entry.Label(), qty),
		Quantity: qty,
	}
	s.background(func(ctx context.Context) {
		if err := s.Store.Insert(ctx, rec); err != nil {
			s.fail(n, "Erro ao registrar!", "count.persist.fail", err, t, rec)
			return
		}
		s.persisted(n, t, rec)
	})
	return t, nil
}

// SubmitNew counts a product that is not in the catalog. Its code is
// allocated by the store before the insert; no insert happens when the
// allocation fails.
func (s *RegistrationService) SubmitNew(description, qtyText string, n Notifier) (Ticket, error) {
	desc, ok := validate.Description(description)
	if !ok {
		return Ticket{}, apperr.New(apperr.Validation, apperr.MsgNoDesc)
	}
	qty, ok := validate.Qty(qtyText)
	if !ok {
		return Ticket{}, apperr.New(apperr.Validation, apperr.MsgBadQty)
	}
	t := Ticket{
		ID:       uuid.NewString(),
		Title:    "Registrando novo produto...",
		Message:  fmt.Sprintf("%s — QTD: %d", desc, qty),
		Quantity: qty,
		IsNew:    true,
	}
	s.background(func(ctx context.Context) {
		code, err := s.Store.NextNewProductCode(ctx)
		if err != nil {
			s.fail(n, "Erro ao gerar código!", "count.codegen.fail", err, t, nil)
			return
		}
		rec := &domain.CountRecord{
			ProductCode: code,
			Quantity:    qty,
			IsNew:       true,
			Description: desc,
		}
		if err := s.Store.Insert(ctx, rec); err != nil {
			s.fail(n, "Erro ao registrar!", "count.persist.fail", err, t, rec)
			return
		}
		s.persisted(n, t, rec)
	})
	return t, nil
}

// Wait blocks until every background write started so far has finished.
func (s *RegistrationService) Wait() { s.wg.Wait() }

func (s *RegistrationService) background(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *RegistrationService) fail(n Notifier, title, action string, err error, t Ticket, rec *domain.CountRecord) {
	fields := map[string]any{"ticket": t.ID, "qty": t.Quantity, "is_new": t.IsNew}
	if rec != nil {
		fields["product"] = rec.ProductCode
	}
	applog.Background(action, err, fields)
	if n != nil {
		n.Notify(errorNotification(title, apperr.FromStore(err), t.ID))
	}
}

func (s *RegistrationService) persisted(n Notifier, t Ticket, rec *domain.CountRecord) {
	applog.Background("count.persist", nil, map[string]any{
		"ticket": t.ID, "id": rec.ID, "product": rec.ProductCode, "qty": rec.Quantity, "is_new": t.IsNew,
	})
	if n != nil {
		n.Notify(Notification{
			Level:   LevelSuccess,
			Title:   "Registro salvo",
			Message: t.Message,
			Ticket:  t.ID,
		})
	}
}
