package services

import (
	"context"
	"database/sql"
	"errors"

	"contagem/internal/apperr"
	"contagem/internal/domain"
	"contagem/internal/validate"
)

// CatalogStore is the read side of the reference catalog.
type CatalogStore interface {
	ByCode(ctx context.Context, code string) (domain.CatalogEntry, error)
	Search(ctx context.Context, q string, limit int) ([]domain.CatalogEntry, error)
	ByCodes(ctx context.Context, codes []string) ([]domain.CatalogEntry, error)
}

const maxSearchLimit = 50

type CatalogService struct {
	Store        CatalogStore
	DefaultLimit int
}

func NewCatalogService(store CatalogStore, defaultLimit int) *CatalogService {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &CatalogService{Store: store, DefaultLimit: defaultLimit}
}

// FindByCode returns nil without error when no catalog entry carries code as
// barcode, supplier reference or internal code.
func (s *CatalogService) FindByCode(ctx context.Context, code string) (*domain.CatalogEntry, error) {
	code, ok := validate.Code(code)
	if !ok {
		return nil, apperr.New(apperr.Validation, apperr.MsgNoProduct)
	}
	e, err := s.Store.ByCode(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return &e, nil
}

// Search returns an empty result without touching the store for text shorter
// than validate.MinQueryLen.
func (s *CatalogService) Search(ctx context.Context, text string, limit int) ([]domain.CatalogEntry, error) {
	if !validate.Searchable(text) {
		return []domain.CatalogEntry{}, nil
	}
	q, ok := validate.Q(text)
	if !ok {
		return nil, apperr.New(apperr.Validation, "Digite um termo válido")
	}
	if limit <= 0 {
		limit = s.DefaultLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	out, err := s.Store.Search(ctx, q, limit)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return out, nil
}
