package services

import (
	"context"

	"contagem/internal/apperr"
	"contagem/internal/domain"
	"contagem/internal/validate"
)

// RecentStore is what the recent-entries table needs from the count table.
type RecentStore interface {
	Latest(ctx context.Context, limit int) ([]domain.CountRecord, error)
	All(ctx context.Context) ([]domain.CountRecord, error)
	UpdateQty(ctx context.Context, id int64, qty int) error
	Delete(ctx context.Context, id int64) error
}

type RecentService struct {
	Counts       RecentStore
	Catalog      CatalogStore
	DefaultLimit int
}

func NewRecentService(counts RecentStore, catalog CatalogStore, defaultLimit int) *RecentService {
	if defaultLimit <= 0 {
		defaultLimit = 15
	}
	return &RecentService{Counts: counts, Catalog: catalog, DefaultLimit: defaultLimit}
}

// List returns the newest records joined with catalog metadata. Catalogued
// products are resolved with a single batch query.
func (s *RecentService) List(ctx context.Context, limit int) ([]domain.RecentEntry, error) {
	if limit <= 0 {
		limit = s.DefaultLimit
	}
	recs, err := s.Counts.Latest(ctx, limit)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return s.enrich(ctx, recs)
}

// All returns every record oldest first, enriched like List. Used for export.
func (s *RecentService) All(ctx context.Context) ([]domain.RecentEntry, error) {
	recs, err := s.Counts.All(ctx)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return s.enrich(ctx, recs)
}

func (s *RecentService) enrich(ctx context.Context, recs []domain.CountRecord) ([]domain.RecentEntry, error) {
	out := make([]domain.RecentEntry, 0, len(recs))
	if len(recs) == 0 {
		return out, nil
	}

	var codes []string
	seen := map[string]bool{}
	for _, r := range recs {
		if !bool(r.IsNew) && !seen[r.ProductCode] {
			seen[r.ProductCode] = true
			codes = append(codes, r.ProductCode)
		}
	}
	refs := map[string]domain.CatalogEntry{}
	if len(codes) > 0 {
		entries, err := s.Catalog.ByCodes(ctx, codes)
		if err != nil {
			return nil, apperr.FromStore(err)
		}
		for _, e := range entries {
			refs[e.Code] = e
		}
	}

	for _, r := range recs {
		re := domain.RecentEntry{CountRecord: r}
		if r.IsNew {
			re.RefDesc = r.Description
		} else if ref, ok := refs[r.ProductCode]; ok {
			re.SupplierRef = ref.SupplierRef
			re.RefDesc = ref.Description
		} else {
			re.RefDesc = r.Description
		}
		out = append(out, re)
	}
	return out, nil
}

// EditQuantity changes the quantity of an existing record and nothing else.
func (s *RecentService) EditQuantity(ctx context.Context, id int64, qtyText string) (int, error) {
	qty, ok := validate.Qty(qtyText)
	if !ok {
		return 0, apperr.New(apperr.Validation, apperr.MsgBadQty)
	}
	if err := s.Counts.UpdateQty(ctx, id, qty); err != nil {
		return 0, apperr.FromStore(err)
	}
	return qty, nil
}

// Delete removes a record for good. Confirmation is the caller's job.
func (s *RecentService) Delete(ctx context.Context, id int64) error {
	if err := s.Counts.Delete(ctx, id); err != nil {
		return apperr.FromStore(err)
	}
	return nil
}
