package repos_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"contagem/internal/domain"
	"contagem/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCatalogByCodeMatchesEveryIdentifier(t *testing.T) {
	db := memdb(t)
	cat := repos.NewCatalogRepo(db)
	ctx := context.Background()

	for _, code := range []string{"7891000100011", "DCH26", "P001"} {
		e, err := cat.ByCode(ctx, code)
		if err != nil {
			t.Fatalf("ByCode(%s): %v", code, err)
		}
		if e.Code != "P001" || e.Description != "Parafuso M6" {
			t.Fatalf("ByCode(%s): got %+v", code, e)
		}
	}
	if _, err := cat.ByCode(ctx, "7891234567890"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("want ErrNoRows, got %v", err)
	}
}

func TestCatalogByCodePrefersBarcode(t *testing.T) {
	db := memdb(t)
	cat := repos.NewCatalogRepo(db)
	ctx := context.Background()
	// P900's supplier ref collides with P001's barcode
	if err := cat.Upsert(ctx, domain.CatalogEntry{Code: "P900", SupplierRef: "7891000100011", Description: "Outro"}); err != nil {
		t.Fatal(err)
	}
	e, err := cat.ByCode(ctx, "7891000100011")
	if err != nil {
		t.Fatal(err)
	}
	if e.Code != "P001" {
		t.Fatalf("barcode match should win, got %s", e.Code)
	}
}

func TestCatalogUpsertReplacesByCode(t *testing.T) {
	db := memdb(t)
	cat := repos.NewCatalogRepo(db)
	ctx := context.Background()

	before, err := cat.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, desc := range []string{"Arruela", "Arruela lisa"} {
		if err := cat.Upsert(ctx, domain.CatalogEntry{Code: "P901", Description: desc}); err != nil {
			t.Fatal(err)
		}
	}
	after, _ := cat.Count(ctx)
	if after != before+1 {
		t.Fatalf("count: before=%d after=%d", before, after)
	}
	e, err := cat.ByCode(ctx, "P901")
	if err != nil || e.Description != "Arruela lisa" {
		t.Fatalf("upsert did not replace: %+v %v", e, err)
	}
}

func TestCatalogSearchCaseInsensitive(t *testing.T) {
	db := memdb(t)
	cat := repos.NewCatalogRepo(db)
	ctx := context.Background()

	got, err := cat.Search(ctx, "dch2", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	got, err = cat.Search(ctx, "TRAMONTINA", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Code != "P003" {
		t.Fatalf("brand search: %+v", got)
	}
	got, _ = cat.Search(ctx, "%", 5)
	if len(got) != 0 {
		t.Fatalf("wildcards must be literal, got %d rows", len(got))
	}
}

func TestCatalogSearchFoldsAccents(t *testing.T) {
	db := memdb(t)
	cat := repos.NewCatalogRepo(db)
	ctx := context.Background()
	if err := cat.Upsert(ctx, domain.CatalogEntry{Code: "P950", Description: "CONEXÃO ÂNCORA", Brand: "Çanak"}); err != nil {
		t.Fatal(err)
	}

	for _, q := range []string{"CONEXÃO", "conexão", "ÂNCORA", "âncora", "çanak", "ÇANAK"} {
		got, err := cat.Search(ctx, q, 5)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(got) != 1 || got[0].Code != "P950" {
			t.Fatalf("Search(%q): %+v", q, got)
		}
	}
}

func TestCountInsertUpdateDelete(t *testing.T) {
	db := memdb(t)
	counts := repos.NewCountRepo(db)
	ctx := context.Background()

	rec := &domain.CountRecord{ProductCode: "P001", Quantity: 10, Barcode: "7891000100011"}
	if err := counts.Insert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == 0 || rec.InsertedAt == "" {
		t.Fatalf("identity not assigned: %+v", rec)
	}
	if err := counts.UpdateQty(ctx, rec.ID, 15); err != nil {
		t.Fatal(err)
	}
	got, err := counts.Get(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Quantity != 15 || got.ProductCode != "P001" || bool(got.IsNew) || got.InsertedAt != rec.InsertedAt {
		t.Fatalf("only qty may change: %+v", got)
	}
	if err := counts.Delete(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}
	if err := counts.Delete(ctx, rec.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second delete: want ErrNoRows, got %v", err)
	}
}

func TestCountRejectsNewWithoutDescription(t *testing.T) {
	db := memdb(t)
	counts := repos.NewCountRepo(db)
	err := counts.Insert(context.Background(), &domain.CountRecord{ProductCode: "NOVO000001", Quantity: 1, IsNew: true})
	if err == nil {
		t.Fatal("store must enforce description on new products")
	}
}

func TestNextNewProductCodeIsUnique(t *testing.T) {
	db := memdb(t)
	counts := repos.NewCountRepo(db)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := counts.NextNewProductCode(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[code] {
				t.Errorf("duplicate code %s", code)
			}
			seen[code] = true
		}()
	}
	wg.Wait()
	if len(seen) != 20 {
		t.Fatalf("want 20 codes, got %d", len(seen))
	}
}

func TestLatestNewestFirst(t *testing.T) {
	db := memdb(t)
	counts := repos.NewCountRepo(db)
	ctx := context.Background()
	for _, q := range []int{1, 2, 3} {
		if err := counts.Insert(ctx, &domain.CountRecord{ProductCode: "P002", Quantity: q}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := counts.Latest(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Quantity != 3 || got[1].Quantity != 2 {
		t.Fatalf("unexpected order: %+v", got)
	}
}
