package repos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"contagem/internal/domain"
)

type CatalogRepo struct{ db *sqlx.DB }

func NewCatalogRepo(db *sqlx.DB) *CatalogRepo { return &CatalogRepo{db: db} }

const catalogCols = `codprod, refforn, descrprod, compldesc, marca, COALESCE(referencia,'') AS referencia`

// ByCode matches code against barcode, supplier reference and internal code
// and returns the first row. A barcode hit outranks a supplier-reference hit,
// which outranks an internal-code hit. Returns sql.ErrNoRows when nothing matches.
func (r *CatalogRepo) ByCode(ctx context.Context, code string) (domain.CatalogEntry, error) {
	var e domain.CatalogEntry
	err := r.db.GetContext(ctx, &e, r.db.Rebind(`
		SELECT `+catalogCols+`
		FROM produtos_referencia
		WHERE referencia = ? OR refforn = ? OR codprod = ?
		ORDER BY CASE WHEN referencia = ? THEN 0 WHEN refforn = ? THEN 1 ELSE 2 END, codprod
		LIMIT 1
	`), code, code, code, code, code)
	return e, err
}

// Search does a case-insensitive substring match across the text columns.
// Accented capitals fold too ("ÂNCORA" finds "âncora").
func (r *CatalogRepo) Search(ctx context.Context, q string, limit int) ([]domain.CatalogEntry, error) {
	pat := "%" + escapeLike(strings.ToLower(q)) + "%"
	lower := lowerFunc(r.db)
	where := make([]string, 0, len(searchCols))
	args := make([]any, 0, len(searchCols)+1)
	for _, col := range searchCols {
		where = append(where, lower+"("+col+`) LIKE ? ESCAPE '\'`)
		args = append(args, pat)
	}
	args = append(args, limit)

	out := []domain.CatalogEntry{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+catalogCols+`
		FROM produtos_referencia
		WHERE `+strings.Join(where, " OR ")+`
		ORDER BY refforn, codprod
		LIMIT ?
	`), args...)
	return out, err
}

var searchCols = []string{"refforn", "codprod", "descrprod", "compldesc", "marca"}

// ByCodes batch-resolves internal codes, used to enrich recent count records.
func (r *CatalogRepo) ByCodes(ctx context.Context, codes []string) ([]domain.CatalogEntry, error) {
	out := []domain.CatalogEntry{}
	if len(codes) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+catalogCols+` FROM produtos_referencia WHERE codprod IN (?)`, codes)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...)
	return out, err
}

// Upsert writes a catalog row keyed by codprod. Used by spreadsheet imports.
func (r *CatalogRepo) Upsert(ctx context.Context, e domain.CatalogEntry) error {
	var barcode any
	if e.Barcode != "" {
		barcode = e.Barcode
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO produtos_referencia(codprod, refforn, descrprod, compldesc, marca, referencia)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(codprod) DO UPDATE SET
		  refforn = excluded.refforn,
		  descrprod = excluded.descrprod,
		  compldesc = excluded.compldesc,
		  marca = excluded.marca,
		  referencia = excluded.referencia
	`), e.Code, e.SupplierRef, e.Description, e.Complement, e.Brand, barcode)
	return err
}

func (r *CatalogRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM produtos_referencia`)
	return n, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
