package repos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"contagem/internal/domain"
)

// InsertedAtLayout is fixed-width so text ordering equals time ordering.
const InsertedAtLayout = "2006-01-02T15:04:05.000000Z"

const newProductSequence = "codprod_novo"

type CountRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewCountRepo(db *sqlx.DB) *CountRepo {
	return &CountRepo{db: db, now: time.Now}
}

const countCols = `id, codprod, qtd, novo, COALESCE(descrprod,'') AS descrprod,
	COALESCE(codbarra,'') AS codbarra, dtinsert`

// Insert persists rec and fills in its identity key and timestamp.
func (r *CountRepo) Insert(ctx context.Context, rec *domain.CountRecord) error {
	rec.InsertedAt = r.now().UTC().Format(InsertedAtLayout)
	row := r.db.QueryRowxContext(ctx, r.db.Rebind(`
		INSERT INTO produtos_inseridos(codprod, qtd, novo, descrprod, codbarra, dtinsert)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), rec.ProductCode, rec.Quantity, rec.IsNew, nullable(rec.Description), nullable(rec.Barcode), rec.InsertedAt)
	if err := row.Scan(&rec.ID); err != nil {
		return fmt.Errorf("insert count: %w", err)
	}
	return nil
}

// Latest returns the newest records first.
func (r *CountRepo) Latest(ctx context.Context, limit int) ([]domain.CountRecord, error) {
	out := []domain.CountRecord{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+countCols+`
		FROM produtos_inseridos
		ORDER BY dtinsert DESC, id DESC
		LIMIT ?
	`), limit)
	return out, err
}

// All is used by the spreadsheet export, oldest first.
func (r *CountRepo) All(ctx context.Context) ([]domain.CountRecord, error) {
	out := []domain.CountRecord{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+countCols+` FROM produtos_inseridos ORDER BY dtinsert, id`)
	return out, err
}

func (r *CountRepo) Get(ctx context.Context, id int64) (domain.CountRecord, error) {
	var rec domain.CountRecord
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`SELECT `+countCols+` FROM produtos_inseridos WHERE id = ?`), id)
	return rec, err
}

// UpdateQty touches the quantity column only. Returns sql.ErrNoRows when id is unknown.
func (r *CountRepo) UpdateQty(ctx context.Context, id int64, qty int) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE produtos_inseridos SET qtd = ? WHERE id = ?`), qty, id)
	if err != nil {
		return fmt.Errorf("update count %d: %w", id, err)
	}
	return expectOne(res)
}

func (r *CountRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM produtos_inseridos WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete count %d: %w", id, err)
	}
	return expectOne(res)
}

// NextNewProductCode atomically allocates the code for a product that is not
// in the catalog yet. The increment and the read are one statement, so two
// concurrent callers never receive the same value.
func (r *CountRepo) NextNewProductCode(ctx context.Context) (string, error) {
	var n int64
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`
		UPDATE code_sequences SET last_value = last_value + 1
		WHERE name = ?
		RETURNING last_value
	`), newProductSequence).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("next product code: %w", err)
	}
	return fmt.Sprintf("NOVO%06d", n), nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
