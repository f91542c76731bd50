// Package catalogio moves catalog and count data in and out of XLSX
// workbooks. The reference catalog is maintained in spreadsheets by the
// purchasing team; counts leave the system the same way.
package catalogio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"contagem/internal/domain"
)

var ErrEmptyWorkbook = errors.New("workbook has no rows")

type Upserter interface {
	Upsert(ctx context.Context, e domain.CatalogEntry) error
}

type ImportResult struct {
	Imported int
	Skipped  []int // 1-based sheet rows without a product code
}

type column int

const (
	colCode column = iota
	colSupplierRef
	colDescription
	colComplement
	colBrand
	colBarcode
	numColumns
)

// header names accepted for each column, already lower-cased
var headerAliases = map[string]column{
	"codprod": colCode,
	"codigo":  colCode,
	"código":  colCode,

	"refforn":               colSupplierRef,
	"ref. fornecedor":       colSupplierRef,
	"referencia fornecedor": colSupplierRef,

	"descrprod": colDescription,
	"descricao": colDescription,
	"descrição": colDescription,

	"compldesc":   colComplement,
	"complemento": colComplement,

	"marca": colBrand,

	"codbarra":         colBarcode,
	"ean":              colBarcode,
	"referencia":       colBarcode,
	"código de barras": colBarcode,
	"codigo de barras": colBarcode,
}

// ImportCatalog reads the first sheet and upserts every row by product code.
// A header row is recognised by its column names; without one the columns
// are taken in the order codprod, refforn, descrprod, compldesc, marca,
// referencia.
func ImportCatalog(ctx context.Context, r io.Reader, store Upserter) (ImportResult, error) {
	var res ImportResult
	f, err := excelize.OpenReader(r)
	if err != nil {
		return res, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return res, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return res, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return res, ErrEmptyWorkbook
	}

	index, start := headerIndex(rows[0])
	for i := start; i < len(rows); i++ {
		row := rows[i]
		cell := func(c column) string {
			j := index[c]
			if j < 0 || j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}
		e := domain.CatalogEntry{
			Code:        cell(colCode),
			SupplierRef: cell(colSupplierRef),
			Description: cell(colDescription),
			Complement:  cell(colComplement),
			Brand:       cell(colBrand),
			Barcode:     cell(colBarcode),
		}
		if e.Code == "" {
			if !blank(row) {
				res.Skipped = append(res.Skipped, i+1)
			}
			continue
		}
		if err := store.Upsert(ctx, e); err != nil {
			return res, fmt.Errorf("row %d (%s): %w", i+1, e.Code, err)
		}
		res.Imported++
	}
	return res, nil
}

// headerIndex maps columns to positions. start is 1 when row is a header.
func headerIndex(row []string) (index [numColumns]int, start int) {
	for c := range index {
		index[c] = -1
	}
	found := 0
	for j, name := range row {
		if c, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]; ok && index[c] < 0 {
			index[c] = j
			found++
		}
	}
	if found > 0 && index[colCode] >= 0 {
		return index, 1
	}
	for c := range index {
		index[c] = c
	}
	return index, 0
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

const countsSheet = "Contagem"

var countsHeader = []any{"id", "codprod", "refforn", "descricao", "qtd", "novo", "codbarra", "dtinsert"}

// ExportCounts writes one row per count record, oldest first as given.
func ExportCounts(w io.Writer, rows []domain.RecentEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), countsSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(countsSheet, "A1", &countsHeader); err != nil {
		return err
	}
	for i, r := range rows {
		novo := "N"
		desc := r.RefDesc
		if r.IsNew {
			novo = "S"
			desc = r.Description
		}
		line := []any{r.ID, r.ProductCode, r.SupplierRef, desc, r.Quantity, novo, r.Barcode, r.InsertedAt}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(countsSheet, cell, &line); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(countsSheet, "D", "D", 40); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}
