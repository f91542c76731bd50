package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// CatalogEntry is a row of the reference catalog (produtos_referencia).
// The catalog is owned by an external process; this service only reads it.
type CatalogEntry struct {
	Code        string `db:"codprod" json:"code"`
	SupplierRef string `db:"refforn" json:"supplier_ref"`
	Description string `db:"descrprod" json:"description"`
	Complement  string `db:"compldesc" json:"complement,omitempty"`
	Brand       string `db:"marca" json:"brand"`
	Barcode     string `db:"referencia" json:"barcode,omitempty"`
}

// Label is the short name shown in toasts and tables.
func (e CatalogEntry) Label() string {
	if e.SupplierRef != "" {
		return e.SupplierRef
	}
	return e.Code
}

// NoveltyFlag is stored as 'S'/'N' in the count table.
type NoveltyFlag bool

func (f NoveltyFlag) Value() (driver.Value, error) {
	if f {
		return "S", nil
	}
	return "N", nil
}

func (f *NoveltyFlag) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*f = false
		return nil
	default:
		return fmt.Errorf("novelty flag: unsupported type %T", src)
	}
	switch s {
	case "S":
		*f = true
	case "N", "":
		*f = false
	default:
		return fmt.Errorf("novelty flag: unexpected value %q", s)
	}
	return nil
}

// CountRecord is one persisted count event (produtos_inseridos).
type CountRecord struct {
	ID          int64       `db:"id" json:"id"`
	ProductCode string      `db:"codprod" json:"product_code"`
	Quantity    int         `db:"qtd" json:"quantity"`
	IsNew       NoveltyFlag `db:"novo" json:"is_new"`
	Description string      `db:"descrprod" json:"description,omitempty"`
	Barcode     string      `db:"codbarra" json:"barcode,omitempty"`
	InsertedAt  string      `db:"dtinsert" json:"inserted_at"`
}

// RecentEntry is a count record joined with catalog metadata for display.
type RecentEntry struct {
	CountRecord
	SupplierRef string `json:"supplier_ref,omitempty"`
	RefDesc     string `json:"ref_description,omitempty"`
}

// Label mirrors what the operator recognises: the typed description for new
// products, otherwise the supplier reference.
func (r RecentEntry) Label() string {
	if r.IsNew {
		if r.Description != "" {
			return r.Description
		}
		return r.ProductCode
	}
	if r.SupplierRef != "" {
		return r.SupplierRef
	}
	return r.ProductCode
}

func (r RecentEntry) Detail() string {
	if r.IsNew {
		return "Novo"
	}
	if r.RefDesc == "" {
		return "—"
	}
	return r.RefDesc
}

// ScanEvent is a decoded code as it left the camera. It lives for one
// resolution cycle only.
type ScanEvent struct {
	Code string
	At   time.Time
}
