package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/xuri/excelize/v2"
)

func catalogUpload(t *testing.T, filename string) (string, *bytes.Buffer) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"codprod", "refforn", "descrprod", "marca", "referencia"},
		{"P100", "ALC-1", "Alicate universal", "Tramontina", "7896090700017"},
		{"P001", "DCH26", "Parafuso M6 zincado", "Ciser", "7891000100011"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := r
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	xlsx, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(xlsx.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType(), &body
}

func TestCatalogImportRequiresAdmin(t *testing.T) {
	app, _ := newTestApp(t)
	op := login(t, app, operatorEmail)

	ct, body := catalogUpload(t, "catalogo.xlsx")
	entries := captureLogs(t, func() {
		expectStatus(t, op.request("POST", "/api/v1/admin/catalog/import", ct, body), http.StatusForbidden)
	})
	if _, ok := findLog(entries, "access.denied.admin"); !ok {
		t.Fatal("expected access.denied.admin log")
	}
}

func TestCatalogImportUpserts(t *testing.T) {
	app, _ := newTestApp(t)
	admin := login(t, app, adminEmail)

	ct, body := catalogUpload(t, "catalog.txt")
	expectStatus(t, admin.request("POST", "/api/v1/admin/catalog/import", ct, body), http.StatusBadRequest)

	ct, body = catalogUpload(t, "catalogo.xlsx")
	resp := admin.request("POST", "/api/v1/admin/catalog/import", ct, body)
	expectStatus(t, resp, http.StatusOK)
	var res struct {
		Imported int `json:"imported"`
	}
	decode(t, resp, &res)
	if res.Imported != 2 {
		t.Fatalf("imported = %d", res.Imported)
	}

	var e struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	}
	decode(t, admin.do("GET", "/api/v1/catalog/code/7896090700017", nil), &e)
	if e.Code != "P100" {
		t.Fatalf("imported row not found: %+v", e)
	}
	decode(t, admin.do("GET", "/api/v1/catalog/code/P001", nil), &e)
	if e.Description != "Parafuso M6 zincado" {
		t.Fatalf("existing row not updated: %+v", e)
	}
}
