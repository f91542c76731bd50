package validate_test

import (
	"testing"

	"contagem/internal/validate"
)

func TestQtyAcceptsOnlyPositiveIntegers(t *testing.T) {
	bad := []string{"", " ", "0", "-5", "abc", "3.5", "1e3", "10a", "99999999999999999999"}
	for _, s := range bad {
		if n, ok := validate.Qty(s); ok {
			t.Fatalf("Qty(%q) should fail, got %d", s, n)
		}
	}
	good := map[string]int{"1": 1, "10": 10, " 15 ": 15, "007": 7}
	for s, want := range good {
		n, ok := validate.Qty(s)
		if !ok || n != want {
			t.Fatalf("Qty(%q): want %d, got %d ok=%v", s, want, n, ok)
		}
	}
}

func TestDescriptionTrims(t *testing.T) {
	if _, ok := validate.Description("   "); ok {
		t.Fatal("blank description should fail")
	}
	d, ok := validate.Description("  Caixa de Som ")
	if !ok || d != "Caixa de Som" {
		t.Fatalf("got %q ok=%v", d, ok)
	}
}

func TestSearchable(t *testing.T) {
	if validate.Searchable("D") || validate.Searchable(" D ") {
		t.Fatal("single character must not be searchable")
	}
	if !validate.Searchable("DC") || !validate.Searchable("çã") {
		t.Fatal("two characters are searchable")
	}
}

func TestQAllowsCatalogText(t *testing.T) {
	for _, s := range []string{"DCH26", "Parafuso M6", "Caixa de Som", "3/8"} {
		if _, ok := validate.Q(s); !ok {
			t.Fatalf("Q(%q) should pass", s)
		}
	}
	if _, ok := validate.Q("<script>"); ok {
		t.Fatal("markup should be rejected")
	}
}

func TestRecordID(t *testing.T) {
	if _, ok := validate.RecordID("0"); ok {
		t.Fatal("zero id")
	}
	if id, ok := validate.RecordID("42"); !ok || id != 42 {
		t.Fatalf("got %d ok=%v", id, ok)
	}
}
