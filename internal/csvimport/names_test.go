package csvimport

import "testing"

func TestSmartTitle(t *testing.T) {
	cases := map[string]string{
		"pat jones":      "Pat Jones",
		"o'brien":        "O'Brien",
		"smith-jones":    "Smith-Jones",
		"o'brien-smith":  "O'Brien-Smith",
		"MARY ANNE":      "Mary Anne",
		"van der berg":   "Van Der Berg",
		"d'angelo-o'ney": "D'Angelo-O'Ney",
	}
	for in, want := range cases {
		if got := SmartTitle(in); got != want {
			t.Errorf("SmartTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitNamePersonal(t *testing.T) {
	first, last := SplitName("pat middle jones")
	if first != "Pat" || last != "Jones" {
		t.Fatalf("got %q %q", first, last)
	}
}

func TestSplitNameSingleToken(t *testing.T) {
	first, last := SplitName("cher")
	if first != "Cher" || last != "" {
		t.Fatalf("got %q %q", first, last)
	}
}

func TestSplitNameBusiness(t *testing.T) {
	first, last := SplitName("acme widgets llc")
	if first != "Acme Widgets Llc" || last != "" {
		t.Fatalf("got %q %q", first, last)
	}
}

func TestSplitNameEmpty(t *testing.T) {
	first, last := SplitName("   ")
	if first != "" || last != "" {
		t.Fatalf("got %q %q", first, last)
	}
}
