package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsNonProduct(t *testing.T) {
	rs := Default()
	tests := []struct {
		desc string
		want bool
	}{
		{"PALLET CHARGE", true},
		{"Freight", true},
		{"Customs Brokerage", true},
		{"Handling fees", true},
		{"ANDEROL FGCS-2 Food Grade Grease", false},
		{"Palletized grease", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := rs.IsNonProduct(tt.desc); got != tt.want {
				t.Errorf("IsNonProduct(%q) = %v, want %v", tt.desc, got, tt.want)
			}
		})
	}
}

func TestNormalizeUnit(t *testing.T) {
	rs := Default()
	tests := map[string]string{
		"pails": "PAIL",
		"PAIL":  "PAIL",
		"drums": "DRUM",
		"ea.":   "EA",
		"jugs":  "JUGS",
		"":      "",
	}
	for in, want := range tests {
		if got := rs.NormalizeUnit(in); got != want {
			t.Errorf("NormalizeUnit(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadOverridesFamilies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	body := `dg_families:
  - name: Test Solvent
    template: dg/test
    patterns: ["solvx"]
unit_aliases:
  jug: JUG
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rs.Families) != 1 || rs.Families[0].Name != "Test Solvent" {
		t.Fatalf("families = %+v", rs.Families)
	}
	if len(rs.Exclusions) != len(DefaultExclusions) {
		t.Errorf("exclusions should keep defaults, got %v", rs.Exclusions)
	}
	if got := rs.NormalizeUnit("jug"); got != "JUG" {
		t.Errorf("NormalizeUnit(jug) = %q", got)
	}
	if got := rs.NormalizeUnit("pails"); got != "PAIL" {
		t.Errorf("default alias lost: %q", got)
	}
}

func TestLoadRejectsEmptyFamily(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(path, []byte(`{"dg_families":[{"name":"x","patterns":[]}]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for family without patterns")
	}
}

func TestLoadFoldsWordLists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	body := `exclusions: [Pallet, FREIGHT, "Handling Fees"]
address_stopwords: [Attn, "  Suite "]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, desc := range []string{"PALLET CHARGE", "Freight", "pallets"} {
		if !rs.IsNonProduct(desc) {
			t.Errorf("IsNonProduct(%q) = false", desc)
		}
	}
	if rs.IsNonProduct("ANDEROL FGCS-2 Food Grade Grease") {
		t.Error("product treated as non-product")
	}
	if !rs.IsStopword("attn") || !rs.IsStopword("suite") {
		t.Errorf("stopwords = %q", rs.Stopwords)
	}
}
