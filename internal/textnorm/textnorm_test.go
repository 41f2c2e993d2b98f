package textnorm

import (
	"reflect"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  ANDEROL  FGCS-2 Food\tGrade ", "anderol fgcs-2 food grade"},
		{"ＡＢＣ", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("PALLET-CHARGE, 2x Freight")
	want := []string{"pallet", "charge", "2x", "freight"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
}

func TestSingular(t *testing.T) {
	cases := map[string]string{"charges": "charge", "fees": "fee", "gas": "gas", "glass": "glass", "pallets": "pallet"}
	for in, want := range cases {
		if got := Singular(in); got != want {
			t.Errorf("Singular(%q) = %q, want %q", in, got, want)
		}
	}
}
