package recursion

import "testing"

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"uppercase and suffix", "Acme Corp", "ACME"},
		{"full corporate form", "ACME CORPORATION", "ACME"},
		{"french form", "Boreal Services SAS", "BOREAL SERVICES"},
		{"multiple suffixes", "Acme Holdings SA", "ACME"},
		{"punctuation", "Acme, Corp.", "ACME"},
		{"ampersand expansion", "Smith & Co", "SMITH ET"},
		{"cie expansion", "Dupont CIE", "DUPONT COMPAGNIE"},
		{"whitespace", "  Acme   Corp  ", "ACME"},
		{"suffix-only name keeps cleaned form", "SA", "SA"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeIdentity(tt.in); got != tt.want {
				t.Errorf("NormalizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdentityCollisions(t *testing.T) {
	pairs := [][2]string{
		{"Acme Corp", "ACME CORPORATION"},
		{"Boreal Services SAS", "boreal services"},
		{"Acme Holdings", "Acme Holding SA"},
	}
	for _, p := range pairs {
		if NormalizeIdentity(p[0]) != NormalizeIdentity(p[1]) {
			t.Errorf("expected %q and %q to normalize identically, got %q vs %q",
				p[0], p[1], NormalizeIdentity(p[0]), NormalizeIdentity(p[1]))
		}
	}
}

func TestNameVariants(t *testing.T) {
	variants := NameVariants("Boreal Services SAS")
	if len(variants) == 0 {
		t.Fatal("expected variants")
	}
	if variants[0] != "BOREAL SERVICES" {
		t.Errorf("expected normalized form first, got %q", variants[0])
	}

	seen := map[string]bool{}
	for _, v := range variants {
		if seen[v] {
			t.Errorf("duplicate variant %q", v)
		}
		seen[v] = true
	}
	if !seen["BOREAL-SERVICES"] || !seen["BOREALSERVICES"] {
		t.Errorf("expected joined variants, got %v", variants)
	}
}
