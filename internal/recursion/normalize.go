// Package recursion decides which related entities qualify for further
// exploration: per-depth filtering, dedup, cycle avoidance, and the
// early-stopping ceilings shared by one root exploration.
package recursion

import "strings"

// legalSuffixes are corporate-form markers stripped during identity
// normalization so "Acme Corp" and "ACME CORPORATION" collide.
var legalSuffixes = map[string]bool{
	"SA": true, "SARL": true, "SAS": true, "SASU": true, "SNC": true,
	"SCS": true, "GIE": true, "SE": true, "SCA": true,
	"INC": true, "CORP": true, "CORPORATION": true, "COMPANY": true,
	"LLC": true, "LTD": true, "LIMITED": true, "PLC": true,
	"GMBH": true, "AG": true, "BV": true, "NV": true, "CO": true,
}

// replacements expand common abbreviations before suffix stripping.
var replacements = map[string]string{
	"&":   "ET",
	"CIE": "COMPAGNIE",
	"ETS": "ETABLISSEMENTS",
}

// NormalizeIdentity produces the case/whitespace/legal-suffix-insensitive
// key used by the visited set and candidate dedup.
func NormalizeIdentity(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '&':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	var kept []string
	for _, word := range strings.Fields(b.String()) {
		if repl, ok := replacements[word]; ok {
			word = repl
		}
		if legalSuffixes[word] {
			continue
		}
		kept = append(kept, word)
	}

	if len(kept) == 0 {
		// A name made only of suffixes still needs a stable key.
		return strings.Join(strings.Fields(b.String()), " ")
	}
	return strings.Join(kept, " ")
}

// NameVariants returns plausible alternate spellings of an entity name,
// used by the normalize step to widen registry matching.
func NameVariants(name string) []string {
	norm := NormalizeIdentity(name)
	seen := map[string]bool{}
	var variants []string

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	add(norm)
	add(strings.ReplaceAll(norm, " ET ", " & "))
	add(strings.ReplaceAll(norm, " ", "-"))
	add(strings.ReplaceAll(norm, " ", ""))
	return variants
}
