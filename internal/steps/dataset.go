package steps

import (
	"github.com/entgraph/entgraph/internal/recursion"
)

// registryEntry is one company record in the built-in corpus. The
// corpus stands in for the external registry, website, and press
// collaborators: lookups against it are deterministic, which keeps the
// engine's behavior reproducible end to end.
type registryEntry struct {
	ID        string
	LegalName string
	Sector    string
	Website   string
	// Filing is the raw registry document the CPU lane parses. Lines
	// are "HOLDER;PCT;SECTOR" records.
	Filing string
	// Articles are press items the news step extracts entities from.
	Articles []article
}

type article struct {
	Title string
	Body  string
	// Mentions are the entities a perfect extractor would find.
	Mentions []mention
}

type mention struct {
	Name string
	// AmountEUR is the deal size in euros, when the article names one.
	AmountEUR float64
	Relation  string
}

// corpus is keyed by normalized entity identity.
var corpus = map[string]*registryEntry{}

func register(names []string, e *registryEntry) {
	for _, n := range names {
		corpus[recursion.NormalizeIdentity(n)] = e
	}
}

// lookupEntry finds a corpus entry by any name variant or resolved ID.
func lookupEntry(name, resolvedID string) *registryEntry {
	if resolvedID != "" {
		for _, e := range corpus {
			if e.ID == resolvedID {
				return e
			}
		}
	}
	for _, v := range recursion.NameVariants(name) {
		if e, ok := corpus[recursion.NormalizeIdentity(v)]; ok {
			return e
		}
	}
	return corpus[recursion.NormalizeIdentity(name)]
}

func init() {
	register([]string{"Acme Corp", "ACME Corporation"}, &registryEntry{
		ID:        "552120222",
		LegalName: "ACME CORPORATION",
		Sector:    "industrial",
		Website:   "https://www.acme.example",
		Filing: "ACME HOLDINGS;60;finance\n" +
			"BOREAL SERVICES;35;services\n" +
			"MINOR PARTNER SARL;4;services\n",
		Articles: []article{
			{
				Title: "Acme expands industrial footprint",
				Body:  "Acme Corp finalized its acquisition of Cobalt Logistics for 25,000,000 EUR.",
				Mentions: []mention{
					{Name: "Cobalt Logistics", AmountEUR: 25_000_000, Relation: "acquisition"},
				},
			},
			{
				Title: "Partnership announced",
				Body:  "Acme Corp and Boreal Services deepen their long-standing partnership.",
				Mentions: []mention{
					{Name: "Boreal Services", Relation: "partner"},
				},
			},
		},
	})

	register([]string{"Acme Holdings", "ACME Holdings SA"}, &registryEntry{
		ID:        "552120333",
		LegalName: "ACME HOLDINGS SA",
		Sector:    "finance",
		Website:   "https://holdings.acme.example",
		Filing:    "GRANITE CAPITAL;80;finance\n",
		Articles:  nil,
	})

	register([]string{"Boreal Services", "BOREAL Services SAS"}, &registryEntry{
		ID:        "552120444",
		LegalName: "BOREAL SERVICES SAS",
		Sector:    "services",
		Website:   "https://www.boreal.example",
		Filing:    "",
		Articles:  nil,
	})

	register([]string{"Cobalt Logistics"}, &registryEntry{
		ID:        "552120555",
		LegalName: "COBALT LOGISTICS SE",
		Sector:    "logistics",
		Website:   "https://www.cobalt.example",
		Filing:    "",
		Articles:  nil,
	})

	register([]string{"Granite Capital"}, &registryEntry{
		ID:        "552120666",
		LegalName: "GRANITE CAPITAL SCA",
		Sector:    "finance",
		Website:   "https://www.granite.example",
		Filing:    "",
		Articles:  nil,
	})
}
