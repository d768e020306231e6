package resolver

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ConflictPredicate reports whether two names may belong to the same
// organization. It is the pluggable guard that keeps similarly-spelled but
// distinct organizations from being merged; a false return vetoes the merge
// regardless of similarity score.
type ConflictPredicate func(tokensA, tokensB []string) bool

// RuleSet holds the discriminating-qualifier rules used by the default
// conflict predicate.
type RuleSet struct {
	// ConflictingPairs lists token pairs that indicate distinct entities
	// when one name carries the first and the other carries the second.
	ConflictingPairs [][2]string `yaml:"conflicting_pairs"`

	// Qualifiers are tokens that, appearing in exactly one of the two
	// names, mark a distinct legal entity (country and region names,
	// directional markers).
	Qualifiers []string `yaml:"qualifiers"`

	// Stopwords are tokens ignored when computing significant-token
	// overlap and blocking keys.
	Stopwords []string `yaml:"stopwords"`
}

// DefaultRuleSet returns the built-in qualifier rules.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		ConflictingPairs: [][2]string{
			{"african", "asian"}, {"africa", "asia"},
			{"american", "european"}, {"america", "europe"},
			{"north", "south"}, {"east", "west"},
			{"development", "investment"}, {"bank", "fund"},
			{"international", "national"}, {"global", "local"},
		},
		Qualifiers: []string{
			"brazil", "brasil", "mexico", "argentina", "chile", "colombia",
			"peru", "usa", "uk", "germany", "france", "italy", "spain",
			"portugal", "japan", "china", "india", "canada", "australia",
			"switzerland", "austria", "netherlands", "belgium", "sweden",
			"norway", "denmark", "poland", "turkey", "egypt", "nigeria",
			"kenya", "ghana", "morocco", "indonesia", "thailand", "vietnam",
			"singapore", "malaysia", "philippines", "korea",
			"europe", "asia", "africa", "america", "latam", "apac", "emea",
		},
		Stopwords: []string{
			"the", "of", "and", "for", "in", "on", "at", "to", "a", "an", "by", "with",
			"ltd", "inc", "corp", "corporation", "company", "group", "limited",
			"co", "llc", "se", "sa", "ag", "gmbh", "bv", "nv", "spa", "srl", "plc",
		},
	}
}

// LoadRuleSet reads a RuleSet from a YAML file. Missing sections fall back
// to the defaults so a rules file may override only one list.
func LoadRuleSet(path string) (RuleSet, error) {
	rs := DefaultRuleSet()

	data, err := os.ReadFile(path)
	if err != nil {
		return rs, eris.Wrapf(err, "resolver: read rules file %s", path)
	}

	var loaded RuleSet
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return rs, eris.Wrapf(err, "resolver: parse rules file %s", path)
	}

	if len(loaded.ConflictingPairs) > 0 {
		rs.ConflictingPairs = loaded.ConflictingPairs
	}
	if len(loaded.Qualifiers) > 0 {
		rs.Qualifiers = loaded.Qualifiers
	}
	if len(loaded.Stopwords) > 0 {
		rs.Stopwords = loaded.Stopwords
	}
	return rs, nil
}

// Predicate builds the conflict predicate for this rule set.
func (rs RuleSet) Predicate() ConflictPredicate {
	qualifiers := make(map[string]struct{}, len(rs.Qualifiers))
	for _, q := range rs.Qualifiers {
		qualifiers[q] = struct{}{}
	}

	return func(tokensA, tokensB []string) bool {
		setA := tokenSet(tokensA)
		setB := tokenSet(tokensB)

		// Conflicting keyword pairs: one side carries word1, the other word2.
		for _, pair := range rs.ConflictingPairs {
			_, a1 := setA[pair[0]]
			_, a2 := setA[pair[1]]
			_, b1 := setB[pair[0]]
			_, b2 := setB[pair[1]]
			if (a1 && b2) || (a2 && b1) {
				return false
			}
		}

		// Discriminating qualifier present in exactly one name.
		for q := range qualifiers {
			_, inA := setA[q]
			_, inB := setB[q]
			if inA != inB {
				return false
			}
		}

		// A trailing-number mismatch marks numbered subsidiaries
		// ("Acme Holding 2" vs "Acme Holding 3").
		if numericTail(tokensA) != numericTail(tokensB) {
			return false
		}

		return true
	}
}

// StopwordSet returns the stopwords as a lookup set.
func (rs RuleSet) StopwordSet() map[string]struct{} {
	set := make(map[string]struct{}, len(rs.Stopwords))
	for _, w := range rs.Stopwords {
		set[w] = struct{}{}
	}
	return set
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// numericTail returns the trailing numeric token of a name, or "".
func numericTail(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	last := tokens[len(tokens)-1]
	if last == "" {
		return ""
	}
	for _, r := range last {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return last
}
