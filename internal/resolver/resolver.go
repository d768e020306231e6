// Package resolver collapses noisy organization-name variants into canonical
// identities via blocked fuzzy comparison and transitive grouping.
package resolver

import (
	"sort"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/namecleaner"
)

// NameCount is one distinct raw name with its row frequency. Slice order is
// first-seen order and breaks canonical-selection ties deterministically.
type NameCount struct {
	Raw   string
	Count int
}

// Mapping maps every raw name to its canonical display name. It is total:
// names that matched nothing map to their own cleaned display form.
type Mapping map[string]string

// Canonical returns the canonical name for a raw variant. Unknown names
// fall back to their own cleaned form, keeping the mapping total even for
// names the resolver never saw.
func (m Mapping) Canonical(raw string) string {
	if c, ok := m[raw]; ok {
		return c
	}
	return namecleaner.Clean(raw).Display
}

// Config controls resolution behavior.
type Config struct {
	// SimilarityThreshold is the minimum similarity score (0..1) for a
	// candidate pair.
	SimilarityThreshold float64
	// MinWordOverlap is the minimum Jaccard overlap of significant tokens
	// required in addition to the similarity score.
	MinWordOverlap float64
}

// Resolver groups raw organization-name variants.
type Resolver struct {
	cfg       Config
	rules     RuleSet
	predicate ConflictPredicate
	stopwords map[string]struct{}
}

// New creates a Resolver with the given config and rule set. A nil predicate
// uses the rule set's default.
func New(cfg Config, rules RuleSet, predicate ConflictPredicate) *Resolver {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.85
	}
	if cfg.MinWordOverlap <= 0 {
		cfg.MinWordOverlap = 0.3
	}
	if predicate == nil {
		predicate = rules.Predicate()
	}
	return &Resolver{
		cfg:       cfg,
		rules:     rules,
		predicate: predicate,
		stopwords: rules.StopwordSet(),
	}
}

// candidate is a cleaned name prepared for comparison.
type candidate struct {
	raw     string
	display string
	compare string
	tokens  []string
	sig     []string // significant tokens (stopwords removed)
	count   int
	order   int // first-seen index
}

// Resolve produces the raw-name → canonical-name mapping for a batch.
//
// Names sharing an identical comparison form always group. Other pairs are
// compared only within a blocking key (first significant token); a pair
// groups when similarity clears the threshold, significant-token overlap
// clears the floor, and the conflict predicate allows the merge. Groups are
// closed transitively with union-find; the most frequent variant becomes
// canonical, ties broken by first-seen order.
func (r *Resolver) Resolve(names []NameCount) Mapping {
	cands := r.prepare(names)

	uf := newUnionFind(len(cands))

	// Exact comparison-form matches group unconditionally.
	byCompare := make(map[string]int, len(cands))
	for i, c := range cands {
		if c.compare == "" {
			continue
		}
		if j, ok := byCompare[c.compare]; ok {
			uf.union(i, j)
		} else {
			byCompare[c.compare] = i
		}
	}

	// Blocked fuzzy comparison.
	blocks := make(map[string][]int)
	for i, c := range cands {
		key := r.blockingKey(c)
		if key == "" {
			continue
		}
		blocks[key] = append(blocks[key], i)
	}

	groups := 0
	for _, members := range blocks {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				i, j := members[x], members[y]
				if uf.find(i) == uf.find(j) {
					continue
				}
				if r.sameOrganization(cands[i], cands[j]) {
					uf.union(i, j)
					groups++
				}
			}
		}
	}

	// Pick canonical per group: highest frequency, then first-seen.
	best := make(map[int]int) // root → candidate index
	for i := range cands {
		root := uf.find(i)
		cur, ok := best[root]
		if !ok {
			best[root] = i
			continue
		}
		if cands[i].count > cands[cur].count ||
			(cands[i].count == cands[cur].count && cands[i].order < cands[cur].order) {
			best[root] = i
		}
	}

	mapping := make(Mapping, len(cands))
	merged := 0
	for i, c := range cands {
		canonical := cands[best[uf.find(i)]].display
		mapping[c.raw] = canonical
		if canonical != c.display {
			merged++
		}
	}

	zap.L().Info("resolver: resolution complete",
		zap.Int("names", len(cands)),
		zap.Int("fuzzy_groups", groups),
		zap.Int("variants_merged", merged),
	)

	return mapping
}

func (r *Resolver) prepare(names []NameCount) []candidate {
	cands := make([]candidate, 0, len(names))
	for i, nc := range names {
		cleaned := namecleaner.Clean(nc.Raw)
		tokens := namecleaner.Tokens(cleaned.Compare)
		cands = append(cands, candidate{
			raw:     nc.Raw,
			display: cleaned.Display,
			compare: cleaned.Compare,
			tokens:  tokens,
			sig:     r.significant(tokens),
			count:   nc.Count,
			order:   i,
		})
	}
	return cands
}

// blockingKey is the first significant token, falling back to the first
// token so short all-stopword names still land in some block.
func (r *Resolver) blockingKey(c candidate) string {
	if len(c.sig) > 0 {
		return c.sig[0]
	}
	if len(c.tokens) > 0 {
		return c.tokens[0]
	}
	return ""
}

// sameOrganization applies the full pair test: similarity score, significant
// word overlap, and the conflict predicate.
func (r *Resolver) sameOrganization(a, b candidate) bool {
	if a.compare == "" || b.compare == "" {
		return false
	}

	score := similarity(a, b)
	if score < r.cfg.SimilarityThreshold {
		return false
	}

	if wordOverlap(a.sig, b.sig) < r.cfg.MinWordOverlap {
		return false
	}

	return r.predicate(a.tokens, b.tokens)
}

func (r *Resolver) significant(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := r.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// similarity takes the best of three comparisons: the raw comparison forms,
// the sorted token forms, and the significant-token forms. The sorted pass
// makes word reorderings ("Group Allianz" vs "Allianz Group") score high;
// the significant pass lets names differing only in legal suffixes
// ("Allianz SE" vs "Allianz") group.
func similarity(a, b candidate) float64 {
	best := levenshtein.Similarity(a.compare, b.compare, nil)

	sortedA := append([]string(nil), a.tokens...)
	sortedB := append([]string(nil), b.tokens...)
	sort.Strings(sortedA)
	sort.Strings(sortedB)
	if s := levenshtein.Similarity(joinTokens(sortedA), joinTokens(sortedB), nil); s > best {
		best = s
	}

	if len(a.sig) > 0 && len(b.sig) > 0 {
		if s := levenshtein.Similarity(joinTokens(a.sig), joinTokens(b.sig), nil); s > best {
			best = s
		}
	}

	return best
}

// wordOverlap is the Jaccard index of two significant-token sets.
// Names with no significant tokens never clear the floor.
func wordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := tokenSet(a)
	setB := tokenSet(b)

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func joinTokens(tokens []string) string {
	out := ""
	for i, t := range tokens {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}

// unionFind is a plain union-find with path compression.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}
