package features

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/greenbier/propedge/internal/models"

	"github.com/pmezard/go-difflib/difflib"
)

var (
	ErrUnknownTeam   = errors.New("unknown team")
	ErrAmbiguousTeam = errors.New("ambiguous team")
)

// SimilarityCutoff is the minimum SequenceMatcher ratio for a fuzzy team match
const SimilarityCutoff = 0.85

var stopwords = map[string]bool{
	"state": true, "st": true, "university": true, "univ": true, "tech": true, "college": true,
	"north": true, "south": true, "east": true, "west": true,
	"northern": true, "southern": true, "eastern": true, "western": true, "central": true,
	"the": true, "of": true, "at": true,
}

// defaultAliases maps common feed variants to canonical names
var defaultAliases = map[string]string{
	"oklahoma st cowboys":  "oklahoma st",
	"oklahoma state":       "oklahoma st",
	"st louis blues":       "st louis",
	"montreal canadiens":   "montreal",
	"ny rangers":           "new york rangers",
	"ny islanders":         "new york islanders",
	"la kings":             "los angeles kings",
	"chi white sox":        "chicago white sox",
	"chi cubs":             "chicago cubs",
	"ny yankees":           "new york yankees",
	"ny mets":              "new york mets",
	"la dodgers":           "los angeles dodgers",
	"la angels":            "los angeles angels",
	"sf giants":            "san francisco giants",
	"tb rays":              "tampa bay rays",
	"vegas golden knights": "vegas",
	"utah hockey club":     "utah",
	"arizona diamondbacks": "arizona",
	"oakland athletics":    "athletics",
}

// Resolver canonicalizes team names: alias table, exact, whole-word substring,
// then a token-overlap-guarded fuzzy match
type Resolver struct {
	aliases map[string]string
	known   map[string]bool
	names   []string
	cutoff  float64
}

// NewResolver builds a resolver over the canonical team names
func NewResolver(known []string, aliases map[string]string) *Resolver {
	r := &Resolver{
		aliases: make(map[string]string, len(defaultAliases)+len(aliases)),
		known:   make(map[string]bool, len(known)),
		cutoff:  SimilarityCutoff,
	}
	for k, v := range defaultAliases {
		r.aliases[k] = v
	}
	for k, v := range aliases {
		r.aliases[models.NormalizeName(k)] = models.NormalizeName(v)
	}
	for _, name := range known {
		n := models.NormalizeName(name)
		if n != "" && !r.known[n] {
			r.known[n] = true
			r.names = append(r.names, n)
		}
	}
	sort.Strings(r.names)
	return r
}

// Resolve returns the canonical name for a feed variant
func (r *Resolver) Resolve(name string) (string, error) {
	n := models.NormalizeName(name)
	if n == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownTeam)
	}
	if alias, ok := r.aliases[n]; ok {
		n = alias
	}
	if r.known[n] {
		return n, nil
	}

	if match, err := r.substring(n); err != nil || match != "" {
		return match, err
	}
	return r.fuzzy(n)
}

func (r *Resolver) substring(n string) (string, error) {
	padded := " " + n + " "
	var within, containing []string
	for _, k := range r.names {
		switch {
		case strings.Contains(padded, " "+k+" "):
			within = append(within, k)
		case strings.Contains(" "+k+" ", padded):
			containing = append(containing, k)
		}
	}

	// a known name inside the variant: the longest one wins
	if len(within) > 0 {
		sort.Slice(within, func(i, j int) bool { return len(within[i]) > len(within[j]) })
		if len(within) > 1 && len(within[0]) == len(within[1]) {
			return "", fmt.Errorf("%w: %q matches %v", ErrAmbiguousTeam, n, within)
		}
		return within[0], nil
	}
	switch len(containing) {
	case 0:
		return "", nil
	case 1:
		return containing[0], nil
	}
	return "", fmt.Errorf("%w: %q matches %v", ErrAmbiguousTeam, n, containing)
}

func (r *Resolver) fuzzy(n string) (string, error) {
	tokens := significant(n)
	var best, runnerUp string
	bestRatio, runnerRatio := 0.0, 0.0

	for _, k := range r.names {
		if !overlaps(tokens, significant(k)) {
			continue
		}
		ratio := similarity(n, k)
		switch {
		case ratio > bestRatio:
			runnerUp, runnerRatio = best, bestRatio
			best, bestRatio = k, ratio
		case ratio > runnerRatio:
			runnerUp, runnerRatio = k, ratio
		}
	}

	if bestRatio < r.cutoff {
		return "", fmt.Errorf("%w: %q", ErrUnknownTeam, n)
	}
	if runnerRatio >= r.cutoff && bestRatio-runnerRatio < 1e-9 {
		return "", fmt.Errorf("%w: %q matches %s and %s", ErrAmbiguousTeam, n, best, runnerUp)
	}
	return best, nil
}

func significant(name string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(name) {
		if !stopwords[tok] {
			out[tok] = true
		}
	}
	return out
}

func overlaps(a, b map[string]bool) bool {
	for tok := range a {
		if b[tok] {
			return true
		}
	}
	return false
}

func similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}
