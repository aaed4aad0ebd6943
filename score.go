package linkaudit

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"unicode"
)

// domainBonus is added when a candidate contains the preferred domain
const domainBonus = 50

// Candidate is a discovered URL with its repair score
type Candidate struct {
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// ScoreCandidate scores a URL against keywords in priority order.
// Each keyword found (case-insensitive) at index i adds (len(keywords)-i)*10,
// containing preferredDomain adds 50, and every 100 characters of URL subtract 1.
func ScoreCandidate(candidate string, keywords []string, preferredDomain string) float64 {
	lower := strings.ToLower(candidate)
	score := 0.0
	for i, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			score += float64((len(keywords) - i) * 10)
		}
	}
	if preferredDomain != "" && strings.Contains(lower, strings.ToLower(preferredDomain)) {
		score += domainBonus
	}
	score -= float64(len(candidate)) / 100
	return score
}

// SelectBest returns the highest scoring candidate. Ties go to the earlier one
// and nothing is returned unless the best score is above zero.
func SelectBest(candidates []string, keywords []string, preferredDomain string) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range candidates {
		s := ScoreCandidate(c, keywords, preferredDomain)
		if !found || s > best.Score {
			best = Candidate{URL: c, Score: s}
			found = true
		}
	}
	if !found || best.Score <= 0 {
		return Candidate{}, false
	}
	return best, true
}

// RankCandidates scores the candidates eligible to replace current and returns them
// best first. Eligible candidates match at least one keyword, differ from current,
// are not static assets and score at least minScore. Equal scores keep page order.
func RankCandidates(candidates []string, keywords []string, preferredDomain, current string, minScore float64) []Candidate {
	current = strings.TrimSpace(current)
	ranked := []Candidate{}
	for _, c := range candidates {
		if c == current || isAssetURL(c) || !matchesAny(c, keywords) {
			continue
		}
		s := ScoreCandidate(c, keywords, preferredDomain)
		if s < minScore {
			continue
		}
		ranked = append(ranked, Candidate{URL: c, Score: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func matchesAny(candidate string, keywords []string) bool {
	lower := strings.ToLower(candidate)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// PreferredDomain returns the homepage host without a leading "www."
func PreferredDomain(homepage string) string {
	u, err := url.Parse(strings.TrimSpace(homepage))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// HomepageGuesses derives candidate homepages from a tool name, in probe order.
// The name is lower-cased with all whitespace removed; an empty result yields no guesses.
func HomepageGuesses(name string) []string {
	n := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, name)
	if n == "" {
		return nil
	}
	return []string{
		"https://www." + n + ".com",
		"https://" + n + ".ai",
		"https://" + n + ".io",
		"https://www." + n + ".ai",
		"https://" + n + ".com",
		"https://www." + n + ".io",
	}
}

// FindAlternativeHomepage validates the name-derived guesses in order and returns the
// first reachable one. This is a best-effort heuristic: a reachable guess may belong
// to an unrelated site.
func FindAlternativeHomepage(ctx context.Context, v LinkValidator, name string) (string, bool) {
	for _, guess := range HomepageGuesses(name) {
		if ctx.Err() != nil {
			return "", false
		}
		if v.Validate(ctx, guess).Reachable {
			return guess, true
		}
	}
	return "", false
}
