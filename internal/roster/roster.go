package roster

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/researchbridge/backend/internal/scoring"
	"github.com/researchbridge/backend/internal/types"
)

//go:embed professors.json
var professorsJSON []byte

var (
	loadOnce sync.Once
	loadErr  error
	profs    []types.Professor
	byID     map[string]types.Professor
)

// Load parses the embedded roster. Safe to call more than once; the
// dataset is parsed a single time.
func Load() error {
	loadOnce.Do(func() {
		if err := json.Unmarshal(professorsJSON, &profs); err != nil {
			loadErr = fmt.Errorf("failed to parse embedded roster: %w", err)
			return
		}
		byID = make(map[string]types.Professor, len(profs))
		for _, p := range profs {
			byID[p.ID] = p
		}
	})
	return loadErr
}

// All returns every roster profile in curated order.
func All() []types.Professor {
	if err := Load(); err != nil {
		return nil
	}
	out := make([]types.Professor, len(profs))
	copy(out, profs)
	return out
}

// ByID looks up a single profile.
func ByID(id string) (types.Professor, bool) {
	if err := Load(); err != nil {
		return types.Professor{}, false
	}
	p, ok := byID[id]
	return p, ok
}

// Filter narrows the roster. Empty fields match everything.
type Filter struct {
	Query          string
	Department     string
	Interest       string
	RecruitingOnly bool
}

// Departments returns the distinct department names across the roster,
// sorted case-insensitively.
func Departments() []string {
	if err := Load(); err != nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, p := range profs {
		for _, d := range p.Departments {
			if d != "" && !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// Select applies a filter over the roster, preserving curated order.
func Select(f Filter) []types.Professor {
	if err := Load(); err != nil {
		return nil
	}
	query := strings.ToLower(strings.TrimSpace(f.Query))
	interest := normalize(f.Interest)

	var out []types.Professor
	for _, p := range profs {
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		if f.Department != "" && !contains(p.Departments, f.Department) {
			continue
		}
		if interest != "" && !matchesInterest(p, interest) {
			continue
		}
		if f.RecruitingOnly {
			if p.NoStudentInquiries || p.Recruitment == nil || len(p.Recruitment.LookingToRecruit) == 0 {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func matchesQuery(p types.Professor, query string) bool {
	if strings.Contains(strings.ToLower(p.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(strings.Join(p.Interests, " ")), query) {
		return true
	}
	return strings.Contains(strings.ToLower(strings.Join(p.Departments, " ")), query)
}

func matchesInterest(p types.Professor, interest string) bool {
	for _, pi := range p.Interests {
		pn := normalize(pi)
		if pn == "" {
			continue
		}
		if strings.Contains(pn, interest) || strings.Contains(interest, pn) {
			return true
		}
	}
	return false
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// normalize lowercases and strips punctuation so interest matching
// survives formatting differences in curated data.
func normalize(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Recommendation is one entry on the daily recommendations surface.
type Recommendation struct {
	Professor        types.Professor        `json:"professor"`
	Score            scoring.ProfessorScore `json:"score"`
	StarLabel        string                 `json:"starLabel"`
	MatchedInterests []string               `json:"matchedInterests"`
}

const (
	recommendMinStars = 4.0
	dailyNoiseFactor  = 0.3
)

// Recommend builds the daily list for a student. Profiles are filtered
// by interest overlap, scored as a batch, then reordered with a small
// date-seeded noise term so the surface rotates day to day. Noise is
// applied after scoring and only affects ordering; stars and
// percentiles are untouched. Only 4+ star profiles are shown.
func Recommend(interests, resumeKeywords []string, limit int, day time.Time) []Recommendation {
	if err := Load(); err != nil {
		return nil
	}
	if limit <= 0 {
		limit = 8
	}

	normInterests := make([]string, 0, len(interests))
	for _, s := range interests {
		if n := normalize(s); n != "" {
			normInterests = append(normInterests, n)
		}
	}

	var pool []types.Professor
	matched := make(map[string][]string)
	for _, p := range profs {
		m := matchedInterests(p, normInterests)
		if len(normInterests) > 0 && len(m) == 0 {
			continue
		}
		pool = append(pool, p)
		matched[p.ID] = m
	}
	if len(pool) == 0 {
		return nil
	}

	scores := scoring.ScoreProfessors(pool, resumeKeywords)
	rand := dailyRand(day)

	type candidate struct {
		prof  types.Professor
		score scoring.ProfessorScore
		order float64
	}
	cands := make([]candidate, len(pool))
	for i, p := range pool {
		sc := scores[p.ID]
		cands[i] = candidate{
			prof:  p,
			score: sc,
			order: sc.Overall + rand.Float64()*dailyNoiseFactor,
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].order > cands[j].order
	})

	var out []Recommendation
	for _, c := range cands {
		if c.score.Stars < recommendMinStars {
			continue
		}
		out = append(out, Recommendation{
			Professor:        c.prof,
			Score:            c.score,
			StarLabel:        scoring.ProfessorStarLabel(c.score.Stars),
			MatchedInterests: matched[c.prof.ID],
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func matchedInterests(p types.Professor, normInterests []string) []string {
	var out []string
	for _, want := range normInterests {
		for _, pi := range p.Interests {
			pn := normalize(pi)
			if pn == "" {
				continue
			}
			if strings.Contains(pn, want) || strings.Contains(want, pn) {
				out = append(out, want)
				break
			}
		}
	}
	return out
}

// dailyRand derives a deterministic generator from the calendar date so
// every request on the same day sees the same ordering.
func dailyRand(day time.Time) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(day.UTC().Format("2006-01-02")))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}
