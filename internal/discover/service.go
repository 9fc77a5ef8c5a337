// Package discover orchestrates researcher discovery: it resolves
// institutions through ROR and topics through OpenAlex, finds matching
// authors, filters out implausible entries, and scores the batch.
package discover

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/researchbridge/backend/internal/monitoring"
	"github.com/researchbridge/backend/internal/openalex"
	"github.com/researchbridge/backend/internal/resilience"
	"github.com/researchbridge/backend/internal/ror"
	"github.com/researchbridge/backend/internal/scoring"
	"github.com/researchbridge/backend/internal/types"
)

// PerPage is the fixed page size for discovery results
const PerPage = 50

// activeWindowYears is how far back a researcher's publications may reach
// for the "active" filter
const activeWindowYears = 5

// minWorksForValidity filters out one-off spam entries
const minWorksForValidity = 2

// ErrMissingParameters is returned when a request has no search criteria
var ErrMissingParameters = errors.New("at least one search parameter is required")

// Request holds discovery search criteria
type Request struct {
	City        string
	Institution string
	Name        string
	Area        string
	Active      bool
	Page        int
	// Keywords from the student's resume, used for relevance scoring
	Keywords []string
}

// TopicMatch is a matched research topic summary
type TopicMatch struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// Pagination describes the page of results returned
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	PerPage     int  `json:"perPage"`
	HasResults  bool `json:"hasResults"`
}

// Response is the discovery result payload
type Response struct {
	City                 string                             `json:"city"`
	Institution          string                             `json:"institution"`
	Name                 string                             `json:"name"`
	Area                 string                             `json:"area"`
	MatchedInstitutions  int                                `json:"matchedInstitutions"`
	MatchedTopics        []TopicMatch                       `json:"matchedTopics"`
	Researchers          []types.Researcher                 `json:"researchers"`
	SuggestedResearchers []types.Researcher                 `json:"suggestedResearchers"`
	Scores               map[string]scoring.ResearcherScore `json:"scores"`
	Pagination           Pagination                         `json:"pagination"`
}

// Service runs discovery queries against the upstream APIs
type Service struct {
	openalex *openalex.Client
	ror      *ror.Client
	logger   *monitoring.Logger
}

// NewService creates a discovery service
func NewService(oa *openalex.Client, rorClient *ror.Client, logger *monitoring.Logger) *Service {
	return &Service{
		openalex: oa,
		ror:      rorClient,
		logger:   logger,
	}
}

// Discover runs a discovery query. Institution and topic resolution run
// concurrently; either failing degrades the query rather than aborting it.
func (s *Service) Discover(ctx context.Context, req Request) (*Response, error) {
	req.City = strings.TrimSpace(req.City)
	req.Institution = strings.TrimSpace(req.Institution)
	req.Name = strings.TrimSpace(req.Name)
	req.Area = strings.TrimSpace(req.Area)
	if req.Page < 1 {
		req.Page = 1
	}

	if req.City == "" && req.Institution == "" && req.Name == "" && req.Area == "" {
		return nil, ErrMissingParameters
	}

	start := time.Now()

	rorIDs, topics := s.resolveFilters(ctx, req)

	resp := &Response{
		City:                 req.City,
		Institution:          req.Institution,
		Name:                 req.Name,
		Area:                 req.Area,
		MatchedInstitutions:  len(rorIDs),
		MatchedTopics:        topicMatches(topics),
		Researchers:          []types.Researcher{},
		SuggestedResearchers: []types.Researcher{},
		Pagination: Pagination{
			CurrentPage: req.Page,
			PerPage:     PerPage,
		},
	}

	filterParts := buildFilterParts(rorIDs, topics)
	if len(filterParts) == 0 && req.Name == "" {
		resp.Scores = map[string]scoring.ResearcherScore{}
		return resp, nil
	}

	var researchers []types.Researcher
	var err error
	if req.Name != "" {
		researchers, err = s.searchByName(ctx, req, rorIDs)
	} else {
		researchers, err = s.searchByFilter(ctx, req, filterParts)
	}
	if err != nil {
		return nil, err
	}

	researchers = filterValid(researchers)

	sort.SliceStable(researchers, func(i, j int) bool {
		return researchers[i].MatchedWorksCount > researchers[j].MatchedWorksCount
	})

	// Looser fallback so a name search never comes back completely empty
	if len(researchers) == 0 && req.Name != "" {
		resp.SuggestedResearchers = s.suggestedByName(ctx, req.Name)
	}

	resp.Researchers = researchers
	resp.Pagination.HasResults = len(researchers) > 0

	scoreStart := time.Now()
	batch := append(researchers, resp.SuggestedResearchers...)
	resp.Scores = scoring.ScoreResearchers(batch, req.Keywords)
	if s.logger != nil {
		s.logger.ScoringLogger("researcher", len(batch), time.Since(scoreStart))
	}

	if s.logger != nil {
		mode := "filter"
		if req.Name != "" {
			mode = "name"
		}
		s.logger.DiscoverLogger(req.Name+req.Area+req.City+req.Institution, mode, len(researchers), time.Since(start), false)
	}

	return resp, nil
}

// ResearchersByID hydrates researcher records for a saved list. Matched
// works counts are query-dependent and therefore zero here.
func (s *Service) ResearchersByID(ctx context.Context, ids []string) ([]types.Researcher, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return []types.Researcher{}, nil
	}

	authors, err := s.openalex.AuthorsByID(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch researchers: %w", err)
	}

	researchers := make([]types.Researcher, 0, len(authors))
	for _, a := range authors {
		researchers = append(researchers, a.ToResearcher(0))
	}
	return researchers, nil
}

// resolveFilters fetches ROR institutions and OpenAlex topics in parallel.
// Failures are logged and treated as "no matches".
func (s *Service) resolveFilters(ctx context.Context, req Request) ([]string, []openalex.Topic) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		rorIDs []string
		topics []openalex.Topic
	)

	// A provider in emergency degradation is skipped outright; waiting
	// out its timeouts would stall every filtered query.
	if (req.City != "" || req.Institution != "") && resilience.IsServiceAvailable("ror-api") {
		query := req.Institution
		if query == "" {
			query = req.City
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := s.ror.SearchOrganizations(ctx, query)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("ROR lookup failed", "query", query, "error", err)
				}
				return
			}
			mu.Lock()
			rorIDs = ids
			mu.Unlock()
		}()
	}

	if req.Area != "" && resilience.IsServiceAvailable("openalex-api") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := s.openalex.SearchTopics(ctx, req.Area)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("Topic lookup failed", "area", req.Area, "error", err)
				}
				return
			}
			mu.Lock()
			topics = results
			mu.Unlock()
		}()
	}

	wg.Wait()
	return rorIDs, topics
}

func buildFilterParts(rorIDs []string, topics []openalex.Topic) []string {
	var parts []string
	if len(rorIDs) > 0 {
		parts = append(parts, "institutions.ror:"+strings.Join(rorIDs, "|"))
	}
	if len(topics) > 0 {
		ids := make([]string, 0, 3)
		for _, t := range topics {
			if t.ID == "" {
				continue
			}
			ids = append(ids, t.ID)
			if len(ids) == 3 {
				break
			}
		}
		if len(ids) > 0 {
			parts = append(parts, "primary_topic.id:"+strings.Join(ids, "|"))
		}
	}
	return parts
}

func topicMatches(topics []openalex.Topic) []TopicMatch {
	matches := []TopicMatch{}
	for i, t := range topics {
		if i == 3 {
			break
		}
		matches = append(matches, TopicMatch{
			ID:          t.ID,
			DisplayName: t.DisplayName,
			Score:       t.Score,
		})
	}
	return matches
}

// searchByName resolves researchers through direct author search,
// optionally narrowed to matched institutions
func (s *Service) searchByName(ctx context.Context, req Request, rorIDs []string) ([]types.Researcher, error) {
	authors, err := s.openalex.SearchAuthors(ctx, req.Name, req.Page, PerPage)
	if err != nil {
		return nil, fmt.Errorf("author search failed: %w", err)
	}

	researchers := make([]types.Researcher, 0, len(authors))
	for _, a := range authors {
		if len(rorIDs) > 0 && !matchesInstitution(a, rorIDs) {
			continue
		}
		researchers = append(researchers, a.ToResearcher(a.WorksCount))
	}
	return researchers, nil
}

func matchesInstitution(a openalex.Author, rorIDs []string) bool {
	if a.LastKnownInstitution == nil || a.LastKnownInstitution.ROR == "" {
		return false
	}
	for _, id := range rorIDs {
		if strings.Contains(a.LastKnownInstitution.ROR, id) {
			return true
		}
	}
	return false
}

// searchByFilter ranks authors by how many matching works they have, then
// hydrates the current page of authors
func (s *Service) searchByFilter(ctx context.Context, req Request, filterParts []string) ([]types.Researcher, error) {
	parts := append([]string(nil), filterParts...)
	if req.Active {
		currentYear := time.Now().Year()
		minYear := currentYear - activeWindowYears
		parts = append(parts, fmt.Sprintf("publication_year:%d-%d", minYear, currentYear))
	}

	groups, err := s.openalex.GroupWorksByAuthor(ctx, strings.Join(parts, ","))
	if err != nil {
		return nil, fmt.Errorf("works grouping failed: %w", err)
	}

	sorted := make([]openalex.AuthorGroup, 0, len(groups))
	for _, g := range groups {
		if g.Key != "" {
			sorted = append(sorted, g)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})

	startIdx := (req.Page - 1) * PerPage
	if startIdx >= len(sorted) {
		return nil, nil
	}
	endIdx := startIdx + PerPage
	if endIdx > len(sorted) {
		endIdx = len(sorted)
	}
	pageGroups := sorted[startIdx:endIdx]

	countByID := make(map[string]int, len(pageGroups))
	ids := make([]string, 0, len(pageGroups))
	for _, g := range pageGroups {
		if _, seen := countByID[g.Key]; !seen {
			ids = append(ids, g.Key)
		}
		countByID[g.Key] = g.Count
	}

	authors, err := s.openalex.AuthorsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("author hydration failed: %w", err)
	}

	researchers := make([]types.Researcher, 0, len(authors))
	for _, a := range authors {
		researchers = append(researchers, a.ToResearcher(countByID[a.ID]))
	}
	return researchers, nil
}

// suggestedByName fetches loose name matches after an empty result, best
// effort only
func (s *Service) suggestedByName(ctx context.Context, name string) []types.Researcher {
	authors, err := s.openalex.SearchAuthors(ctx, name, 1, 10)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("Suggested researcher lookup failed", "name", name, "error", err)
		}
		return []types.Researcher{}
	}

	suggested := []types.Researcher{}
	for _, a := range authors {
		r := a.ToResearcher(a.WorksCount)
		if !isValidResearcher(r) {
			continue
		}
		suggested = append(suggested, r)
		if len(suggested) == 5 {
			break
		}
	}

	sort.SliceStable(suggested, func(i, j int) bool {
		return suggested[i].MatchedWorksCount > suggested[j].MatchedWorksCount
	})
	return suggested
}

func filterValid(researchers []types.Researcher) []types.Researcher {
	valid := []types.Researcher{}
	for _, r := range researchers {
		if isValidResearcher(r) {
			valid = append(valid, r)
		}
	}
	return valid
}

// isValidResearcher rejects famous historical figures and entries with
// almost no publication history
func isValidResearcher(r types.Researcher) bool {
	if scoring.IsFamousFigure(r.Name) {
		return false
	}
	return r.TotalWorks() >= minWorksForValidity
}
