package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
	"github.com/custodia-labs/agrafes/internal/logger"
)

// Inline highlight markers of segment-mode results. ASCII, unambiguous, easy
// to re-escape on the rendering boundary.
const (
	HighlightOpen  = "<<"
	HighlightClose = ">>"
)

// QueryService answers full-text queries in segment or KWIC shape.
type QueryService struct {
	index driven.SearchIndex
	links driven.LinkStore
}

// NewQueryService creates a query service.
func NewQueryService(index driven.SearchIndex, links driven.LinkStore) *QueryService {
	return &QueryService{index: index, links: links}
}

// ProximityQuery builds an FTS5 NEAR() query string: terms within distance
// token positions of each other, in any order.
func ProximityQuery(terms []string, distance int) (string, error) {
	if len(terms) < 2 {
		return "", fmt.Errorf("proximity query requires at least 2 terms: %w", domain.ErrValidation)
	}
	return fmt.Sprintf("NEAR(%s, %d)", strings.Join(terms, " "), distance), nil
}

// Query runs one paginated search. Pagination uses limit+1 lookahead so
// has_more never needs a global count; Total stays nil by design.
func (s *QueryService) Query(ctx context.Context, opts domain.QueryOptions) (*domain.QueryPage, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}

	logger.Section("Query Execution")
	logger.Debug("Query: %q mode=%s limit=%d offset=%d", opts.Q, opts.Mode, opts.Limit, opts.Offset)

	page := &domain.QueryPage{
		Hits:   []domain.Hit{},
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}

	if strings.TrimSpace(opts.Q) == "" {
		return page, nil
	}

	filter := domain.IndexFilter{
		Language:     opts.Language,
		DocID:        opts.DocID,
		ResourceType: opts.ResourceType,
		DocRole:      opts.DocRole,
	}
	rows, err := s.index.Search(ctx, opts.Q, filter, opts.Limit+1, opts.Offset)
	if err != nil {
		return nil, err
	}

	if len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
		page.HasMore = true
		next := opts.Offset + opts.Limit
		page.NextOffset = &next
	}

	for _, row := range rows {
		hits, err := s.buildHits(ctx, row, opts)
		if err != nil {
			return nil, err
		}
		page.Hits = append(page.Hits, hits...)
	}

	logger.Info("Query %q returned %d hits", opts.Q, len(page.Hits))
	return page, nil
}

// normalizeOptions fills defaults and validates ranges.
func normalizeOptions(opts domain.QueryOptions) (domain.QueryOptions, error) {
	if opts.Mode == "" {
		opts.Mode = domain.ModeSegment
	}
	if opts.Mode != domain.ModeSegment && opts.Mode != domain.ModeKWIC {
		return opts, fmt.Errorf("unknown query mode %q: %w", opts.Mode, domain.ErrValidation)
	}

	if opts.Window == 0 {
		opts.Window = domain.DefaultKWICWindow
	}
	if opts.Window < domain.MinKWICWindow || opts.Window > domain.MaxKWICWindow {
		return opts, fmt.Errorf("window must be in [%d, %d]: %w",
			domain.MinKWICWindow, domain.MaxKWICWindow, domain.ErrValidation)
	}

	if opts.Limit == 0 {
		opts.Limit = domain.DefaultQueryLimit
	}
	if opts.Limit < 1 || opts.Limit > domain.MaxQueryLimit {
		return opts, fmt.Errorf("limit must be in [1, %d]: %w", domain.MaxQueryLimit, domain.ErrValidation)
	}

	if opts.Offset < 0 {
		return opts, fmt.Errorf("offset must be >= 0: %w", domain.ErrValidation)
	}

	if opts.AlignedLimit == 0 {
		opts.AlignedLimit = domain.DefaultAlignedLimit
	}
	if opts.AlignedLimit < 1 {
		return opts, fmt.Errorf("aligned_limit must be >= 1: %w", domain.ErrValidation)
	}

	return opts, nil
}

// buildHits projects one index row into segment or KWIC hits.
func (s *QueryService) buildHits(
	ctx context.Context, row domain.IndexRow, opts domain.QueryOptions,
) ([]domain.Hit, error) {
	base := domain.Hit{
		DocID:      row.DocID,
		UnitID:     row.UnitID,
		ExternalID: row.ExternalID,
		Language:   row.Language,
		Title:      row.Title,
		TextNorm:   row.TextNorm,
	}

	var aligned []domain.AlignedUnit
	if opts.IncludeAligned {
		var err error
		aligned, err = s.links.AlignedUnits(ctx, row.UnitID, opts.AlignedLimit)
		if err != nil {
			return nil, err
		}
	}

	if opts.Mode == domain.ModeSegment {
		hit := base
		hit.Text = highlightSegment(row.TextNorm, opts.Q)
		hit.Aligned = aligned
		return []domain.Hit{hit}, nil
	}

	var windows [][3]string
	if opts.AllOccurrences {
		windows = allKWICWindows(row.TextNorm, opts.Q, opts.Window)
	} else {
		windows = [][3]string{kwicWindow(row.TextNorm, opts.Q, opts.Window)}
	}

	hits := make([]domain.Hit, 0, len(windows))
	for _, w := range windows {
		hit := base
		hit.Left, hit.Match, hit.Right = w[0], w[1], w[2]
		hit.Aligned = aligned
		hits = append(hits, hit)
	}
	return hits, nil
}

// termTokenRe extracts word-like tokens from a query string, dropping FTS
// syntax (quotes, parens, the * prefix operator).
var termTokenRe = regexp.MustCompile(`[\p{L}\p{N}'’_-]+`)

// queryTerms extracts plain terms from a query string, stripping FTS
// operators so highlighting matches what the index matched.
func queryTerms(q string) []string {
	isNear := strings.Contains(q, "NEAR(")
	var terms []string
	for _, term := range termTokenRe.FindAllString(q, -1) {
		switch strings.ToUpper(term) {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		// Inside NEAR(...) the trailing number is the distance operand.
		if isNear && isAllDigits(term) {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// termPattern compiles a case-insensitive alternation of the query terms.
func termPattern(q string) *regexp.Regexp {
	terms := queryTerms(q)
	if len(terms) == 0 {
		return nil
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile("(?i)(" + strings.Join(quoted, "|") + ")")
}

// highlightSegment wraps term occurrences with the << >> markers.
func highlightSegment(text, q string) string {
	pattern := termPattern(q)
	if pattern == nil {
		return text
	}
	return pattern.ReplaceAllStringFunc(text, func(m string) string {
		return HighlightOpen + m + HighlightClose
	})
}

// token is one whitespace-delimited token with its byte offsets.
type token struct {
	start, end int
	text       string
}

var tokenRe = regexp.MustCompile(`\S+`)

func tokenize(text string) []token {
	var tokens []token
	for _, loc := range tokenRe.FindAllStringIndex(text, -1) {
		tokens = append(tokens, token{start: loc[0], end: loc[1], text: text[loc[0]:loc[1]]})
	}
	return tokens
}

// kwicWindow extracts left/match/right context around the first query match.
func kwicWindow(text, q string, window int) [3]string {
	pattern := termPattern(q)
	if pattern == nil {
		return [3]string{"", text, ""}
	}

	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return [3]string{text, "", ""}
	}

	return windowAround(text, tokenize(text), loc[0], text[loc[0]:loc[1]], window)
}

// allKWICWindows extracts one window per match occurrence, in order.
func allKWICWindows(text, q string, window int) [][3]string {
	pattern := termPattern(q)
	if pattern == nil {
		return [][3]string{{"", text, ""}}
	}

	tokens := tokenize(text)
	var out [][3]string
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		out = append(out, windowAround(text, tokens, loc[0], text[loc[0]:loc[1]], window))
	}
	if len(out) == 0 {
		return [][3]string{{text, "", ""}}
	}
	return out
}

// windowAround builds one (left, match, right) triple around the token
// containing matchStart.
func windowAround(_ string, tokens []token, matchStart int, match string, window int) [3]string {
	if len(tokens) == 0 {
		return [3]string{"", match, ""}
	}

	pivot := 0
	for i, t := range tokens {
		if t.start <= matchStart && matchStart < t.end {
			pivot = i
			break
		}
	}

	leftFrom := pivot - window
	if leftFrom < 0 {
		leftFrom = 0
	}
	rightTo := pivot + 1 + window
	if rightTo > len(tokens) {
		rightTo = len(tokens)
	}

	left := make([]string, 0, pivot-leftFrom)
	for _, t := range tokens[leftFrom:pivot] {
		left = append(left, t.text)
	}
	right := make([]string, 0, rightTo-pivot-1)
	for _, t := range tokens[pivot+1 : rightTo] {
		right = append(right, t.text)
	}

	return [3]string{strings.Join(left, " "), match, strings.Join(right, " ")}
}
