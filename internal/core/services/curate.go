package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
	"github.com/custodia-labs/agrafes/internal/logger"
)

// Rule is a curation rule with its compiled pattern, opaque to callers.
type Rule struct {
	re          *regexp.Regexp
	replacement string
	label       string
}

// CurateService applies ordered regex substitution rules to text_norm.
// text_raw is never mutated.
type CurateService struct {
	docs  driven.DocumentStore
	units driven.UnitStore
}

// NewCurateService creates a curation service.
func NewCurateService(docs driven.DocumentStore, units driven.UnitStore) *CurateService {
	return &CurateService{docs: docs, units: units}
}

// CompileRules validates and compiles a rule list. Invalid patterns fail
// eagerly with a validation error.
func CompileRules(rules []domain.CurationRule) ([]Rule, error) {
	compiled := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		var flags string
		for _, f := range rule.Flags {
			switch f {
			case 'i', 'm', 's':
				flags += string(f)
			default:
				return nil, fmt.Errorf("unknown regex flag %q: %w", string(f), domain.ErrValidation)
			}
		}

		pattern := rule.Pattern
		if flags != "" {
			pattern = "(?" + flags + ")" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %v: %w", rule.Pattern, err, domain.ErrValidation)
		}

		label := rule.Description
		if label == "" {
			label = rule.Pattern
		}
		compiled = append(compiled, Rule{
			re:          re,
			replacement: convertReplacement(rule.Replacement),
			label:       label,
		})
	}
	return compiled, nil
}

// convertReplacement maps \1-style backreferences to Go's $1 form.
func convertReplacement(repl string) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		if repl[i] == '\\' && i+1 < len(repl) && repl[i+1] >= '0' && repl[i+1] <= '9' {
			b.WriteByte('$')
			continue
		}
		if repl[i] == '$' {
			b.WriteString("$$")
			continue
		}
		b.WriteByte(repl[i])
	}
	return b.String()
}

// applyRules runs every rule in order and returns the rewritten text plus
// the replacement count.
func applyRules(text string, rules []Rule) (string, int) {
	replacements := 0
	for _, rule := range rules {
		matches := rule.re.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		replacements += len(matches)
		text = rule.re.ReplaceAllString(text, rule.replacement)
	}
	return text, replacements
}

// Preview simulates the rules against one document in memory. The store is
// never mutated.
func (s *CurateService) Preview(
	ctx context.Context, docID int64, rules []domain.CurationRule, limitExamples int,
) (*domain.CurationPreview, error) {
	compiled, err := CompileRules(rules)
	if err != nil {
		return nil, err
	}
	if limitExamples <= 0 {
		limitExamples = domain.DefaultPreviewExamples
	}
	if limitExamples > domain.MaxPreviewExamples {
		limitExamples = domain.MaxPreviewExamples
	}

	preview := &domain.CurationPreview{DocID: docID, Examples: []domain.CurationExample{}}
	if len(compiled) == 0 {
		return preview, nil
	}

	units, err := s.units.LineUnits(ctx, docID)
	if err != nil {
		return nil, err
	}

	preview.UnitsTotal = len(units)
	for _, u := range units {
		curated, reps := applyRules(u.TextNorm, compiled)
		if curated == u.TextNorm {
			continue
		}
		preview.UnitsChanged++
		preview.ReplacementsTotal += reps
		if len(preview.Examples) < limitExamples {
			preview.Examples = append(preview.Examples, domain.CurationExample{
				UnitID:     u.ID,
				ExternalID: u.ExternalID,
				Before:     u.TextNorm,
				After:      curated,
			})
		}
	}

	return preview, nil
}

// Curate rewrites text_norm of every changed line unit of one document in a
// single transaction. The FTS index is NOT rebuilt here; the caller owns the
// stale flag and the subsequent rebuild.
func (s *CurateService) Curate(
	ctx context.Context, docID int64, rules []Rule, log *logger.RunLog,
) (*domain.CurationReport, error) {
	units, err := s.units.LineUnits(ctx, docID)
	if err != nil {
		return nil, err
	}

	report := &domain.CurationReport{
		DocID:        docID,
		UnitsTotal:   len(units),
		RulesMatched: []string{},
		Warnings:     []string{},
	}
	if len(units) == 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("No units found for doc_id=%d", docID))
		log.Warnf("curate: no units for doc_id=%d", docID)
		return report, nil
	}

	rulesFired := map[string]bool{}
	var updates []domain.TextNormUpdate

	for _, u := range units {
		curated, _ := applyRules(u.TextNorm, rules)
		if curated == u.TextNorm {
			continue
		}
		updates = append(updates, domain.TextNormUpdate{UnitID: u.ID, TextNorm: curated})
		for _, rule := range rules {
			if rule.re.MatchString(u.TextNorm) {
				rulesFired[rule.label] = true
			}
		}
	}

	if len(updates) > 0 {
		if err := s.units.UpdateTextNorm(ctx, updates); err != nil {
			return nil, err
		}
	}

	report.UnitsModified = len(updates)
	for label := range rulesFired {
		report.RulesMatched = append(report.RulesMatched, label)
	}
	sort.Strings(report.RulesMatched)

	log.Infof("Curation doc_id=%d: %d/%d units modified", docID, report.UnitsModified, report.UnitsTotal)
	return report, nil
}

// CurateAll applies the rules to every document, one report per document.
func (s *CurateService) CurateAll(
	ctx context.Context, rules []Rule, log *logger.RunLog,
) ([]domain.CurationReport, error) {
	docIDs, err := s.docs.ListDocIDs(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]domain.CurationReport, 0, len(docIDs))
	for _, docID := range docIDs {
		report, err := s.Curate(ctx, docID, rules, log)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}
