package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
	"github.com/custodia-labs/agrafes/internal/logger"
)

// DefaultSimThreshold is the similarity cut-off when none is supplied.
const DefaultSimThreshold = 0.8

// debugSampleCap bounds the sample links carried in a debug payload.
const debugSampleCap = 20

// AlignRequest carries the parameters of one alignment run.
type AlignRequest struct {
	PivotDocID   int64
	TargetDocIDs []int64
	Strategy     domain.AlignStrategy
	SimThreshold float64
	Debug        bool
}

// AlignService pairs pivot and target line units and writes link sets.
type AlignService struct {
	docs  driven.DocumentStore
	units driven.UnitStore
	links driven.LinkStore
}

// NewAlignService creates an alignment service.
func NewAlignService(
	docs driven.DocumentStore, units driven.UnitStore, links driven.LinkStore,
) *AlignService {
	return &AlignService{docs: docs, units: units, links: links}
}

// Align runs one strategy for the pivot against every target, writing one
// link set per pair under runID. Returns one report per pair.
func (s *AlignService) Align(
	ctx context.Context, req AlignRequest, runID string, log *logger.RunLog,
) ([]domain.AlignmentReport, error) {
	if !domain.ValidAlignStrategy(req.Strategy) {
		return nil, fmt.Errorf("unsupported align strategy %q: %w", req.Strategy, domain.ErrValidation)
	}
	if len(req.TargetDocIDs) == 0 {
		return nil, fmt.Errorf("target_doc_ids must be non-empty: %w", domain.ErrValidation)
	}
	if req.Strategy == domain.AlignSimilarity {
		if req.SimThreshold == 0 {
			req.SimThreshold = DefaultSimThreshold
		}
		if req.SimThreshold < 0 || req.SimThreshold > 1 {
			return nil, fmt.Errorf("sim_threshold must be in [0.0, 1.0]: %w", domain.ErrValidation)
		}
	}

	reports := make([]domain.AlignmentReport, 0, len(req.TargetDocIDs))
	for _, targetDocID := range req.TargetDocIDs {
		report, err := s.alignPair(ctx, req, targetDocID, runID, log)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// alignPair aligns one (pivot, target) pair and persists its link set.
func (s *AlignService) alignPair(
	ctx context.Context, req AlignRequest, targetDocID int64, runID string, log *logger.RunLog,
) (*domain.AlignmentReport, error) {
	pivotTitle, err := s.docTitle(ctx, req.PivotDocID)
	if err != nil {
		return nil, err
	}
	targetTitle, err := s.docTitle(ctx, targetDocID)
	if err != nil {
		return nil, err
	}

	log.Infof("Aligning strategy=%s pivot=%d (%s) -> target=%d (%s)",
		req.Strategy, req.PivotDocID, pivotTitle, targetDocID, targetTitle)

	pivotUnits, err := s.units.LineUnits(ctx, req.PivotDocID)
	if err != nil {
		return nil, err
	}
	targetUnits, err := s.units.LineUnits(ctx, targetDocID)
	if err != nil {
		return nil, err
	}

	report := &domain.AlignmentReport{
		PivotDocID:       req.PivotDocID,
		TargetDocID:      targetDocID,
		PivotTitle:       pivotTitle,
		TargetTitle:      targetTitle,
		Matched:          []int64{},
		MissingInTarget:  []int64{},
		MissingInPivot:   []int64{},
		DuplicatesPivot:  []int64{},
		DuplicatesTarget: []int64{},
		Warnings:         []string{},
	}

	var links []domain.NewLink
	switch req.Strategy {
	case domain.AlignExternalID:
		links = alignByExternalID(pivotUnits, targetUnits, report, req.Debug)
	case domain.AlignExternalIDThenPosition:
		links = alignByExternalIDThenPosition(pivotUnits, targetUnits, report, req.Debug)
	case domain.AlignPosition:
		links = alignByPosition(pivotUnits, targetUnits, report, req.Debug)
	case domain.AlignSimilarity:
		links = alignBySimilarity(pivotUnits, targetUnits, req.SimThreshold, report, req.Debug)
	}

	if err := s.links.InsertLinks(ctx, runID, req.PivotDocID, targetDocID, links); err != nil {
		return nil, err
	}

	report.LinksCreated = len(links)
	report.Finalize()
	for _, w := range report.Warnings {
		log.Warnf("%s", w)
	}
	log.Infof("Alignment complete: %d links created (%.1f%% coverage)",
		report.LinksCreated, report.CoveragePct)

	return report, nil
}

func (s *AlignService) docTitle(ctx context.Context, docID int64) (string, error) {
	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		return "", fmt.Errorf("document %d: %w", docID, err)
	}
	return doc.Title, nil
}

// anchorMap groups unit ids by external id, in n order, and collects
// duplicate anchors.
func anchorMap(units []domain.Unit) (map[int64][]int64, []int64) {
	ext := map[int64][]int64{}
	for _, u := range units {
		if u.ExternalID == nil {
			continue
		}
		ext[*u.ExternalID] = append(ext[*u.ExternalID], u.ID)
	}

	var duplicates []int64
	for eid, ids := range ext {
		if len(ids) > 1 {
			duplicates = append(duplicates, eid)
		}
	}
	sort.Slice(duplicates, func(i, j int) bool { return duplicates[i] < duplicates[j] })
	return ext, duplicates
}

func sortedKeys(m map[int64][]int64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// anchorDiagnostics fills the shared anchor-set diagnostics of a report.
func anchorDiagnostics(
	pivotExt, targetExt map[int64][]int64, pivotDups, targetDups []int64,
	report *domain.AlignmentReport,
) (common []int64) {
	for _, eid := range sortedKeys(pivotExt) {
		if _, ok := targetExt[eid]; ok {
			common = append(common, eid)
		} else {
			report.MissingInTarget = append(report.MissingInTarget, eid)
		}
	}
	for _, eid := range sortedKeys(targetExt) {
		if _, ok := pivotExt[eid]; !ok {
			report.MissingInPivot = append(report.MissingInPivot, eid)
		}
	}
	report.Matched = append(report.Matched, common...)
	report.DuplicatesPivot = pivotDups
	report.DuplicatesTarget = targetDups

	if len(pivotDups) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Duplicate external_id(s) in pivot doc %d: %v", report.PivotDocID, pivotDups))
	}
	if len(targetDups) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Duplicate external_id(s) in target doc %d: %v", report.TargetDocID, targetDups))
	}
	if len(report.MissingInTarget) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d external_id(s) in pivot missing from target", len(report.MissingInTarget)))
	}
	if len(report.MissingInPivot) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d external_id(s) in target missing from pivot", len(report.MissingInPivot)))
	}
	return common
}

// alignByExternalID links each anchor present on both sides, taking the
// first-occurrence unit when an anchor is duplicated.
func alignByExternalID(
	pivotUnits, targetUnits []domain.Unit, report *domain.AlignmentReport, debug bool,
) []domain.NewLink {
	pivotExt, pivotDups := anchorMap(pivotUnits)
	targetExt, targetDups := anchorMap(targetUnits)

	report.PivotLineCount = len(pivotExt)
	report.TargetLineCount = len(targetExt)

	common := anchorDiagnostics(pivotExt, targetExt, pivotDups, targetDups, report)

	var links []domain.NewLink
	var samples []domain.SampleLink
	for _, eid := range common {
		eid := eid
		link := domain.NewLink{
			PivotUnitID:  pivotExt[eid][0],
			TargetUnitID: targetExt[eid][0],
			ExternalID:   &eid,
		}
		links = append(links, link)
		if debug && len(samples) < debugSampleCap {
			samples = append(samples, domain.SampleLink{
				Phase:        "external_id",
				PivotUnitID:  link.PivotUnitID,
				TargetUnitID: link.TargetUnitID,
				ExternalID:   &eid,
			})
		}
	}

	if debug {
		report.Debug = &domain.AlignmentDebug{
			Strategy:    domain.AlignExternalID,
			LinkSources: map[string]int{"external_id": len(links)},
			SampleLinks: samples,
		}
	}
	return links
}

// alignByExternalIDThenPosition runs the anchor phase, then fills remaining
// lines by shared position n against target units not yet used.
func alignByExternalIDThenPosition(
	pivotUnits, targetUnits []domain.Unit, report *domain.AlignmentReport, debug bool,
) []domain.NewLink {
	pivotExt, pivotDups := anchorMap(pivotUnits)
	targetExt, targetDups := anchorMap(targetUnits)

	report.PivotLineCount = len(pivotUnits)
	report.TargetLineCount = len(targetUnits)

	common := anchorDiagnostics(pivotExt, targetExt, pivotDups, targetDups, report)

	usedPivot := map[int64]bool{}
	usedTarget := map[int64]bool{}
	var links []domain.NewLink
	var samples []domain.SampleLink
	anchorLinks := 0

	// Phase 1: explicit anchor links.
	for _, eid := range common {
		eid := eid
		pivotUID := pivotExt[eid][0]
		targetUID := targetExt[eid][0]
		usedPivot[pivotUID] = true
		usedTarget[targetUID] = true
		links = append(links, domain.NewLink{
			PivotUnitID:  pivotUID,
			TargetUnitID: targetUID,
			ExternalID:   &eid,
		})
		anchorLinks++
		if debug && len(samples) < debugSampleCap {
			samples = append(samples, domain.SampleLink{
				Phase:        "external_id",
				PivotUnitID:  pivotUID,
				TargetUnitID: targetUID,
				ExternalID:   &eid,
			})
		}
	}

	// Phase 2: monotone position fallback for the remaining lines.
	pivotByN := map[int]int64{}
	for _, u := range pivotUnits {
		if !usedPivot[u.ID] {
			pivotByN[u.N] = u.ID
		}
	}
	targetByN := map[int]int64{}
	for _, u := range targetUnits {
		if !usedTarget[u.ID] {
			targetByN[u.N] = u.ID
		}
	}

	var commonN []int
	for n := range pivotByN {
		if _, ok := targetByN[n]; ok {
			commonN = append(commonN, n)
		}
	}
	sort.Ints(commonN)

	positionLinks := 0
	for _, n := range commonN {
		n := n
		anchor := int64(n)
		links = append(links, domain.NewLink{
			PivotUnitID:  pivotByN[n],
			TargetUnitID: targetByN[n],
			ExternalID:   &anchor,
		})
		positionLinks++
		if debug && len(samples) < debugSampleCap {
			samples = append(samples, domain.SampleLink{
				Phase:        "position",
				PivotUnitID:  pivotByN[n],
				TargetUnitID: targetByN[n],
				Position:     &n,
			})
		}
	}

	if positionLinks > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Position fallback created %d link(s)", positionLinks))
	}

	if debug {
		report.Debug = &domain.AlignmentDebug{
			Strategy: domain.AlignExternalIDThenPosition,
			LinkSources: map[string]int{
				"external_id": anchorLinks,
				"position":    positionLinks,
			},
			SampleLinks: samples,
		}
	}
	return links
}

// alignByPosition matches units sharing the same position n, ignoring
// anchors entirely.
func alignByPosition(
	pivotUnits, targetUnits []domain.Unit, report *domain.AlignmentReport, debug bool,
) []domain.NewLink {
	pivotByN := map[int]int64{}
	for _, u := range pivotUnits {
		pivotByN[u.N] = u.ID
	}
	targetByN := map[int]int64{}
	for _, u := range targetUnits {
		targetByN[u.N] = u.ID
	}

	report.PivotLineCount = len(pivotByN)
	report.TargetLineCount = len(targetByN)

	var commonN, missingTarget, missingPivot []int
	for n := range pivotByN {
		if _, ok := targetByN[n]; ok {
			commonN = append(commonN, n)
		} else {
			missingTarget = append(missingTarget, n)
		}
	}
	for n := range targetByN {
		if _, ok := pivotByN[n]; !ok {
			missingPivot = append(missingPivot, n)
		}
	}
	sort.Ints(commonN)
	sort.Ints(missingTarget)
	sort.Ints(missingPivot)

	for _, n := range commonN {
		report.Matched = append(report.Matched, int64(n))
	}
	for _, n := range missingTarget {
		report.MissingInTarget = append(report.MissingInTarget, int64(n))
	}
	for _, n := range missingPivot {
		report.MissingInPivot = append(report.MissingInPivot, int64(n))
	}

	if len(missingTarget) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d position(s) in pivot missing from target", len(missingTarget)))
	}
	if len(missingPivot) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d position(s) in target missing from pivot", len(missingPivot)))
	}

	var links []domain.NewLink
	var samples []domain.SampleLink
	for _, n := range commonN {
		n := n
		anchor := int64(n)
		links = append(links, domain.NewLink{
			PivotUnitID:  pivotByN[n],
			TargetUnitID: targetByN[n],
			ExternalID:   &anchor,
		})
		if debug && len(samples) < debugSampleCap {
			samples = append(samples, domain.SampleLink{
				Phase:        "position",
				PivotUnitID:  pivotByN[n],
				TargetUnitID: targetByN[n],
				Position:     &n,
			})
		}
	}

	if debug {
		report.Debug = &domain.AlignmentDebug{
			Strategy:    domain.AlignPosition,
			LinkSources: map[string]int{"position": len(links)},
			SampleLinks: samples,
		}
	}
	return links
}

// alignBySimilarity greedily matches each pivot unit (in n order) to the
// still-unused target unit with the highest normalized edit-distance
// similarity, keeping matches at or above threshold. Ties break on the
// lowest target unit id, which makes the run deterministic.
func alignBySimilarity(
	pivotUnits, targetUnits []domain.Unit, threshold float64,
	report *domain.AlignmentReport, debug bool,
) []domain.NewLink {
	report.PivotLineCount = len(pivotUnits)
	report.TargetLineCount = len(targetUnits)

	usedTarget := map[int64]bool{}
	var links []domain.NewLink
	var samples []domain.SampleLink
	var matchedScores []float64

	for _, p := range pivotUnits {
		bestScore := -1.0
		var bestTarget *domain.Unit

		for i := range targetUnits {
			t := &targetUnits[i]
			if usedTarget[t.ID] {
				continue
			}
			score := similarity(p.TextNorm, t.TextNorm)
			if score > bestScore {
				bestScore = score
				bestTarget = t
			}
		}

		if bestTarget == nil || bestScore < threshold {
			report.MissingInTarget = append(report.MissingInTarget, p.ID)
			continue
		}

		usedTarget[bestTarget.ID] = true
		anchor := int64(p.N)
		links = append(links, domain.NewLink{
			PivotUnitID:  p.ID,
			TargetUnitID: bestTarget.ID,
			ExternalID:   &anchor,
		})
		report.Matched = append(report.Matched, p.ID)
		matchedScores = append(matchedScores, bestScore)
		if debug && len(samples) < debugSampleCap {
			score := bestScore
			samples = append(samples, domain.SampleLink{
				Phase:        "similarity",
				PivotUnitID:  p.ID,
				TargetUnitID: bestTarget.ID,
				Score:        &score,
			})
		}
	}

	if len(report.MissingInTarget) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d pivot unit(s) unmatched (similarity < %g)",
				len(report.MissingInTarget), threshold))
	}

	if debug {
		stats := &domain.SimilarityStats{MatchedCount: len(matchedScores)}
		if len(matchedScores) > 0 {
			stats.ScoreMin, stats.ScoreMax = matchedScores[0], matchedScores[0]
			sum := 0.0
			for _, sc := range matchedScores {
				if sc < stats.ScoreMin {
					stats.ScoreMin = sc
				}
				if sc > stats.ScoreMax {
					stats.ScoreMax = sc
				}
				sum += sc
			}
			stats.ScoreMean = sum / float64(len(matchedScores))
		}
		t := threshold
		report.Debug = &domain.AlignmentDebug{
			Strategy:        domain.AlignSimilarity,
			Threshold:       &t,
			LinkSources:     map[string]int{"similarity": len(links)},
			SimilarityStats: stats,
			SampleLinks:     samples,
		}
	}
	return links
}

// similarity is 1 - editDistance/maxLen over runes, in [0, 1]. Empty pairs
// count as identical.
func similarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
