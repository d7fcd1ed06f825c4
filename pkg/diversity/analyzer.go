// Package diversity measures how much a set of candidate prompts/outputs
// differ from one another, grounded on the original implementation's
// core/diversity_analyzer module and domain/models/diversity_analysis
// types. Disabled by default (models.DiversityConfig.Enabled == false);
// the Orchestrator only calls it when a task opts in.
package diversity

import (
	"math"
	"sort"
	"strings"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// trendEpsilon is the absolute tolerance below which a baseline comparison
// is reported Stable rather than Improved/Declined. Diversity scores are
// noisier than the pass-rate/score metrics extkeys.MetricEpsilon guards,
// so a coarser tolerance avoids flagging Improved/Declined on noise.
const trendEpsilon = 0.02

// Analyzer computes a DiversityAnalysisResult over a set of outputs
// (candidate prompts, or their execution outputs), optionally comparing
// against a previously recorded baseline.
type Analyzer interface {
	Analyze(outputs []string, baseline *models.DiversityMetrics, cfg models.DiversityConfig) models.DiversityAnalysisResult
}

// Default is a network-free, embedding-free diversity analyzer: lexical
// diversity from token-set overlap, structural diversity from output
// length variance. Semantic diversity always reports 0 — like
// pkg/layers/evaluator's semantic reference kind, no embedding model is
// wired by default.
type Default struct {
	now func() string
}

// New builds a Default analyzer. nowFn formats the analysis timestamp and
// is threaded through so tests can pin it; production callers pass a
// closure over time.Now().UTC().Format(time.RFC3339).
func New(nowFn func() string) *Default {
	return &Default{now: nowFn}
}

// Analyze implements Analyzer.
func (d *Default) Analyze(outputs []string, baseline *models.DiversityMetrics, cfg models.DiversityConfig) models.DiversityAnalysisResult {
	result := models.DiversityAnalysisResult{
		AnalyzedAt:  d.now(),
		SampleCount: uint32(len(outputs)),
	}

	if len(outputs) < 2 {
		return result
	}

	var lexical, structural float64
	enabledCount := 0
	if cfg.ComputeLexical {
		lexical = lexicalDiversity(outputs)
		enabledCount++
	}
	if cfg.ComputeStructural {
		structural = structuralDiversity(outputs)
		enabledCount++
	}
	// Semantic diversity stays 0 regardless of cfg.ComputeSemantic: there is
	// no embedding model wired to compute it.
	if cfg.ComputeSemantic {
		enabledCount++
	}

	metrics := models.DiversityMetrics{
		LexicalDiversity:    lexical,
		StructuralDiversity: structural,
		SemanticDiversity:   0,
	}
	if enabledCount > 0 {
		metrics.OverallScore = (lexical + structural) / float64(enabledCount)
	}
	result.Metrics = metrics

	if baseline != nil {
		result.BaselineComparison = compareToBaseline(metrics, *baseline)
	}
	if cfg.Enabled {
		result.Warnings = warningsFor(metrics, cfg.WarningThreshold)
	}
	return result
}

// lexicalDiversity averages the pairwise Jaccard distance between each
// output's lowercased whitespace-token set: 0 when every output uses
// identical vocabulary, 1 when no two outputs share a token.
func lexicalDiversity(outputs []string) float64 {
	sets := make([]map[string]bool, len(outputs))
	for i, o := range outputs {
		sets[i] = tokenSet(o)
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			sum += jaccardDistance(sets[i], sets[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func jaccardDistance(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return 1 - float64(intersection)/float64(union)
}

// structuralDiversity is the coefficient of variation of output rune
// lengths, clamped to [0,1] so it stays comparable to the lexical score.
func structuralDiversity(outputs []string) float64 {
	lengths := make([]float64, len(outputs))
	var sum float64
	for i, o := range outputs {
		l := float64(len([]rune(o)))
		lengths[i] = l
		sum += l
	}
	mean := sum / float64(len(lengths))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, l := range lengths {
		d := l - mean
		variance += d * d
	}
	variance /= float64(len(lengths))
	cv := math.Sqrt(variance) / mean

	if cv > 1 {
		return 1
	}
	return cv
}

func compareToBaseline(current, baseline models.DiversityMetrics) *models.BaselineComparison {
	overallDiff := current.OverallScore - baseline.OverallScore

	trend := models.DiversityStable
	switch {
	case overallDiff > trendEpsilon:
		trend = models.DiversityImproved
	case overallDiff < -trendEpsilon:
		trend = models.DiversityDeclined
	}

	return &models.BaselineComparison{
		OverallDiff:    overallDiff,
		LexicalDiff:    current.LexicalDiversity - baseline.LexicalDiversity,
		StructuralDiff: current.StructuralDiversity - baseline.StructuralDiversity,
		SemanticDiff:   current.SemanticDiversity - baseline.SemanticDiversity,
		Trend:          trend,
	}
}

func warningsFor(metrics models.DiversityMetrics, threshold float64) []models.DiversityWarning {
	type scored struct {
		name  string
		value float64
	}
	candidates := []scored{
		{"lexical_diversity", metrics.LexicalDiversity},
		{"structural_diversity", metrics.StructuralDiversity},
		{"overall_score", metrics.OverallScore},
	}

	var affected []string
	for _, c := range candidates {
		if c.value < threshold {
			affected = append(affected, c.name)
		}
	}
	if len(affected) == 0 {
		return nil
	}
	sort.Strings(affected)

	level := models.DiversityWarningLow
	switch {
	case metrics.OverallScore < threshold/2:
		level = models.DiversityWarningHigh
	case metrics.OverallScore < threshold:
		level = models.DiversityWarningMedium
	}

	return []models.DiversityWarning{{
		Level:           level,
		Message:         "candidate prompts are converging; consider widening generation temperature or template variety",
		AffectedMetrics: affected,
	}}
}
