// Package ruleengine provides the default RuleEngine: a deterministic,
// statement-per-failure extractor with condition-key conflict detection and
// merge, grounded on the rule-system data model described alongside the
// original implementation's core/rule_system module.
package ruleengine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/ids"
	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// Default extracts one negative rule per failing test case from
// ctx.Extensions["layer1_test_results"], detects conflicts between rules
// that share a condition set but differ in polarity, and merges rules with
// identical condition sets.
type Default struct{}

// New builds the default rule engine.
func New() *Default { return &Default{} }

const testResultsKey = "layer1_test_results"

func readTestResults(optCtx *models.OptimizationContext) ([]models.RuleEngineTestResult, error) {
	raw, ok := optCtx.Extensions[testResultsKey]
	if !ok {
		return nil, apperrors.Validation("RULEENGINE_MISSING_TEST_RESULTS", "layer1_test_results extension not set")
	}
	entries, ok := raw.([]models.RuleEngineTestResult)
	if !ok {
		return nil, apperrors.Validation("RULEENGINE_INVALID_TEST_RESULTS", "layer1_test_results has an unexpected shape")
	}
	return entries, nil
}

// ExtractRules appends one negative rule per failing entry. When every
// entry passed, it appends the terminal all_passed rule instead, which is
// the only signal that lets the orchestrator short-circuit to Completed.
func (Default) ExtractRules(ctx context.Context, optCtx *models.OptimizationContext) error {
	entries, err := readTestResults(optCtx)
	if err != nil {
		return err
	}
	if optCtx.RuleSystem == nil {
		optCtx.RuleSystem = models.NewRuleSystem()
	}

	anyFailed := false
	for _, e := range entries {
		if e.Passed {
			continue
		}
		anyFailed = true
		rule := models.Rule{
			ID:        ids.NewID(),
			Statement: fmt.Sprintf("avoid failure mode observed on %s: %s", e.TestCaseID, e.FailurePoint),
			Conditions: []models.RuleCondition{
				{Field: "failure_point", Operator: "eq", Value: e.FailurePoint},
			},
			Polarity:  models.PolarityNegative,
			Iteration: optCtx.Iteration,
		}
		optCtx.RuleSystem.Rules = append(optCtx.RuleSystem.Rules, rule)
		optCtx.RuleSystem.Coverage[e.TestCaseID] = append(optCtx.RuleSystem.Coverage[e.TestCaseID], rule.ID)
	}

	if !anyFailed && len(entries) > 0 {
		optCtx.RuleSystem.Rules = append(optCtx.RuleSystem.Rules, models.Rule{
			ID:        ids.NewID(),
			Statement: "all test cases passed",
			Polarity:  models.PolarityAllPassed,
			Iteration: optCtx.Iteration,
		})
	}

	optCtx.RuleSystem.Bump()
	return nil
}

func conditionKey(conds []models.RuleCondition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = fmt.Sprintf("%s|%s|%v", c.Field, c.Operator, c.Value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// DetectConflicts flags groups of rules that share a condition key but
// disagree on polarity, recording one ConflictLogEntry per conflicting
// condition-key group.
func (Default) DetectConflicts(ctx context.Context, optCtx *models.OptimizationContext) error {
	rs := optCtx.RuleSystem
	if rs == nil {
		return nil
	}
	byKey := make(map[string][]models.Rule)
	for _, r := range rs.Rules {
		k := conditionKey(r.Conditions)
		byKey[k] = append(byKey[k], r)
	}
	for _, group := range byKey {
		if len(group) < 2 {
			continue
		}
		polarities := make(map[models.Polarity]bool)
		for _, r := range group {
			polarities[r.Polarity] = true
		}
		if len(polarities) <= 1 {
			continue
		}
		conflictRuleIDs := make([]string, len(group))
		for i, r := range group {
			conflictRuleIDs[i] = r.ID
		}
		rs.ConflictLog = append(rs.ConflictLog, models.ConflictLogEntry{
			RuleIDs:    conflictRuleIDs,
			Resolution: "unresolved",
			Iteration:  optCtx.Iteration,
		})
	}
	rs.Bump()
	return nil
}

// ResolveConflict marks the conflict entry touching every id in ruleIDs as
// resolved by keeping the highest-confidence rule and dropping the rest.
func (Default) ResolveConflict(ctx context.Context, optCtx *models.OptimizationContext, ruleIDs []string) error {
	rs := optCtx.RuleSystem
	if rs == nil || len(ruleIDs) == 0 {
		return nil
	}

	var best models.Rule
	found := false
	keep := make(map[string]bool)
	for _, id := range ruleIDs {
		r, ok := rs.RuleByID(id)
		if !ok {
			continue
		}
		if !found || r.Confidence > best.Confidence {
			best = r
			found = true
		}
	}
	if !found {
		return apperrors.NotFound("RULEENGINE_CONFLICT_RULES_NOT_FOUND", "no rules in conflict set were found")
	}
	keep[best.ID] = true

	kept := rs.Rules[:0]
	for _, r := range rs.Rules {
		inSet := false
		for _, id := range ruleIDs {
			if id == r.ID {
				inSet = true
				break
			}
		}
		if inSet && !keep[r.ID] {
			continue
		}
		kept = append(kept, r)
	}
	rs.Rules = kept

	for i := range rs.ConflictLog {
		entry := &rs.ConflictLog[i]
		if matchesAll(entry.RuleIDs, ruleIDs) {
			entry.Resolution = "kept_highest_confidence:" + best.ID
		}
	}
	rs.Bump()
	return nil
}

func matchesAll(entryIDs, ruleIDs []string) bool {
	set := make(map[string]bool, len(entryIDs))
	for _, id := range entryIDs {
		set[id] = true
	}
	for _, id := range ruleIDs {
		if !set[id] {
			return false
		}
	}
	return true
}

// MergeSimilarRules merges rules sharing an identical condition key and
// polarity into a single rule, keeping the highest-confidence rule (the
// first one on ties).
func (Default) MergeSimilarRules(ctx context.Context, optCtx *models.OptimizationContext) error {
	rs := optCtx.RuleSystem
	if rs == nil {
		return nil
	}

	type groupKey struct {
		cond     string
		polarity models.Polarity
	}
	groups := make(map[groupKey][]models.Rule)
	for _, r := range rs.Rules {
		k := groupKey{cond: conditionKey(r.Conditions), polarity: r.Polarity}
		groups[k] = append(groups[k], r)
	}

	merged := make([]models.Rule, 0, len(rs.Rules))
	for _, group := range groups {
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		survivor := group[0]
		sourceIDs := make([]string, len(group))
		for i, r := range group {
			sourceIDs[i] = r.ID
			if r.Confidence > survivor.Confidence {
				survivor = r
			}
		}
		merged = append(merged, survivor)
		rs.MergeLog = append(rs.MergeLog, models.MergeLogEntry{
			SourceRuleIDs: sourceIDs,
			ResultRuleID:  survivor.ID,
			Iteration:     optCtx.Iteration,
		})
	}
	rs.Rules = merged
	rs.Bump()
	return nil
}
