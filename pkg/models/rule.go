// Package models holds the core data-model types shared across the
// iteration engine and its collaborators.
package models

// Polarity tags a rule's role in the rule system.
type Polarity string

const (
	PolarityPositive   Polarity = "positive"
	PolarityNegative   Polarity = "negative"
	PolarityAllPassed  Polarity = "all_passed"
)

// RuleCondition is a small discriminated form describing a condition and
// expected output shape; kept intentionally open-ended (string-keyed) since
// the exact condition grammar is owned by the RuleEngine implementation.
type RuleCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Rule is a single extracted or hand-authored rule within a RuleSystem.
type Rule struct {
	ID         string          `json:"id"`
	Statement  string          `json:"statement"`
	Conditions []RuleCondition `json:"conditions"`
	Polarity   Polarity        `json:"polarity"`
	Confidence float64         `json:"confidence"` // in [0,1]
	Iteration  uint32          `json:"iteration"`  // provenance: iteration that minted this rule
}

// IsTerminal reports whether this rule short-circuits further generation.
func (r Rule) IsTerminal() bool {
	return r.Polarity == PolarityAllPassed
}

// ConflictLogEntry records a detected conflict between rules and its
// resolution ("unresolved" until ResolveConflict runs).
type ConflictLogEntry struct {
	RuleIDs    []string `json:"rule_ids"`
	Resolution string   `json:"resolution"`
	Iteration  uint32   `json:"iteration"`
}

// MergeLogEntry records a merge of similar rules.
type MergeLogEntry struct {
	SourceRuleIDs []string `json:"source_rule_ids"`
	ResultRuleID  string   `json:"result_rule_id"`
	Iteration     uint32   `json:"iteration"`
}

// RuleSystem is the ordered collection of rules for one task, plus its
// conflict/merge logs and coverage map. Version strictly increases whenever
// rules, logs, or the coverage map change — callers must route mutation
// through Bump to preserve the invariant.
type RuleSystem struct {
	Rules        []Rule                 `json:"rules"`
	ConflictLog  []ConflictLogEntry     `json:"conflict_log"`
	MergeLog     []MergeLogEntry        `json:"merge_log"`
	Coverage     map[string][]string    `json:"coverage"` // test-case id -> rule ids
	Version      uint64                 `json:"version"`
}

// NewRuleSystem returns an empty RuleSystem at version 0.
func NewRuleSystem() *RuleSystem {
	return &RuleSystem{Coverage: make(map[string][]string)}
}

// Bump increments the version; call after any mutation to rules, logs, or
// coverage.
func (rs *RuleSystem) Bump() {
	rs.Version++
}

// AllPassed reports whether any rule carries the terminal polarity.
func (rs *RuleSystem) AllPassed() bool {
	for _, r := range rs.Rules {
		if r.IsTerminal() {
			return true
		}
	}
	return false
}

// RuleByID looks up a rule, returning false if not present. Rule ids are
// unique within a RuleSystem.
func (rs *RuleSystem) RuleByID(id string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}
