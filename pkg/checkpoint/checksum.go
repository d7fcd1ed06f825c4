package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// Checksum computes a deterministic SHA-256 over every semantically
// significant field of a checkpoint payload, per the fixed key ordering
// below. Two payloads differing in any such field must produce different
// checksums.
func Checksum(c models.Checkpoint) string {
	h := sha256.New()
	h.Write([]byte(c.TaskID))
	h.Write([]byte(fmt.Sprintf("|%d|", c.Iteration)))
	h.Write([]byte(c.State))
	h.Write([]byte("|"))
	h.Write([]byte(c.RunControlState))
	h.Write([]byte("|"))
	h.Write([]byte(c.Prompt))
	h.Write([]byte("|"))
	h.Write(canonicalRuleSystem(c.RuleSystem))
	h.Write([]byte("|"))
	h.Write(canonicalArtifacts(c.Artifacts))
	h.Write([]byte("|"))
	h.Write([]byte(c.UserGuidance))
	h.Write([]byte("|"))
	h.Write([]byte(c.BranchID))
	h.Write([]byte("|"))
	h.Write([]byte(c.ParentID))
	h.Write([]byte("|"))
	h.Write([]byte(c.LineageType))
	h.Write([]byte("|"))
	h.Write([]byte(c.BranchDescription))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalRuleSystem renders a rule system with a stable key ordering and
// fixed-precision floats so that semantically-equal systems always hash
// identically regardless of map iteration order.
func canonicalRuleSystem(rs *models.RuleSystem) []byte {
	if rs == nil {
		return []byte("nil")
	}
	type canonicalRule struct {
		ID         string  `json:"id"`
		Statement  string  `json:"statement"`
		Polarity   string  `json:"polarity"`
		Confidence string  `json:"confidence"` // fixed precision
		Iteration  uint32  `json:"iteration"`
	}
	rules := make([]canonicalRule, len(rs.Rules))
	for i, r := range rs.Rules {
		rules[i] = canonicalRule{
			ID:         r.ID,
			Statement:  r.Statement,
			Polarity:   string(r.Polarity),
			Confidence: fmt.Sprintf("%.12f", r.Confidence),
			Iteration:  r.Iteration,
		}
	}

	coverageKeys := make([]string, 0, len(rs.Coverage))
	for k := range rs.Coverage {
		coverageKeys = append(coverageKeys, k)
	}
	sort.Strings(coverageKeys)
	coverage := make(map[string][]string, len(rs.Coverage))
	for _, k := range coverageKeys {
		coverage[k] = rs.Coverage[k]
	}

	payload := struct {
		Rules       []canonicalRule     `json:"rules"`
		ConflictLog []models.ConflictLogEntry `json:"conflict_log"`
		MergeLog    []models.MergeLogEntry    `json:"merge_log"`
		Coverage    map[string][]string `json:"coverage"`
		Version     uint64              `json:"version"`
	}{rules, rs.ConflictLog, rs.MergeLog, coverage, rs.Version}

	b, _ := json.Marshal(payload)
	return b
}

func canonicalArtifacts(artifacts []models.IterationArtifact) []byte {
	type canonicalArtifact struct {
		TestCaseID   string `json:"test_case_id"`
		Passed       bool   `json:"passed"`
		PrimaryScore string `json:"primary_score"`
	}
	out := make([]canonicalArtifact, len(artifacts))
	for i, a := range artifacts {
		out[i] = canonicalArtifact{a.TestCaseID, a.Passed, fmt.Sprintf("%.12f", a.PrimaryScore)}
	}
	b, _ := json.Marshal(out)
	return b
}
