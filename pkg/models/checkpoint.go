package models

import "time"

// LineageType classifies how a checkpoint came to exist.
type LineageType string

const (
	LineageAutomatic    LineageType = "Automatic"
	LineageUserRollback LineageType = "UserRollback"
	LineageManual       LineageType = "Manual"
)

// IterationArtifact is a per-round evaluation summary attached to a
// checkpoint.
type IterationArtifact struct {
	TestCaseID   string  `json:"test_case_id"`
	Passed       bool    `json:"passed"`
	PrimaryScore float64 `json:"primary_score"`
}

// Checkpoint is a durable, checksummed snapshot of an OptimizationContext
// taken after an iteration phase that mutates prompt or rules.
type Checkpoint struct {
	ID                string              `json:"id"`
	TaskID            string              `json:"task_id"`
	Iteration         uint32              `json:"iteration"`
	State             State               `json:"state"`
	RunControlState   RunControlState     `json:"run_control_state"`
	Prompt            string              `json:"prompt"`
	RuleSystem        *RuleSystem         `json:"rule_system"`
	Artifacts         []IterationArtifact `json:"artifacts"`
	UserGuidance      string              `json:"user_guidance,omitempty"`
	BranchID          string              `json:"branch_id"`
	ParentID          string              `json:"parent_id,omitempty"`
	LineageType       LineageType         `json:"lineage_type"`
	BranchDescription string              `json:"branch_description,omitempty"`
	Checksum          string              `json:"checksum"`
	CreatedAt         time.Time           `json:"created_at"`
	ArchivedAt        *time.Time          `json:"archived_at,omitempty"`
	ArchiveReason     string              `json:"archive_reason,omitempty"`
	PassRateSummary   *PassRateSummary    `json:"pass_rate_summary,omitempty"`

	// IntegrityOK is set by the Checkpoint Manager on read; never persisted.
	IntegrityOK bool `json:"integrity_ok"`
}

// PassRateSummary is the recovered-from-original-source read-model
// summarizing a checkpoint's test outcomes, used by the candidates/recovery
// endpoints.
type PassRateSummary struct {
	PassedCount int     `json:"passed_count"`
	TotalCount  int     `json:"total_count"`
	PassRate    float64 `json:"pass_rate"`
}

// IsArchived reports whether the checkpoint has been soft-deleted.
func (c Checkpoint) IsArchived() bool {
	return c.ArchivedAt != nil
}

// CandidatePromptSummary is a lightweight, list-friendly projection of a
// checkpoint used by the terminate flow's candidate picker.
type CandidatePromptSummary struct {
	CheckpointID  string    `json:"checkpoint_id"`
	Iteration     uint32    `json:"iteration"`
	PromptPreview string    `json:"prompt_preview"`
	PassRate      float64   `json:"pass_rate"`
	CreatedAt     time.Time `json:"created_at"`
}

// PromptPreviewMaxLen bounds CandidatePromptSummary.PromptPreview length.
const PromptPreviewMaxLen = 200

// TruncatePromptPreview renders a prompt preview truncated to
// PromptPreviewMaxLen runes, appending an ellipsis when truncated.
func TruncatePromptPreview(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= PromptPreviewMaxLen {
		return prompt
	}
	return string(runes[:PromptPreviewMaxLen]) + "…"
}
