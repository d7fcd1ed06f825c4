package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncatePromptPreview(t *testing.T) {
	short := "short prompt"
	assert.Equal(t, short, TruncatePromptPreview(short))

	long := strings.Repeat("a", PromptPreviewMaxLen+50)
	preview := TruncatePromptPreview(long)
	assert.Equal(t, []rune(preview)[:PromptPreviewMaxLen], []rune(strings.Repeat("a", PromptPreviewMaxLen)))
	assert.True(t, strings.HasSuffix(preview, "…"))
}

func TestCheckpointIsArchived(t *testing.T) {
	c := Checkpoint{}
	assert.False(t, c.IsArchived())
}

func TestAddRoundsRequestValidate(t *testing.T) {
	assert.NoError(t, AddRoundsRequest{AdditionalRounds: 1}.Validate())
	assert.NoError(t, AddRoundsRequest{AdditionalRounds: 100}.Validate())
	assert.Error(t, AddRoundsRequest{AdditionalRounds: 0}.Validate())
	assert.Error(t, AddRoundsRequest{AdditionalRounds: 101}.Validate())
}
