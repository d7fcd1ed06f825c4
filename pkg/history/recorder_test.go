package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/codeready-toolchain/promptforge/pkg/pause"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu     sync.Mutex
	events []models.HistoryEvent
	failNext bool
}

func (f *fakeRepo) InsertHistoryEvent(_ context.Context, e models.HistoryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return assertErr
	}
	f.events = append(f.events, e)
	return nil
}

var assertErr = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestRecordUsesProvidedCorrelationID(t *testing.T) {
	repo := &fakeRepo{}
	rec := NewRecorder(repo, pause.NewRegistry())

	err := rec.Record(context.Background(), "task-1", models.EventIterationStarted, models.ActorSystem, nil, nil, "cid-1")
	require.NoError(t, err)
	require.Len(t, repo.events, 1)
	assert.Equal(t, "cid-1", repo.events[0].CorrelationID)
}

func TestRecordFallsBackToRegistryThenUnknown(t *testing.T) {
	repo := &fakeRepo{}
	reg := pause.NewRegistry()
	rec := NewRecorder(repo, reg)

	// No correlation id anywhere yet -> "unknown".
	require.NoError(t, rec.Record(context.Background(), "task-2", models.EventErrorOccurred, models.ActorSystem, nil, nil, ""))
	require.Len(t, repo.events, 1)
	assert.Equal(t, models.UnknownCorrelationID, repo.events[0].CorrelationID)

	// Registry has a last-known id -> used.
	reg.GetOrCreate("task-2").RequestPause("cid-known", "user")
	require.NoError(t, rec.Record(context.Background(), "task-2", models.EventErrorOccurred, models.ActorSystem, nil, nil, ""))
	require.Len(t, repo.events, 2)
	assert.Equal(t, "cid-known", repo.events[1].CorrelationID)
}

func TestRecordAsyncNeverPanicsOnFailure(t *testing.T) {
	repo := &fakeRepo{failNext: true}
	rec := NewRecorder(repo, pause.NewRegistry())

	rec.RecordAsync(context.Background(), "task-3", models.EventCheckpointSaved, models.ActorSystem, nil, nil, "cid")

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return !repo.failNext
	}, time.Second, time.Millisecond)
}
