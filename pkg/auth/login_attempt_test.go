package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMakeKeyCombinesIPAndUsername(t *testing.T) {
	assert.Equal(t, "1.2.3.4|alice", MakeKey("1.2.3.4", "alice"))
}

func TestLoginAttemptStoreNotBlockedBelowThreshold(t *testing.T) {
	store := NewLoginAttemptStore(5, time.Minute)
	key := MakeKey("1.2.3.4", "alice")

	for i := 0; i < 4; i++ {
		store.RecordFailure(key)
	}
	assert.False(t, store.IsBlocked(key))
}

func TestLoginAttemptStoreBlocksAtThreshold(t *testing.T) {
	store := NewLoginAttemptStore(5, time.Minute)
	key := MakeKey("1.2.3.4", "alice")

	for i := 0; i < 5; i++ {
		store.RecordFailure(key)
	}
	assert.True(t, store.IsBlocked(key))
}

func TestLoginAttemptStoreResetClearsRecord(t *testing.T) {
	store := NewLoginAttemptStore(5, time.Minute)
	key := MakeKey("1.2.3.4", "alice")

	for i := 0; i < 5; i++ {
		store.RecordFailure(key)
	}
	require := assert.New(t)
	require.True(store.IsBlocked(key))

	store.Reset(key)
	require.False(store.IsBlocked(key))
}

func TestLoginAttemptStoreCooldownExpires(t *testing.T) {
	store := NewLoginAttemptStore(5, time.Millisecond)
	key := MakeKey("1.2.3.4", "alice")

	for i := 0; i < 5; i++ {
		store.RecordFailure(key)
	}
	assert.True(t, store.IsBlocked(key))

	time.Sleep(5 * time.Millisecond)
	assert.False(t, store.IsBlocked(key))
}

func TestLoginAttemptStoreCleanupExpired(t *testing.T) {
	store := NewLoginAttemptStore(5, time.Millisecond)
	key := MakeKey("1.2.3.4", "alice")
	store.RecordFailure(key)

	time.Sleep(5 * time.Millisecond)
	removed := store.CleanupExpired()
	assert.Equal(t, 1, removed)
}

func TestNewDefaultLoginAttemptStoreMatchesOriginalDefaults(t *testing.T) {
	store := NewDefaultLoginAttemptStore()
	assert.Equal(t, uint32(DefaultMaxFailures), store.maxFailures)
	assert.Equal(t, DefaultCooldown, store.cooldown)
}
