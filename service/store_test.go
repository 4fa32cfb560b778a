package service

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(id, tenant string, createdAt time.Time) *Session {
	return &Session{
		ID:        id,
		Tenant:    tenant,
		CreatedAt: createdAt,
		Lifecycle: NewLifecycle(newFakeAnalyzer([]any{}), testPolicy()),
	}
}

func TestSessionStoreSaveAndGet(t *testing.T) {
	store := NewSessionStore(&config.StoreConfig{MaxSessions: 100})

	store.Save(newTestSession("test-id-1", "tenant1", time.Now()))

	retrieved := store.Get("test-id-1")
	require.NotNil(t, retrieved)
	assert.Equal(t, "tenant1", retrieved.Tenant)

	assert.Nil(t, store.Get("non-existent"))
}

func TestSessionStoreGetForTenant(t *testing.T) {
	store := NewSessionStore(&config.StoreConfig{})
	store.Save(newTestSession("s1", "tenant1", time.Now()))

	_, err := store.GetForTenant("s1", "tenant1")
	assert.NoError(t, err)

	_, err = store.GetForTenant("s1", "tenant2")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.GetForTenant("missing", "tenant1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreGetByTenant(t *testing.T) {
	store := NewSessionStore(&config.StoreConfig{})
	now := time.Now()

	store.Save(newTestSession("1", "tenant1", now.Add(-2*time.Minute)))
	store.Save(newTestSession("2", "tenant1", now))
	store.Save(newTestSession("3", "tenant2", now))

	tenant1 := store.GetByTenant("tenant1")
	require.Len(t, tenant1, 2)
	assert.Equal(t, "2", tenant1[0].ID, "newest session first")

	assert.Empty(t, store.GetByTenant("tenant3"))
}

func TestSessionStoreDeleteResetsLifecycle(t *testing.T) {
	store := NewSessionStore(&config.StoreConfig{})

	analyzer := newFakeAnalyzer([]any{})
	analyzer.release = make(chan struct{})
	session := newTestSession("delete-me", "tenant1", time.Now())
	session.Lifecycle = NewLifecycle(analyzer, testPolicy())
	store.Save(session)

	sub, err := session.Lifecycle.Start(t.Context(), model.Document{Filename: "a.txt", Size: 1, MediaType: model.MediaTypeText}, strings.NewReader("a"))
	require.NoError(t, err)
	<-analyzer.sentCalled

	require.NotNil(t, store.Delete("delete-me"))
	close(analyzer.release)

	_, err = sub.Result()
	assert.ErrorIs(t, err, ErrStaleSubmission)
	assert.Nil(t, store.Get("delete-me"))
	assert.Nil(t, store.Delete("delete-me"), "deleting twice")
}

func TestSessionStoreAutoCleanup(t *testing.T) {
	store := NewSessionStore(&config.StoreConfig{MaxSessions: 3})
	baseTime := time.Now()

	for i := 0; i < 5; i++ {
		store.Save(newTestSession(fmt.Sprintf("s%d", i), "tenant1", baseTime.Add(time.Duration(i)*time.Minute)))
	}

	assert.Equal(t, 3, store.Count())
	for _, id := range []string{"s0", "s1"} {
		assert.Nil(t, store.Get(id), "oldest session %s should be removed", id)
	}
	for _, id := range []string{"s2", "s3", "s4"} {
		assert.NotNil(t, store.Get(id), "session %s should exist", id)
	}
}

func TestSessionStoreUnlimited(t *testing.T) {
	store := NewSessionStore(&config.StoreConfig{MaxSessions: -1})

	for i := 0; i < 150; i++ {
		store.Save(newTestSession(fmt.Sprintf("s%d", i), "tenant1", time.Now()))
	}

	assert.Equal(t, 150, store.Count())
}

func TestNewSession(t *testing.T) {
	a := NewSession("tenant1", "admin", nil)
	b := NewSession("tenant1", "admin", nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())

	a.SetObjectKey("tenant1/x/doc.pdf")
	assert.Equal(t, "tenant1/x/doc.pdf", a.ObjectKey())
}

func TestSessionCloseWaitsForBackgroundWork(t *testing.T) {
	session := newTestSession("s1", "tenant1", time.Now())

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	require.True(t, session.Go(func() {
		close(started)
		<-release
		finished.Store(true)
	}))
	<-started

	closed := make(chan struct{})
	go func() {
		session.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while work was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-closed
	assert.True(t, finished.Load())

	assert.False(t, session.Go(func() { t.Error("work ran after Close") }))
}
