package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klynov/lectern/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	ref      string
}

func (f *fakeStore) Save(ctx context.Context, meeting domain.RoomID, blob []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return "", errors.New("storage unavailable")
	}
	return f.ref, nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePipeline struct {
	mu   sync.Mutex
	refs []string
	err  error
}

func (f *fakePipeline) Submit(ctx context.Context, meeting domain.RoomID, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, ref)
	return f.err
}

func (f *fakePipeline) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refs...)
}

func waitForState(t *testing.T, m *Manager, meeting domain.RoomID, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if st, ok := m.stateOf(meeting); ok && st == want {
			return
		}
		select {
		case <-deadline:
			st, _ := m.stateOf(meeting)
			t.Fatalf("state = %s, want %s", st, want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func startStopped(t *testing.T, m *Manager) {
	t.Helper()
	require.NoError(t, m.Start(meeting))
	require.True(t, m.Stop(meeting))
}

func TestUploaderHappyPath(t *testing.T) {
	m := NewManager(1)
	store := &fakeStore{ref: "artifacts/L1.webm"}
	pipe := &fakePipeline{}
	u := &Uploader{Store: store, Pipeline: pipe, Lifecycle: m}
	startStopped(t, m)

	u.HandleBlob(context.Background(), meeting, []byte("data"), "video/webm")
	waitForState(t, m, meeting, StateProcessing)

	snap, _ := m.Get(meeting)
	require.Equal(t, "artifacts/L1.webm", snap.ArtifactRef)
	require.Eventually(t, func() bool {
		return len(pipe.submitted()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUploaderRetriesOnce(t *testing.T) {
	m := NewManager(1)
	store := &fakeStore{ref: "ref", failures: 1}
	u := &Uploader{Store: store, Lifecycle: m}
	startStopped(t, m)

	u.HandleBlob(context.Background(), meeting, []byte("data"), "video/webm")
	waitForState(t, m, meeting, StateProcessing)
	require.Equal(t, 2, store.callCount())
}

func TestUploaderGivesUpAfterRetry(t *testing.T) {
	m := NewManager(1)
	store := &fakeStore{ref: "ref", failures: 10}
	u := &Uploader{Store: store, Lifecycle: m}
	startStopped(t, m)

	u.HandleBlob(context.Background(), meeting, []byte("data"), "video/webm")
	waitForState(t, m, meeting, StateFailed)
	require.Equal(t, 2, store.callCount())
}

func TestUploaderSkipsEmptyBlob(t *testing.T) {
	m := NewManager(1)
	store := &fakeStore{ref: "ref"}
	u := &Uploader{Store: store, Lifecycle: m}
	startStopped(t, m)

	u.HandleBlob(context.Background(), meeting, nil, "video/webm")
	waitForState(t, m, meeting, StateStoppedNoBlob)
	require.Equal(t, 0, store.callCount())
}

func TestUploaderIgnoresBlobForAbortedSession(t *testing.T) {
	m := NewManager(1)
	store := &fakeStore{ref: "ref"}
	u := &Uploader{Store: store, Lifecycle: m}
	require.NoError(t, m.Start(meeting))
	require.True(t, m.Abort(meeting))

	u.HandleBlob(context.Background(), meeting, []byte("late"), "video/webm")
	waitForState(t, m, meeting, StateAborted)
	require.Equal(t, 0, store.callCount())
}

func TestPipelineSubmitFailureFailsProcessing(t *testing.T) {
	m := NewManager(1)
	store := &fakeStore{ref: "ref"}
	pipe := &fakePipeline{err: errors.New("pipeline down")}
	u := &Uploader{Store: store, Pipeline: pipe, Lifecycle: m}
	startStopped(t, m)

	u.HandleBlob(context.Background(), meeting, []byte("data"), "video/webm")
	waitForState(t, m, meeting, StateFailed)
}
