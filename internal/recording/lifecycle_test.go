package recording

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klynov/lectern/internal/domain"
)

const meeting = domain.RoomID("L1")

func TestHappyPathToPublished(t *testing.T) {
	m := NewManager(1)

	require.NoError(t, m.Start(meeting))
	require.True(t, m.Stop(meeting))

	state, ok := m.BlobReceived(meeting, 2048)
	require.True(t, ok)
	require.Equal(t, StateStoppedWithBlob, state)

	require.True(t, m.UploadStart(meeting))
	require.True(t, m.UploadComplete(meeting, "artifacts/L1.webm"))
	require.True(t, m.ProcessingResult(meeting, true))

	snap, ok := m.Get(meeting)
	require.True(t, ok)
	require.Equal(t, "published", snap.State)
	require.Equal(t, int64(2048), snap.ByteSize)
	require.Equal(t, "artifacts/L1.webm", snap.ArtifactRef)
}

func TestStartWhileLiveFails(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.Start(meeting))
	require.ErrorIs(t, m.Start(meeting), domain.ErrAlreadyRecording)

	// стоп не завершает сессию терминально — стартовать всё ещё нельзя
	m.Stop(meeting)
	require.ErrorIs(t, m.Start(meeting), domain.ErrAlreadyRecording)
}

func TestStartReplacesFinishedSession(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.Start(meeting))
	m.Stop(meeting)
	m.BlobReceived(meeting, 0) // terminal, nothing captured

	require.NoError(t, m.Start(meeting))
	st, ok := m.stateOf(meeting)
	require.True(t, ok)
	require.Equal(t, StateRecording, st)
}

func TestIdempotentStop(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.Start(meeting))

	require.True(t, m.Stop(meeting))
	require.False(t, m.Stop(meeting)) // duplicate absorbed
	st, _ := m.stateOf(meeting)
	require.Equal(t, StateStopping, st)
}

func TestStopWithoutSessionIsNoop(t *testing.T) {
	m := NewManager(1)
	require.False(t, m.Stop(meeting))
}

func TestEmptyBlobNeverUploads(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.Start(meeting))
	require.True(t, m.Stop(meeting))

	state, ok := m.BlobReceived(meeting, 0)
	require.True(t, ok)
	require.Equal(t, StateStoppedNoBlob, state)
	require.True(t, state.Terminal())

	// upload refuses to start from the no-blob terminal
	require.False(t, m.UploadStart(meeting))
	st, _ := m.stateOf(meeting)
	require.Equal(t, StateStoppedNoBlob, st)
}

func TestUploadRetryThenSuccess(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.Start(meeting))
	m.Stop(meeting)
	m.BlobReceived(meeting, 100)

	require.True(t, m.UploadStart(meeting))
	require.True(t, m.UploadFailed(meeting)) // one retry allowed

	require.True(t, m.UploadStart(meeting))
	require.True(t, m.UploadComplete(meeting, "ref"))
	st, _ := m.stateOf(meeting)
	require.Equal(t, StateProcessing, st)
}

func TestUploadRetryBudgetExhausted(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.Start(meeting))
	m.Stop(meeting)
	m.BlobReceived(meeting, 100)

	require.True(t, m.UploadStart(meeting))
	require.True(t, m.UploadFailed(meeting))
	require.True(t, m.UploadStart(meeting))
	require.False(t, m.UploadFailed(meeting)) // second failure is final

	st, _ := m.stateOf(meeting)
	require.Equal(t, StateFailed, st)
	require.False(t, m.UploadStart(meeting))
}

func TestProcessingFailure(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.Start(meeting))
	m.Stop(meeting)
	m.BlobReceived(meeting, 100)
	m.UploadStart(meeting)
	m.UploadComplete(meeting, "ref")

	require.True(t, m.ProcessingResult(meeting, false))
	st, _ := m.stateOf(meeting)
	require.Equal(t, StateFailed, st)
}

func TestAbortFromLiveStates(t *testing.T) {
	tests := []struct {
		name    string
		arrange func(m *Manager)
		aborted bool
	}{
		{name: "recording", arrange: func(m *Manager) {}, aborted: true},
		{name: "stopping", arrange: func(m *Manager) { m.Stop(meeting) }, aborted: true},
		{name: "stopped with blob", arrange: func(m *Manager) {
			m.Stop(meeting)
			m.BlobReceived(meeting, 10)
		}, aborted: true},
		{name: "uploading survives teardown", arrange: func(m *Manager) {
			m.Stop(meeting)
			m.BlobReceived(meeting, 10)
			m.UploadStart(meeting)
		}, aborted: false},
		{name: "processing survives teardown", arrange: func(m *Manager) {
			m.Stop(meeting)
			m.BlobReceived(meeting, 10)
			m.UploadStart(meeting)
			m.UploadComplete(meeting, "ref")
		}, aborted: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(1)
			require.NoError(t, m.Start(meeting))
			tt.arrange(m)
			require.Equal(t, tt.aborted, m.Abort(meeting))
			if tt.aborted {
				st, _ := m.stateOf(meeting)
				require.Equal(t, StateAborted, st)
			}
		})
	}
}

func TestLateSignalsAfterAbortAreIgnored(t *testing.T) {
	m := NewManager(1)
	require.NoError(t, m.Start(meeting))
	require.True(t, m.Abort(meeting))

	// late recorder/storage/pipeline callbacks: logged and ignored
	_, ok := m.BlobReceived(meeting, 100)
	require.False(t, ok)
	require.False(t, m.UploadStart(meeting))
	require.False(t, m.ProcessingResult(meeting, true))

	st, _ := m.stateOf(meeting)
	require.Equal(t, StateAborted, st)
}

func TestAbortUnknownMeeting(t *testing.T) {
	m := NewManager(1)
	require.False(t, m.Abort(meeting))
}

func TestTerminalStates(t *testing.T) {
	terminal := []State{StateStoppedNoBlob, StatePublished, StateFailed, StateAborted}
	for _, s := range terminal {
		require.True(t, s.Terminal(), s.String())
	}
	live := []State{StateIdle, StateRecording, StateStopping, StateStoppedWithBlob, StateUploading, StateProcessing}
	for _, s := range live {
		require.False(t, s.Terminal(), s.String())
	}
}
