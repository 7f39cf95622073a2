package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/klynov/lectern/internal/app"
	"github.com/klynov/lectern/internal/config"
	"github.com/klynov/lectern/internal/domain"
	"github.com/klynov/lectern/internal/recording"
)

func testSetup(t *testing.T) (*gin.Engine, *app.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mode:             "release",
		Secret:           "test-secret",
		ReadLimit:        65536,
		SendBuffer:       64,
		PingPeriod:       50 * time.Second,
		ChatRateLimit:    10,
		ChatRateInterval: time.Second,
	}
	recordings := recording.NewManager(1)
	uploader := &recording.Uploader{
		Store:     &recording.DiskStorage{Root: t.TempDir()},
		Lifecycle: recordings,
	}
	orch := &app.Orchestrator{
		Registry:   app.NewRegistry(),
		Rooms:      app.NewRoomManager(),
		Policy:     app.SimplePolicy{},
		Recordings: recordings,
	}
	return SetupRouter(context.Background(), cfg, orch, uploader), orch
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestRoomsEndpoints(t *testing.T) {
	r, orch := testSetup(t)

	w, body := doJSON(t, r, http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, body["rooms"])

	w, _ = doJSON(t, r, http.MethodGet, "/api/rooms/L1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	orch.Rooms.Create("L1", "sid-t")
	w, body = doJSON(t, r, http.MethodGet, "/api/rooms/L1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "L1", body["id"])

	w, _ = doJSON(t, r, http.MethodGet, "/api/rooms/L1/members", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRecordingIntrospection(t *testing.T) {
	r, orch := testSetup(t)

	w, _ := doJSON(t, r, http.MethodGet, "/api/recordings/L1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, orch.Recordings.Start("L1"))
	w, body := doJSON(t, r, http.MethodGet, "/api/recordings/L1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "recording", body["state"])
}

func TestBlobUploadDrivesLifecycle(t *testing.T) {
	r, orch := testSetup(t)
	meeting := domain.RoomID("L1")

	require.NoError(t, orch.Recordings.Start(meeting))
	require.True(t, orch.Recordings.Stop(meeting))

	req := httptest.NewRequest(http.MethodPost, "/api/recordings/L1/blob", bytes.NewReader([]byte("fake webm bytes")))
	req.Header.Set("Content-Type", "video/webm")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		snap, ok := orch.Recordings.Get(meeting)
		return ok && snap.State == "processing"
	}, 2*time.Second, 10*time.Millisecond)

	snap, _ := orch.Recordings.Get(meeting)
	require.NotEmpty(t, snap.ArtifactRef)
	require.Equal(t, int64(len("fake webm bytes")), snap.ByteSize)
}

func TestEmptyBlobClosesWithoutArtifact(t *testing.T) {
	r, orch := testSetup(t)
	meeting := domain.RoomID("L1")

	require.NoError(t, orch.Recordings.Start(meeting))
	require.True(t, orch.Recordings.Stop(meeting))

	w, body := doJSON(t, r, http.MethodPost, "/api/recordings/L1/blob", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "stopped_empty", body["state"])
}

func TestProcessingCallback(t *testing.T) {
	r, orch := testSetup(t)
	meeting := domain.RoomID("L1")

	require.NoError(t, orch.Recordings.Start(meeting))
	orch.Recordings.Stop(meeting)
	orch.Recordings.BlobReceived(meeting, 100)
	orch.Recordings.UploadStart(meeting)
	orch.Recordings.UploadComplete(meeting, "ref")

	w, body := doJSON(t, r, http.MethodPost, "/api/recordings/L1/processing",
		[]byte(`{"success": true, "output_refs": ["notes.md"]}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "published", body["state"])

	// a repeated callback is absorbed, state unchanged
	w, body = doJSON(t, r, http.MethodPost, "/api/recordings/L1/processing",
		[]byte(`{"success": false, "error_reason": "duplicate"}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "published", body["state"])
}

func TestProcessingCallbackValidation(t *testing.T) {
	r, _ := testSetup(t)
	w, _ := doJSON(t, r, http.MethodPost, "/api/recordings/L1/processing", []byte(`{}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
