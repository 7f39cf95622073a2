package recording

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/domain"
)

// Storage persists the recording artifact. Implemented by the platform's
// file storage collaborator.
type Storage interface {
	Save(ctx context.Context, meeting domain.RoomID, blob []byte, mimeType string) (string, error)
}

// Processor kicks off the external AI transcription/notes pipeline for a
// stored artifact. Its outcome arrives asynchronously through
// Manager.ProcessingResult; Submit only starts the job.
type Processor interface {
	Submit(ctx context.Context, meeting domain.RoomID, artifactRef string) error
}

// Uploader drives the blob-to-storage handoff against the lifecycle
// manager, including the retry budget on transient storage failures.
type Uploader struct {
	Store     Storage
	Pipeline  Processor
	Lifecycle *Manager
}

// HandleBlob accepts the recorder's output for a stopped meeting. An
// empty blob closes the session with nothing to publish; otherwise the
// upload runs asynchronously so the caller (the owner's stop request)
// is never blocked on storage.
func (u *Uploader) HandleBlob(ctx context.Context, meeting domain.RoomID, blob []byte, mimeType string) {
	state, ok := u.Lifecycle.BlobReceived(meeting, int64(len(blob)))
	if !ok || state != StateStoppedWithBlob {
		return
	}
	go u.upload(ctx, meeting, blob, mimeType)
}

func (u *Uploader) upload(ctx context.Context, meeting domain.RoomID, blob []byte, mimeType string) {
	for u.Lifecycle.UploadStart(meeting) {
		ref, err := u.Store.Save(ctx, meeting, blob, mimeType)
		if err == nil {
			if !u.Lifecycle.UploadComplete(meeting, ref) {
				return
			}
			if u.Pipeline != nil {
				if err := u.Pipeline.Submit(ctx, meeting, ref); err != nil {
					log.Error().Err(err).Str("module", "recording").
						Str("meeting", string(meeting)).Msg("pipeline submit failed")
					u.Lifecycle.ProcessingResult(meeting, false)
				}
			}
			return
		}
		log.Error().Err(err).Str("module", "recording").
			Str("meeting", string(meeting)).Msg("artifact upload failed")
		if !u.Lifecycle.UploadFailed(meeting) {
			return
		}
	}
}
