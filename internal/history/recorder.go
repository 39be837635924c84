// Package history persists session and connection bookkeeping. Every write
// is best-effort: failures are logged and never surface to the signaling
// flow, which owns the authoritative in-memory state.
package history

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/gloriawright4412/ScreenShareCast/internal/config"
	"github.com/gloriawright4412/ScreenShareCast/internal/model"
	"github.com/gloriawright4412/ScreenShareCast/internal/repository"
)

// Recorder is the coordinator's view of the persistence layer.
type Recorder interface {
	SessionCreated(code, hostID string)
	SessionClosed(code string)
	ConnectionStarted(code, hostID, peerID string)
}

type recorder struct {
	sessions    repository.SessionRepository
	connections repository.ConnectionRepository
}

func NewRecorder(sessions repository.SessionRepository, connections repository.ConnectionRepository) Recorder {
	return &recorder{
		sessions:    sessions,
		connections: connections,
	}
}

func (r *recorder) SessionCreated(code, hostID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.HistoryWriteTimeout)
		defer cancel()

		if _, err := r.sessions.Create(ctx, model.CreateSessionParams{
			Code:   code,
			HostID: hostID,
		}); err != nil {
			log.Error().Err(err).Str("sessionCode", code).Msg("failed to record session")
		}
	}()
}

func (r *recorder) SessionClosed(code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.HistoryWriteTimeout)
		defer cancel()

		if err := r.sessions.UpdateStatus(ctx, code, model.SessionStatusInactive); err != nil {
			log.Error().Err(err).Str("sessionCode", code).Msg("failed to record session close")
		}
	}()
}

func (r *recorder) ConnectionStarted(code, hostID, peerID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.HistoryWriteTimeout)
		defer cancel()

		if _, err := r.connections.Create(ctx, model.CreateConnectionParams{
			SessionCode: code,
			HostID:      hostID,
			PeerID:      peerID,
		}); err != nil {
			log.Error().Err(err).Str("sessionCode", code).Msg("failed to record connection")
		}
	}()
}

// NopRecorder discards all bookkeeping. Used when the coordinator runs
// without a database, and in tests.
type NopRecorder struct{}

func (NopRecorder) SessionCreated(code, hostID string)            {}
func (NopRecorder) SessionClosed(code string)                     {}
func (NopRecorder) ConnectionStarted(code, hostID, peerID string) {}
