package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gloriawright4412/ScreenShareCast/internal/repository"
)

// SessionExpirer is the signaling-side hook the sweep drives.
type SessionExpirer interface {
	ExpireIdleSessions(ttl time.Duration) []string
}

// SweepJob periodically evicts idle live sessions and prunes old
// bookkeeping rows. Sessions have no expiry of their own beyond
// disconnect-driven cleanup, so a host that vanishes without a detectable
// transport close would otherwise hold its code forever. Row pruning runs on
// its own retention clock, independent of the idle TTL: history stays
// readable long after the live session is gone.
type SweepJob struct {
	expirer        SessionExpirer
	sessionRepo    repository.SessionRepository
	connectionRepo repository.ConnectionRepository
	idleTTL        time.Duration
	retention      time.Duration
	interval       time.Duration
	done           chan struct{}
}

func NewSweepJob(expirer SessionExpirer, sessionRepo repository.SessionRepository, connectionRepo repository.ConnectionRepository, idleTTL, retention, interval time.Duration) *SweepJob {
	return &SweepJob{
		expirer:        expirer,
		sessionRepo:    sessionRepo,
		connectionRepo: connectionRepo,
		idleTTL:        idleTTL,
		retention:      retention,
		interval:       interval,
		done:           make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("idleTTL", j.idleTTL).Msg("sweep job started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	if j.idleTTL > 0 {
		if codes := j.expirer.ExpireIdleSessions(j.idleTTL); len(codes) > 0 {
			log.Info().Strs("sessionCodes", codes).Msg("expired idle sessions")
		}
	}

	if j.retention <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if j.sessionRepo != nil {
		count, err := j.sessionRepo.DeleteStale(ctx, j.retention)
		if err != nil {
			log.Error().Err(err).Msg("failed to prune old session rows")
		} else if count > 0 {
			log.Info().Int64("count", count).Msg("pruned old session rows")
		}
	}

	if j.connectionRepo != nil {
		count, err := j.connectionRepo.DeleteOlderThan(ctx, j.retention)
		if err != nil {
			log.Error().Err(err).Msg("failed to prune old connection rows")
		} else if count > 0 {
			log.Info().Int64("count", count).Msg("pruned old connection rows")
		}
	}
}
