package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gloriawright4412/ScreenShareCast/internal/model"
)

type SessionRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	UpdateStatus(ctx context.Context, code string, status model.SessionStatus) error
	DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type sessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) FindByCode(ctx context.Context, code string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions
		WHERE code = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, code)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (code, host_id, status)
		VALUES ($1, $2, 'active')
		RETURNING *
	`, params.Code, params.HostID)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, code string, status model.SessionStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = $2,
			updated_at = $3
		WHERE code = $1 AND status = 'active'
	`, code, status, time.Now())
	return err
}

func (r *sessionRepo) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE status = 'inactive' AND updated_at < $1
	`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
