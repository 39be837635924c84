package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gloriawright4412/ScreenShareCast/internal/model"
)

type ConnectionRepository interface {
	Create(ctx context.Context, params model.CreateConnectionParams) (*model.Connection, error)
	FindRecentByClientID(ctx context.Context, clientID string, limit int) ([]model.Connection, error)
	DeleteOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

type connectionRepo struct {
	db *sqlx.DB
}

func NewConnectionRepository(db *sqlx.DB) ConnectionRepository {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) Create(ctx context.Context, params model.CreateConnectionParams) (*model.Connection, error) {
	var conn model.Connection
	err := r.db.GetContext(ctx, &conn, `
		INSERT INTO connections (session_code, host_id, peer_id)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.SessionCode, params.HostID, params.PeerID)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepo) FindRecentByClientID(ctx context.Context, clientID string, limit int) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.SelectContext(ctx, &conns, `
		SELECT * FROM connections
		WHERE host_id = $1 OR peer_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, clientID, limit)
	return conns, err
}

func (r *connectionRepo) DeleteOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM connections
		WHERE started_at < $1
	`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
