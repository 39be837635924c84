package model

import "time"

type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusInactive SessionStatus = "inactive"
)

// Session is the persisted record of a pairing session. It is bookkeeping
// only: the live session state lives in the in-memory signaling tables.
type Session struct {
	ID        string        `db:"id" json:"id"`
	Code      string        `db:"code" json:"code"`
	HostID    string        `db:"host_id" json:"hostId"`
	Status    SessionStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}

type CreateSessionParams struct {
	Code   string
	HostID string
}
