package model

import "time"

// Connection records one peer having joined one session. Both sides of the
// pairing are kept so history can be listed for either identity.
type Connection struct {
	ID          string    `db:"id" json:"id"`
	SessionCode string    `db:"session_code" json:"sessionCode"`
	HostID      string    `db:"host_id" json:"hostId"`
	PeerID      string    `db:"peer_id" json:"peerId"`
	StartedAt   time.Time `db:"started_at" json:"startedAt"`
}

type CreateConnectionParams struct {
	SessionCode string
	HostID      string
	PeerID      string
}
