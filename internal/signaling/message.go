package signaling

import "encoding/json"

// Envelope is the wire unit for all websocket traffic in both directions.
// Data is left raw so negotiation payloads pass through the server untouched.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound message types
const (
	TypeCreateSession = "create_session"
	TypeJoinSession   = "join_session"
	TypeOffer         = "offer"
	TypeAnswer        = "answer"
	TypeICECandidate  = "ice_candidate"
	TypeDisconnect    = "disconnect"
)

// Outbound message types
const (
	TypeClientID                = "client_id"
	TypeSessionCreated          = "session_created"
	TypeSessionJoined           = "session_joined"
	TypeClientJoined            = "client_joined"
	TypeParticipantDisconnected = "participant_disconnected"
	TypeSessionExpired          = "session_expired"
	TypeError                   = "error"
)

type sessionRequest struct {
	SessionCode string `json:"sessionCode"`
}

type clientIDPayload struct {
	ClientID string `json:"clientId"`
}

type sessionCreatedPayload struct {
	SessionCode string `json:"sessionCode,omitempty"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

type sessionJoinedPayload struct {
	Success     bool   `json:"success"`
	SessionCode string `json:"sessionCode,omitempty"`
	HostID      string `json:"hostId,omitempty"`
	Error       string `json:"error,omitempty"`
}

type clientJoinedPayload struct {
	ClientID    string `json:"clientId"`
	SessionCode string `json:"sessionCode"`
}

type participantDisconnectedPayload struct {
	ClientID string `json:"clientId"`
}

type sessionExpiredPayload struct {
	SessionCode string `json:"sessionCode"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func newEnvelope(msgType string, payload any) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload types above are all marshalable; this is unreachable.
		return Envelope{Type: msgType}
	}
	return Envelope{Type: msgType, Data: data}
}
