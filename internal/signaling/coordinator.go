package signaling

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/gloriawright4412/ScreenShareCast/internal/errors"
	"github.com/gloriawright4412/ScreenShareCast/internal/history"
)

const codeGenerationAttempts = 10

// Coordinator interprets inbound control messages and drives the session
// table and router. Each client is in at most one session at a time; a second
// create or join while already a member is rejected rather than left to
// dangle stale membership.
type Coordinator struct {
	registry *Registry
	table    *SessionTable
	router   *Router
	recorder history.Recorder

	mu          sync.Mutex
	memberships map[string]string // client identity -> session code
}

func NewCoordinator(registry *Registry, table *SessionTable, router *Router, recorder history.Recorder) *Coordinator {
	return &Coordinator{
		registry:    registry,
		table:       table,
		router:      router,
		recorder:    recorder,
		memberships: make(map[string]string),
	}
}

// Connect registers a freshly accepted transport and delivers the assigned
// identity as the connection's first message.
func (c *Coordinator) Connect(id string, sender Sender) {
	c.registry.Register(id, sender)
	sender.Send(newEnvelope(TypeClientID, clientIDPayload{ClientID: id}))

	log.Info().Str("clientId", id).Msg("client connected")
}

// HandleRaw parses one inbound frame and dispatches it. A malformed frame
// yields an error envelope to the sender only; it never affects other
// connections or sessions.
func (c *Coordinator) HandleRaw(id string, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendError(id, apperrors.MalformedMessage("invalid JSON frame"))
		return
	}
	c.HandleMessage(id, env)
}

// HandleMessage dispatches a parsed envelope from client id.
func (c *Coordinator) HandleMessage(id string, env Envelope) {
	switch env.Type {
	case TypeCreateSession:
		c.handleCreateSession(id, env)
	case TypeJoinSession:
		c.handleJoinSession(id, env)
	case TypeOffer, TypeAnswer, TypeICECandidate:
		c.handleSignal(id, env)
	case TypeDisconnect:
		c.handleDisconnect(id, env)
	default:
		log.Debug().Str("clientId", id).Str("type", env.Type).Msg("unknown message type")
		c.sendError(id, apperrors.MalformedMessage("unknown message type"))
	}
}

// Disconnect performs transport-close cleanup for id: membership removal,
// peer notification and registry removal. Safe to call more than once.
func (c *Coordinator) Disconnect(id string) {
	c.mu.Lock()
	code, inSession := c.memberships[id]
	delete(c.memberships, id)
	c.mu.Unlock()

	c.registry.Remove(id)

	if inSession {
		c.leaveSession(id, code)
	}

	log.Info().Str("clientId", id).Msg("client disconnected")
}

// ExpireIdleSessions evicts sessions idle past ttl, notifying their members.
// Returns the codes of the evicted sessions.
func (c *Coordinator) ExpireIdleSessions(ttl time.Duration) []string {
	expired := c.table.ExpireIdle(ttl)

	codes := make([]string, 0, len(expired))
	for _, es := range expired {
		notice := newEnvelope(TypeSessionExpired, sessionExpiredPayload{SessionCode: es.Code})
		for _, member := range es.Members {
			c.router.Forward(member, notice)

			c.mu.Lock()
			if c.memberships[member] == es.Code {
				delete(c.memberships, member)
			}
			c.mu.Unlock()
		}

		c.recorder.SessionClosed(es.Code)
		codes = append(codes, es.Code)

		log.Info().
			Str("sessionCode", es.Code).
			Int("members", len(es.Members)).
			Msg("idle session expired")
	}
	return codes
}

func (c *Coordinator) handleCreateSession(id string, env Envelope) {
	var req sessionRequest
	if err := decodeRequest(env.Data, &req); err != nil {
		c.sendError(id, apperrors.MalformedMessage("invalid create_session payload"))
		return
	}

	if existing := c.currentSession(id); existing != "" {
		c.send(id, newEnvelope(TypeSessionCreated, sessionCreatedPayload{
			Success: false,
			Error:   apperrors.AlreadyInSession(existing).Message,
		}))
		return
	}

	code := req.SessionCode
	if code == "" {
		code = c.generateFreshCode()
	} else if !ValidateSessionCode(code) {
		c.send(id, newEnvelope(TypeSessionCreated, sessionCreatedPayload{
			Success: false,
			Error:   apperrors.InvalidSessionCode(code).Message,
		}))
		return
	}

	if err := c.table.Create(code, id); err != nil {
		c.send(id, newEnvelope(TypeSessionCreated, sessionCreatedPayload{
			SessionCode: code,
			Success:     false,
			Error:       errorMessage(err),
		}))
		return
	}

	c.setSession(id, code)

	if !c.ensureConnected(id, code) {
		return
	}

	c.recorder.SessionCreated(code, id)

	c.send(id, newEnvelope(TypeSessionCreated, sessionCreatedPayload{
		SessionCode: code,
		Success:     true,
	}))

	log.Info().Str("clientId", id).Str("sessionCode", code).Msg("session created")
}

func (c *Coordinator) handleJoinSession(id string, env Envelope) {
	var req sessionRequest
	if err := decodeRequest(env.Data, &req); err != nil {
		c.sendError(id, apperrors.MalformedMessage("invalid join_session payload"))
		return
	}

	if existing := c.currentSession(id); existing != "" {
		c.send(id, newEnvelope(TypeSessionJoined, sessionJoinedPayload{
			Success: false,
			Error:   apperrors.AlreadyInSession(existing).Message,
		}))
		return
	}

	hostID, err := c.table.Join(req.SessionCode, id)
	if err != nil {
		c.send(id, newEnvelope(TypeSessionJoined, sessionJoinedPayload{
			Success: false,
			Error:   errorMessage(err),
		}))
		return
	}

	c.setSession(id, req.SessionCode)

	if !c.ensureConnected(id, req.SessionCode) {
		return
	}

	c.send(id, newEnvelope(TypeSessionJoined, sessionJoinedPayload{
		Success:     true,
		SessionCode: req.SessionCode,
		HostID:      hostID,
	}))

	c.router.Forward(hostID, newEnvelope(TypeClientJoined, clientJoinedPayload{
		ClientID:    id,
		SessionCode: req.SessionCode,
	}))

	c.recorder.ConnectionStarted(req.SessionCode, hostID, id)

	log.Info().
		Str("clientId", id).
		Str("sessionCode", req.SessionCode).
		Str("hostId", hostID).
		Msg("client joined session")
}

// handleSignal relays offer/answer/ice_candidate envelopes to targetId with
// the original payload plus fromId. The payload is otherwise opaque.
func (c *Coordinator) handleSignal(id string, env Envelope) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		c.sendError(id, apperrors.MalformedMessage("invalid signal payload"))
		return
	}

	var targetID string
	if raw, ok := fields["targetId"]; ok {
		if err := json.Unmarshal(raw, &targetID); err != nil {
			targetID = ""
		}
	}
	if targetID == "" {
		c.sendError(id, apperrors.MalformedMessage("signal payload missing targetId"))
		return
	}

	fromID, err := json.Marshal(id)
	if err != nil {
		return
	}
	fields["fromId"] = fromID

	data, err := json.Marshal(fields)
	if err != nil {
		return
	}

	if code := c.currentSession(id); code != "" {
		c.table.Touch(code)
	}

	c.router.Forward(targetID, Envelope{Type: env.Type, Data: data})
}

func (c *Coordinator) handleDisconnect(id string, env Envelope) {
	var req sessionRequest
	if err := decodeRequest(env.Data, &req); err != nil {
		c.sendError(id, apperrors.MalformedMessage("invalid disconnect payload"))
		return
	}

	c.mu.Lock()
	code, inSession := c.memberships[id]
	if inSession && code == req.SessionCode {
		delete(c.memberships, id)
	}
	c.mu.Unlock()

	if !inSession || code != req.SessionCode {
		c.sendError(id, apperrors.NotFound("Session membership"))
		return
	}

	c.leaveSession(id, code)
}

// leaveSession removes id from the session and notifies a snapshot of the
// remaining members, so concurrent joins or leaves cannot skip or duplicate
// a notification.
func (c *Coordinator) leaveSession(id, code string) {
	remaining, peers, err := c.table.RemoveMember(code, id)
	if err != nil {
		log.Debug().Str("clientId", id).Str("sessionCode", code).Msg("left session already evicted")
		return
	}

	notice := newEnvelope(TypeParticipantDisconnected, participantDisconnectedPayload{ClientID: id})
	for _, peer := range peers {
		c.router.Forward(peer, notice)
	}

	if remaining == 0 {
		c.recorder.SessionClosed(code)
		log.Info().Str("sessionCode", code).Msg("session closed")
	}
}

// ensureConnected re-checks the registry after a table mutation for id.
// Transport-close cleanup can run between frame receipt and the mutation; a
// create or join landing after cleanup must not leave a member with no
// transport, so a departed identity has its membership rolled back here.
func (c *Coordinator) ensureConnected(id, code string) bool {
	if _, ok := c.registry.Lookup(id); ok {
		return true
	}

	c.mu.Lock()
	if c.memberships[id] == code {
		delete(c.memberships, id)
	}
	c.mu.Unlock()

	if remaining, _, err := c.table.RemoveMember(code, id); err == nil && remaining == 0 {
		c.recorder.SessionClosed(code)
	}

	log.Debug().
		Str("clientId", id).
		Str("sessionCode", code).
		Msg("membership rolled back for departed client")
	return false
}

// generateFreshCode picks a code not currently held by an active session.
// Collisions past the attempt budget fall through to the session table,
// which reports them deterministically.
func (c *Coordinator) generateFreshCode() string {
	var code string
	for attempts := 0; attempts < codeGenerationAttempts; attempts++ {
		code = GenerateSessionCode()
		if _, err := c.table.Host(code); err != nil {
			break
		}
	}
	return code
}

func (c *Coordinator) currentSession(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memberships[id]
}

func (c *Coordinator) setSession(id, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memberships[id] = code
}

func (c *Coordinator) send(id string, env Envelope) {
	if sender, ok := c.registry.Lookup(id); ok {
		sender.Send(env)
	}
}

func (c *Coordinator) sendError(id string, appErr *apperrors.AppError) {
	c.send(id, newEnvelope(TypeError, errorPayload{Error: appErr.Message}))
}

// decodeRequest tolerates an absent data field; required values are then
// validated as empty strings by the table.
func decodeRequest(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func errorMessage(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
