package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gloriawright4412/ScreenShareCast/internal/history"
)

type fakeSender struct {
	mu   sync.Mutex
	envs []Envelope
}

func (f *fakeSender) Send(env Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envs = append(f.envs, env)
	return true
}

func (f *fakeSender) byType(msgType string) []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Envelope
	for _, env := range f.envs {
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

func (f *fakeSender) lastOfType(t *testing.T, msgType string) Envelope {
	t.Helper()
	envs := f.byType(msgType)
	require.NotEmpty(t, envs, "no %s envelope received", msgType)
	return envs[len(envs)-1]
}

func decodePayload[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var payload T
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return payload
}

func newTestCoordinator() *Coordinator {
	registry := NewRegistry()
	table := NewSessionTable()
	return NewCoordinator(registry, table, NewRouter(registry), history.NopRecorder{})
}

func connect(c *Coordinator, id string) *fakeSender {
	sender := &fakeSender{}
	c.Connect(id, sender)
	return sender
}

func send(c *Coordinator, id, msgType string, payload any) {
	data, _ := json.Marshal(payload)
	c.HandleMessage(id, Envelope{Type: msgType, Data: data})
}

func TestCoordinatorConnect(t *testing.T) {
	t.Run("client_id is the first message", func(t *testing.T) {
		c := newTestCoordinator()
		sender := connect(c, "client-a")

		require.Len(t, sender.envs, 1)
		assert.Equal(t, TypeClientID, sender.envs[0].Type)
		payload := decodePayload[clientIDPayload](t, sender.envs[0])
		assert.Equal(t, "client-a", payload.ClientID)
	})
}

func TestCoordinatorCreateSession(t *testing.T) {
	t.Run("create acks with code", func(t *testing.T) {
		c := newTestCoordinator()
		sender := connect(c, "client-a")

		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})

		ack := decodePayload[sessionCreatedPayload](t, sender.lastOfType(t, TypeSessionCreated))
		assert.True(t, ack.Success)
		assert.Equal(t, "482-913", ack.SessionCode)
	})

	t.Run("code collision acks failure, first creator wins", func(t *testing.T) {
		c := newTestCoordinator()
		connect(c, "client-a")
		senderB := connect(c, "client-b")

		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		send(c, "client-b", TypeCreateSession, sessionRequest{SessionCode: "482-913"})

		ack := decodePayload[sessionCreatedPayload](t, senderB.lastOfType(t, TypeSessionCreated))
		assert.False(t, ack.Success)
		assert.NotEmpty(t, ack.Error)

		host, err := c.table.Host("482-913")
		require.NoError(t, err)
		assert.Equal(t, "client-a", host)
	})

	t.Run("retired code can be created again", func(t *testing.T) {
		c := newTestCoordinator()
		connect(c, "client-a")
		senderB := connect(c, "client-b")

		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		c.Disconnect("client-a")

		send(c, "client-b", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		ack := decodePayload[sessionCreatedPayload](t, senderB.lastOfType(t, TypeSessionCreated))
		assert.True(t, ack.Success)
	})

	t.Run("empty code makes the server generate one", func(t *testing.T) {
		c := newTestCoordinator()
		sender := connect(c, "client-a")

		send(c, "client-a", TypeCreateSession, sessionRequest{})

		ack := decodePayload[sessionCreatedPayload](t, sender.lastOfType(t, TypeSessionCreated))
		assert.True(t, ack.Success)
		assert.True(t, ValidateSessionCode(ack.SessionCode))
	})

	t.Run("invalid code format is rejected", func(t *testing.T) {
		c := newTestCoordinator()
		sender := connect(c, "client-a")

		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "not-a-code"})

		ack := decodePayload[sessionCreatedPayload](t, sender.lastOfType(t, TypeSessionCreated))
		assert.False(t, ack.Success)
	})

	t.Run("second create while hosting is rejected", func(t *testing.T) {
		c := newTestCoordinator()
		sender := connect(c, "client-a")

		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "111-111"})
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "222-222"})

		ack := decodePayload[sessionCreatedPayload](t, sender.lastOfType(t, TypeSessionCreated))
		assert.False(t, ack.Success)

		_, err := c.table.Host("222-222")
		assert.Error(t, err)
	})
}

func TestCoordinatorJoinSession(t *testing.T) {
	t.Run("join acks host and notifies host once", func(t *testing.T) {
		c := newTestCoordinator()
		senderA := connect(c, "client-a")
		senderB := connect(c, "client-b")

		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		send(c, "client-b", TypeJoinSession, sessionRequest{SessionCode: "482-913"})

		ack := decodePayload[sessionJoinedPayload](t, senderB.lastOfType(t, TypeSessionJoined))
		assert.True(t, ack.Success)
		assert.Equal(t, "482-913", ack.SessionCode)
		assert.Equal(t, "client-a", ack.HostID)

		joins := senderA.byType(TypeClientJoined)
		require.Len(t, joins, 1)
		notice := decodePayload[clientJoinedPayload](t, joins[0])
		assert.Equal(t, "client-b", notice.ClientID)
		assert.Equal(t, "482-913", notice.SessionCode)
	})

	t.Run("join of unknown code fails and mutates nothing", func(t *testing.T) {
		c := newTestCoordinator()
		sender := connect(c, "client-a")

		send(c, "client-a", TypeJoinSession, sessionRequest{SessionCode: "000-000"})

		ack := decodePayload[sessionJoinedPayload](t, sender.lastOfType(t, TypeSessionJoined))
		assert.False(t, ack.Success)
		assert.NotEmpty(t, ack.Error)
		assert.Equal(t, 0, c.table.Count())
	})

	t.Run("join while already in a session is rejected", func(t *testing.T) {
		c := newTestCoordinator()
		connect(c, "client-a")
		senderB := connect(c, "client-b")

		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "111-111"})
		send(c, "client-b", TypeCreateSession, sessionRequest{SessionCode: "222-222"})
		send(c, "client-b", TypeJoinSession, sessionRequest{SessionCode: "111-111"})

		ack := decodePayload[sessionJoinedPayload](t, senderB.lastOfType(t, TypeSessionJoined))
		assert.False(t, ack.Success)
		assert.False(t, c.table.HasMember("111-111", "client-b"))
	})

	t.Run("concurrent joins notify the host exactly once each", func(t *testing.T) {
		c := newTestCoordinator()
		senderHost := connect(c, "host")
		send(c, "host", TypeCreateSession, sessionRequest{SessionCode: "482-913"})

		const joiners = 25
		var wg sync.WaitGroup
		for i := 0; i < joiners; i++ {
			id := fmt.Sprintf("peer-%d", i)
			connect(c, id)
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				send(c, id, TypeJoinSession, sessionRequest{SessionCode: "482-913"})
			}(id)
		}
		wg.Wait()

		joins := senderHost.byType(TypeClientJoined)
		require.Len(t, joins, joiners)

		seen := make(map[string]int)
		for _, env := range joins {
			payload := decodePayload[clientJoinedPayload](t, env)
			seen[payload.ClientID]++
		}
		for id, n := range seen {
			assert.Equal(t, 1, n, "joiner %s notified %d times", id, n)
		}

		assert.Len(t, c.table.Members("482-913"), joiners+1)
	})
}

func TestCoordinatorSignalForwarding(t *testing.T) {
	setup := func(t *testing.T) (*Coordinator, *fakeSender, *fakeSender) {
		c := newTestCoordinator()
		senderA := connect(c, "client-a")
		senderB := connect(c, "client-b")
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		send(c, "client-b", TypeJoinSession, sessionRequest{SessionCode: "482-913"})
		return c, senderA, senderB
	}

	t.Run("offer arrives with fromId and original payload", func(t *testing.T) {
		c, _, senderB := setup(t)

		send(c, "client-a", TypeOffer, map[string]any{
			"offer":    map[string]any{"type": "offer", "sdp": "v=0..."},
			"targetId": "client-b",
		})

		env := senderB.lastOfType(t, TypeOffer)
		var payload map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(env.Data, &payload))

		var fromID string
		require.NoError(t, json.Unmarshal(payload["fromId"], &fromID))
		assert.Equal(t, "client-a", fromID)
		assert.JSONEq(t, `{"type":"offer","sdp":"v=0..."}`, string(payload["offer"]))
	})

	t.Run("answer and ice_candidate pass through", func(t *testing.T) {
		c, senderA, _ := setup(t)

		send(c, "client-b", TypeAnswer, map[string]any{"answer": "a", "targetId": "client-a"})
		send(c, "client-b", TypeICECandidate, map[string]any{"candidate": "c", "targetId": "client-a"})

		assert.Len(t, senderA.byType(TypeAnswer), 1)
		assert.Len(t, senderA.byType(TypeICECandidate), 1)
	})

	t.Run("forward to a dead target is a silent no-op", func(t *testing.T) {
		c, senderA, _ := setup(t)
		c.Disconnect("client-b")
		before := len(senderA.byType(TypeError))

		send(c, "client-a", TypeOffer, map[string]any{"offer": "o", "targetId": "client-b"})

		assert.Len(t, senderA.byType(TypeError), before)
	})

	t.Run("missing targetId is malformed", func(t *testing.T) {
		c, senderA, _ := setup(t)

		send(c, "client-a", TypeOffer, map[string]any{"offer": "o"})

		errs := senderA.byType(TypeError)
		require.NotEmpty(t, errs)
	})
}

func TestCoordinatorDisconnect(t *testing.T) {
	t.Run("explicit disconnect notifies remaining members", func(t *testing.T) {
		c := newTestCoordinator()
		senderA := connect(c, "client-a")
		connect(c, "client-b")
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		send(c, "client-b", TypeJoinSession, sessionRequest{SessionCode: "482-913"})

		send(c, "client-b", TypeDisconnect, sessionRequest{SessionCode: "482-913"})

		notice := decodePayload[participantDisconnectedPayload](t, senderA.lastOfType(t, TypeParticipantDisconnected))
		assert.Equal(t, "client-b", notice.ClientID)

		// Host remains, so the session stays joinable.
		_, err := c.table.Join("482-913", "client-c")
		assert.NoError(t, err)
	})

	t.Run("disconnect from a session the sender is not in errors", func(t *testing.T) {
		c := newTestCoordinator()
		sender := connect(c, "client-a")

		send(c, "client-a", TypeDisconnect, sessionRequest{SessionCode: "482-913"})

		assert.NotEmpty(t, sender.byType(TypeError))
	})

	t.Run("transport close cleans every table", func(t *testing.T) {
		c := newTestCoordinator()
		connect(c, "client-a")
		senderB := connect(c, "client-b")
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		send(c, "client-b", TypeJoinSession, sessionRequest{SessionCode: "482-913"})

		c.Disconnect("client-a")

		notice := decodePayload[participantDisconnectedPayload](t, senderB.lastOfType(t, TypeParticipantDisconnected))
		assert.Equal(t, "client-a", notice.ClientID)

		_, ok := c.registry.Lookup("client-a")
		assert.False(t, ok)
		assert.Equal(t, "", c.currentSession("client-a"))
	})

	t.Run("transport close is idempotent", func(t *testing.T) {
		c := newTestCoordinator()
		connect(c, "client-a")
		senderB := connect(c, "client-b")
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		send(c, "client-b", TypeJoinSession, sessionRequest{SessionCode: "482-913"})

		c.Disconnect("client-a")
		c.Disconnect("client-a")

		assert.Len(t, senderB.byType(TypeParticipantDisconnected), 1)
	})

	t.Run("join frame after transport close is rolled back", func(t *testing.T) {
		c := newTestCoordinator()
		senderA := connect(c, "client-a")
		connect(c, "client-b")
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})

		// The read side can still be delivering a frame while close cleanup
		// has already run for the same identity.
		c.Disconnect("client-b")
		send(c, "client-b", TypeJoinSession, sessionRequest{SessionCode: "482-913"})

		assert.False(t, c.table.HasMember("482-913", "client-b"))
		assert.Equal(t, "", c.currentSession("client-b"))
		assert.Empty(t, senderA.byType(TypeClientJoined))
	})

	t.Run("create frame after transport close is rolled back", func(t *testing.T) {
		c := newTestCoordinator()
		connect(c, "client-a")

		c.Disconnect("client-a")
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})

		assert.Equal(t, 0, c.table.Count())
		assert.Equal(t, "", c.currentSession("client-a"))

		// The code was never claimed, so a live client may take it.
		senderB := connect(c, "client-b")
		send(c, "client-b", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		ack := decodePayload[sessionCreatedPayload](t, senderB.lastOfType(t, TypeSessionCreated))
		assert.True(t, ack.Success)
	})

	t.Run("last member leaving retires the code", func(t *testing.T) {
		c := newTestCoordinator()
		connect(c, "client-a")
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})

		c.Disconnect("client-a")

		senderB := connect(c, "client-b")
		send(c, "client-b", TypeJoinSession, sessionRequest{SessionCode: "482-913"})
		ack := decodePayload[sessionJoinedPayload](t, senderB.lastOfType(t, TypeSessionJoined))
		assert.False(t, ack.Success)
	})
}

func TestCoordinatorMalformedMessages(t *testing.T) {
	t.Run("invalid JSON frame errors only the sender", func(t *testing.T) {
		c := newTestCoordinator()
		senderA := connect(c, "client-a")
		senderB := connect(c, "client-b")

		c.HandleRaw("client-a", []byte("{not json"))

		assert.NotEmpty(t, senderA.byType(TypeError))
		assert.Empty(t, senderB.byType(TypeError))
	})

	t.Run("unknown type yields an error envelope", func(t *testing.T) {
		c := newTestCoordinator()
		sender := connect(c, "client-a")

		send(c, "client-a", "rocket_launch", map[string]any{})

		assert.NotEmpty(t, sender.byType(TypeError))
	})
}

func TestCoordinatorExpireIdleSessions(t *testing.T) {
	t.Run("idle sessions are evicted with notice", func(t *testing.T) {
		c := newTestCoordinator()
		senderA := connect(c, "client-a")
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})

		c.table.get("482-913").lastActive = time.Now().Add(-time.Hour)

		codes := c.ExpireIdleSessions(30 * time.Minute)
		assert.Equal(t, []string{"482-913"}, codes)

		notice := decodePayload[sessionExpiredPayload](t, senderA.lastOfType(t, TypeSessionExpired))
		assert.Equal(t, "482-913", notice.SessionCode)
		assert.Equal(t, "", c.currentSession("client-a"))

		// The evicted client may pair again.
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
		ack := decodePayload[sessionCreatedPayload](t, senderA.lastOfType(t, TypeSessionCreated))
		assert.True(t, ack.Success)
	})

	t.Run("fresh sessions survive", func(t *testing.T) {
		c := newTestCoordinator()
		connect(c, "client-a")
		send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})

		assert.Empty(t, c.ExpireIdleSessions(30*time.Minute))
		assert.Equal(t, 1, c.table.Count())
	})
}

// Full pairing walkthrough: create, join, negotiate, leave.
func TestCoordinatorScenario(t *testing.T) {
	c := newTestCoordinator()
	senderA := connect(c, "client-a")
	senderB := connect(c, "client-b")

	send(c, "client-a", TypeCreateSession, sessionRequest{SessionCode: "482-913"})
	created := decodePayload[sessionCreatedPayload](t, senderA.lastOfType(t, TypeSessionCreated))
	require.True(t, created.Success)

	send(c, "client-b", TypeJoinSession, sessionRequest{SessionCode: "482-913"})
	joined := decodePayload[sessionJoinedPayload](t, senderB.lastOfType(t, TypeSessionJoined))
	require.True(t, joined.Success)
	assert.Equal(t, "client-a", joined.HostID)

	hostNotice := decodePayload[clientJoinedPayload](t, senderA.lastOfType(t, TypeClientJoined))
	assert.Equal(t, "client-b", hostNotice.ClientID)

	send(c, "client-a", TypeOffer, map[string]any{"offer": "sdp-offer", "targetId": "client-b"})
	offer := senderB.lastOfType(t, TypeOffer)
	var offerPayload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(offer.Data, &offerPayload))
	var fromID string
	require.NoError(t, json.Unmarshal(offerPayload["fromId"], &fromID))
	assert.Equal(t, "client-a", fromID)

	send(c, "client-b", TypeDisconnect, sessionRequest{SessionCode: "482-913"})
	left := decodePayload[participantDisconnectedPayload](t, senderA.lastOfType(t, TypeParticipantDisconnected))
	assert.Equal(t, "client-b", left.ClientID)

	// A is still host, the session stays live until A itself disconnects.
	host, err := c.table.Host("482-913")
	require.NoError(t, err)
	assert.Equal(t, "client-a", host)

	c.Disconnect("client-a")
	_, err = c.table.Host("482-913")
	assert.Error(t, err)
}
