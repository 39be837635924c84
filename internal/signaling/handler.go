package signaling

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler accepts inbound websocket connections, assigns each a fresh
// identity and hands the connection's frames to the coordinator.
type Handler struct {
	coordinator *Coordinator
	upgrader    websocket.Upgrader
}

func NewHandler(coordinator *Coordinator, allowedOrigins []string) *Handler {
	return &Handler{
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	id := NewIdentity()
	client := newClient(id, conn, h.coordinator)

	go client.writePump()
	h.coordinator.Connect(id, client)
	go client.readPump()
}

// originChecker allows every origin when the list is empty (development),
// otherwise requires an exact match.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
