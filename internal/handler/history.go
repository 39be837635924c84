package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gloriawright4412/ScreenShareCast/internal/config"
	apperrors "github.com/gloriawright4412/ScreenShareCast/internal/errors"
	"github.com/gloriawright4412/ScreenShareCast/internal/httputil"
	"github.com/gloriawright4412/ScreenShareCast/internal/repository"
	"github.com/gloriawright4412/ScreenShareCast/internal/signaling"
)

// HistoryHandler serves the persisted bookkeeping: past sessions by code and
// recent connections per client identity.
type HistoryHandler struct {
	sessions    repository.SessionRepository
	connections repository.ConnectionRepository
}

func NewHistoryHandler(sessions repository.SessionRepository, connections repository.ConnectionRepository) *HistoryHandler {
	return &HistoryHandler{
		sessions:    sessions,
		connections: connections,
	}
}

func (h *HistoryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sessions/{code}", h.GetSession)
	r.Get("/connections", h.ListConnections)
	return r
}

func (h *HistoryHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !signaling.ValidateSessionCode(code) {
		httputil.WriteError(w, apperrors.InvalidSessionCode(code))
		return
	}

	session, err := h.sessions.FindByCode(r.Context(), code)
	if err != nil {
		httputil.WriteError(w, apperrors.Database(err))
		return
	}
	if session == nil {
		httputil.WriteError(w, apperrors.NotFound("Session"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *HistoryHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		httputil.WriteError(w, apperrors.New(apperrors.ErrCodeMalformedMessage, "clientId query parameter is required"))
		return
	}

	limit := config.DefaultRecentConnectionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	conns, err := h.connections.FindRecentByClientID(r.Context(), clientID, limit)
	if err != nil {
		httputil.WriteError(w, apperrors.Database(err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"connections": conns,
		"count":       len(conns),
	})
}
