package signaling

import "github.com/rs/zerolog/log"

// Router delivers envelopes to a specific live client. It never queues or
// retries: negotiation messages are only meaningful briefly, and retry
// semantics belong to the peers themselves.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Forward looks up targetID and delivers the envelope verbatim. An absent or
// unwritable target is a normal outcome (peers disconnect mid-negotiation)
// and drops the envelope silently apart from a diagnostic log.
func (r *Router) Forward(targetID string, env Envelope) {
	sender, ok := r.registry.Lookup(targetID)
	if !ok {
		log.Debug().
			Str("targetId", targetID).
			Str("type", env.Type).
			Msg("dropping message for unknown target")
		return
	}

	if !sender.Send(env) {
		log.Warn().
			Str("targetId", targetID).
			Str("type", env.Type).
			Msg("target send buffer full, dropping message")
	}
}
