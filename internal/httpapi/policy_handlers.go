package httpapi

import (
	"encoding/json"
	"net/http"

	"icomnet.org/internal/audit"
	"icomnet.org/internal/identity"
	"icomnet.org/internal/obs"
	"icomnet.org/internal/policy"
)

type decisionRequest struct {
	SenderRealm   identity.Realm       `json:"sender_realm"`
	ReceiverRealm identity.Realm       `json:"receiver_realm"`
	NetworkType   identity.NetworkType `json:"network_type"`
	Scopes        []string             `json:"scopes"`
	Channel       identity.Channel     `json:"channel"`
}

// PolicyDecision answers one communication eligibility question. Sender
// realm, network type, and scopes default to the caller's token claims; the
// request body may narrow the scopes but never widen trust beyond the token.
func (a *API) PolicyDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no principal")
		return
	}
	var body decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.ReceiverRealm == "" {
		respondError(w, http.StatusBadRequest, "receiver_realm is required")
		return
	}
	if body.Channel == "" {
		respondError(w, http.StatusBadRequest, "channel is required")
		return
	}
	req := policy.Request{
		SenderRealm:   body.SenderRealm,
		ReceiverRealm: body.ReceiverRealm,
		NetworkType:   body.NetworkType,
		Scopes:        body.Scopes,
		Channel:       body.Channel,
	}
	if req.SenderRealm == "" {
		req.SenderRealm = principal.Realm
	}
	if req.NetworkType == "" {
		req.NetworkType = principal.NetworkType
	}
	if req.Scopes == nil {
		req.Scopes = principal.Scopes
	}

	decision := policy.CanCommunicate(req)
	obs.ObservePolicyDecision(string(req.Channel), decision.Allowed)
	if !decision.Allowed {
		_ = audit.LogEvent(r.Context(), audit.EventPolicyDenied, map[string]any{
			"channel":        req.Channel,
			"sender_realm":   req.SenderRealm,
			"receiver_realm": req.ReceiverRealm,
			"network_type":   req.NetworkType,
			"reason":         decision.Reason,
		})
	}
	writeJSON(w, http.StatusOK, decision)
}

// PolicyChannels summarizes which channels the caller could open toward a
// receiver realm. Display-level only; per-action checks still go through
// PolicyDecision.
func (a *API) PolicyChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no principal")
		return
	}
	receiver, err := identity.ParseRealm(r.URL.Query().Get("receiver"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "valid receiver realm is required")
		return
	}
	sender := principal.Realm
	if s := r.URL.Query().Get("sender"); s != "" {
		sender, err = identity.ParseRealm(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid sender realm")
			return
		}
	}
	channels := policy.AvailableChannels(sender, receiver, principal.NetworkType, principal.Scopes)
	writeJSON(w, http.StatusOK, map[string]any{
		"sender_realm":   sender,
		"receiver_realm": receiver,
		"network_type":   principal.NetworkType,
		"channels":       channels,
	})
}

type modulesRequest struct {
	DesiredModules map[identity.Module]bool `json:"desired_modules"`
	Network        identity.Network         `json:"network"`
}

// Modules computes effective module availability for the caller. The token
// does not carry desired-module state or the network's module policy, so the
// body supplies both; identity fields always come from the verified claims.
func (a *API) Modules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no principal")
		return
	}
	var body modulesRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Network.Type == "" {
		body.Network.Type = principal.NetworkType
	}
	principal.DesiredModules = body.DesiredModules

	writeJSON(w, http.StatusOK, map[string]any{
		"modules": policy.EffectiveModules(principal, body.Network),
	})
}
