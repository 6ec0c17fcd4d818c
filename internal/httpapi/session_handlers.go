package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"icomnet.org/internal/audit"
	"icomnet.org/internal/identity"
	"icomnet.org/internal/obs"
	"icomnet.org/internal/session"
	"icomnet.org/internal/token"
)

type sessionResponse struct {
	Token     string       `json:"token"`
	Claims    token.Claims `json:"claims"`
	ExpiresIn int64        `json:"expires_in"`
}

func toSessionResponse(info session.Info) sessionResponse {
	return sessionResponse{
		Token:     info.Session.Token,
		Claims:    info.Claims,
		ExpiresIn: int64(info.ExpiresIn.Seconds()),
	}
}

// Login mints a session for the posted principal, replacing any prior one.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var principal identity.Principal
	if err := json.NewDecoder(r.Body).Decode(&principal); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	info, err := a.sessions.Login(r.Context(), principal)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidPrincipal) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventLogin, map[string]any{
		"tenant_id": principal.TenantID,
		"app_id":    principal.AppID,
		"realm":     principal.Realm,
		"jti":       info.Claims.ID,
	})
	writeJSON(w, http.StatusOK, toSessionResponse(info))
}

// Session returns the current validated session.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	info, err := a.sessions.GetSession(r.Context())
	if err != nil {
		respondSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(info))
}

// RefreshSession rotates the current token once its remaining lifetime drops
// to the threshold; above it the call is a no-op.
func (a *API) RefreshSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	info, result, err := a.sessions.Refresh(r.Context())
	if err != nil {
		obs.ObserveSessionRefresh("error")
		respondSessionError(w, err)
		return
	}
	obs.ObserveSessionRefresh(string(result))
	if result != session.RefreshNoop {
		_ = audit.LogEvent(r.Context(), audit.EventRefresh, map[string]any{
			"result": string(result),
			"jti":    info.Claims.ID,
		})
	}
	writeJSON(w, http.StatusOK, toSessionResponse(info))
}

// Logout revokes the current token and clears the session.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := a.sessions.Logout(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	w.WriteHeader(http.StatusNoContent)
}

// RevokeToken is the operational manual-revocation endpoint.
func (a *API) RevokeToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := a.sessions.RevokeCurrentToken(r.Context()); err != nil {
		respondSessionError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventRevoke, nil)
	w.WriteHeader(http.StatusNoContent)
}

func respondSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNoSession) {
		respondError(w, http.StatusNotFound, "no session")
		return
	}
	if code := token.CodeOf(err); code != "" {
		respondError(w, http.StatusUnauthorized, string(code))
		return
	}
	respondError(w, http.StatusInternalServerError, "session error")
}
