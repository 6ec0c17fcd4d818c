package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"icomnet.org/internal/obs"
	"icomnet.org/internal/revocation"
	"icomnet.org/internal/session"
	"icomnet.org/internal/token"
)

// ReadyProbe checks backing-store reachability for readiness.
type ReadyProbe struct {
	Pinger interface {
		Ping(ctx context.Context) error
	}
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Pinger == nil {
		return nil
	}
	return rp.Pinger.Ping(ctx)
}

// API is the HTTP layer over the access-control core.
type API struct {
	mux         *http.ServeMux
	tokens      *token.Service
	revocations revocation.Store
	sessions    *session.Manager
	readyProbe  ReadyProbe
	version     string
}

// New wires routes to the core services.
func New(tokens *token.Service, revocations revocation.Store, sessions *session.Manager, rp ReadyProbe, version string) *API {
	a := &API{
		mux:         http.NewServeMux(),
		tokens:      tokens,
		revocations: revocations,
		sessions:    sessions,
		readyProbe:  rp,
		version:     version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.HandleFunc("/v1/session/login", a.Login)
	a.mux.HandleFunc("/v1/session", a.Session)
	a.mux.HandleFunc("/v1/session/refresh", a.RefreshSession)
	a.mux.HandleFunc("/v1/session/logout", a.Logout)
	a.mux.HandleFunc("/v1/session/revoke", a.RevokeToken)

	a.mux.HandleFunc("/v1/policy/decision", a.PolicyDecision)
	a.mux.HandleFunc("/v1/policy/channels", a.PolicyChannels)
	a.mux.HandleFunc("/v1/modules", a.Modules)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RequestID(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "icomnet-access",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "icomnet-access",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
