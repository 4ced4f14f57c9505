package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"optibid.com/internal/activity"
	"optibid.com/internal/auth"
	"optibid.com/internal/ids"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 200
	sseKeepAlive         = 25 * time.Second
)

const revokeDemoMessage = "Session revoked. Demo mode: the token stays valid until it expires."

type sessionView struct {
	ID         string    `json:"id"`
	Current    bool      `json:"current"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastActive time.Time `json:"last_active"`
}

// handleListSessions shows the current session plus recent successful logins
// of the same principal as other devices.
func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, msgInvalidToken)
		return
	}
	client := auth.ClientFromContext(r.Context())

	current := sessionView{
		ID:         claims.ID,
		Current:    true,
		IP:         client.IP,
		UserAgent:  client.UserAgent,
		LastActive: a.now().UTC(),
	}
	if claims.IssuedAt != nil {
		current.CreatedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		current.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	sessions := []sessionView{current}

	if a.activity != nil {
		for _, evt := range a.activity.Recent(principal.Email, maxActivityLimit) {
			if evt.Type != activity.TypeLoginSucceeded {
				continue
			}
			if !evt.Timestamp.Before(current.CreatedAt) {
				continue
			}
			sessions = append(sessions, sessionView{
				ID:         ids.NewAt(evt.Timestamp),
				IP:         evt.RemoteIP,
				UserAgent:  evt.UserAgent,
				CreatedAt:  evt.Timestamp,
				LastActive: evt.Timestamp,
			})
			if len(sessions) >= 10 {
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleRevokeSession acknowledges a revoke request. Nothing is invalidated:
// issued tokens remain valid until expiry.
func (a *API) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := ids.Time(id); !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	principal, _ := auth.PrincipalFromContext(r.Context())
	_ = a.auditEvent(r.Context(), "auth.session.revoke.demo", map[string]any{
		"principal_id": principal.ID,
		"session_id":   id,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": revokeDemoMessage,
	})
}

// activityEmail resolves the normalized email whose activity is requested;
// only admins may look at other principals.
func activityEmail(r *http.Request) (string, bool) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	self := auth.NormalizeEmail(principal.Email)
	want := auth.NormalizeEmail(r.URL.Query().Get("email"))
	if want == "" || want == self {
		return self, true
	}
	if want == "*" && principal.HasPermission(auth.PermAdminUsers) {
		return "", true
	}
	return want, principal.HasPermission(auth.PermAdminUsers)
}

func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	if a.activity == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Activity feed disabled")
		return
	}
	email, ok := activityEmail(r)
	if !ok {
		writeDetail(w, http.StatusForbidden, "Insufficient permissions")
		return
	}
	limit := defaultActivityLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxActivityLimit {
			writeDetail(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": a.activity.Recent(email, limit),
	})
}

// handleActivityStream serves login activity as Server-Sent Events.
func (a *API) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	if a.activity == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Activity feed disabled")
		return
	}
	email, ok := activityEmail(r)
	if !ok {
		writeDetail(w, http.StatusForbidden, "Insufficient permissions")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ch := a.activity.Subscribe(ctx)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case evt, open := <-ch:
			if !open {
				return
			}
			if email != "" && auth.NormalizeEmail(evt.Email) != email {
				continue
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: " + evt.Type + "\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func (a *API) auditEvent(ctx context.Context, event string, fields map[string]any) error {
	if a.audit == nil {
		return nil
	}
	return a.audit.LogEvent(ctx, event, fields)
}
