package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"optibid.com/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	User         auth.Principal `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	session, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  session.AccessToken.Value,
		RefreshToken: session.RefreshToken.Value,
		TokenType:    session.TokenType,
		ExpiresIn:    int64(session.AccessToken.ExpiresAt.Sub(session.AccessToken.IssuedAt).Seconds()),
		User:         session.Principal,
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if a.registrar == nil {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	var req auth.RegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	res, err := a.registrar.Register(r.Context(), req)
	if err != nil {
		var verr *auth.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   verr.Message,
				"details": verr.Fields,
			})
			return
		}
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"detail": "refresh_token required",
			"fields": map[string]string{"refresh_token": "refresh_token is required"},
		})
		return
	}

	access, _, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: access.Value,
		TokenType:   auth.TokenTypeBearer,
		ExpiresIn:   int64(access.ExpiresAt.Sub(access.IssuedAt).Seconds()),
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, msgInvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, principal)
}

func (a *API) handleListPrincipals(w http.ResponseWriter, r *http.Request) {
	principals, err := a.auth.Store().Principals(r.Context())
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"principals": principals})
}
