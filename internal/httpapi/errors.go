package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"optibid.com/internal/auth"
	"optibid.com/internal/obs"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgInternal           = "Internal server error"
	msgTokenExpired       = "Token expired"
	msgInvalidToken       = "Invalid token"
	msgBadBody            = "Invalid request body"
)

var errBodyRequired = errors.New("request body is required")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]any{"detail": detail})
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="optibid"`)
	writeDetail(w, http.StatusUnauthorized, detail)
}

// writeAuthError maps auth errors onto HTTP responses. Internal causes are
// logged and never written to the client.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		body := map[string]any{"detail": verr.Message}
		if len(verr.Fields) > 0 {
			body["fields"] = verr.Fields
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, msgInvalidCredentials)
	case errors.Is(err, auth.ErrTokenExpired):
		writeUnauthorized(w, msgTokenExpired)
	case errors.Is(err, auth.ErrInvalidToken):
		writeUnauthorized(w, msgInvalidToken)
	default:
		obs.Logger().Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeDetail(w, http.StatusInternalServerError, msgInternal)
	}
}

// writeDecodeError answers a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeDetail(w, http.StatusBadRequest, msgBadBody)
}

// decodeJSON reads exactly one JSON value. Unknown fields are tolerated so
// older site builds keep working.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBodyRequired
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBodyRequired
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
