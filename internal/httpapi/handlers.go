package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"optibid.com/internal/activity"
	"optibid.com/internal/auth"
	"optibid.com/internal/obs"
)

const serviceName = "optibid-auth"

// ReadyProbe reports whether the credential store can answer lookups.
type ReadyProbe struct {
	Store auth.CredentialStore
}

// Check pings stores backed by a remote resource; in-memory stores are always ready.
func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return errors.New("credential store not configured")
	}
	if p, ok := rp.Store.(auth.Pinger); ok {
		return p.Ping(ctx)
	}
	_, err := rp.Store.Principals(ctx)
	return err
}

// API is the HTTP layer of the auth service.
type API struct {
	auth       *auth.Service
	registrar  *auth.Registrar
	activity   *activity.Feed
	audit      auth.AuditSink
	readyProbe ReadyProbe
	version    string
	log        *zap.Logger

	rateBurst      int
	ratePerSec     float64
	maxBodyBytes   int64
	allowedOrigins []string
	requestTimeout time.Duration
	trustProxy     bool
	now            func() time.Time
}

// Option configures the API.
type Option func(*API)

// WithRegistrar enables the registration endpoints.
func WithRegistrar(r *auth.Registrar) Option {
	return func(a *API) { a.registrar = r }
}

// WithActivity enables the login activity endpoints.
func WithActivity(f *activity.Feed) Option {
	return func(a *API) { a.activity = f }
}

// WithAuditSink records security panel actions.
func WithAuditSink(sink auth.AuditSink) Option {
	return func(a *API) { a.audit = sink }
}

// WithRateLimit sets the per-IP token bucket for credential endpoints.
func WithRateLimit(burst int, perSec float64) Option {
	return func(a *API) {
		if burst > 0 && perSec > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSec
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

// WithAllowedOrigins lists CORS origins in addition to localhost.
func WithAllowedOrigins(origins []string) Option {
	return func(a *API) { a.allowedOrigins = origins }
}

// WithRequestTimeout bounds every non-streaming handler.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.requestTimeout = d
		}
	}
}

// WithTrustedProxy takes the client address from X-Forwarded-For and
// X-Real-IP. Enable only behind a proxy that overwrites those headers.
func WithTrustedProxy(trust bool) Option {
	return func(a *API) { a.trustProxy = trust }
}

// WithAPILogger overrides the request logger.
func WithAPILogger(l *zap.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

// New builds the API around the login service.
func New(rp ReadyProbe, version string, svc *auth.Service, opts ...Option) *API {
	a := &API{
		auth:           svc,
		readyProbe:     rp,
		version:        version,
		rateBurst:      20,
		ratePerSec:     5,
		maxBodyBytes:   1 << 20,
		requestTimeout: 15 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = obs.Logger()
	}
	return a
}

// Handler returns the routed, instrumented http.Handler.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	if a.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestID, LoggingJSON(a.log), SecurityHeaders, CORS(a.allowedOrigins), ClientInfo)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// health/ready/info
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)

	// Prometheus metrics
	r.Handle("/metrics", obs.Handler())

	// credential endpoints: body cap + per-IP rate limit + deadline
	r.Group(func(r chi.Router) {
		r.Use(MaxBodyBytes(a.maxBodyBytes), RateLimit(a.rateBurst, a.ratePerSec), Timeout(a.requestTimeout))
		for _, prefix := range []string{"", "/v1/auth"} {
			r.Post(prefix+"/login", a.handleLogin)
			r.Post(prefix+"/register", a.handleRegister)
			r.Post(prefix+"/refresh", a.handleRefresh)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)
		// long-lived, stays outside the timeout
		r.Get("/security/activity/stream", a.handleActivityStream)

		r.Group(func(r chi.Router) {
			r.Use(Timeout(a.requestTimeout))
			r.Get("/me", a.handleMe)
			r.Get("/v1/auth/me", a.handleMe)
			r.Get("/security/sessions", a.handleListSessions)
			r.Delete("/security/sessions/{id}", a.handleRevokeSession)
			r.Get("/security/activity", a.handleActivity)
			r.With(requirePermission(auth.PermAdminUsers)).Get("/v1/admin/principals", a.handleListPrincipals)
		})
	})

	return obs.Instrument(r)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		a.log.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
