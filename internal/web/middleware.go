package web

import (
	"log/slog"
	"net/http"
	"time"

	"estate/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ClientCookieName identifies the browser across requests
	ClientCookieName   = "client_id"
	clientCookieMaxAge = 365 * 24 * 60 * 60

	storeContextKey = "session_store"
)

// ClientSessionConfig configures ClientSessionMiddleware
type ClientSessionConfig struct {
	Backend       session.Backend
	SnapshotTTL   time.Duration
	SecureCookies bool
	Observers     []session.Observer
}

// ClientSessionMiddleware identifies the browser by its client cookie and
// loads its session store, issuing a new client id when none is presented.
func ClientSessionMiddleware(cfg ClientSessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := c.Cookie(ClientCookieName)
		if err != nil || !validClientID(clientID) {
			clientID = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ClientCookieName, clientID, clientCookieMaxAge, "/", "", cfg.SecureCookies, true)
		}

		store := session.New(cfg.Backend, clientID,
			session.WithTTL(cfg.SnapshotTTL),
			session.WithLogger(slog.Default()),
		)
		for _, obs := range cfg.Observers {
			store.Subscribe(obs)
		}
		store.Initialize(c.Request.Context())

		c.Set(storeContextKey, store)
		c.Set("client_id", clientID)
		if u, ok := store.Current(); ok {
			c.Set("user_id", string(u.ID))
			c.Set("email", u.Email)
		}

		c.Next()
	}
}

// validClientID rejects anything but a UUID so cookie values never shape
// backend keys
func validClientID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// StoreFrom returns the session store loaded by ClientSessionMiddleware
func StoreFrom(c *gin.Context) *session.Store {
	v, ok := c.Get(storeContextKey)
	if !ok {
		return nil
	}
	store, _ := v.(*session.Store)
	return store
}

// CurrentUser returns the active session of the request, or nil. It is the
// guard.Lookup used by every protected route.
func CurrentUser(c *gin.Context) *session.User {
	store := StoreFrom(c)
	if store == nil {
		return nil
	}
	u, ok := store.Current()
	if !ok {
		return nil
	}
	return &u
}

// RequestIDMiddleware generates a unique request ID for log correlation
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// LoggingMiddleware logs every request with structured attributes
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", float64(time.Since(start).Milliseconds()),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"response_size", c.Writer.Size(),
		}

		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}
		if clientID := c.GetString("client_id"); clientID != "" {
			attrs = append(attrs, "client_id", clientID)
		}
		if userID, exists := c.Get("user_id"); exists {
			attrs = append(attrs, "user_id", userID)
		}
		if upstream, exists := c.Get("upstream"); exists {
			attrs = append(attrs, "upstream", upstream)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.Error("Request failed - server error", attrs...)
		case status >= 400:
			slog.Warn("Request failed - client error", attrs...)
		default:
			slog.Info("Request completed", attrs...)
		}
	}
}
