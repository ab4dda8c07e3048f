package web

import (
	"log/slog"
	"net/http"
	"net/http/httputil"

	"estate/internal/discovery"

	"github.com/gin-gonic/gin"
)

// ProxyHandler forwards API calls to the marketplace API
type ProxyHandler struct {
	resolver discovery.Resolver
}

// NewProxyHandler creates a proxy resolving the marketplace through resolver
func NewProxyHandler(resolver discovery.Resolver) *ProxyHandler {
	return &ProxyHandler{resolver: resolver}
}

// Forward proxies the request unchanged apart from identity headers, which
// are only set for signed-in visitors.
func (h *ProxyHandler) Forward(c *gin.Context) {
	target, err := h.resolver.Resolve()
	if err != nil {
		slog.Error("Failed to resolve marketplace api",
			"error", err,
			"request_id", c.GetString("request_id"),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "marketplace api unavailable"})
		return
	}
	c.Set("upstream", target.Host)

	user := CurrentUser(c)

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("Proxy error",
			"upstream", target.Host,
			"path", r.URL.Path,
			"error", err,
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"bad gateway"}`))
	}

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = target.Host

		// The browser's cookies belong to this service, not the marketplace
		req.Header.Del("Cookie")
		req.Header.Del("X-User-ID")
		req.Header.Del("X-User-Email")
		req.Header.Del("X-User-Role")
		if user != nil {
			req.Header.Set("X-User-ID", string(user.ID))
			req.Header.Set("X-User-Email", user.Email)
			req.Header.Set("X-User-Role", string(user.Role))
		}
	}

	proxy.ServeHTTP(c.Writer, c.Request)
}
