// Package web is the HTTP surface of the marketplace front end: page
// descriptors gated by the route guard, session actions and a guarded proxy
// to the marketplace API.
package web

import (
	"net/http"
	"time"

	"estate/internal/guard"
	"estate/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators SetupRouter wires together
type Deps struct {
	Backend     session.Backend
	Market      MarketAPI
	Proxy       *ProxyHandler
	SnapshotTTL time.Duration

	SecureCookies  bool
	AllowedOrigins []string

	// SessionObservers are subscribed to every request's session store
	SessionObservers []session.Observer
	DecisionObserver guard.DecisionObserver
	MetricsHandler   http.Handler
}

// SetupRouter configures and returns the web router
func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := NewHandler(deps.Market)

	r.GET("/health", h.Health)
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	app := r.Group("/")
	app.Use(ClientSessionMiddleware(ClientSessionConfig{
		Backend:       deps.Backend,
		SnapshotTTL:   deps.SnapshotTTL,
		SecureCookies: deps.SecureCookies,
		Observers:     deps.SessionObservers,
	}))

	requirePage := func(roles ...session.Role) gin.HandlerFunc {
		return guard.Middleware(CurrentUser, guard.Require(roles...), guard.WithObserver(deps.DecisionObserver))
	}
	requireAPI := func(roles ...session.Role) gin.HandlerFunc {
		return guard.Middleware(CurrentUser, guard.Require(roles...), guard.AsAPI(), guard.WithObserver(deps.DecisionObserver))
	}

	for _, p := range pages {
		if len(p.Roles) == 0 {
			app.GET(p.Path, h.Page(p.View))
			continue
		}
		app.GET(p.Path, requirePage(p.Roles...), h.Page(p.View))
	}

	app.GET("/session", h.Session)
	app.GET("/nav", h.Nav)
	app.POST("/login", h.Login)
	app.POST("/signup", h.Signup)
	app.POST("/logout", h.Logout)
	app.POST("/switch-role", requireAPI(buyerOrSeller...), h.SwitchRole)

	forward := marketplaceUnavailable
	if deps.Proxy != nil {
		forward = deps.Proxy.Forward
	}

	api := newAPIDispatcher(apiRoutes(h), forward, guard.AsAPI(), guard.WithObserver(deps.DecisionObserver))
	app.Any("/api/*path", api.Serve)
	app.Any("/admin/*path", requireAPI(adminOnly...), forward)
	app.POST("/predict", requireAPI(buyerOrSeller...), forward)
	app.POST("/properties", requireAPI(sellerOnly...), forward)
	app.GET("/uploads/*file", forward)

	r.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusFound, guard.HomePath)
	})

	return r
}

func marketplaceUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "marketplace api unavailable"})
}
