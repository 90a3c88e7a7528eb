// Package www serves the order lifecycle HTTP surface and the operator API.
package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
	limiter  *ipRateLimiter
}

// NewRouter builds the HTTP handler. The returned func stops background
// goroutines owned by the router.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	webCfg := eng.AppConfig().Web
	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(webCfg.SessionSecret),
		eventHub: hub,
		limiter:  newIPRateLimiter(webCfg.RateLimitRPS, webCfg.RateLimitBurst),
	}

	h.ensureDefaultAdmin(eng.DB())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleHome)

	// Order lifecycle
	r.Group(func(r chi.Router) {
		r.Use(h.limiter.middleware)
		r.Post("/createOrder", h.handleCreateOrder)
		r.Post("/depositFunds", h.handleDepositFunds)
		r.Post("/markShipped", h.handleMarkShipped)
		r.Post("/confirmDelivery", h.handleConfirmDelivery)
	})
	r.Get("/getOrder/{orderId:[0-9]+}", h.handleGetOrder)

	// SSE
	r.Get("/events", hub.SSEHandler)

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/api/health", h.apiHealthCheck)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/api/transactions", h.apiListTransactions)
		r.Get("/api/transactions/{ref}", h.apiGetTransaction)
		r.Get("/api/orders/{orderId:[0-9]+}/transactions", h.apiOrderTransactions)
		r.Get("/api/audit", h.apiListAudit)
		r.Get("/api/me", h.apiCurrentUser)
	})

	stopFn := func() {
		hub.Stop()
		h.limiter.Stop()
	}

	return r, stopFn
}

func (h *Handlers) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<h2>Automated Supply Payment Backend is Running</h2>"))
}
