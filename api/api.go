// Package api exposes the storefront over HTTP: a JSON API with
// session-cookie authentication for browsers and JWT bearer tokens for
// machine clients.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/mharding/shopfront/mfa"
	"github.com/mharding/shopfront/session"
	"github.com/mharding/shopfront/shop"
)

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the REST handlers.
type API struct {
	store          *shop.Store
	sessions       session.Store
	monitor        *session.Monitor
	mfa            *mfa.Manager
	logger         *slog.Logger
	limiter        *loginRateLimiter
	ipLimiter      *ipRateLimiter
	jwtSecret      []byte
	jwtTTL         time.Duration
	trustedProxies []netip.Prefix
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger. If not set, a JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithSessionStore replaces the default in-memory session store.
func WithSessionStore(s session.Store) Option {
	return func(a *API) { a.sessions = s }
}

// WithSessionMonitor replaces the default monitor (30 minute idle,
// 24 hour absolute timeouts).
func WithSessionMonitor(m *session.Monitor) Option {
	return func(a *API) { a.monitor = m }
}

// WithJWT enables the machine-token endpoint and bearer authentication.
func WithJWT(secret []byte, ttl time.Duration) Option {
	return func(a *API) {
		a.jwtSecret = secret
		a.jwtTTL = ttl
	}
}

// WithTrustedProxies sets the CIDR ranges whose proxy headers
// (X-Forwarded-For and friends) are honored when resolving client IPs.
// Empty means proxy headers are never trusted.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) { a.trustedProxies = prefixes }
}

// New creates the API.
func New(store *shop.Store, manager *mfa.Manager, opts ...Option) *API {
	a := &API{
		store:     store,
		mfa:       manager,
		limiter:   newLoginRateLimiter(),
		ipLimiter: newIPRateLimiter(),
		jwtTTL:    time.Hour,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if a.sessions == nil {
		a.sessions = session.NewMemoryStore()
	}
	if a.monitor == nil {
		a.monitor = session.NewMonitor(0, 0)
	}
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(SecurityHeaders)
	r.Use(a.CSRFMiddleware)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))
	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth/register", a.Register)
	r.Post("/auth/login", a.Login)
	r.Post("/auth/verify-2fa", a.VerifyTwoFactorLogin)
	r.Post("/auth/logout", a.Logout)
	if a.jwtSecret != nil {
		r.Post("/auth/token", a.IssueToken)
	}

	// Public catalog.
	r.Get("/categories", a.ListCategories)
	r.Get("/products", a.ListProducts)
	r.Get("/products/{slug}", a.GetProduct)

	// Account routes.
	r.Route("/account", func(r chi.Router) {
		r.Use(a.SessionMiddleware)
		r.Get("/profile", a.GetProfile)
		r.Put("/profile", a.UpdateProfile)
		r.Post("/password", a.ChangePassword)
		r.Post("/2fa/setup", a.SetupTwoFactor)
		r.Post("/2fa/enable", a.EnableTwoFactor)
		r.Post("/2fa/disable", a.DisableTwoFactor)
	})

	// Cart, checkout, orders.
	r.Route("/cart", func(r chi.Router) {
		r.Use(a.SessionMiddleware)
		r.Get("/", a.GetCart)
		r.Post("/items", a.AddCartItem)
		r.Put("/items/{itemID}", a.UpdateCartItem)
		r.Delete("/items/{itemID}", a.RemoveCartItem)
	})
	r.With(a.SessionMiddleware).Post("/checkout", a.Checkout)
	r.With(a.SessionMiddleware).Get("/orders", a.ListOrders)
	r.With(a.SessionMiddleware).Get("/orders/{orderID}", a.GetOrder)

	// Back office.
	r.Route("/admin", func(r chi.Router) {
		r.Use(a.SessionMiddleware, a.RequireAdmin)
		r.Get("/dashboard", a.Dashboard)
		r.Post("/categories", a.CreateCategory)
		r.Delete("/categories/{categoryID}", a.DeleteCategory)
		r.Get("/products", a.AdminListProducts)
		r.Post("/products", a.CreateProduct)
		r.Put("/products/{productID}", a.UpdateProduct)
		r.Delete("/products/{productID}", a.DeleteProduct)
		r.Get("/orders", a.AdminListOrders)
		r.Put("/orders/{orderID}/status", a.UpdateOrderStatus)
		r.Get("/users", a.ListUsers)
		r.Put("/users/{userID}/active", a.SetUserActive)
		r.Delete("/users/{userID}", a.DeleteUser)
		r.Get("/audit", a.ListAuditTrail)
	})

	return r
}
