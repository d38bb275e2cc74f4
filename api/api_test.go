package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mharding/shopfront/audit"
	"github.com/mharding/shopfront/crypto"
	"github.com/mharding/shopfront/mfa"
	"github.com/mharding/shopfront/session"
	"github.com/mharding/shopfront/shop"
	"github.com/mharding/shopfront/storage/memory"
)

func newTestStore(t *testing.T) *shop.Store {
	t.Helper()
	encoded, err := crypto.NewEncodedKey()
	require.NoError(t, err)
	cipher, err := crypto.NewFieldCipher(encoded)
	require.NoError(t, err)
	t.Cleanup(cipher.Destroy)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return shop.NewStore(memory.NewRepository(), crypto.NewFieldCodec(cipher), audit.NewRecorder(logger), logger)
}

func newTestAPI(t *testing.T, opts ...Option) (*API, *shop.Store, *session.MemoryStore) {
	t.Helper()
	store := newTestStore(t)
	sessions := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithLogger(logger), WithSessionStore(sessions)}, opts...)
	a := New(store, mfa.NewManager("Shopfront Test"), opts...)
	return a, store, sessions
}

// client drives the router the way a browser would: it keeps cookies
// between requests and echoes the CSRF cookie as a header on mutating
// requests.
type client struct {
	t       *testing.T
	handler http.Handler
	prefix  string
	cookies map[string]*http.Cookie
	remote  string
	bearer  string
}

func newClient(t *testing.T, a *API) *client {
	return &client{
		t:       t,
		handler: a.Router(),
		cookies: make(map[string]*http.Cookie),
		remote:  "203.0.113.10:40000",
	}
}

// newMountedClient serves the API the way the server command does, with
// the router mounted under /api/v1.
func newMountedClient(t *testing.T, a *API) *client {
	root := chi.NewRouter()
	root.Mount("/api/v1", a.Router())
	return &client{
		t:       t,
		handler: root,
		prefix:  "/api/v1",
		cookies: make(map[string]*http.Cookie),
		remote:  "203.0.113.10:40000",
	}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, "http://shop.test"+c.prefix+path, reader)
	req.RemoteAddr = c.remote
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if method != http.MethodGet && method != http.MethodHead {
		if csrf, ok := c.cookies[csrfCookieName]; ok {
			req.Header.Set(csrfHeaderName, csrf.Value)
		}
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Value == "" || cookie.MaxAge < 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie
	}
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func registerAndLogin(t *testing.T, c *client, email string) *UserResponse {
	t.Helper()
	rec := c.do(http.MethodPost, "/auth/register", RegisterRequest{
		Email:    email,
		Username: strings.Split(email, "@")[0],
		Password: "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: "correct horse battery"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[LoginResponse](t, rec)
	require.False(t, resp.MFARequired)
	require.NotNil(t, resp.User)
	return resp.User
}

func seedProduct(t *testing.T, store *shop.Store) *shop.Product {
	t.Helper()
	ctx := context.Background()
	cat, err := store.CreateCategory(ctx, "Electronics", "Electronic devices and gadgets")
	require.NoError(t, err)
	product, err := store.CreateProduct(ctx, shop.ProductInput{
		Name:       "Laptop Computer",
		PriceCents: 99999,
		Stock:      10,
		CategoryID: cat.ID,
		IsActive:   true,
	})
	require.NoError(t, err)
	return product
}

func TestRegisterLoginAndProfile(t *testing.T) {
	a, _, _ := newTestAPI(t)
	c := newClient(t, a)

	user := registerAndLogin(t, c, "alice@example.com")
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Contains(t, c.cookies, sessionCookieName)
	assert.Contains(t, c.cookies, csrfCookieName)

	rec := c.do(http.MethodGet, "/account/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[UserResponse](t, rec)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, "customer", profile.Role)

	rec = c.do(http.MethodPut, "/account/profile", UpdateProfileRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Address:  "123 Main St, City, State 12345",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/account/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile = decodeBody[UserResponse](t, rec)
	assert.Equal(t, "123 Main St, City, State 12345", profile.Address)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a, _, _ := newTestAPI(t)
	c := newClient(t, a)

	rec := c.do(http.MethodPost, "/auth/register", RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = c.do(http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, c.cookies, sessionCookieName)

	rec = c.do(http.MethodGet, "/account/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionIdleTimeout(t *testing.T) {
	a, _, sessions := newTestAPI(t)
	c := newClient(t, a)
	registerAndLogin(t, c, "alice@example.com")

	token := c.cookies[sessionCookieName].Value
	sess, ok := sessions.Get(token)
	require.True(t, ok)
	sess.Security.LastActivity = time.Now().UTC().Add(-31 * time.Minute)
	sessions.Put(token, sess)

	rec := c.do(http.MethodGet, "/account/profile", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired_inactivity")

	// The record is cleared completely, not flagged.
	_, ok = sessions.Get(token)
	assert.False(t, ok)
	assert.NotContains(t, c.cookies, sessionCookieName)

	rec = c.do(http.MethodGet, "/account/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionAbsoluteTimeout(t *testing.T) {
	a, _, sessions := newTestAPI(t)
	c := newClient(t, a)
	registerAndLogin(t, c, "alice@example.com")

	token := c.cookies[sessionCookieName].Value
	sess, ok := sessions.Get(token)
	require.True(t, ok)
	sess.Security.LoginAt = time.Now().UTC().Add(-25 * time.Hour)
	sess.Security.LastActivity = time.Now().UTC()
	sessions.Put(token, sess)

	rec := c.do(http.MethodGet, "/account/profile", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired_absolute")
	_, ok = sessions.Get(token)
	assert.False(t, ok)
}

func TestSessionBoundToLoginIP(t *testing.T) {
	a, _, sessions := newTestAPI(t)
	c := newClient(t, a)
	registerAndLogin(t, c, "alice@example.com")
	token := c.cookies[sessionCookieName].Value

	c.remote = "198.51.100.7:40000"
	rec := c.do(http.MethodGet, "/account/profile", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "ip_mismatch")
	_, ok := sessions.Get(token)
	assert.False(t, ok)
}

func TestUntrustedProxyHeadersIgnored(t *testing.T) {
	a, _, _ := newTestAPI(t)
	c := newClient(t, a)
	registerAndLogin(t, c, "alice@example.com")

	// A spoofed X-Forwarded-For from an untrusted peer must not move the
	// observed client IP, so the session stays valid.
	req := httptest.NewRequest(http.MethodGet, "http://shop.test/account/profile", nil)
	req.RemoteAddr = c.remote
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTwoFactorLoginFlow(t *testing.T) {
	a, _, _ := newTestAPI(t)
	c := newClient(t, a)
	registerAndLogin(t, c, "alice@example.com")

	// Enroll: stage the secret, then confirm with a current code.
	rec := c.do(http.MethodPost, "/account/2fa/setup", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	setup := decodeBody[TwoFactorSetupResponse](t, rec)
	require.NotEmpty(t, setup.Secret)
	require.NotEmpty(t, setup.QRPNG)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = c.do(http.MethodPost, "/account/2fa/enable", VerifyTwoFactorRequest{Code: code})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// First factor alone must not establish a session.
	rec = c.do(http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: "correct horse battery"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[LoginResponse](t, rec)
	require.True(t, resp.MFARequired)
	require.Nil(t, resp.User)

	rec = c.do(http.MethodGet, "/account/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A wrong code fails but keeps the staged login for retry.
	rec = c.do(http.MethodPost, "/auth/verify-2fa", VerifyTwoFactorRequest{Code: "000000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	code, err = totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = c.do(http.MethodPost, "/auth/verify-2fa", VerifyTwoFactorRequest{Code: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/account/profile", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[UserResponse](t, rec)
	assert.True(t, profile.MFAEnabled)
}

func TestTwoFactorLoginFlowUnderMount(t *testing.T) {
	a, _, _ := newTestAPI(t)
	c := newMountedClient(t, a)
	registerAndLogin(t, c, "alice@example.com")

	rec := c.do(http.MethodPost, "/account/2fa/setup", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	setup := decodeBody[TwoFactorSetupResponse](t, rec)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = c.do(http.MethodPost, "/account/2fa/enable", VerifyTwoFactorRequest{Code: code})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do(http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: "correct horse battery"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[LoginResponse](t, rec)
	require.True(t, resp.MFARequired)

	// The staged session cookie is set but no CSRF cookie exists yet;
	// the second factor must still go through under the mount prefix.
	require.Contains(t, c.cookies, sessionCookieName)
	require.NotContains(t, c.cookies, csrfCookieName)
	code, err = totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = c.do(http.MethodPost, "/auth/verify-2fa", VerifyTwoFactorRequest{Code: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/account/profile", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTwoFactorEnableRejectsWrongCode(t *testing.T) {
	a, _, _ := newTestAPI(t)
	c := newClient(t, a)
	registerAndLogin(t, c, "alice@example.com")

	rec := c.do(http.MethodPost, "/account/2fa/setup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	setup := decodeBody[TwoFactorSetupResponse](t, rec)

	rec = c.do(http.MethodPost, "/account/2fa/enable", VerifyTwoFactorRequest{Code: "000000"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodGet, "/account/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[UserResponse](t, rec)
	assert.False(t, profile.MFAEnabled)

	// The staged secret survives the failure, so a correct code still
	// completes enrollment.
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = c.do(http.MethodPost, "/account/2fa/enable", VerifyTwoFactorRequest{Code: code})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCartAndCheckout(t *testing.T) {
	a, store, _ := newTestAPI(t)
	product := seedProduct(t, store)
	c := newClient(t, a)
	registerAndLogin(t, c, "alice@example.com")

	rec := c.do(http.MethodPost, "/cart/items", CartItemRequest{ProductID: product.ID, Quantity: 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeBody[CartResponse](t, rec)
	require.Len(t, cart.Lines, 1)
	assert.EqualValues(t, 3*99999, cart.TotalCents)

	rec = c.do(http.MethodPost, "/checkout", CheckoutRequest{
		ShippingAddress: "123 Main St, City, State 12345",
		PaymentMethod:   "credit_card",
		CardNumber:      "4111 1111 1111 1111",
		CardExpiry:      "12/27",
		CardCVV:         "123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody[OrderResponse](t, rec)
	assert.Equal(t, "pending", order.Status)
	assert.EqualValues(t, 3*99999, order.TotalCents)
	assert.Equal(t, "1111", order.CardLastFour)
	assert.NotContains(t, rec.Body.String(), "4111111111111111")
	require.Len(t, order.Items, 1)
	assert.EqualValues(t, 99999, order.Items[0].PriceCents)

	// Cart is empty and stock was decremented.
	rec = c.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decodeBody[CartResponse](t, rec)
	assert.Empty(t, cart.Lines)

	rec = c.do(http.MethodGet, "/products/laptop-computer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[ProductDetailResponse](t, rec)
	assert.Equal(t, 7, detail.Product.Stock)

	rec = c.do(http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeBody[map[string][]OrderResponse](t, rec)
	require.Len(t, orders["orders"], 1)
	assert.Equal(t, order.OrderNumber, orders["orders"][0].OrderNumber)
}

func TestCheckoutDeclinedCard(t *testing.T) {
	a, store, _ := newTestAPI(t)
	product := seedProduct(t, store)
	c := newClient(t, a)
	registerAndLogin(t, c, "alice@example.com")

	rec := c.do(http.MethodPost, "/cart/items", CartItemRequest{ProductID: product.ID, Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = c.do(http.MethodPost, "/checkout", CheckoutRequest{
		ShippingAddress: "123 Main St",
		PaymentMethod:   "credit_card",
		CardNumber:      "0000000000000000",
		CardExpiry:      "12/27",
		CardCVV:         "123",
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	// Nothing committed: the cart still holds the line.
	rec = c.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeBody[CartResponse](t, rec)
	assert.Len(t, cart.Lines, 1)
}

func TestOrderOwnership(t *testing.T) {
	a, store, _ := newTestAPI(t)
	product := seedProduct(t, store)

	alice := newClient(t, a)
	registerAndLogin(t, alice, "alice@example.com")
	rec := alice.do(http.MethodPost, "/cart/items", CartItemRequest{ProductID: product.ID, Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = alice.do(http.MethodPost, "/checkout", CheckoutRequest{
		ShippingAddress: "123 Main St", PaymentMethod: "cash_on_delivery",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decodeBody[OrderResponse](t, rec)

	bob := newClient(t, a)
	registerAndLogin(t, bob, "bob@example.com")
	rec = bob.do(http.MethodGet, "/orders/"+order.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminGate(t *testing.T) {
	a, store, _ := newTestAPI(t)
	c := newClient(t, a)
	user := registerAndLogin(t, c, "alice@example.com")

	rec := c.do(http.MethodGet, "/admin/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, store.SetUserRole(context.Background(), user.ID, shop.RoleAdmin))

	rec = c.do(http.MethodGet, "/admin/dashboard", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodPost, "/admin/categories", CategoryRequest{Name: "Books"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cat := decodeBody[shop.Category](t, rec)

	rec = c.do(http.MethodPost, "/admin/products", ProductRequest{
		Name: "Paperback", PriceCents: 1499, Stock: 5, CategoryID: cat.ID, IsActive: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody[ProductListResponse](t, rec)
	assert.Equal(t, 1, listing.Total)
}

func TestDeactivatedUserLosesSession(t *testing.T) {
	a, store, _ := newTestAPI(t)
	c := newClient(t, a)
	user := registerAndLogin(t, c, "alice@example.com")

	require.NoError(t, store.SetUserActive(context.Background(), user.ID, false))

	rec := c.do(http.MethodGet, "/account/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCSRFRequiredForCookieSessions(t *testing.T) {
	a, store, _ := newTestAPI(t)
	product := seedProduct(t, store)
	c := newClient(t, a)
	registerAndLogin(t, c, "alice@example.com")

	// A mutating request carrying the session cookie but no CSRF header
	// is rejected before it reaches the handler.
	raw, err := json.Marshal(CartItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "http://shop.test/cart/items", bytes.NewReader(raw))
	req.RemoteAddr = c.remote
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// With the double-submit header the same request goes through.
	recOK := c.do(http.MethodPost, "/cart/items", CartItemRequest{ProductID: product.ID, Quantity: 1})
	assert.Equal(t, http.StatusCreated, recOK.Code)
}

func TestLoginRateLimiting(t *testing.T) {
	a, _, _ := newTestAPI(t)
	c := newClient(t, a)
	rec := c.do(http.MethodPost, "/auth/register", RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	for i := 0; i < 5; i++ {
		rec = c.do(http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec = c.do(http.MethodPost, "/auth/login", LoginRequest{Email: "alice@example.com", Password: "correct horse battery"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestBearerTokens(t *testing.T) {
	a, _, _ := newTestAPI(t, WithJWT([]byte("0123456789abcdef0123456789abcdef"), time.Hour))
	c := newClient(t, a)
	rec := c.do(http.MethodPost, "/auth/register", RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = c.do(http.MethodPost, "/auth/token", TokenRequest{
		Email: "alice@example.com", Password: "correct horse battery",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decodeBody[TokenResponse](t, rec)
	require.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)

	machine := newClient(t, a)
	machine.bearer = tok.AccessToken
	rec = machine.do(http.MethodGet, "/account/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decodeBody[UserResponse](t, rec)
	assert.Equal(t, "alice", profile.Username)

	machine.bearer = "not-a-token"
	rec = machine.do(http.MethodGet, "/account/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpenAPISpecServed(t *testing.T) {
	a, _, _ := newTestAPI(t)
	c := newClient(t, a)
	rec := c.do(http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Shopfront API")
}
