package shop

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mharding/shopfront/audit"
	"github.com/mharding/shopfront/mfa"
)

func TestAddToCartMergesQuantities(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	_, product := seedCatalog(t, s)
	ctx := context.Background()

	_, err := s.AddToCart(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)

	lines, total, err := s.CartContents(user.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1, "same product merges into one line")
	assert.Equal(t, 5, lines[0].Item.Quantity)
	assert.Equal(t, int64(5*99999), total)
}

func TestAddToCartStockLimits(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	_, product := seedCatalog(t, s) // stock 10
	ctx := context.Background()

	_, err := s.AddToCart(ctx, user.ID, product.ID, 11)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = s.AddToCart(ctx, user.ID, product.ID, 8)
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, user.ID, product.ID, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock, "merged quantity above stock is rejected")
}

func TestUpdateCartItemBelowOneRemoves(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	_, product := seedCatalog(t, s)
	ctx := context.Background()

	item, err := s.AddToCart(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)

	require.NoError(t, s.UpdateCartItem(ctx, user.ID, item.ID, 0))

	lines, _, err := s.CartContents(user.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCartOwnershipEnforced(t *testing.T) {
	s := newTestStore(t)
	alice := registerTestUser(t, s, "alice@example.com")
	bob := registerTestUser(t, s, "bob@example.com")
	_, product := seedCatalog(t, s)
	ctx := context.Background()

	item, err := s.AddToCart(ctx, alice.ID, product.ID, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdateCartItem(ctx, bob.ID, item.ID, 5), ErrForbidden)
	assert.ErrorIs(t, s.RemoveFromCart(ctx, bob.ID, item.ID), ErrForbidden)
}

func TestCheckout(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	_, product := seedCatalog(t, s)
	ctx := audit.WithActor(context.Background(), user.ID, "203.0.113.7")

	_, err := s.AddToCart(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)

	order, err := s.Checkout(ctx, user.ID, CheckoutInput{
		ShippingAddress: "123 Main St, Springfield",
		PaymentMethod:   PaymentCreditCard,
		CardNumber:      "4111 1111 1111 1111",
		CardExpiry:      "12/28",
		CardCVV:         "123",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, int64(3*99999), order.TotalCents)
	assert.Contains(t, order.OrderNumber, "ORD-")

	// Price and quantity are snapshotted per line.
	items, err := s.OrderItems(order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, int64(99999), items[0].PriceCents)

	// Stock is decremented and the cart cleared.
	reloaded, err := s.GetProduct(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.Stock)
	lines, _, err := s.CartContents(user.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	// Payment details come back as plaintext through the store but are
	// opaque at rest.
	got, err := s.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", got.CardNumber)
	raw, err := s.repo.Get(recordTypeOrder, order.ID)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "4111111111111111")
	assert.NotContains(t, string(raw), "123 Main St")

	// The order insert is audited with the actor attributed.
	entries := auditEntriesFor(t, s, "Order", order.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionInsert, entries[0].Action)
	assert.Equal(t, user.ID, entries[0].UserID)
}

func TestCheckoutDeclinedCard(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	_, product := seedCatalog(t, s)
	ctx := context.Background()

	_, err := s.AddToCart(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)

	_, err = s.Checkout(ctx, user.ID, CheckoutInput{
		ShippingAddress: "123 Main St",
		PaymentMethod:   PaymentCreditCard,
		CardNumber:      "0000 0000 0000 0000",
		CardExpiry:      "12/28",
		CardCVV:         "123",
	})
	assert.ErrorIs(t, err, ErrPaymentDeclined)

	// Nothing committed: stock and cart are untouched.
	reloaded, err := s.GetProduct(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.Stock)
	lines, _, err := s.CartContents(user.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestCheckoutValidation(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	_, product := seedCatalog(t, s)
	ctx := context.Background()

	_, err := s.Checkout(ctx, user.ID, CheckoutInput{
		ShippingAddress: "123 Main St",
		PaymentMethod:   PaymentCashOnDelivery,
	})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = s.AddToCart(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)

	_, err = s.Checkout(ctx, user.ID, CheckoutInput{
		ShippingAddress: "123 Main St",
		PaymentMethod:   PaymentCreditCard,
		CardNumber:      "4111111111111111",
	})
	assert.ErrorIs(t, err, ErrCardRequired)

	_, err = s.Checkout(ctx, user.ID, CheckoutInput{
		ShippingAddress: "123 Main St",
		PaymentMethod:   PaymentBankTransfer,
	})
	assert.ErrorIs(t, err, ErrBankRequired)
}

func TestUpdateOrderStatus(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	_, product := seedCatalog(t, s)
	ctx := context.Background()

	_, err := s.AddToCart(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)
	order, err := s.Checkout(ctx, user.ID, CheckoutInput{
		ShippingAddress: "123 Main St",
		PaymentMethod:   PaymentCashOnDelivery,
	})
	require.NoError(t, err)

	_, err = s.UpdateOrderStatus(ctx, order.ID, OrderStatus("teleported"))
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)

	updated, err := s.UpdateOrderStatus(ctx, order.ID, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, updated.Status)

	entries := auditEntriesFor(t, s, "Order", order.ID)
	update := entryWithAction(t, entries, audit.ActionUpdate)
	assert.NotNil(t, update.Details)
}

func TestDeleteUserCascades(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	_, product := seedCatalog(t, s)
	ctx := context.Background()

	_, err := s.AddToCart(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)
	order, err := s.Checkout(ctx, user.ID, CheckoutInput{
		ShippingAddress: "123 Main St",
		PaymentMethod:   PaymentCashOnDelivery,
	})
	require.NoError(t, err)
	_, err = s.AddToCart(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, user.ID))

	_, err = s.GetUser(user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetOrder(order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	items, err := s.OrderItems(order.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	lines, _, err := s.CartContents(user.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	// Both the order and the user deletions are audited.
	assert.NotEmpty(t, auditEntriesFor(t, s, "User", user.ID))
	assert.Len(t, auditEntriesFor(t, s, "Order", order.ID), 2) // insert + delete
}

func TestMFAEnrollmentConfirmation(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	manager := mfa.NewManager("Shopfront")
	ctx := context.Background()

	enr, err := s.BeginMFAEnrollment(manager, user.ID)
	require.NoError(t, err)

	// A wrong code leaves the account untouched so the staged secret can
	// be retried.
	err = s.ConfirmMFAEnrollment(ctx, manager, user.ID, enr.Secret, "000000")
	assert.ErrorIs(t, err, ErrMFACodeInvalid)
	got, err := s.GetUser(user.ID)
	require.NoError(t, err)
	assert.False(t, got.MFAEnabled)
	assert.Empty(t, got.MFASecret)

	code, err := totp.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.ConfirmMFAEnrollment(ctx, manager, user.ID, enr.Secret, code))

	got, err = s.GetUser(user.ID)
	require.NoError(t, err)
	assert.True(t, got.MFAEnabled)
	assert.Equal(t, enr.Secret, got.MFASecret)

	_, err = s.BeginMFAEnrollment(manager, user.ID)
	assert.ErrorIs(t, err, ErrMFAAlreadyEnabled)
}

func TestMFALoginGate(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	manager := mfa.NewManager("Shopfront")
	ctx := context.Background()

	enr, err := s.BeginMFAEnrollment(manager, user.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.ConfirmMFAEnrollment(ctx, manager, user.ID, enr.Secret, code))

	// Password alone is not enough once MFA is on.
	got, err := s.Authenticate("alice@example.com", "correct horse battery")
	assert.ErrorIs(t, err, ErrMFARequired)
	require.NotNil(t, got)

	_, err = s.VerifyMFALogin(manager, got.ID, "000000")
	assert.ErrorIs(t, err, ErrMFACodeInvalid)

	code, err = totp.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	verified, err := s.VerifyMFALogin(manager, got.ID, code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
}

func TestDisableMFAWithoutReverification(t *testing.T) {
	s := newTestStore(t)
	user := registerTestUser(t, s, "alice@example.com")
	manager := mfa.NewManager("Shopfront")
	ctx := context.Background()

	enr, err := s.BeginMFAEnrollment(manager, user.ID)
	require.NoError(t, err)
	code, err := totp.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.ConfirmMFAEnrollment(ctx, manager, user.ID, enr.Secret, code))

	require.NoError(t, s.DisableMFA(ctx, user.ID))

	got, err := s.GetUser(user.ID)
	require.NoError(t, err)
	assert.False(t, got.MFAEnabled)
	assert.Empty(t, got.MFASecret)

	// Login goes straight through again.
	_, err = s.Authenticate("alice@example.com", "correct horse battery")
	assert.NoError(t, err)
}

func TestDashboardAndSearch(t *testing.T) {
	s := newTestStore(t)
	registerTestUser(t, s, "alice@example.com")
	cat, _ := seedCatalog(t, s)
	ctx := context.Background()

	_, err := s.CreateProduct(ctx, ProductInput{
		Name: "Wireless Mouse", Description: "Ergonomic wireless mouse.",
		PriceCents: 2999, Stock: 50, CategoryID: cat.ID, IsActive: true,
	})
	require.NoError(t, err)
	_, err = s.CreateProduct(ctx, ProductInput{
		Name: "Discontinued Gadget", Description: "No longer sold.",
		PriceCents: 999, Stock: 0, CategoryID: cat.ID, IsActive: false,
	})
	require.NoError(t, err)

	page, err := s.SearchProducts(ProductFilter{Search: "mouse"}, Page{Number: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Wireless Mouse", page.Items[0].Name)

	page, err = s.SearchProducts(ProductFilter{}, Page{Number: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2, "inactive products are hidden from the storefront")

	page, err = s.SearchProducts(ProductFilter{IncludeInactive: true}, Page{Number: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)

	stats, err := s.Dashboard()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalProducts)
	assert.Equal(t, 2, stats.ActiveProducts)
	assert.Equal(t, 1, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalCategories)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "laptop-computer", Slugify("Laptop Computer"))
	assert.Equal(t, "home-garden", Slugify("Home & Garden"))
	assert.Equal(t, "usb-c-cable", Slugify("USB-C Cable"))
}
