package api

import (
	"time"

	"github.com/mharding/shopfront/shop"
)

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned from POST /auth/login. When MFARequired is
// true no session was established; the client must POST the TOTP code
// to /auth/verify-2fa.
type LoginResponse struct {
	MFARequired bool          `json:"mfa_required"`
	User        *UserResponse `json:"user,omitempty"`
}

// VerifyTwoFactorRequest is the JSON body for POST /auth/verify-2fa and
// POST /account/2fa/enable.
type VerifyTwoFactorRequest struct {
	Code string `json:"code"`
}

// TokenRequest is the JSON body for POST /auth/token.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

// TokenResponse is returned from POST /auth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// UserResponse is the public view of an account. Password hash and MFA
// secret never leave the server.
type UserResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	MFAEnabled bool      `json:"mfa_enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserResponse(u *shop.User) *UserResponse {
	return &UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       string(u.Role),
		IsActive:   u.IsActive,
		Phone:      u.Phone,
		Address:    u.Address,
		MFAEnabled: u.MFAEnabled,
		CreatedAt:  u.CreatedAt,
	}
}

// UpdateProfileRequest is the JSON body for PUT /account/profile.
type UpdateProfileRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// ChangePasswordRequest is the JSON body for POST /account/password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// TwoFactorSetupResponse is returned from POST /account/2fa/setup. The
// QR code is PNG bytes, base64-encoded by the JSON marshaller.
type TwoFactorSetupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
	QRPNG  []byte `json:"qr_png"`
}

// ProductResponse is the public view of a product.
type ProductResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	Image       string    `json:"image,omitempty"`
	CategoryID  string    `json:"category_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func toProductResponse(p shop.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		Image:       p.Image,
		CategoryID:  p.CategoryID,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
	}
}

// ProductListResponse is returned from GET /products.
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PerPage  int               `json:"per_page"`
}

// ProductDetailResponse is returned from GET /products/{slug}.
type ProductDetailResponse struct {
	Product ProductResponse   `json:"product"`
	Related []ProductResponse `json:"related"`
}

// ProductRequest is the JSON body for the admin product endpoints.
type ProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int    `json:"stock"`
	Image       string `json:"image,omitempty"`
	CategoryID  string `json:"category_id"`
	IsActive    bool   `json:"is_active"`
}

// CategoryRequest is the JSON body for POST /admin/categories.
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CartItemRequest is the JSON body for the cart item endpoints.
type CartItemRequest struct {
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// CartLineResponse is one cart line.
type CartLineResponse struct {
	ItemID     string          `json:"item_id"`
	Product    ProductResponse `json:"product"`
	Quantity   int             `json:"quantity"`
	TotalCents int64           `json:"total_cents"`
}

// CartResponse is returned from GET /cart.
type CartResponse struct {
	Lines      []CartLineResponse `json:"lines"`
	TotalCents int64              `json:"total_cents"`
}

// CheckoutRequest is the JSON body for POST /checkout.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	CardNumber      string `json:"card_number,omitempty"`
	CardExpiry      string `json:"card_expiry,omitempty"`
	CardCVV         string `json:"card_cvv,omitempty"`
	BankAccount     string `json:"bank_account,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// OrderResponse is the customer view of an order. Payment details are
// masked down to the last four digits of the card number.
type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          string              `json:"status"`
	TotalCents      int64               `json:"total_cents"`
	ShippingAddress string              `json:"shipping_address"`
	PaymentMethod   string              `json:"payment_method"`
	CardLastFour    string              `json:"card_last_four,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	Items           []OrderItemResponse `json:"items,omitempty"`
}

// OrderItemResponse is one order line.
type OrderItemResponse struct {
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

func toOrderResponse(o *shop.Order, items []shop.OrderItem) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		TotalCents:      o.TotalCents,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
	}
	if n := len(o.CardNumber); n >= 4 {
		resp.CardLastFour = o.CardNumber[n-4:]
	}
	for _, item := range items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
		})
	}
	return resp
}

// UpdateOrderStatusRequest is the JSON body for the admin status
// endpoint.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// SetUserActiveRequest is the JSON body for the admin activation
// endpoint.
type SetUserActiveRequest struct {
	Active bool `json:"active"`
}
