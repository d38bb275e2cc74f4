// Package shop holds the storefront domain: accounts, catalog, cart,
// and orders, persisted through the storage layer with protected fields
// encrypted at rest and mutations to critical entities audited.
package shop

import "time"

// Record types used as storage namespaces.
const (
	recordTypeUser      = "USER"
	recordTypeCategory  = "CATEGORY"
	recordTypeProduct   = "PRODUCT"
	recordTypeCartItem  = "CART_ITEM"
	recordTypeOrder     = "ORDER"
	recordTypeOrderItem = "ORDER_ITEM"
)

// Role distinguishes back-office operators from customers.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// OrderStatus is the order fulfilment state.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// PaymentMethod selects which payment detail fields an order requires.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentDebitCard      PaymentMethod = "debit_card"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

func (p PaymentMethod) card() bool {
	return p == PaymentCreditCard || p == PaymentDebitCard
}

// User is an account. Phone, Address, and MFASecret are protected
// fields: plaintext in memory, opaque ciphertext at rest.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	MFASecret    string    `json:"mfa_secret,omitempty"`
	MFAEnabled   bool      `json:"mfa_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u *User) ResourceType() string { return "User" }
func (u *User) ResourceID() string   { return u.ID }

func (u *User) AuditColumns() map[string]any {
	return map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"username":      u.Username,
		"password_hash": u.PasswordHash,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"role":          string(u.Role),
		"is_active":     u.IsActive,
		"phone":         u.Phone,
		"address":       u.Address,
		"mfa_secret":    u.MFASecret,
		"mfa_enabled":   u.MFAEnabled,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}
}

// Category groups products.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product is a catalog item. Prices are integer cents.
type Product struct {
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
	UpdatedAt   time.Time `json:"updated_at"`
}

// InStock reports whether the product can currently be purchased.
func (p *Product) InStock() bool { return p.Stock > 0 && p.IsActive }

func (p *Product) ResourceType() string { return "Product" }
func (p *Product) ResourceID() string   { return p.ID }

func (p *Product) AuditColumns() map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"slug":        p.Slug,
		"description": p.Description,
		"price_cents": p.PriceCents,
		"stock":       p.Stock,
		"image":       p.Image,
		"category_id": p.CategoryID,
		"is_active":   p.IsActive,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
}

// CartItem is one product line in a user's cart. At most one item exists
// per user and product; adding the same product again merges quantities.
type CartItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order is a completed checkout. ShippingAddress and the payment detail
// fields are protected fields. Only Status and UpdatedAt change after
// creation.
type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	OrderNumber     string        `json:"order_number"`
	Status          OrderStatus   `json:"status"`
	TotalCents      int64         `json:"total_cents"`
	ShippingAddress string        `json:"shipping_address"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	CardNumber      string        `json:"card_number,omitempty"`
	CardExpiry      string        `json:"card_expiry,omitempty"`
	CardCVV         string        `json:"card_cvv,omitempty"`
	BankAccount     string        `json:"bank_account,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (o *Order) ResourceType() string { return "Order" }
func (o *Order) ResourceID() string   { return o.ID }

func (o *Order) AuditColumns() map[string]any {
	return map[string]any{
		"id":               o.ID,
		"user_id":          o.UserID,
		"order_number":     o.OrderNumber,
		"status":           string(o.Status),
		"total_cents":      o.TotalCents,
		"shipping_address": o.ShippingAddress,
		"payment_method":   string(o.PaymentMethod),
		"card_number":      o.CardNumber,
		"card_expiry":      o.CardExpiry,
		"card_cvv":         o.CardCVV,
		"bank_account":     o.BankAccount,
		"notes":            o.Notes,
		"created_at":       o.CreatedAt,
		"updated_at":       o.UpdatedAt,
	}
}

// OrderItem is one line of an order with the unit price captured at
// purchase time.
type OrderItem struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

// TotalCents is the line total.
func (i *OrderItem) TotalCents() int64 { return i.PriceCents * int64(i.Quantity) }
