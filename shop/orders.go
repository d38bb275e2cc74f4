package shop

import (
	"context"
	"sort"
	"strings"

	"github.com/mharding/shopfront/internal/uuid"
	"github.com/mharding/shopfront/storage"
)

// declinedCardNumber is the simulated-payment magic value: checkouts
// paying with this card are declined.
const declinedCardNumber = "0000000000000000"

// CheckoutInput carries the checkout form fields. Card fields are
// required for card payments, BankAccount for bank transfer.
type CheckoutInput struct {
	ShippingAddress string
	PaymentMethod   PaymentMethod
	CardNumber      string
	CardExpiry      string
	CardCVV         string
	BankAccount     string
	Notes           string
}

// Checkout turns the user's cart into an order: validates stock and
// payment details, snapshots per-line prices, decrements stock, clears
// the cart, and writes the order with its audit entry, all in one
// batch.
func (s *Store) Checkout(ctx context.Context, userID string, in CheckoutInput) (*Order, error) {
	lines, total, err := s.CartContents(userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, line := range lines {
		if !line.Product.InStock() || line.Item.Quantity > line.Product.Stock {
			return nil, ErrInsufficientStock
		}
	}

	cardNumber := strings.ReplaceAll(in.CardNumber, " ", "")
	switch {
	case in.PaymentMethod.card():
		if cardNumber == "" || in.CardExpiry == "" || in.CardCVV == "" {
			return nil, ErrCardRequired
		}
		if cardNumber == declinedCardNumber {
			return nil, ErrPaymentDeclined
		}
	case in.PaymentMethod == PaymentBankTransfer:
		if in.BankAccount == "" {
			return nil, ErrBankRequired
		}
	}

	number, err := s.newOrderNumber()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	order := Order{
		ID:              uuid.New(),
		UserID:          userID,
		OrderNumber:     number,
		Status:          StatusPending,
		TotalCents:      total,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.PaymentMethod.card() {
		order.CardNumber = cardNumber
		order.CardExpiry = in.CardExpiry
		order.CardCVV = in.CardCVV
	}
	if in.PaymentMethod == PaymentBankTransfer {
		order.BankAccount = in.BankAccount
	}

	encoded, err := s.encodeOrder(order)
	if err != nil {
		return nil, err
	}

	err = s.repo.Update(func(tx storage.Tx) error {
		if err := putRecord(tx, recordTypeOrder, order.ID, encoded); err != nil {
			return err
		}
		s.recorder.RecordInsert(ctx, tx, &order)

		for _, line := range lines {
			item := OrderItem{
				ID:         uuid.New(),
				OrderID:    order.ID,
				ProductID:  line.Product.ID,
				Quantity:   line.Item.Quantity,
				PriceCents: line.Product.PriceCents,
				CreatedAt:  now,
			}
			if err := putRecord(tx, recordTypeOrderItem, item.ID, item); err != nil {
				return err
			}

			before := line.Product
			after := before
			after.Stock -= line.Item.Quantity
			after.UpdatedAt = now
			if err := putRecord(tx, recordTypeProduct, after.ID, after); err != nil {
				return err
			}
			s.recorder.RecordUpdate(ctx, tx, &before, &after)

			if err := tx.Delete(recordTypeCartItem, line.Item.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", userID,
		"total_cents", order.TotalCents)
	return &order, nil
}

// GetOrder loads an order by id with protected fields decoded. Callers
// enforce ownership.
func (s *Store) GetOrder(id string) (*Order, error) {
	var o Order
	if err := s.getRecord(recordTypeOrder, id, &o); err != nil {
		return nil, err
	}
	o = s.decodeOrder(o)
	return &o, nil
}

// OrderItems returns the lines of an order.
func (s *Store) OrderItems(orderID string) ([]OrderItem, error) {
	items, err := scanRecords[OrderItem](s, recordTypeOrderItem, func(i OrderItem) bool {
		return i.OrderID == orderID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// ListOrders returns a user's orders, newest first.
func (s *Store) ListOrders(userID string) ([]Order, error) {
	return s.listOrders(func(o Order) bool { return o.UserID == userID })
}

// ListAllOrders returns every order, newest first.
func (s *Store) ListAllOrders() ([]Order, error) {
	return s.listOrders(nil)
}

func (s *Store) listOrders(match func(Order) bool) ([]Order, error) {
	orders, err := scanRecords[Order](s, recordTypeOrder, match)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i] = s.decodeOrder(orders[i])
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// UpdateOrderStatus moves an order through the fulfilment states and
// audits the transition.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidOrderStatus
	}
	before, err := s.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	after := *before
	after.Status = status
	after.UpdatedAt = s.now().UTC()

	encoded, err := s.encodeOrder(after)
	if err != nil {
		return nil, err
	}
	err = s.repo.Update(func(tx storage.Tx) error {
		if err := putRecord(tx, recordTypeOrder, after.ID, encoded); err != nil {
			return err
		}
		s.recorder.RecordUpdate(ctx, tx, before, &after)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

// DashboardStats summarizes the back office landing page.
type DashboardStats struct {
	TotalProducts   int `json:"total_products"`
	ActiveProducts  int `json:"active_products"`
	TotalOrders     int `json:"total_orders"`
	PendingOrders   int `json:"pending_orders"`
	TotalUsers      int `json:"total_users"`
	TotalCategories int `json:"total_categories"`
}

// Dashboard computes the admin dashboard counters.
func (s *Store) Dashboard() (*DashboardStats, error) {
	products, err := scanRecords[Product](s, recordTypeProduct, nil)
	if err != nil {
		return nil, err
	}
	orders, err := scanRecords[Order](s, recordTypeOrder, nil)
	if err != nil {
		return nil, err
	}
	userIDs, err := s.repo.List(recordTypeUser)
	if err != nil {
		return nil, err
	}
	categoryIDs, err := s.repo.List(recordTypeCategory)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalProducts:   len(products),
		TotalOrders:     len(orders),
		TotalUsers:      len(userIDs),
		TotalCategories: len(categoryIDs),
	}
	for _, p := range products {
		if p.IsActive {
			stats.ActiveProducts++
		}
	}
	for _, o := range orders {
		if o.Status == StatusPending {
			stats.PendingOrders++
		}
	}
	return stats, nil
}
