package shop

import (
	"context"
	"sort"

	"github.com/mharding/shopfront/internal/uuid"
	"github.com/mharding/shopfront/storage"
)

// CartLine pairs a cart item with its product for display and totals.
type CartLine struct {
	Item    CartItem
	Product Product
}

// TotalCents is the line total at the product's current price.
func (l CartLine) TotalCents() int64 {
	return l.Product.PriceCents * int64(l.Item.Quantity)
}

// AddToCart puts quantity units of a product in the user's cart. Adding
// a product already in the cart merges quantities. The merged quantity
// may not exceed available stock.
func (s *Store) AddToCart(ctx context.Context, userID, productID string, quantity int) (*CartItem, error) {
	product, err := s.GetProduct(productID)
	if err != nil {
		return nil, err
	}
	if !product.InStock() {
		return nil, ErrOutOfStock
	}
	if quantity < 1 {
		quantity = 1
	}

	existing, err := s.findCartItem(userID, productID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	now := s.now().UTC()
	var item CartItem
	if existing != nil {
		merged := existing.Quantity + quantity
		if merged > product.Stock {
			return nil, ErrInsufficientStock
		}
		item = *existing
		item.Quantity = merged
		item.UpdatedAt = now
	} else {
		if quantity > product.Stock {
			return nil, ErrInsufficientStock
		}
		item = CartItem{
			ID:        uuid.New(),
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	err = s.repo.Update(func(tx storage.Tx) error {
		return putRecord(tx, recordTypeCartItem, item.ID, item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateCartItem sets a line's quantity. A quantity below one removes
// the line. The item must belong to the user.
func (s *Store) UpdateCartItem(ctx context.Context, userID, itemID string, quantity int) error {
	var item CartItem
	if err := s.getRecord(recordTypeCartItem, itemID, &item); err != nil {
		return err
	}
	if item.UserID != userID {
		return ErrForbidden
	}
	if quantity < 1 {
		return s.repo.Update(func(tx storage.Tx) error {
			return tx.Delete(recordTypeCartItem, itemID)
		})
	}
	product, err := s.GetProduct(item.ProductID)
	if err != nil {
		return err
	}
	if quantity > product.Stock {
		return ErrInsufficientStock
	}
	item.Quantity = quantity
	item.UpdatedAt = s.now().UTC()
	return s.repo.Update(func(tx storage.Tx) error {
		return putRecord(tx, recordTypeCartItem, item.ID, item)
	})
}

// RemoveFromCart deletes a line. The item must belong to the user.
func (s *Store) RemoveFromCart(ctx context.Context, userID, itemID string) error {
	var item CartItem
	if err := s.getRecord(recordTypeCartItem, itemID, &item); err != nil {
		return err
	}
	if item.UserID != userID {
		return ErrForbidden
	}
	return s.repo.Update(func(tx storage.Tx) error {
		return tx.Delete(recordTypeCartItem, itemID)
	})
}

// CartContents returns the user's cart lines, oldest first, with the
// cart total. Lines whose product has since been disabled or deleted
// are skipped.
func (s *Store) CartContents(userID string) ([]CartLine, int64, error) {
	items, err := scanRecords[CartItem](s, recordTypeCartItem, func(c CartItem) bool {
		return c.UserID == userID
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	lines := make([]CartLine, 0, len(items))
	var total int64
	for _, item := range items {
		product, err := s.GetProduct(item.ProductID)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, 0, err
		}
		if !product.IsActive {
			continue
		}
		line := CartLine{Item: item, Product: *product}
		lines = append(lines, line)
		total += line.TotalCents()
	}
	return lines, total, nil
}

func (s *Store) findCartItem(userID, productID string) (*CartItem, error) {
	items, err := scanRecords[CartItem](s, recordTypeCartItem, func(c CartItem) bool {
		return c.UserID == userID && c.ProductID == productID
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}
