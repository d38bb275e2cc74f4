package shop

import (
	"context"
	"sort"
	"strings"

	"github.com/mharding/shopfront/internal/uuid"
	"github.com/mharding/shopfront/storage"
)

// CreateCategory adds a product category. The slug derives from the
// name.
func (s *Store) CreateCategory(ctx context.Context, name, description string) (*Category, error) {
	cat := Category{
		ID:          uuid.New(),
		Name:        name,
		Slug:        Slugify(name),
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	err := s.repo.Update(func(tx storage.Tx) error {
		return putRecord(tx, recordTypeCategory, cat.ID, cat)
	})
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// GetCategory loads a category by id.
func (s *Store) GetCategory(id string) (*Category, error) {
	var c Category
	if err := s.getRecord(recordTypeCategory, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories sorted by name.
func (s *Store) ListCategories() ([]Category, error) {
	cats, err := scanRecords[Category](s, recordTypeCategory, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

// DeleteCategory removes a category and all its products, cascading
// each product delete.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.GetCategory(id); err != nil {
		return err
	}
	products, err := scanRecords[Product](s, recordTypeProduct, func(p Product) bool { return p.CategoryID == id })
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := s.DeleteProduct(ctx, p.ID); err != nil {
			return err
		}
	}
	return s.repo.Update(func(tx storage.Tx) error {
		return tx.Delete(recordTypeCategory, id)
	})
}

// ProductInput carries the editable product fields.
type ProductInput struct {
	Name        string
	Description string
	PriceCents  int64
	Stock       int
	Image       string
	CategoryID  string
	IsActive    bool
}

// CreateProduct adds a catalog item and audits the insert.
func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if _, err := s.GetCategory(in.CategoryID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := Product{
		ID:          uuid.New(),
		Name:        in.Name,
		Slug:        Slugify(in.Name),
		Description: in.Description,
		PriceCents:  in.PriceCents,
		Stock:       in.Stock,
		Image:       in.Image,
		CategoryID:  in.CategoryID,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.Update(func(tx storage.Tx) error {
		if err := putRecord(tx, recordTypeProduct, p.ID, p); err != nil {
			return err
		}
		s.recorder.RecordInsert(ctx, tx, &p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct applies edits and audits the column diff.
func (s *Store) UpdateProduct(ctx context.Context, id string, in ProductInput) (*Product, error) {
	before, err := s.GetProduct(id)
	if err != nil {
		return nil, err
	}
	after := *before
	after.Name = in.Name
	after.Slug = Slugify(in.Name)
	after.Description = in.Description
	after.PriceCents = in.PriceCents
	after.Stock = in.Stock
	after.Image = in.Image
	after.CategoryID = in.CategoryID
	after.IsActive = in.IsActive
	after.UpdatedAt = s.now().UTC()

	err = s.repo.Update(func(tx storage.Tx) error {
		if err := putRecord(tx, recordTypeProduct, after.ID, after); err != nil {
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

// DeleteProduct removes a product and its cart and order lines, and
// audits the delete with a final snapshot.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.GetProduct(id)
	if err != nil {
		return err
	}
	cartItems, err := scanRecords[CartItem](s, recordTypeCartItem, func(c CartItem) bool { return c.ProductID == id })
	if err != nil {
		return err
	}
	orderItems, err := scanRecords[OrderItem](s, recordTypeOrderItem, func(i OrderItem) bool { return i.ProductID == id })
	if err != nil {
		return err
	}
	return s.repo.Update(func(tx storage.Tx) error {
		for _, c := range cartItems {
			if err := tx.Delete(recordTypeCartItem, c.ID); err != nil {
				return err
			}
		}
		for _, i := range orderItems {
			if err := tx.Delete(recordTypeOrderItem, i.ID); err != nil {
				return err
			}
		}
		if err := tx.Delete(recordTypeProduct, id); err != nil {
			return err
		}
		s.recorder.RecordDelete(ctx, tx, product)
		return nil
	})
}

// GetProduct loads a product by id.
func (s *Store) GetProduct(id string) (*Product, error) {
	var p Product
	if err := s.getRecord(recordTypeProduct, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProductBySlug loads an active product by slug.
func (s *Store) GetProductBySlug(slug string) (*Product, error) {
	products, err := scanRecords[Product](s, recordTypeProduct, func(p Product) bool {
		return p.Slug == slug && p.IsActive
	})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}
	return &products[0], nil
}

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	CategoryID string
	Search     string
	// IncludeInactive lists disabled products too, for the back office.
	IncludeInactive bool
}

// ProductPage is one page of a catalog listing.
type ProductPage struct {
	Items   []Product
	Total   int
	Page    int
	PerPage int
}

// SearchProducts lists products matching the filter, newest first,
// paginated. Search matches name or description, case-insensitively.
func (s *Store) SearchProducts(filter ProductFilter, page Page) (*ProductPage, error) {
	needle := strings.ToLower(filter.Search)
	products, err := scanRecords[Product](s, recordTypeProduct, func(p Product) bool {
		if !filter.IncludeInactive && !p.IsActive {
			return false
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			return false
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	lo, hi := page.clamp(len(products))
	per := page.PerPage
	if per < 1 {
		per = 20
	}
	num := page.Number
	if num < 1 {
		num = 1
	}
	return &ProductPage{
		Items:   products[lo:hi],
		Total:   len(products),
		Page:    num,
		PerPage: per,
	}, nil
}

// RelatedProducts returns up to limit other active products from the
// same category.
func (s *Store) RelatedProducts(p *Product, limit int) ([]Product, error) {
	related, err := scanRecords[Product](s, recordTypeProduct, func(other Product) bool {
		return other.CategoryID == p.CategoryID && other.ID != p.ID && other.IsActive
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}
