package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mharding/shopfront/shop"
)

// Dashboard handles GET /admin/dashboard.
func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.Dashboard()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// CreateCategory handles POST /admin/categories.
func (a *API) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	cat, err := a.store.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

// DeleteCategory handles DELETE /admin/categories/{categoryID}. Products
// in the category are removed with it.
func (a *API) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteCategory(r.Context(), chi.URLParam(r, "categoryID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminListProducts handles GET /admin/products: like the public
// listing but including inactive products.
func (a *API) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.store.SearchProducts(shop.ProductFilter{
		CategoryID:      q.Get("category"),
		Search:          q.Get("search"),
		IncludeInactive: true,
	}, parsePage(r))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductListResponse(page))
}

// CreateProduct handles POST /admin/products.
func (a *API) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.CategoryID == "" || req.PriceCents < 0 {
		writeError(w, http.StatusBadRequest, "name, category_id and a non-negative price are required")
		return
	}
	product, err := a.store.CreateProduct(r.Context(), productInput(req))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(*product))
}

// UpdateProduct handles PUT /admin/products/{productID}.
func (a *API) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	product, err := a.store.UpdateProduct(r.Context(), chi.URLParam(r, "productID"), productInput(req))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*product))
}

// DeleteProduct handles DELETE /admin/products/{productID}.
func (a *API) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteProduct(r.Context(), chi.URLParam(r, "productID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func productInput(req ProductRequest) shop.ProductInput {
	return shop.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Image:       req.Image,
		CategoryID:  req.CategoryID,
		IsActive:    req.IsActive,
	}
}

// AdminListOrders handles GET /admin/orders.
func (a *API) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.store.ListAllOrders()
	if err != nil {
		mapError(w, err)
		return
	}
	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i], nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

// UpdateOrderStatus handles PUT /admin/orders/{orderID}/status.
func (a *API) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	order, err := a.store.UpdateOrderStatus(r.Context(), chi.URLParam(r, "orderID"), shop.OrderStatus(req.Status))
	if err != nil {
		mapError(w, err)
		return
	}
	items, err := a.store.OrderItems(order.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}

// ListUsers handles GET /admin/users.
func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers()
	if err != nil {
		mapError(w, err)
		return
	}
	resp := make([]*UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": resp})
}

// SetUserActive handles PUT /admin/users/{userID}/active.
func (a *API) SetUserActive(w http.ResponseWriter, r *http.Request) {
	var req SetUserActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.store.SetUserActive(r.Context(), chi.URLParam(r, "userID"), req.Active); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser handles DELETE /admin/users/{userID}. The user's orders
// and cart are removed with the account.
func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if admin := userFromContext(r.Context()); admin != nil && admin.ID == userID {
		writeError(w, http.StatusUnprocessableEntity, "cannot delete your own account")
		return
	}
	if err := a.store.DeleteUser(r.Context(), userID); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAuditTrail handles GET /admin/audit, newest first with paging.
func (a *API) ListAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := a.store.AuditTrail()
	if err != nil {
		mapError(w, err)
		return
	}
	page := parsePage(r)
	total := len(entries)
	start := (page.Number - 1) * page.PerPage
	if start > total {
		start = total
	}
	end := start + page.PerPage
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":  entries[start:end],
		"total":    total,
		"page":     page.Number,
		"per_page": page.PerPage,
	})
}
