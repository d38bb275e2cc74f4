package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mharding/shopfront/shop"
)

// parsePage reads "page" and "per_page" query parameters, falling back
// to page 1 of 20.
func parsePage(r *http.Request) shop.Page {
	q := r.URL.Query()
	page := shop.Page{Number: 1, PerPage: 20}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.Number = n
		}
	}
	if v := q.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			page.PerPage = n
		}
	}
	return page
}

// ListCategories handles GET /categories.
func (a *API) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := a.store.ListCategories()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

// ListProducts handles GET /products with optional category, search,
// and pagination parameters.
func (a *API) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.store.SearchProducts(shop.ProductFilter{
		CategoryID: q.Get("category"),
		Search:     q.Get("search"),
	}, parsePage(r))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductListResponse(page))
}

func toProductListResponse(page *shop.ProductPage) ProductListResponse {
	resp := ProductListResponse{
		Products: make([]ProductResponse, 0, len(page.Items)),
		Total:    page.Total,
		Page:     page.Page,
		PerPage:  page.PerPage,
	}
	for _, p := range page.Items {
		resp.Products = append(resp.Products, toProductResponse(p))
	}
	return resp
}

// GetProduct handles GET /products/{slug}.
func (a *API) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.store.GetProductBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		mapError(w, err)
		return
	}
	related, err := a.store.RelatedProducts(product, 4)
	if err != nil {
		mapError(w, err)
		return
	}
	resp := ProductDetailResponse{Product: toProductResponse(*product)}
	for _, p := range related {
		resp.Related = append(resp.Related, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCart handles GET /cart.
func (a *API) GetCart(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	lines, total, err := a.store.CartContents(user.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	resp := CartResponse{Lines: make([]CartLineResponse, 0, len(lines)), TotalCents: total}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, CartLineResponse{
			ItemID:     line.Item.ID,
			Product:    toProductResponse(line.Product),
			Quantity:   line.Item.Quantity,
			TotalCents: line.TotalCents(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddCartItem handles POST /cart/items.
func (a *API) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user := userFromContext(r.Context())
	item, err := a.store.AddToCart(r.Context(), user.ID, req.ProductID, req.Quantity)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateCartItem handles PUT /cart/items/{itemID}. A quantity below one
// removes the line.
func (a *API) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user := userFromContext(r.Context())
	if err := a.store.UpdateCartItem(r.Context(), user.ID, chi.URLParam(r, "itemID"), req.Quantity); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveCartItem handles DELETE /cart/items/{itemID}.
func (a *API) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if err := a.store.RemoveFromCart(r.Context(), user.ID, chi.URLParam(r, "itemID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout handles POST /checkout.
func (a *API) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ShippingAddress == "" {
		writeError(w, http.StatusBadRequest, "shipping address is required")
		return
	}
	user := userFromContext(r.Context())
	order, err := a.store.Checkout(r.Context(), user.ID, shop.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   shop.PaymentMethod(req.PaymentMethod),
		CardNumber:      req.CardNumber,
		CardExpiry:      req.CardExpiry,
		CardCVV:         req.CardCVV,
		BankAccount:     req.BankAccount,
		Notes:           req.Notes,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	items, err := a.store.OrderItems(order.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order, items))
}

// ListOrders handles GET /orders.
func (a *API) ListOrders(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	orders, err := a.store.ListOrders(user.ID)
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

// GetOrder handles GET /orders/{orderID}. Customers see only their own
// orders; admins see all.
func (a *API) GetOrder(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	order, err := a.store.GetOrder(chi.URLParam(r, "orderID"))
	if err != nil {
		mapError(w, err)
		return
	}
	if order.UserID != user.ID && !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	items, err := a.store.OrderItems(order.ID)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}
