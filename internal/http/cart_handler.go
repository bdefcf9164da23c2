package http

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Cart is the part of service.CartService the handlers use.
type Cart interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.Item) (domain.Cart, error)
	SetQuantity(ctx context.Context, userID string, itemID int64, quantity int) (domain.Cart, error)
}

type CartHandler struct {
	cart          Cart
	catalog       Catalog
	defaultUserID string
	logger        zerolog.Logger
}

func NewCartHandler(cart Cart, catalog Catalog, defaultUserID string, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		cart:          cart,
		catalog:       catalog,
		defaultUserID: defaultUserID,
		logger:        logger,
	}
}

type CartResponse struct {
	Cart  domain.Cart     `json:"cart"`
	Total decimal.Decimal `json:"total"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func newCartResponse(cart domain.Cart) CartResponse {
	return CartResponse{Cart: cart, Total: service.ComputeTotal(cart)}
}

// DefaultCart redirects to the cart of the configured storefront user.
func (h *CartHandler) DefaultCart(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/api/v1/users/"+url.PathEscape(h.defaultUserID)+"/cart", http.StatusFound)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.GetCart(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, http.StatusOK, newCartResponse(cart))
}

// AddItem looks the item up in the catalog and adds one unit of it.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_item_id", "itemID must be a positive integer", "itemID")
		return
	}

	item, found, err := h.catalog.GetItem(ctx, itemID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if !found {
		respondError(w, r, http.StatusNotFound, "not_found", "item not found", "")
		return
	}

	cart, err := h.cart.AddItem(ctx, chi.URLParam(r, "userID"), item)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, newCartResponse(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, "invalid_item_id", "itemID must be a positive integer", "itemID")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body", "")
		return
	}

	cart, err := h.cart.SetQuantity(r.Context(), chi.URLParam(r, "userID"), itemID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, r, http.StatusOK, newCartResponse(cart))
}
