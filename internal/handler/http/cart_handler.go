package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/cart"
)

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type CartItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Images    []string  `json:"images"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
}

type CartResponse struct {
	Items     []CartItemResponse `json:"items"`
	Total     string             `json:"total"`
	ItemCount int                `json:"item_count"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func newCartResponse(v *cart.View) CartResponse {
	resp := CartResponse{
		Items:     make([]CartItemResponse, 0, len(v.Items)),
		Total:     v.Total.StringFixed(2),
		ItemCount: v.ItemCount,
	}
	for _, item := range v.Items {
		images := []string(item.Images)
		if images == nil {
			images = []string{}
		}
		resp.Items = append(resp.Items, CartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Name:      item.Name,
			Price:     item.Price.StringFixed(2),
			Images:    images,
			Stock:     item.Stock,
			CreatedAt: item.CreatedAt,
		})
	}
	return resp
}

type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{service: service, validate: newValidator()}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Delete("/cart", h.handleClearCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Put("/cart/items/{id}", h.handleUpdateItem)
	router.Delete("/cart/items/{id}", h.handleRemoveItem)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetCart(r.Context(), p.UserID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", p.UserID).Msg("Failed to get cart via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to get cart")
		return
	}

	respondWithJSON(w, http.StatusOK, newCartResponse(view))
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req AddCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	if err := h.service.AddItem(r.Context(), p.UserID, req.ProductID, req.Quantity); err != nil {
		h.respondWithCartError(w, p.UserID, err, "Failed to add item to cart")
		return
	}

	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Item added to cart"})
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	if err := h.service.UpdateItem(r.Context(), p.UserID, itemID, req.Quantity); err != nil {
		h.respondWithCartError(w, p.UserID, err, "Failed to update cart item")
		return
	}

	message := "Cart updated"
	if req.Quantity == 0 {
		message = "Item removed from cart"
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.RemoveItem(r.Context(), p.UserID, itemID); err != nil {
		h.respondWithCartError(w, p.UserID, err, "Failed to remove cart item")
		return
	}

	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Item removed from cart"})
}

func (h *CartHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.service.Clear(r.Context(), p.UserID); err != nil {
		h.respondWithCartError(w, p.UserID, err, "Failed to clear cart")
		return
	}

	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Cart cleared"})
}

func (h *CartHandler) respondWithCartError(w http.ResponseWriter, userID uuid.UUID, err error, fallback string) {
	statusCode := mapErrorToStatusCode(err)
	var clientMessage string
	switch {
	case statusCode == http.StatusNotFound && errors.Is(err, cart.ErrItemNotFound):
		clientMessage = "Cart item not found"
	case statusCode == http.StatusNotFound:
		clientMessage = "Product not found"
	case errors.Is(err, cart.ErrNotEnoughStock):
		clientMessage = "Not enough stock available"
	case statusCode == http.StatusBadRequest:
		clientMessage = err.Error()
	default:
		log.Error().Err(err).Stringer("user_id", userID).Msg(fallback)
		clientMessage = fallback
	}
	respondWithError(w, statusCode, clientMessage)
}
