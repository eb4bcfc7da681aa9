package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/order"
)

type PlaceOrderRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid shipped delivered cancelled"`
}

type OrderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	PriceAtTime string    `json:"price_at_time"`
	Images      []string  `json:"images"`
}

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	Status          string              `json:"status"`
	TotalAmount     string              `json:"total_amount"`
	ShippingAddress string              `json:"shipping_address"`
	ItemCount       int                 `json:"item_count"`
	Items           []OrderItemResponse `json:"items,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// CheckoutErrorResponse carries the checkout error kind and, for stock
// failures, the offending product.
type CheckoutErrorResponse struct {
	Error     string     `json:"error"`
	Kind      string     `json:"kind"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	Product   string     `json:"product,omitempty"`
	Requested int        `json:"requested,omitempty"`
	Available *int       `json:"available,omitempty"`
}

func newOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          o.Status.String(),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		ItemCount:       o.ItemCount,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.Items {
		images := []string(item.Images)
		if images == nil {
			images = []string{}
		}
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime.StringFixed(2),
			Images:      images,
		})
	}
	return resp
}

// OrderPlacer is satisfied by *checkout.Engine.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, shippingAddress string) (*order.Order, error)
}

type OrderHandler struct {
	checkout OrderPlacer
	orders   order.Service
	validate *validator.Validate
}

func NewOrderHandler(placer OrderPlacer, orders order.Service) *OrderHandler {
	return &OrderHandler{checkout: placer, orders: orders, validate: newValidator()}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handlePlaceOrder)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
}

func (h *OrderHandler) RegisterAdminRoutes(router chi.Router) {
	router.Patch("/orders/{id}/status", h.handleUpdateStatus)
}

func (h *OrderHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	placed, err := h.checkout.PlaceOrder(r.Context(), p.UserID, req.ShippingAddress)
	if err != nil {
		kind := checkout.KindOf(err)
		resp := CheckoutErrorResponse{Kind: kind.String()}

		switch kind {
		case checkout.KindEmptyCart:
			resp.Error = "Cart is empty"
		case checkout.KindInvalidAddress:
			resp.Error = "Shipping address is required"
		case checkout.KindInsufficientStock, checkout.KindProductNotFound:
			var stockErr *checkout.StockError
			if errors.As(err, &stockErr) {
				resp.ProductID = &stockErr.ProductID
				resp.Product = stockErr.ProductName
				resp.Requested = stockErr.Requested
				available := stockErr.Available
				resp.Available = &available
			}
			if kind == checkout.KindProductNotFound {
				resp.Error = "A product in the cart is no longer available"
			} else {
				resp.Error = "Not enough stock for " + resp.Product
			}
		case checkout.KindTxConflict:
			resp.Error = "Checkout is busy, please retry"
		default:
			resp.Error = "Failed to place order"
		}

		respondWithJSON(w, checkoutStatus(kind), resp)
		return
	}

	respondWithJSON(w, http.StatusCreated, newOrderResponse(placed))
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), p.UserID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", p.UserID).Msg("Failed to list orders via service")
		respondWithError(w, mapErrorToStatusCode(err), "Failed to list orders")
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), p.UserID, orderID)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)
		if statusCode == http.StatusNotFound {
			respondWithError(w, statusCode, "Order not found")
			return
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to get order via service")
		respondWithError(w, statusCode, "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(o))
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	newStatus := order.Status(req.Status)
	if err := h.orders.UpdateOrderStatus(r.Context(), orderID, newStatus); err != nil {
		statusCode := mapErrorToStatusCode(err)
		var clientMessage string
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			clientMessage = "Order not found"
		case errors.Is(err, order.ErrInvalidStatusTransition):
			clientMessage = err.Error()
		case errors.Is(err, order.ErrStatusChanged):
			clientMessage = "Order status changed, reload and retry"
		case statusCode == http.StatusBadRequest:
			clientMessage = err.Error()
		default:
			log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to update order status via service")
			clientMessage = "Failed to update order status"
		}
		respondWithError(w, statusCode, clientMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"id": orderID.String(), "status": newStatus.String()})
}
