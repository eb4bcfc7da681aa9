package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/catalog"
)

type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	Images      []string        `json:"images" validate:"omitempty,dive,url"`
}

type ProductResponse struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Price        string     `json:"price"`
	Stock        int        `json:"stock"`
	CategoryID   *uuid.UUID `json:"category_id"`
	CategoryName *string    `json:"category_name,omitempty"`
	Images       []string   `json:"images"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newProductResponse(p *catalog.Product) ProductResponse {
	resp := ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price.StringFixed(2),
		Stock:        p.Stock,
		CategoryName: p.CategoryName,
		Images:       []string(p.Images),
		CreatedAt:    p.CreatedAt,
	}
	if p.CategoryID.Valid {
		id := p.CategoryID.UUID
		resp.CategoryID = &id
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	return resp
}

type ProductHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewProductHandler(service catalog.Service) *ProductHandler {
	return &ProductHandler{service: service, validate: newValidator()}
}

func (h *ProductHandler) RegisterPublicRoutes(router chi.Router) {
	router.Get("/products/{id}", h.handleGetProduct)
}

func (h *ProductHandler) RegisterAdminRoutes(router chi.Router) {
	router.Post("/products", h.handleCreateProduct)
}

func (h *ProductHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)
		if statusCode == http.StatusNotFound {
			respondWithError(w, statusCode, "Product not found")
			return
		}
		log.Error().Err(err).Stringer("product_id", productID).Msg("Failed to get product via service")
		respondWithError(w, statusCode, "Failed to get product")
		return
	}

	respondWithJSON(w, http.StatusOK, newProductResponse(p))
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	p := &catalog.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Images:      catalog.Images(req.Images),
	}
	if req.CategoryID != nil {
		p.CategoryID = uuid.NullUUID{UUID: *req.CategoryID, Valid: true}
	}

	created, err := h.service.CreateProduct(r.Context(), p)
	if err != nil {
		statusCode := mapErrorToStatusCode(err)
		if statusCode == http.StatusBadRequest {
			respondWithError(w, statusCode, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to create product via service")
		respondWithError(w, statusCode, "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, newProductResponse(created))
}
