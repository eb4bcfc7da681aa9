package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("invalid product")

type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	CreateProduct(ctx context.Context, product *Product) (*Product, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to fetch product")
		return nil, fmt.Errorf("service: failed to fetch product: %w", err)
	}
	return product, nil
}

func (s *service) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if !product.Price.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: price must be positive, got %s", ErrInvalidProduct, product.Price)
	}
	if product.Stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative, got %d", ErrInvalidProduct, product.Stock)
	}

	product.ID = uuid.Nil
	product.Price = product.Price.Round(2)

	if err := s.repo.Create(ctx, product); err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		log.Error().Err(err).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", product.ID).Str("name", product.Name).Msg("service: product created")
	return product, nil
}
