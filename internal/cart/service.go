package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/catalog"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNotEnoughStock  = errors.New("not enough stock available")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// ProductFinder is the slice of the catalog the cart needs.
type ProductFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     Repository
	products ProductFinder
}

func NewService(repo Repository, products ProductFinder) Service {
	return &service{repo: repo, products: products}
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	items, err := s.repo.GetItems(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to load cart")
		return nil, fmt.Errorf("service: failed to load cart: %w", err)
	}
	return newView(items), nil
}

// AddItem adds quantity to the existing line for the product, if any.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidQuantity, quantity)
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to fetch product for cart")
		return fmt.Errorf("service: failed to fetch product: %w", err)
	}

	existing, err := s.repo.QuantityOf(ctx, userID, productID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to read cart quantity")
		return fmt.Errorf("service: failed to read cart quantity: %w", err)
	}

	total := existing + quantity
	if total > product.Stock {
		log.Warn().
			Stringer("user_id", userID).
			Stringer("product_id", productID).
			Int("requested", total).
			Int("stock", product.Stock).
			Msg("service: cart quantity exceeds stock")
		return ErrNotEnoughStock
	}

	if err := s.repo.Upsert(ctx, userID, productID, total); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to save cart item")
		return fmt.Errorf("service: failed to save cart item: %w", err)
	}
	return nil
}

// UpdateItem sets the line quantity. Zero removes the line.
func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: cannot be negative, got %d", ErrInvalidQuantity, quantity)
	}

	item, err := s.repo.GetItem(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return ErrItemNotFound
		}
		log.Error().Err(err).Stringer("item_id", itemID).Msg("service: failed to fetch cart item")
		return fmt.Errorf("service: failed to fetch cart item: %w", err)
	}

	if quantity == 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}
	if quantity > item.Stock {
		return ErrNotEnoughStock
	}

	if err := s.repo.SetQuantity(ctx, userID, itemID, quantity); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return ErrItemNotFound
		}
		log.Error().Err(err).Stringer("item_id", itemID).Msg("service: failed to update cart item")
		return fmt.Errorf("service: failed to update cart item: %w", err)
	}
	return nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, itemID); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return ErrItemNotFound
		}
		log.Error().Err(err).Stringer("item_id", itemID).Msg("service: failed to remove cart item")
		return fmt.Errorf("service: failed to remove cart item: %w", err)
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to clear cart")
		return fmt.Errorf("service: failed to clear cart: %w", err)
	}
	return nil
}
