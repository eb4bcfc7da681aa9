// Package checkout turns a user's cart into an order in one serializable
// transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/outbox"
)

// Line is a cart line with the product state read inside the transaction.
// Found is false when the product no longer exists.
type Line struct {
	ProductID   uuid.UUID
	Quantity    int
	Found       bool
	ProductName string
	Price       decimal.Decimal
	Stock       int
}

// Tx is the unit of work the engine runs against. Every method must observe
// the same isolated snapshot.
type Tx interface {
	CartLines(ctx context.Context, userID uuid.UUID) ([]Line, error)
	InsertOrder(ctx context.Context, o *order.Order) error
	InsertItems(ctx context.Context, items []order.Item) error
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
	Enqueue(ctx context.Context, e outbox.Event) error
}

// Store runs fn in a transaction. It commits when fn returns nil, rolls back
// otherwise, and reports isolation failures as ErrTxConflict.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Observer receives checkout outcomes. metrics.Checkout implements it.
type Observer interface {
	OrderPlaced()
	CheckoutFailed(kind string)
	CheckoutRetried()
}

type nopObserver struct{}

func (nopObserver) OrderPlaced()          {}
func (nopObserver) CheckoutFailed(string) {}
func (nopObserver) CheckoutRetried()      {}

type Engine struct {
	store       Store
	maxAttempts int
	backoff     time.Duration
	topic       string
	observer    Observer
}

type Option func(*Engine)

func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay; attempt n waits n times this value.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) { e.backoff = d }
}

// WithEvents enqueues an order.placed outbox event on topic with every order.
func WithEvents(topic string) Option {
	return func(e *Engine) { e.topic = topic }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		maxAttempts: 3,
		backoff:     20 * time.Millisecond,
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type PlacedItem struct {
	ProductID   uuid.UUID `json:"product_id"`
	Quantity    int       `json:"quantity"`
	PriceAtTime string    `json:"price_at_time"`
}

// PlacedEvent is the order.placed outbox payload.
type PlacedEvent struct {
	Type            string       `json:"type"`
	OrderID         uuid.UUID    `json:"order_id"`
	UserID          uuid.UUID    `json:"user_id"`
	TotalAmount     string       `json:"total_amount"`
	ShippingAddress string       `json:"shipping_address"`
	Items           []PlacedItem `json:"items"`
	PlacedAt        time.Time    `json:"placed_at"`
}

// PlaceOrder converts the user's cart into a pending order. The returned
// order carries no items. Conflicts are retried up to the configured number
// of attempts.
func (e *Engine) PlaceOrder(ctx context.Context, userID uuid.UUID, shippingAddress string) (*order.Order, error) {
	address := strings.TrimSpace(shippingAddress)
	if address == "" {
		e.observer.CheckoutFailed(KindInvalidAddress.String())
		return nil, ErrInvalidAddress
	}

	var (
		placed *order.Order
		err    error
	)
	for attempt := 1; ; attempt++ {
		placed, err = e.placeOnce(ctx, userID, address)
		if err == nil || !errors.Is(err, ErrTxConflict) || attempt >= e.maxAttempts {
			break
		}

		e.observer.CheckoutRetried()
		log.Warn().Err(err).Stringer("user_id", userID).Int("attempt", attempt).Msg("checkout: transaction conflict, retrying")
		if waitErr := sleep(ctx, time.Duration(attempt)*e.backoff); waitErr != nil {
			break
		}
	}

	if err != nil {
		kind := KindOf(err)
		e.observer.CheckoutFailed(kind.String())
		if kind == KindPersistence || kind == KindTxConflict {
			log.Error().Err(err).Stringer("user_id", userID).Str("kind", kind.String()).Msg("checkout: failed to place order")
		}
		return nil, err
	}

	e.observer.OrderPlaced()
	log.Info().
		Stringer("order_id", placed.ID).
		Stringer("user_id", userID).
		Str("total", placed.TotalAmount.StringFixed(2)).
		Msg("checkout: order placed")
	return placed, nil
}

func (e *Engine) placeOnce(ctx context.Context, userID uuid.UUID, address string) (*order.Order, error) {
	var placed *order.Order
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		lines, err := tx.CartLines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		// Every line is checked before the first write.
		if err := validate(lines); err != nil {
			return err
		}

		orderID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("checkout: failed to generate order ID: %w", err)
		}

		o := &order.Order{
			ID:              orderID,
			UserID:          userID,
			Status:          order.StatusPending,
			TotalAmount:     total(lines),
			ShippingAddress: address,
		}
		items := make([]order.Item, 0, len(lines))
		for _, line := range lines {
			itemID, err := uuid.NewV4()
			if err != nil {
				return fmt.Errorf("checkout: failed to generate order item ID: %w", err)
			}
			items = append(items, order.Item{
				ID:          itemID,
				OrderID:     orderID,
				ProductID:   line.ProductID,
				Quantity:    line.Quantity,
				PriceAtTime: line.Price,
				ProductName: line.ProductName,
			})
			o.ItemCount += line.Quantity
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, items); err != nil {
			return err
		}
		for _, line := range lines {
			if err := tx.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					return stockError(line, ErrInsufficientStock)
				}
				return err
			}
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return err
		}

		if e.topic != "" {
			event, err := outbox.NewEvent(e.topic, o.ID.String(), placedEvent(o, items))
			if err != nil {
				return err
			}
			if err := tx.Enqueue(ctx, event); err != nil {
				return err
			}
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return placed, nil
}

func validate(lines []Line) error {
	for _, line := range lines {
		if !line.Found {
			return stockError(line, ErrProductNotFound)
		}
		if line.Quantity > line.Stock {
			return stockError(line, ErrInsufficientStock)
		}
	}
	return nil
}

func stockError(line Line, kind error) *StockError {
	return &StockError{
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		Requested:   line.Quantity,
		Available:   line.Stock,
		Err:         kind,
	}
}

func total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum.Round(2)
}

func placedEvent(o *order.Order, items []order.Item) PlacedEvent {
	ev := PlacedEvent{
		Type:            "order.placed",
		OrderID:         o.ID,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		Items:           make([]PlacedItem, 0, len(items)),
		PlacedAt:        o.CreatedAt,
	}
	for _, item := range items {
		ev.Items = append(ev.Items, PlacedItem{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime.StringFixed(2),
		})
	}
	return ev
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
