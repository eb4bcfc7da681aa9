package cart

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/catalog"
)

// Item is a cart line joined with the product it refers to.
type Item struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Images    catalog.Images  `json:"images"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
}

type View struct {
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func newView(items []Item) *View {
	v := &View{Items: items, Total: decimal.Zero}
	if v.Items == nil {
		v.Items = []Item{}
	}
	for _, item := range v.Items {
		v.Total = v.Total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		v.ItemCount += item.Quantity
	}
	v.Total = v.Total.Round(2)
	return v
}
