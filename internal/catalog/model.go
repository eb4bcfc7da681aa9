package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Description  string          `json:"description" db:"description"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Stock        int             `json:"stock" db:"stock"`
	CategoryID   uuid.NullUUID   `json:"category_id" db:"category_id"`
	CategoryName *string         `json:"category_name,omitempty" db:"category_name"`
	Images       Images          `json:"images" db:"images"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Images is an ordered list of image URLs stored as a JSON array.
type Images []string

func (i *Images) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*i = Images{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("catalog: cannot scan %T into Images", src)
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return fmt.Errorf("catalog: invalid images json: %w", err)
	}
	if urls == nil {
		urls = []string{}
	}
	*i = urls
	return nil
}

func (i Images) Value() (driver.Value, error) {
	if i == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(i))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
