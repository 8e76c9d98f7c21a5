package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderServed    OrderStatus = "served"
	OrderCancelled OrderStatus = "cancelled"
)

// Order groups items billed to whichever session TableSessionID points at.
// OriginSessionID keeps the session the order belonged to before its first merge.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	TableSessionID  string          `json:"table_session_id" gorm:"size:36;not null;index"`
	OriginSessionID *string         `json:"origin_session_id" gorm:"size:36;index"`
	Status          OrderStatus     `json:"status" gorm:"size:16;not null"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	Note            string          `json:"note"`
	Items           []OrderItem     `json:"items,omitempty" gorm:"foreignKey:OrderID"`

	CreatedBy string    `json:"created_by" gorm:"size:36"`
	UpdatedBy string    `json:"updated_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (order *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	return
}

// OrderItem is billed on its session's main invoice until a split moves it
// onto a child invoice (InvoiceID).
type OrderItem struct {
	ID         string          `json:"id" gorm:"primaryKey;size:36"`
	OrderID    string          `json:"order_id" gorm:"size:36;not null;index"`
	MenuItemID *string         `json:"menu_item_id" gorm:"size:36;index"`
	InvoiceID  *string         `json:"invoice_id" gorm:"size:36;index"`
	Name       string          `json:"name" gorm:"not null"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	TotalPrice decimal.Decimal `json:"total_price" gorm:"type:numeric(12,2);not null"`

	CreatedBy string    `json:"created_by" gorm:"size:36"`
	UpdatedBy string    `json:"updated_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (item *OrderItem) BeforeCreate(tx *gorm.DB) (err error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return
}

// LineTotal is price × quantity.
func (item *OrderItem) LineTotal(quantity int) decimal.Decimal {
	return item.Price.Mul(decimal.NewFromInt(int64(quantity)))
}
