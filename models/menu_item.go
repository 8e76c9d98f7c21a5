package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MenuItem struct {
	Id          string          `json:"id" gorm:"primaryKey;size:36"`
	Name        string          `json:"name" gorm:"not null"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	Active      bool            `json:"active"`
}

func (item *MenuItem) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if item.Id == "" {
		item.Id = uuid.NewString()
	}
	return
}
