package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Customer struct {
	Id          string `json:"id" gorm:"primaryKey;size:36"`
	FirstName   string `json:"first_name" gorm:"not null"`
	LastName    string `json:"last_name" gorm:"not null"`
	Email       string `json:"email" gorm:"uniqueIndex"`
	PhoneNumber string `json:"phone_number"`
	Note        string `json:"note"`
	Active      bool   `json:"-"`
}

func (customer *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	if customer.Id == "" {
		customer.Id = uuid.NewString()
	}
	return
}
