package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceUnpaid        InvoiceStatus = "unpaid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
	InvoiceMerged        InvoiceStatus = "merged"
)

// Settleable reports whether the invoice still has an open balance that can
// be merged, split or paid against.
func (s InvoiceStatus) Settleable() bool {
	switch s {
	case InvoiceUnpaid, InvoicePartiallyPaid:
		return true
	default:
		return false
	}
}

// Invoice is the live settlement object of a table session.
// FinalAmount is derived from TotalAmount, Discount and Tax (both percent).
type Invoice struct {
	ID             string        `json:"id" gorm:"primaryKey;size:36"`
	TableSessionID string        `json:"table_session_id" gorm:"size:36;not null;index"`
	TableSession   *TableSession `json:"table_session,omitempty" gorm:"foreignKey:TableSessionID"`

	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	Discount    decimal.Decimal `json:"discount" gorm:"type:numeric(5,2);not null"`
	Tax         decimal.Decimal `json:"tax" gorm:"type:numeric(5,2);not null"`
	FinalAmount decimal.Decimal `json:"final_amount" gorm:"type:numeric(12,2);not null"`

	Status          InvoiceStatus `json:"status" gorm:"size:20;not null;index"`
	ParentInvoiceID *string       `json:"parent_invoice_id" gorm:"size:36;index"`
	MergedInvoiceID *string       `json:"merged_invoice_id" gorm:"size:36;index"`

	Payments   []Payment          `json:"payments,omitempty" gorm:"foreignKey:InvoiceID"`
	Promotions []InvoicePromotion `json:"promotions,omitempty" gorm:"foreignKey:InvoiceID"`

	CreatedBy string    `json:"created_by" gorm:"size:36"`
	UpdatedBy string    `json:"updated_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (invoice *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	return
}

// Splittable reports whether the invoice may be divided into child invoices.
func (invoice *Invoice) Splittable() bool {
	return invoice.Status.Settleable() && invoice.MergedInvoiceID == nil
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	default:
		return false
	}
}

// Payment belongs to exactly one invoice; only completed payments count as paid.
type Payment struct {
	ID        string          `json:"id" gorm:"primaryKey;size:36"`
	InvoiceID string          `json:"invoice_id" gorm:"size:36;not null;index:idx_payments_invoice_paid_at,priority:1"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Method    string          `json:"method" gorm:"size:32"`
	Reference string          `json:"reference"`
	Status    PaymentStatus   `json:"status" gorm:"size:16;not null;index"`
	PaidAt    time.Time       `json:"paid_at" gorm:"index:idx_payments_invoice_paid_at,priority:2"`

	CreatedBy string    `json:"created_by" gorm:"size:36"`
	UpdatedBy string    `json:"updated_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (payment *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	return
}

// Promotion is a named percentage discount that can be applied to invoices.
type Promotion struct {
	ID        string          `json:"id" gorm:"primaryKey;size:36"`
	Code      string          `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name      string          `json:"name" gorm:"not null"`
	Rate      decimal.Decimal `json:"rate" gorm:"type:numeric(5,2);not null"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (promotion *Promotion) BeforeCreate(tx *gorm.DB) (err error) {
	if promotion.ID == "" {
		promotion.ID = uuid.NewString()
	}
	return
}

// InvoicePromotion snapshots the discount a promotion realized on an invoice.
// (invoice_id, promotion_id) is unique.
type InvoicePromotion struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	InvoiceID     string          `json:"invoice_id" gorm:"size:36;not null;uniqueIndex:idx_invoice_promotions_pair,priority:1"`
	PromotionID   string          `json:"promotion_id" gorm:"size:36;not null;uniqueIndex:idx_invoice_promotions_pair,priority:2"`
	DiscountValue decimal.Decimal `json:"discount_value" gorm:"type:numeric(12,2);not null"`
	AppliedAt     time.Time       `json:"applied_at"`

	CreatedBy string    `json:"created_by" gorm:"size:36"`
	UpdatedBy string    `json:"updated_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ip *InvoicePromotion) BeforeCreate(tx *gorm.DB) (err error) {
	if ip.ID == "" {
		ip.ID = uuid.NewString()
	}
	return
}
