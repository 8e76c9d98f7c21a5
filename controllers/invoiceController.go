package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"restaurant-backend/middlewares"
	"restaurant-backend/models"
	"restaurant-backend/services"
	"restaurant-backend/utils"
)

type SplitGroupInput struct {
	OrderItemIDs []string         `json:"order_item_ids" validate:"omitempty,dive,uuid"`
	Percentage   *decimal.Decimal `json:"percentage"`
}

type SplitInvoiceInput struct {
	Splits []SplitGroupInput `json:"splits" validate:"required,min=1,dive"`
}

type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required,oneof=cash card voucher transfer"`
	Reference string          `json:"reference" validate:"max=120"`
	Status    string          `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
}

type ApplyPromotionInput struct {
	PromotionID string `json:"promotion_id" validate:"omitempty,uuid"`
	Code        string `json:"code" validate:"omitempty,max=32"`
}

var hundred = decimal.NewFromInt(100)

func (a *API) GetInvoices(c *fiber.Ctx) error {
	db, err := conn(c)
	if err != nil {
		return err
	}

	limit, offset := utils.Page(c.Query("limit"), c.Query("offset"), 50, 200)
	q := db.Model(&models.Invoice{})
	if s := c.Query("status"); s != "" {
		q = q.Where("status = ?", s)
	}
	if s := c.Query("session_id"); s != "" {
		q = q.Where("table_session_id = ?", s)
	}

	var invoices []models.Invoice
	if err := q.Order("created_at DESC, id").Limit(limit).Offset(offset).Find(&invoices).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, invoices)
}

func (a *API) GetInvoice(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := conn(c)
	if err != nil {
		return err
	}

	var invoice models.Invoice
	err = db.Preload("Payments").Preload("Promotions").Preload("TableSession").First(&invoice, "id = ?", id).Error
	if err != nil {
		return notFound(err, "invoice")
	}
	return ok(c, fiber.StatusOK, invoice)
}

// SplitInvoice checks the request shape here; the engine re-checks that the
// parent keeps a balance.
func (a *API) SplitInvoice(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var data SplitInvoiceInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}

	groups := make([]services.SplitGroup, 0, len(data.Splits))
	sum := decimal.Zero
	for _, s := range data.Splits {
		if (len(s.OrderItemIDs) == 0) == (s.Percentage == nil) {
			return fail(c, fiber.StatusUnprocessableEntity, "each split needs either order_item_ids or a percentage")
		}
		if s.Percentage != nil {
			sum = sum.Add(*s.Percentage)
		}
		groups = append(groups, services.SplitGroup{OrderItemIDs: s.OrderItemIDs, Percentage: s.Percentage})
	}
	if sum.IsNegative() || sum.GreaterThanOrEqual(hundred) {
		return fail(c, fiber.StatusUnprocessableEntity, "split percentages must add up to less than 100")
	}

	out, err := a.svc.SplitInvoice(c.UserContext(), services.SplitInvoiceRequest{
		InvoiceID: id,
		Splits:    groups,
		ActorID:   middlewares.ActorID(c),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, out)
}

func (a *API) CreatePayment(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var data PaymentInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}

	invoice, err := a.svc.RecordPayment(c.UserContext(), services.PaymentRequest{
		InvoiceID: id,
		Amount:    data.Amount,
		Method:    data.Method,
		Reference: data.Reference,
		Status:    models.PaymentStatus(data.Status),
		ActorID:   middlewares.ActorID(c),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, invoice)
}

func (a *API) ListPayments(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := conn(c)
	if err != nil {
		return err
	}

	var exists int64
	if err := db.Model(&models.Invoice{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return fiber.NewError(fiber.StatusNotFound, "invoice not found")
	}

	var payments []models.Payment
	if err := db.Where("invoice_id = ?", id).Order("paid_at, id").Find(&payments).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, payments)
}

func (a *API) ApplyPromotion(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var data ApplyPromotionInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}

	invoice, err := a.svc.ApplyPromotion(c.UserContext(), services.ApplyPromotionRequest{
		InvoiceID:   id,
		PromotionID: data.PromotionID,
		Code:        data.Code,
		ActorID:     middlewares.ActorID(c),
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, invoice)
}
