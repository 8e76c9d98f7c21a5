package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/billing"
	"restaurant-backend/models"
)

type OpenSessionRequest struct {
	TableID    string
	CustomerID string
	EmployeeID string
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	ActorID    string
}

type OpenSessionOutcome struct {
	Session *models.TableSession `json:"session"`
	Invoice *models.Invoice      `json:"invoice"`
}

// OpenSession seats a party at a table and opens its empty invoice.
func (s *Service) OpenSession(ctx context.Context, req OpenSessionRequest) (*OpenSessionOutcome, error) {
	if req.TableID == "" {
		return nil, ErrInvalidRequest.with("table_id", "table is required")
	}
	if err := checkRate("discount", req.Discount); err != nil {
		return nil, err
	}
	if err := checkRate("tax", req.Tax); err != nil {
		return nil, err
	}

	out := &OpenSessionOutcome{}
	fields := []zap.Field{zap.String("table_id", req.TableID), zap.String("actor_id", req.ActorID)}
	err := s.run(ctx, "open_session", ErrWriteFailed, fields, func(tx *gorm.DB) error {
		var table models.DiningTable
		if err := tx.First(&table, "id = ?", req.TableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTableNotFound.with("table_id", "table %s does not exist", req.TableID)
			}
			return err
		}
		if !table.Active {
			return ErrTableNotFound.with("table_id", "table %s is not in service", table.ID)
		}

		session := &models.TableSession{
			Type:       models.SessionTypeOffline,
			Status:     models.SessionActive,
			TableID:    &table.ID,
			StartedAt:  s.now(),
			CustomerID: optional(req.CustomerID),
			EmployeeID: optional(req.EmployeeID),
			CreatedBy:  req.ActorID,
			UpdatedBy:  req.ActorID,
		}
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		invoice := &models.Invoice{
			TableSessionID: session.ID,
			Status:         models.InvoiceUnpaid,
			Discount:       billing.Round(req.Discount),
			Tax:            billing.Round(req.Tax),
			CreatedBy:      req.ActorID,
			UpdatedBy:      req.ActorID,
		}
		if err := tx.Create(invoice).Error; err != nil {
			return err
		}
		out.Session, out.Invoice = session, invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("session opened", append(fields, zap.String("session_id", out.Session.ID))...)
	return out, nil
}

type OrderLine struct {
	MenuItemID string
	Quantity   int
}

type AddOrderRequest struct {
	SessionID string
	Note      string
	Lines     []OrderLine
	ActorID   string
}

type AddOrderOutcome struct {
	Order   *models.Order   `json:"order"`
	Invoice *models.Invoice `json:"invoice"`
}

// AddOrder places an order on an open session, pricing each line from the
// menu, and adds its value to the session's invoice.
func (s *Service) AddOrder(ctx context.Context, req AddOrderRequest) (*AddOrderOutcome, error) {
	if req.SessionID == "" {
		return nil, ErrInvalidRequest.with("session_id", "session is required")
	}
	if len(req.Lines) == 0 {
		return nil, ErrInvalidRequest.with("items", "at least one item is required")
	}
	for _, l := range req.Lines {
		if l.MenuItemID == "" || l.Quantity < 1 {
			return nil, ErrInvalidRequest.with("items", "every item needs a menu item and a quantity of at least 1")
		}
	}

	out := &AddOrderOutcome{}
	fields := []zap.Field{zap.String("session_id", req.SessionID), zap.String("actor_id", req.ActorID)}
	err := s.run(ctx, "add_order", ErrWriteFailed, fields, func(tx *gorm.DB) error {
		session, err := findSession(tx, req.SessionID, ErrSessionNotFound, "session_id")
		if err != nil {
			return err
		}
		if !session.Status.Open() {
			return ErrSessionClosed.with("session_id", "session %s is %s", session.ID, session.Status)
		}

		ids := make([]string, 0, len(req.Lines))
		for _, l := range req.Lines {
			ids = append(ids, l.MenuItemID)
		}
		var menu []models.MenuItem
		if err := tx.Where("id IN ? AND active = ?", uniqueIDs(ids), true).Find(&menu).Error; err != nil {
			return err
		}
		byID := make(map[string]models.MenuItem, len(menu))
		for _, m := range menu {
			byID[m.Id] = m
		}

		order := &models.Order{
			TableSessionID: session.ID,
			Status:         models.OrderOpen,
			Note:           strings.TrimSpace(req.Note),
			CreatedBy:      req.ActorID,
			UpdatedBy:      req.ActorID,
		}
		total := decimal.Zero
		for _, l := range req.Lines {
			m, ok := byID[l.MenuItemID]
			if !ok {
				return ErrMenuItemNotFound.with("items", "menu item %s is not available", l.MenuItemID)
			}
			menuID := m.Id
			item := models.OrderItem{
				MenuItemID: &menuID,
				Name:       m.Name,
				Quantity:   l.Quantity,
				Price:      m.UnitPrice,
				CreatedBy:  req.ActorID,
				UpdatedBy:  req.ActorID,
			}
			item.TotalPrice = billing.Round(item.LineTotal(l.Quantity))
			total = total.Add(item.TotalPrice)
			order.Items = append(order.Items, item)
		}
		order.TotalAmount = total
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		invoice, _, err := openInvoice(tx, session.ID, req.ActorID)
		if err != nil {
			return err
		}
		if err := reprice(tx, invoice, total, req.ActorID); err != nil {
			return err
		}
		out.Order, out.Invoice = order, invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("order added", append(fields,
		zap.String("order_id", out.Order.ID),
		zap.String("total", out.Order.TotalAmount.StringFixed(2)))...)
	return out, nil
}

type PaymentRequest struct {
	InvoiceID string
	Amount    decimal.Decimal
	Method    string
	Reference string
	Status    models.PaymentStatus
	ActorID   string
}

// RecordPayment attaches a payment to an open invoice and re-derives the
// invoice status. Status defaults to completed.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (*models.Invoice, error) {
	if req.InvoiceID == "" {
		return nil, ErrInvalidRequest.with("invoice_id", "invoice is required")
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidRequest.with("amount", "amount must be positive")
	}
	if req.Status == "" {
		req.Status = models.PaymentCompleted
	}
	if !req.Status.Valid() {
		return nil, ErrInvalidRequest.with("status", "unknown payment status %q", req.Status)
	}

	var invoice *models.Invoice
	fields := []zap.Field{zap.String("invoice_id", req.InvoiceID), zap.String("actor_id", req.ActorID)}
	err := s.run(ctx, "record_payment", ErrWriteFailed, fields, func(tx *gorm.DB) error {
		current, err := findInvoice(tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if !current.Status.Settleable() {
			return ErrInvoiceNotPayable.with("invoice_id", "invoice %s is %s", current.ID, current.Status)
		}

		payment := &models.Payment{
			InvoiceID: current.ID,
			Amount:    billing.Round(req.Amount),
			Method:    req.Method,
			Reference: req.Reference,
			Status:    req.Status,
			PaidAt:    s.now(),
			CreatedBy: req.ActorID,
			UpdatedBy: req.ActorID,
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}

		paid, err := totalPaid(tx, current.ID)
		if err != nil {
			return err
		}
		err = tx.Model(&models.Invoice{}).Where("id = ?", current.ID).Updates(map[string]any{
			"status":     billing.DeriveStatus(current.FinalAmount, paid),
			"updated_by": req.ActorID,
		}).Error
		if err != nil {
			return err
		}
		invoice, err = loadInvoice(tx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment recorded", append(fields,
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("status", string(invoice.Status)))...)
	return invoice, nil
}

type ApplyPromotionRequest struct {
	InvoiceID   string
	PromotionID string
	Code        string
	ActorID     string
}

// ApplyPromotion adds a promotion's rate to the invoice discount and records
// the amount it took off at the time it was applied.
func (s *Service) ApplyPromotion(ctx context.Context, req ApplyPromotionRequest) (*models.Invoice, error) {
	if req.InvoiceID == "" {
		return nil, ErrInvalidRequest.with("invoice_id", "invoice is required")
	}
	if req.PromotionID == "" && req.Code == "" {
		return nil, ErrInvalidRequest.with("promotion_id", "promotion id or code is required")
	}

	var invoice *models.Invoice
	fields := []zap.Field{
		zap.String("invoice_id", req.InvoiceID),
		zap.String("promotion_id", req.PromotionID),
		zap.String("code", req.Code),
		zap.String("actor_id", req.ActorID),
	}
	err := s.run(ctx, "apply_promotion", ErrWriteFailed, fields, func(tx *gorm.DB) error {
		current, err := findInvoice(tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if !current.Status.Settleable() {
			return ErrInvoiceNotPayable.with("invoice_id", "invoice %s is %s", current.ID, current.Status)
		}

		var promotion models.Promotion
		q := tx.Where("active = ?", true)
		if req.PromotionID != "" {
			q = q.Where("id = ?", req.PromotionID)
		} else {
			q = q.Where("code = ?", strings.ToUpper(strings.TrimSpace(req.Code)))
		}
		if err := q.First(&promotion).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPromotionNotFound.with("promotion_id", "no active promotion matches")
			}
			return err
		}

		var applied int64
		err = tx.Model(&models.InvoicePromotion{}).
			Where("invoice_id = ? AND promotion_id = ?", current.ID, promotion.ID).
			Count(&applied).Error
		if err != nil {
			return err
		}
		if applied > 0 {
			return ErrPromotionAlreadyApplied.with("promotion_id", "promotion %s is already on invoice %s", promotion.Code, current.ID)
		}

		discount := decimal.Min(current.Discount.Add(promotion.Rate), decimal.NewFromInt(100))
		final := billing.FinalAmount(current.TotalAmount, discount, current.Tax)
		row := models.InvoicePromotion{
			InvoiceID:     current.ID,
			PromotionID:   promotion.ID,
			DiscountValue: current.FinalAmount.Sub(final),
			AppliedAt:     s.now(),
			CreatedBy:     req.ActorID,
			UpdatedBy:     req.ActorID,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		paid, err := totalPaid(tx, current.ID)
		if err != nil {
			return err
		}
		err = tx.Model(&models.Invoice{}).Where("id = ?", current.ID).Updates(map[string]any{
			"discount":     discount,
			"final_amount": final,
			"status":       billing.DeriveStatus(final, paid),
			"updated_by":   req.ActorID,
		}).Error
		if err != nil {
			return err
		}
		invoice, err = loadInvoice(tx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("promotion applied", fields...)
	return invoice, nil
}

func findInvoice(tx *gorm.DB, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := tx.First(&invoice, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound.with("invoice_id", "invoice %s does not exist", id)
		}
		return nil, err
	}
	return &invoice, nil
}

func checkRate(field string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidRequest.with(field, "%s must be between 0 and 100", field)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
