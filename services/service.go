// Package services implements table-session and invoice lifecycle operations:
// merging sessions, splitting invoices and sessions, and reverting merges.
// Every public operation runs as one database transaction and either commits
// all of its writes or none of them.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/billing"
	"restaurant-backend/metrics"
	"restaurant-backend/models"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	now     func() time.Time
	metrics *metrics.Engine
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:  db,
		log: log.Named("billing.service"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, mostly for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// WithMetrics records every operation on m.
func (s *Service) WithMetrics(m *metrics.Engine) *Service {
	cp := *s
	cp.metrics = m
	return &cp
}

// run executes fn in one transaction. Expected failures are logged at warn,
// anything else is wrapped in failed and logged at error with its stack.
func (s *Service) run(ctx context.Context, op string, failed *Error, fields []zap.Field, fn func(tx *gorm.DB) error) error {
	log := s.log.With(append([]zap.Field{zap.String("operation", op)}, fields...)...)

	start := time.Now()
	err := s.db.WithContext(ctx).Transaction(fn)
	if err == nil {
		s.metrics.Observe(op, metrics.OutcomeOK, time.Since(start))
		return nil
	}

	e := classify(err, failed)
	s.metrics.Observe(op, e.Code, time.Since(start))
	if e.Kind == KindUnexpected {
		s.metrics.Fault(op, err)
		log.Error(op+" failed", zap.String("code", e.Code), zap.Error(err))
	} else {
		log.Warn(op+" rejected", zap.String("code", e.Code), zap.String("detail", e.Detail))
	}
	return e
}

func findSession(tx *gorm.DB, id string, notFound *Error, field string) (*models.TableSession, error) {
	var session models.TableSession
	if err := tx.First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound.with(field, "session %s does not exist", id)
		}
		return nil, err
	}
	return &session, nil
}

// mainInvoice returns the session's own open invoice: not merged away, not a
// split child and not cancelled. It returns nil when there is none.
func mainInvoice(tx *gorm.DB, sessionID string) (*models.Invoice, error) {
	var invoices []models.Invoice
	err := tx.
		Where("table_session_id = ? AND merged_invoice_id IS NULL AND parent_invoice_id IS NULL AND status <> ?",
			sessionID, models.InvoiceCancelled).
		Order("created_at, id").
		Limit(1).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return &invoices[0], nil
}

// openInvoice returns the session's main invoice, creating an empty unpaid one
// when the session has none.
func openInvoice(tx *gorm.DB, sessionID, actorID string) (*models.Invoice, bool, error) {
	invoice, err := mainInvoice(tx, sessionID)
	if err != nil || invoice != nil {
		return invoice, false, err
	}
	invoice = &models.Invoice{
		TableSessionID: sessionID,
		Status:         models.InvoiceUnpaid,
		CreatedBy:      actorID,
		UpdatedBy:      actorID,
	}
	if err := tx.Create(invoice).Error; err != nil {
		return nil, false, err
	}
	return invoice, true, nil
}

// totalPaid sums the completed payments attached to an invoice.
func totalPaid(tx *gorm.DB, invoiceID string) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := tx.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("invoice_id = ? AND status = ?", invoiceID, models.PaymentCompleted).
		Row().
		Scan(&paid)
	if err != nil {
		return decimal.Zero, err
	}
	return billing.Round(paid), nil
}

// reprice moves an invoice's pre-discount total by delta and recomputes its
// final amount and status with its own rates.
func reprice(tx *gorm.DB, invoice *models.Invoice, delta decimal.Decimal, actorID string) error {
	total := invoice.TotalAmount.Add(delta)
	if total.IsNegative() {
		total = decimal.Zero
	}
	final := billing.FinalAmount(total, invoice.Discount, invoice.Tax)
	paid, err := totalPaid(tx, invoice.ID)
	if err != nil {
		return err
	}
	status := billing.DeriveStatus(final, paid)

	err = tx.Model(&models.Invoice{}).Where("id = ?", invoice.ID).Updates(map[string]any{
		"total_amount": total,
		"final_amount": final,
		"status":       status,
		"updated_by":   actorID,
	}).Error
	if err != nil {
		return err
	}
	invoice.TotalAmount, invoice.FinalAmount, invoice.Status, invoice.UpdatedBy = total, final, status, actorID
	return nil
}

// itemValues sums item line totals per session, grouping orders by
// sessionColumn (table_session_id or origin_session_id).
func itemValues(tx *gorm.DB, sessionColumn, query string, args ...any) (map[string]decimal.Decimal, error) {
	var rows []struct {
		SessionID string
		Amount    decimal.Decimal
	}
	err := tx.Model(&models.OrderItem{}).
		Select("orders."+sessionColumn+" AS session_id, COALESCE(SUM(order_items.total_price), 0) AS amount").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where(query, args...).
		Group("orders." + sessionColumn).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	values := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		values[r.SessionID] = billing.Round(r.Amount)
	}
	return values, nil
}

// refreshOrderTotal recomputes an order's total from its items.
func refreshOrderTotal(tx *gorm.DB, orderID, actorID string) error {
	var total decimal.Decimal
	err := tx.Model(&models.OrderItem{}).
		Select("COALESCE(SUM(total_price), 0)").
		Where("order_id = ?", orderID).
		Row().
		Scan(&total)
	if err != nil {
		return err
	}
	return tx.Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]any{
		"total_amount": billing.Round(total),
		"updated_by":   actorID,
	}).Error
}

func loadInvoice(tx *gorm.DB, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := tx.
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at, id") }).
		Preload("Promotions", func(db *gorm.DB) *gorm.DB { return db.Order("applied_at, id") }).
		Preload("TableSession").
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
