package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/billing"
	"restaurant-backend/database/dbtest"
	"restaurant-backend/models"
)

const actor = "11111111-1111-1111-1111-111111111111"

var fixedNow = time.Date(2024, 3, 9, 19, 30, 0, 0, time.UTC)

type fixture struct {
	t   *testing.T
	db  *gorm.DB
	svc *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	svc := NewService(db, zap.NewNop()).WithClock(func() time.Time { return fixedNow })
	return &fixture{t: t, db: db, svc: svc}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, dec(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}

func (f *fixture) table(name string, active bool) *models.DiningTable {
	f.t.Helper()
	table := &models.DiningTable{Name: name, Seats: 4, Active: active}
	require.NoError(f.t, f.db.Create(table).Error)
	return table
}

func (f *fixture) session(status models.SessionStatus) *models.TableSession {
	f.t.Helper()
	session := &models.TableSession{
		Type:      models.SessionTypeOffline,
		Status:    status,
		StartedAt: fixedNow.Add(-time.Hour),
		CreatedBy: actor,
		UpdatedBy: actor,
	}
	require.NoError(f.t, f.db.Create(session).Error)
	return session
}

func (f *fixture) invoice(sessionID, total, discount, tax string, status models.InvoiceStatus) *models.Invoice {
	f.t.Helper()
	invoice := &models.Invoice{
		TableSessionID: sessionID,
		TotalAmount:    dec(total),
		Discount:       dec(discount),
		Tax:            dec(tax),
		FinalAmount:    billing.FinalAmount(dec(total), dec(discount), dec(tax)),
		Status:         status,
		CreatedBy:      actor,
		UpdatedBy:      actor,
	}
	require.NoError(f.t, f.db.Create(invoice).Error)
	return invoice
}

type line struct {
	name  string
	qty   int
	price string
}

func (f *fixture) order(sessionID string, lines ...line) *models.Order {
	f.t.Helper()
	order := &models.Order{
		TableSessionID: sessionID,
		Status:         models.OrderOpen,
		CreatedBy:      actor,
		UpdatedBy:      actor,
	}
	total := decimal.Zero
	for _, l := range lines {
		item := models.OrderItem{Name: l.name, Quantity: l.qty, Price: dec(l.price), CreatedBy: actor, UpdatedBy: actor}
		item.TotalPrice = item.LineTotal(l.qty)
		total = total.Add(item.TotalPrice)
		order.Items = append(order.Items, item)
	}
	order.TotalAmount = total
	require.NoError(f.t, f.db.Create(order).Error)
	return order
}

func (f *fixture) payment(invoiceID, amount string, status models.PaymentStatus) *models.Payment {
	f.t.Helper()
	payment := &models.Payment{
		InvoiceID: invoiceID,
		Amount:    dec(amount),
		Method:    "card",
		Status:    status,
		PaidAt:    fixedNow.Add(-10 * time.Minute),
		CreatedBy: actor,
		UpdatedBy: actor,
	}
	require.NoError(f.t, f.db.Create(payment).Error)
	return payment
}

func (f *fixture) promotion(code, rate string) *models.Promotion {
	f.t.Helper()
	promotion := &models.Promotion{Code: code, Name: code, Rate: dec(rate), Active: true}
	require.NoError(f.t, f.db.Create(promotion).Error)
	return promotion
}

func (f *fixture) applied(invoiceID, promotionID, value string) {
	f.t.Helper()
	row := &models.InvoicePromotion{
		InvoiceID:     invoiceID,
		PromotionID:   promotionID,
		DiscountValue: dec(value),
		AppliedAt:     fixedNow.Add(-time.Hour),
	}
	require.NoError(f.t, f.db.Create(row).Error)
}

func (f *fixture) reloadSession(id string) models.TableSession {
	f.t.Helper()
	var s models.TableSession
	require.NoError(f.t, f.db.First(&s, "id = ?", id).Error)
	return s
}

func (f *fixture) reloadInvoice(id string) models.Invoice {
	f.t.Helper()
	var inv models.Invoice
	require.NoError(f.t, f.db.First(&inv, "id = ?", id).Error)
	return inv
}

func (f *fixture) reloadItem(id string) models.OrderItem {
	f.t.Helper()
	var item models.OrderItem
	require.NoError(f.t, f.db.First(&item, "id = ?", id).Error)
	return item
}

func (f *fixture) reloadOrder(id string) models.Order {
	f.t.Helper()
	var order models.Order
	require.NoError(f.t, f.db.First(&order, "id = ?", id).Error)
	return order
}

func (f *fixture) reloadPayment(id string) models.Payment {
	f.t.Helper()
	var payment models.Payment
	require.NoError(f.t, f.db.First(&payment, "id = ?", id).Error)
	return payment
}

func (f *fixture) count(model any, query string, args ...any) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
