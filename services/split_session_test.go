package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-backend/models"
)

type transferFixture struct {
	*fixture
	source *models.TableSession
	inv    *models.Invoice
	steak  models.OrderItem
	wine   models.OrderItem
}

// newTransferFixture seats a party with 2 steaks at 25 and a wine at 30.
func newTransferFixture(t *testing.T, tax string) *transferFixture {
	f := newFixture(t)
	source := f.session(models.SessionActive)
	order := f.order(source.ID, line{"steak", 2, "25"}, line{"wine", 1, "30"})
	inv := f.invoice(source.ID, "80", "0", tax, models.InvoiceUnpaid)
	return &transferFixture{fixture: f, source: source, inv: inv, steak: order.Items[0], wine: order.Items[1]}
}

func TestSplitSessionToNewTable(t *testing.T) {
	f := newTransferFixture(t, "0")
	table := f.table("T7", true)

	out, err := f.svc.SplitSession(context.Background(), SplitSessionRequest{
		SourceSessionID: f.source.ID,
		Items:           []TransferItem{{OrderItemID: f.steak.ID, Quantity: 1}},
		TargetTableID:   table.ID,
		ActorID:         actor,
	})
	require.NoError(t, err)

	assertMoney(t, "25", out.Transferred)
	require.NotNil(t, out.TargetSession.TableID)
	assert.Equal(t, table.ID, *out.TargetSession.TableID)
	require.NotNil(t, out.TargetSession.ParentSessionID)
	assert.Equal(t, f.source.ID, *out.TargetSession.ParentSessionID)
	assert.Equal(t, models.SessionActive, out.TargetSession.Status)

	left := f.reloadItem(f.steak.ID)
	assert.Equal(t, 1, left.Quantity)
	assertMoney(t, "25", left.TotalPrice)

	require.Len(t, out.Order.Items, 1)
	moved := out.Order.Items[0]
	assert.NotEqual(t, f.steak.ID, moved.ID)
	assert.Equal(t, "steak", moved.Name)
	assert.Equal(t, 1, moved.Quantity)
	assertMoney(t, "25", moved.TotalPrice)
	assertMoney(t, "25", out.Order.TotalAmount)
	assert.Equal(t, out.TargetSession.ID, out.Order.TableSessionID)

	assertMoney(t, "55", out.SourceInvoice.TotalAmount)
	assertMoney(t, "55", out.SourceInvoice.FinalAmount)
	assertMoney(t, "25", out.TargetInvoice.TotalAmount)
	assertMoney(t, "25", out.TargetInvoice.FinalAmount)
	assert.Equal(t, models.InvoiceUnpaid, out.TargetInvoice.Status)

	assertMoney(t, "55", f.reloadOrder(f.steak.OrderID).TotalAmount)
}

func TestSplitSessionMovesWholeItemToExistingSession(t *testing.T) {
	f := newTransferFixture(t, "10")
	target := f.session(models.SessionActive)
	targetInv := f.invoice(target.ID, "10", "0", "0", models.InvoiceUnpaid)

	out, err := f.svc.SplitSession(context.Background(), SplitSessionRequest{
		SourceSessionID: f.source.ID,
		Items:           []TransferItem{{OrderItemID: f.wine.ID, Quantity: 1}},
		TargetSessionID: target.ID,
		ActorID:         actor,
	})
	require.NoError(t, err)

	assert.Equal(t, target.ID, out.TargetSession.ID)
	assert.Equal(t, targetInv.ID, out.TargetInvoice.ID)

	wine := f.reloadItem(f.wine.ID)
	assert.Equal(t, out.Order.ID, wine.OrderID)
	assert.Equal(t, 1, wine.Quantity)

	// each invoice keeps its own rates
	assertMoney(t, "50", out.SourceInvoice.TotalAmount)
	assertMoney(t, "55", out.SourceInvoice.FinalAmount)
	assertMoney(t, "40", out.TargetInvoice.TotalAmount)
	assertMoney(t, "40", out.TargetInvoice.FinalAmount)
}

func TestSplitSessionNewInvoiceTakesSourceRates(t *testing.T) {
	f := newTransferFixture(t, "10")
	target := f.session(models.SessionPending)

	out, err := f.svc.SplitSession(context.Background(), SplitSessionRequest{
		SourceSessionID: f.source.ID,
		Items:           []TransferItem{{OrderItemID: f.steak.ID, Quantity: 2}},
		TargetSessionID: target.ID,
		ActorID:         actor,
	})
	require.NoError(t, err)
	assertMoney(t, "10", out.TargetInvoice.Tax)
	assertMoney(t, "55", out.TargetInvoice.FinalAmount)
	assertMoney(t, "33", out.SourceInvoice.FinalAmount)
}

func TestSplitSessionRejectsTransferAboveRemaining(t *testing.T) {
	f := newTransferFixture(t, "0")
	f.payment(f.inv.ID, "60", models.PaymentCompleted)
	table := f.table("T2", true)

	_, err := f.svc.SplitSession(context.Background(), SplitSessionRequest{
		SourceSessionID: f.source.ID,
		Items:           []TransferItem{{OrderItemID: f.wine.ID, Quantity: 1}},
		TargetTableID:   table.ID,
		ActorID:         actor,
	})
	require.ErrorIs(t, err, ErrTransferExceedsRemaining)

	assert.Equal(t, int64(0), f.count(&models.TableSession{}, "id <> ?", f.source.ID))
	assert.Equal(t, f.steak.OrderID, f.reloadItem(f.wine.ID).OrderID)
}

func TestSplitSessionRejectsEmptyingSource(t *testing.T) {
	f := newTransferFixture(t, "10")
	table := f.table("T3", true)

	_, err := f.svc.SplitSession(context.Background(), SplitSessionRequest{
		SourceSessionID: f.source.ID,
		Items: []TransferItem{
			{OrderItemID: f.steak.ID, Quantity: 2},
			{OrderItemID: f.wine.ID, Quantity: 1},
		},
		TargetTableID: table.ID,
		ActorID:       actor,
	})
	require.ErrorIs(t, err, ErrSourceWouldBeEmptied)
	assert.Equal(t, int64(0), f.count(&models.Order{}, "table_session_id <> ?", f.source.ID))
}

func TestSplitSessionRejectsUnknownAndExcessItems(t *testing.T) {
	f := newTransferFixture(t, "0")
	table := f.table("T4", true)
	elsewhere := f.session(models.SessionActive)
	foreign := f.order(elsewhere.ID, line{"tea", 1, "3"})

	_, err := f.svc.SplitSession(context.Background(), SplitSessionRequest{
		SourceSessionID: f.source.ID,
		Items:           []TransferItem{{OrderItemID: foreign.Items[0].ID, Quantity: 1}},
		TargetTableID:   table.ID,
		ActorID:         actor,
	})
	assert.ErrorIs(t, err, ErrItemNotInSource)

	_, err = f.svc.SplitSession(context.Background(), SplitSessionRequest{
		SourceSessionID: f.source.ID,
		Items:           []TransferItem{{OrderItemID: f.steak.ID, Quantity: 3}},
		TargetTableID:   table.ID,
		ActorID:         actor,
	})
	assert.ErrorIs(t, err, ErrQuantityExceedsAvailable)
}

func TestSplitSessionRejectsItemsOnSplitInvoice(t *testing.T) {
	f := newTransferFixture(t, "0")
	table := f.table("T5", true)
	split, err := f.svc.SplitInvoice(context.Background(), SplitInvoiceRequest{
		InvoiceID: f.inv.ID,
		Splits:    []SplitGroup{{OrderItemIDs: []string{f.wine.ID}}},
		ActorID:   actor,
	})
	require.NoError(t, err)

	_, err = f.svc.SplitSession(context.Background(), SplitSessionRequest{
		SourceSessionID: f.source.ID,
		Items:           []TransferItem{{OrderItemID: f.wine.ID, Quantity: 1}},
		TargetTableID:   table.ID,
		ActorID:         actor,
	})
	require.ErrorIs(t, err, ErrItemNotInSource)

	assert.Equal(t, f.steak.OrderID, f.reloadItem(f.wine.ID).OrderID)
	assertMoney(t, "30", f.reloadInvoice(split.Children[0].ID).FinalAmount)
	assert.Equal(t, int64(0), f.count(&models.TableSession{}, "id <> ?", f.source.ID))
}

func TestSplitSessionTargets(t *testing.T) {
	f := newTransferFixture(t, "0")
	closed := f.session(models.SessionCompleted)
	idle := f.table("T5", false)
	items := []TransferItem{{OrderItemID: f.wine.ID, Quantity: 1}}

	cases := []struct {
		name string
		req  SplitSessionRequest
		want *Error
	}{
		{"no target", SplitSessionRequest{SourceSessionID: f.source.ID, Items: items}, ErrInvalidRequest},
		{"both targets", SplitSessionRequest{SourceSessionID: f.source.ID, Items: items, TargetSessionID: closed.ID, TargetTableID: idle.ID}, ErrInvalidRequest},
		{"no items", SplitSessionRequest{SourceSessionID: f.source.ID, TargetTableID: idle.ID}, ErrInvalidRequest},
		{"zero quantity", SplitSessionRequest{SourceSessionID: f.source.ID, Items: []TransferItem{{OrderItemID: f.wine.ID}}, TargetTableID: idle.ID}, ErrInvalidRequest},
		{"unknown source", SplitSessionRequest{SourceSessionID: "missing", Items: items, TargetTableID: idle.ID}, ErrSessionNotFound},
		{"closed source", SplitSessionRequest{SourceSessionID: closed.ID, Items: items, TargetTableID: idle.ID}, ErrSessionNotSplittable},
		{"unknown target session", SplitSessionRequest{SourceSessionID: f.source.ID, Items: items, TargetSessionID: "missing"}, ErrSessionNotFound},
		{"closed target session", SplitSessionRequest{SourceSessionID: f.source.ID, Items: items, TargetSessionID: closed.ID}, ErrSessionNotSplittable},
		{"same session", SplitSessionRequest{SourceSessionID: f.source.ID, Items: items, TargetSessionID: f.source.ID}, ErrSessionNotSplittable},
		{"inactive table", SplitSessionRequest{SourceSessionID: f.source.ID, Items: items, TargetTableID: idle.ID}, ErrTableNotFound},
		{"unknown table", SplitSessionRequest{SourceSessionID: f.source.ID, Items: items, TargetTableID: "missing"}, ErrTableNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.ActorID = actor
			_, err := f.svc.SplitSession(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
