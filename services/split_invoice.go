package services

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/billing"
	"restaurant-backend/models"
)

// SplitGroup becomes one child invoice. It is priced either from order items
// or as a percentage of the parent's total.
type SplitGroup struct {
	OrderItemIDs []string
	Percentage   *decimal.Decimal
}

type SplitInvoiceRequest struct {
	InvoiceID string
	Splits    []SplitGroup
	ActorID   string
}

type SplitInvoiceOutcome struct {
	Invoice  *models.Invoice  `json:"invoice"`
	Children []models.Invoice `json:"children"`
}

// SplitInvoice carves child invoices out of an open invoice. Children inherit
// the parent's discount and tax; the parent is left holding the remainder.
func (s *Service) SplitInvoice(ctx context.Context, req SplitInvoiceRequest) (*SplitInvoiceOutcome, error) {
	if req.InvoiceID == "" {
		return nil, ErrInvalidRequest.with("invoice_id", "invoice is required")
	}
	if len(req.Splits) == 0 {
		return nil, ErrInvalidRequest.with("splits", "at least one split is required")
	}
	used := map[string]struct{}{}
	for i, g := range req.Splits {
		switch {
		case len(g.OrderItemIDs) == 0 && g.Percentage == nil:
			return nil, ErrInvalidRequest.with("splits", "split %d has neither items nor a percentage", i)
		case len(g.OrderItemIDs) > 0 && g.Percentage != nil:
			return nil, ErrInvalidRequest.with("splits", "split %d mixes items and a percentage", i)
		case g.Percentage != nil && (!g.Percentage.IsPositive() || g.Percentage.GreaterThanOrEqual(decimal.NewFromInt(100))):
			return nil, ErrInvalidRequest.with("splits", "split %d percentage must be between 0 and 100", i)
		}
		for _, id := range g.OrderItemIDs {
			if _, dup := used[id]; dup {
				return nil, ErrInvalidRequest.with("splits", "order item %s appears in more than one split", id)
			}
			used[id] = struct{}{}
		}
	}

	var out *SplitInvoiceOutcome
	fields := []zap.Field{
		zap.String("invoice_id", req.InvoiceID),
		zap.Int("splits", len(req.Splits)),
		zap.String("actor_id", req.ActorID),
	}
	err := s.run(ctx, "split_invoice", ErrSplitFailed, fields, func(tx *gorm.DB) error {
		var err error
		out, err = s.splitInvoice(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice split", append(fields, zap.String("remaining", out.Invoice.FinalAmount.StringFixed(2)))...)
	return out, nil
}

func (s *Service) splitInvoice(tx *gorm.DB, req SplitInvoiceRequest) (*SplitInvoiceOutcome, error) {
	parent, err := findInvoice(tx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !parent.Splittable() {
		return nil, ErrInvoiceNotSplittable.with("invoice_id", "invoice %s is %s", parent.ID, parent.Status)
	}

	// price every group before writing anything
	children := make([]models.Invoice, 0, len(req.Splits))
	subtotals, childFinals := decimal.Zero, decimal.Zero
	for _, g := range req.Splits {
		var subtotal decimal.Decimal
		if g.Percentage != nil {
			subtotal = billing.Percentage(parent.TotalAmount, *g.Percentage)
		} else {
			if subtotal, err = itemsSubtotal(tx, parent.TableSessionID, g.OrderItemIDs); err != nil {
				return nil, err
			}
		}
		parentID := parent.ID
		child := models.Invoice{
			TableSessionID:  parent.TableSessionID,
			ParentInvoiceID: &parentID,
			Status:          models.InvoiceUnpaid,
			TotalAmount:     subtotal,
			Discount:        parent.Discount,
			Tax:             parent.Tax,
			FinalAmount:     billing.FinalAmount(subtotal, parent.Discount, parent.Tax),
			CreatedBy:       req.ActorID,
			UpdatedBy:       req.ActorID,
		}
		subtotals = subtotals.Add(subtotal)
		childFinals = childFinals.Add(child.FinalAmount)
		children = append(children, child)
	}

	remaining := parent.FinalAmount.Sub(childFinals)
	if !remaining.IsPositive() {
		return nil, ErrSplitExceedsTotal.with("splits", "splits total %s against an invoice of %s",
			childFinals.StringFixed(2), parent.FinalAmount.StringFixed(2))
	}

	if err := tx.Create(&children).Error; err != nil {
		return nil, err
	}
	for i, g := range req.Splits {
		if len(g.OrderItemIDs) == 0 {
			continue
		}
		err := tx.Model(&models.OrderItem{}).Where("id IN ?", g.OrderItemIDs).Updates(map[string]any{
			"invoice_id": children[i].ID,
			"updated_by": req.ActorID,
		}).Error
		if err != nil {
			return nil, err
		}
	}

	paid, err := totalPaid(tx, parent.ID)
	if err != nil {
		return nil, err
	}
	total := parent.TotalAmount.Sub(subtotals)
	if total.IsNegative() {
		total = decimal.Zero
	}
	err = tx.Model(&models.Invoice{}).Where("id = ?", parent.ID).Updates(map[string]any{
		"total_amount": total,
		"final_amount": remaining,
		"status":       billing.DeriveStatus(remaining, paid),
		"updated_by":   req.ActorID,
	}).Error
	if err != nil {
		return nil, err
	}

	refreshed, err := loadInvoice(tx, parent.ID)
	if err != nil {
		return nil, err
	}
	return &SplitInvoiceOutcome{Invoice: refreshed, Children: children}, nil
}

// itemsSubtotal sums the line totals of items billed on the session's main
// invoice, failing when any id is unknown there or already split off.
func itemsSubtotal(tx *gorm.DB, sessionID string, itemIDs []string) (decimal.Decimal, error) {
	var items []models.OrderItem
	err := tx.
		Where("id IN ? AND order_id IN (?)", itemIDs,
			tx.Model(&models.Order{}).Select("id").Where("table_session_id = ?", sessionID)).
		Find(&items).Error
	if err != nil {
		return decimal.Zero, err
	}
	if len(items) != len(uniqueIDs(itemIDs)) {
		found := make(map[string]struct{}, len(items))
		for _, it := range items {
			found[it.ID] = struct{}{}
		}
		for _, id := range itemIDs {
			if _, ok := found[id]; !ok {
				return decimal.Zero, ErrItemNotInSource.with("order_item_ids", "order item %s is not billed on session %s", id, sessionID)
			}
		}
	}
	sum := decimal.Zero
	for _, it := range items {
		if it.InvoiceID != nil {
			return decimal.Zero, ErrItemNotInSource.with("order_item_ids", "order item %s is already billed on invoice %s", it.ID, *it.InvoiceID)
		}
		sum = sum.Add(it.TotalPrice)
	}
	return billing.Round(sum), nil
}
