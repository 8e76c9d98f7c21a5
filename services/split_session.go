package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/billing"
	"restaurant-backend/models"
)

type TransferItem struct {
	OrderItemID string
	Quantity    int
}

// SplitSessionRequest moves items to an existing session (TargetSessionID) or
// to a new session opened on TargetTableID. Exactly one of the two is set.
type SplitSessionRequest struct {
	SourceSessionID string
	Items           []TransferItem
	TargetSessionID string
	TargetTableID   string
	ActorID         string
}

type SplitSessionOutcome struct {
	SourceSession *models.TableSession `json:"source_session"`
	TargetSession *models.TableSession `json:"target_session"`
	SourceInvoice *models.Invoice      `json:"source_invoice"`
	TargetInvoice *models.Invoice      `json:"target_invoice"`
	Order         *models.Order        `json:"order"`
	Transferred   decimal.Decimal      `json:"transferred"`
}

// SplitSession moves order items, whole or in part, from one session to
// another and reprices both invoices by the value moved.
func (s *Service) SplitSession(ctx context.Context, req SplitSessionRequest) (*SplitSessionOutcome, error) {
	if req.SourceSessionID == "" {
		return nil, ErrInvalidRequest.with("session_id", "source session is required")
	}
	if (req.TargetSessionID == "") == (req.TargetTableID == "") {
		return nil, ErrInvalidRequest.with("target", "exactly one of target_session_id and target_table_id is required")
	}
	if len(req.Items) == 0 {
		return nil, ErrInvalidRequest.with("items", "at least one item is required")
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, it := range req.Items {
		if it.OrderItemID == "" {
			return nil, ErrInvalidRequest.with("items", "order item id is required")
		}
		if it.Quantity < 1 {
			return nil, ErrInvalidRequest.with("items", "quantity for %s must be at least 1", it.OrderItemID)
		}
		if _, dup := seen[it.OrderItemID]; dup {
			return nil, ErrInvalidRequest.with("items", "order item %s is listed twice", it.OrderItemID)
		}
		seen[it.OrderItemID] = struct{}{}
	}

	var out *SplitSessionOutcome
	fields := []zap.Field{
		zap.String("source_session_id", req.SourceSessionID),
		zap.String("target_session_id", req.TargetSessionID),
		zap.String("target_table_id", req.TargetTableID),
		zap.Int("items", len(req.Items)),
		zap.String("actor_id", req.ActorID),
	}
	err := s.run(ctx, "split_session", ErrSplitFailed, fields, func(tx *gorm.DB) error {
		var err error
		out, err = s.splitSession(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("session split", append(fields,
		zap.String("resolved_target_session_id", out.TargetSession.ID),
		zap.String("transferred", out.Transferred.StringFixed(2)))...)
	return out, nil
}

func (s *Service) splitSession(tx *gorm.DB, req SplitSessionRequest) (*SplitSessionOutcome, error) {
	now := s.now()

	source, err := findSession(tx, req.SourceSessionID, ErrSessionNotFound, "session_id")
	if err != nil {
		return nil, err
	}
	if !source.Status.Open() {
		return nil, ErrSessionNotSplittable.with("session_id", "session %s is %s", source.ID, source.Status)
	}

	var target *models.TableSession
	var table *models.DiningTable
	if req.TargetSessionID != "" {
		if target, err = findSession(tx, req.TargetSessionID, ErrSessionNotFound, "target_session_id"); err != nil {
			return nil, err
		}
		if target.ID == source.ID {
			return nil, ErrSessionNotSplittable.with("target_session_id", "session %s cannot be split into itself", source.ID)
		}
		if !target.Status.Open() {
			return nil, ErrSessionNotSplittable.with("target_session_id", "session %s is %s", target.ID, target.Status)
		}
	} else {
		table = &models.DiningTable{}
		if err := tx.First(table, "id = ?", req.TargetTableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTableNotFound.with("target_table_id", "table %s does not exist", req.TargetTableID)
			}
			return nil, err
		}
		if !table.Active {
			return nil, ErrTableNotFound.with("target_table_id", "table %s is not in service", table.ID)
		}
	}

	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.OrderItemID)
	}
	sourceOrders := tx.Model(&models.Order{}).Select("id").Where("table_session_id = ?", source.ID)
	var found []models.OrderItem
	if err := tx.Where("id IN ? AND order_id IN (?)", ids, sourceOrders).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.OrderItem, len(found))
	for _, it := range found {
		byID[it.ID] = it
	}

	transfer := decimal.Zero
	fully := 0
	for _, want := range req.Items {
		item, ok := byID[want.OrderItemID]
		if !ok {
			return nil, ErrItemNotInSource.with("items", "order item %s is not in session %s", want.OrderItemID, source.ID)
		}
		if item.InvoiceID != nil {
			return nil, ErrItemNotInSource.with("items", "order item %s is billed on split invoice %s", item.ID, *item.InvoiceID)
		}
		if want.Quantity > item.Quantity {
			return nil, ErrQuantityExceedsAvailable.with("items", "order item %s has %d, asked for %d",
				item.ID, item.Quantity, want.Quantity)
		}
		if want.Quantity == item.Quantity {
			fully++
		}
		transfer = transfer.Add(item.LineTotal(want.Quantity))
	}
	transfer = billing.Round(transfer)

	sourceInvoice, err := mainInvoice(tx, source.ID)
	if err != nil {
		return nil, err
	}
	if sourceInvoice == nil {
		return nil, ErrInvoiceNotFound.with("session_id", "session %s has no open invoice", source.ID)
	}
	paid, err := totalPaid(tx, sourceInvoice.ID)
	if err != nil {
		return nil, err
	}
	remaining := sourceInvoice.FinalAmount.Sub(paid)
	if transfer.GreaterThanOrEqual(remaining) {
		return nil, ErrTransferExceedsRemaining.with("items", "transfer of %s against %s remaining",
			transfer.StringFixed(2), remaining.StringFixed(2))
	}

	var itemCount int64
	if err := tx.Model(&models.OrderItem{}).Where("order_id IN (?)", sourceOrders).Count(&itemCount).Error; err != nil {
		return nil, err
	}
	if int64(fully) >= itemCount {
		return nil, ErrSourceWouldBeEmptied.with("items", "all %d items of session %s would move", itemCount, source.ID)
	}

	if target == nil {
		sourceID, tableID := source.ID, table.ID
		target = &models.TableSession{
			Type:            models.SessionTypeOffline,
			Status:          models.SessionActive,
			TableID:         &tableID,
			ParentSessionID: &sourceID,
			StartedAt:       now,
			CustomerID:      source.CustomerID,
			EmployeeID:      source.EmployeeID,
			CreatedBy:       req.ActorID,
			UpdatedBy:       req.ActorID,
		}
		if err := tx.Create(target).Error; err != nil {
			return nil, err
		}
	}

	targetInvoice, created, err := openInvoice(tx, target.ID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if created {
		// a fresh invoice bills the moved items at the source's rates
		err = tx.Model(&models.Invoice{}).Where("id = ?", targetInvoice.ID).Updates(map[string]any{
			"discount": sourceInvoice.Discount,
			"tax":      sourceInvoice.Tax,
		}).Error
		if err != nil {
			return nil, err
		}
		targetInvoice.Discount, targetInvoice.Tax = sourceInvoice.Discount, sourceInvoice.Tax
	}

	order := &models.Order{
		TableSessionID: target.ID,
		Status:         models.OrderOpen,
		Note:           "split from session " + source.ID,
		CreatedBy:      req.ActorID,
		UpdatedBy:      req.ActorID,
	}
	if err := tx.Create(order).Error; err != nil {
		return nil, err
	}

	touched := map[string]struct{}{}
	for _, want := range req.Items {
		item := byID[want.OrderItemID]
		touched[item.OrderID] = struct{}{}

		if want.Quantity == item.Quantity {
			err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).Updates(map[string]any{
				"order_id":   order.ID,
				"updated_by": req.ActorID,
			}).Error
			if err != nil {
				return nil, err
			}
			continue
		}

		left := item.Quantity - want.Quantity
		err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).Updates(map[string]any{
			"quantity":    left,
			"total_price": billing.Round(item.LineTotal(left)),
			"updated_by":  req.ActorID,
		}).Error
		if err != nil {
			return nil, err
		}
		moved := models.OrderItem{
			OrderID:    order.ID,
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   want.Quantity,
			Price:      item.Price,
			TotalPrice: billing.Round(item.LineTotal(want.Quantity)),
			CreatedBy:  req.ActorID,
			UpdatedBy:  req.ActorID,
		}
		if err := tx.Create(&moved).Error; err != nil {
			return nil, err
		}
	}

	touched[order.ID] = struct{}{}
	for orderID := range touched {
		if err := refreshOrderTotal(tx, orderID, req.ActorID); err != nil {
			return nil, err
		}
	}

	if err := reprice(tx, sourceInvoice, transfer.Neg(), req.ActorID); err != nil {
		return nil, err
	}
	if err := reprice(tx, targetInvoice, transfer, req.ActorID); err != nil {
		return nil, err
	}

	out := &SplitSessionOutcome{Transferred: transfer}
	if out.SourceSession, err = findSession(tx, source.ID, ErrSessionNotFound, "session_id"); err != nil {
		return nil, err
	}
	if out.TargetSession, err = findSession(tx, target.ID, ErrSessionNotFound, "target_session_id"); err != nil {
		return nil, err
	}
	if out.SourceInvoice, err = loadInvoice(tx, sourceInvoice.ID); err != nil {
		return nil, err
	}
	if out.TargetInvoice, err = loadInvoice(tx, targetInvoice.ID); err != nil {
		return nil, err
	}
	out.Order = &models.Order{}
	if err := tx.Preload("Items").First(out.Order, "id = ?", order.ID).Error; err != nil {
		return nil, err
	}
	return out, nil
}
