package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"restaurant-backend/billing"
	"restaurant-backend/models"
)

type MergeRequest struct {
	SourceSessionIDs []string
	TargetSessionID  string
	ActorID          string
}

type MergeOutcome struct {
	Invoice          *models.Invoice      `json:"invoice"`
	MergedSessionIDs []string             `json:"merged_session_ids"`
	TargetSession    *models.TableSession `json:"target_session"`
}

// mergeSnapshot is stored on the SessionMerge audit row.
type mergeSnapshot struct {
	SourceSessionIDs []string       `json:"source_session_ids"`
	SourceInvoiceIDs []string       `json:"source_invoice_ids"`
	TargetInvoice    invoiceFigures `json:"target_invoice_before"`
	InvoiceCreated   bool           `json:"target_invoice_created"`
	MovedPayments    int64          `json:"moved_payments"`
	CopiedPromotions int            `json:"copied_promotions"`
	Result           invoiceFigures `json:"target_invoice_after"`

	// SourceItemValues is the value of each source's orders when they moved.
	SourceItemValues map[string]decimal.Decimal `json:"source_item_values"`
}

type invoiceFigures struct {
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Discount    decimal.Decimal      `json:"discount"`
	Tax         decimal.Decimal      `json:"tax"`
	FinalAmount decimal.Decimal      `json:"final_amount"`
	Status      models.InvoiceStatus `json:"status"`
}

func figuresOf(inv *models.Invoice) invoiceFigures {
	return invoiceFigures{
		TotalAmount: inv.TotalAmount,
		Discount:    inv.Discount,
		Tax:         inv.Tax,
		FinalAmount: inv.FinalAmount,
		Status:      inv.Status,
	}
}

// Merge folds the billing of every source session into the target session:
// invoices are combined into the target's invoice, orders, completed payments
// and promotions move over, and the sources end in status merged.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (*MergeOutcome, error) {
	sourceIDs := uniqueIDs(req.SourceSessionIDs)
	if len(sourceIDs) == 0 {
		return nil, ErrInvalidRequest.with("source_session_ids", "at least one source session is required")
	}
	if req.TargetSessionID == "" {
		return nil, ErrInvalidRequest.with("target_session_id", "target session is required")
	}
	for _, id := range sourceIDs {
		if id == req.TargetSessionID {
			return nil, ErrTargetNotMergeable.with("source_session_ids", "session %s cannot be merged into itself", id)
		}
	}

	var out *MergeOutcome
	fields := []zap.Field{
		zap.Strings("source_session_ids", sourceIDs),
		zap.String("target_session_id", req.TargetSessionID),
		zap.String("actor_id", req.ActorID),
	}
	err := s.run(ctx, "merge", ErrMergeFailed, fields, func(tx *gorm.DB) error {
		var err error
		out, err = s.merge(tx, sourceIDs, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("sessions merged", append(fields, zap.String("invoice_id", out.Invoice.ID))...)
	return out, nil
}

func (s *Service) merge(tx *gorm.DB, sourceIDs []string, req MergeRequest) (*MergeOutcome, error) {
	now := s.now()

	target, err := findSession(tx, req.TargetSessionID, ErrTargetNotMergeable, "target_session_id")
	if err != nil {
		return nil, err
	}
	if !target.Status.Open() {
		return nil, ErrTargetNotMergeable.with("target_session_id", "session %s is %s", target.ID, target.Status)
	}

	var sources []models.TableSession
	if err := tx.Where("id IN ?", sourceIDs).Order("id").Find(&sources).Error; err != nil {
		return nil, err
	}
	if len(sources) != len(sourceIDs) {
		return nil, ErrSourceSessionsNotFound.with("source_session_ids", "unknown sessions: %s",
			strings.Join(missingIDs(sourceIDs, sources), ", "))
	}
	for _, src := range sources {
		if !src.Status.Open() {
			return nil, ErrSourceNotMergeable.with("source_session_ids", "session %s is %s", src.ID, src.Status)
		}
		if src.Type != models.SessionTypeMerge {
			continue
		}
		var held int64
		err := tx.Model(&models.TableSession{}).
			Where("merged_into_session_id = ? AND status = ?", src.ID, models.SessionMerged).
			Count(&held).Error
		if err != nil {
			return nil, err
		}
		if held > 0 {
			return nil, ErrSourceNotMergeable.with("source_session_ids",
				"session %s already holds %d merged sessions; merge into it instead", src.ID, held)
		}
	}

	// 1. source invoices
	var sourceInvoices []models.Invoice
	if err := tx.Where("table_session_id IN ?", sourceIDs).Order("created_at, id").Find(&sourceInvoices).Error; err != nil {
		return nil, err
	}
	sourceInvoiceIDs := make([]string, 0, len(sourceInvoices))
	for _, inv := range sourceInvoices {
		if !inv.Status.Settleable() {
			return nil, ErrInvoiceNotMergeable.with("invoice_id", "invoice %s is %s", inv.ID, inv.Status)
		}
		sourceInvoiceIDs = append(sourceInvoiceIDs, inv.ID)
	}

	// 2. target invoice
	targetInvoice, created, err := openInvoice(tx, target.ID, req.ActorID)
	if err != nil {
		return nil, err
	}
	snapshot := mergeSnapshot{
		SourceSessionIDs: sourceIDs,
		SourceInvoiceIDs: sourceInvoiceIDs,
		TargetInvoice:    figuresOf(targetInvoice),
		InvoiceCreated:   created,
	}

	// 3. recombine amounts, weighting rates by each invoice's total
	total := targetInvoice.TotalAmount
	discounts := []billing.Weighted{{Value: targetInvoice.Discount, Weight: targetInvoice.TotalAmount}}
	taxes := []billing.Weighted{{Value: targetInvoice.Tax, Weight: targetInvoice.TotalAmount}}
	for _, inv := range sourceInvoices {
		total = total.Add(inv.TotalAmount)
		discounts = append(discounts, billing.Weighted{Value: inv.Discount, Weight: inv.TotalAmount})
		taxes = append(taxes, billing.Weighted{Value: inv.Tax, Weight: inv.TotalAmount})
	}
	discount := billing.Round(billing.CombineWeighted(discounts))
	tax := billing.Round(billing.CombineWeighted(taxes))
	final := billing.FinalAmount(total, discount, tax)
	paid, err := totalPaid(tx, targetInvoice.ID)
	if err != nil {
		return nil, err
	}
	err = tx.Model(&models.Invoice{}).Where("id = ?", targetInvoice.ID).Updates(map[string]any{
		"total_amount": total,
		"discount":     discount,
		"tax":          tax,
		"final_amount": final,
		"status":       billing.DeriveStatus(final, paid),
		"updated_by":   req.ActorID,
	}).Error
	if err != nil {
		return nil, err
	}

	// 4. orders follow the sessions; remember where they came from
	if snapshot.SourceItemValues, err = itemValues(tx, "table_session_id", "orders.table_session_id IN ?", sourceIDs); err != nil {
		return nil, err
	}
	err = tx.Model(&models.Order{}).Where("table_session_id IN ?", sourceIDs).Updates(map[string]any{
		"origin_session_id": gorm.Expr("COALESCE(origin_session_id, table_session_id)"),
		"table_session_id":  target.ID,
		"updated_by":        req.ActorID,
	}).Error
	if err != nil {
		return nil, err
	}

	if len(sourceInvoiceIDs) > 0 {
		// 5. source invoices point at the target invoice
		err = tx.Model(&models.Invoice{}).Where("id IN ?", sourceInvoiceIDs).Updates(map[string]any{
			"status":            models.InvoiceMerged,
			"merged_invoice_id": targetInvoice.ID,
			"updated_by":        req.ActorID,
		}).Error
		if err != nil {
			return nil, err
		}

		// 6. completed payments move with them
		res := tx.Model(&models.Payment{}).
			Where("invoice_id IN ? AND status = ?", sourceInvoiceIDs, models.PaymentCompleted).
			Updates(map[string]any{"invoice_id": targetInvoice.ID, "updated_by": req.ActorID})
		if res.Error != nil {
			return nil, res.Error
		}
		snapshot.MovedPayments = res.RowsAffected

		if res.RowsAffected > 0 {
			if paid, err = totalPaid(tx, targetInvoice.ID); err != nil {
				return nil, err
			}
			err = tx.Model(&models.Invoice{}).Where("id = ?", targetInvoice.ID).
				Update("status", billing.DeriveStatus(final, paid)).Error
			if err != nil {
				return nil, err
			}
		}

		// 7. promotions are copied, never duplicated
		copied, err := copyPromotions(tx, sourceInvoiceIDs, targetInvoice.ID, req.ActorID, now)
		if err != nil {
			return nil, err
		}
		snapshot.CopiedPromotions = copied
	}

	// 8. sources are closed into the target
	err = tx.Model(&models.TableSession{}).Where("id IN ?", sourceIDs).Updates(map[string]any{
		"status":                 models.SessionMerged,
		"merged_into_session_id": target.ID,
		"ended_at":               now,
		"updated_by":             req.ActorID,
	}).Error
	if err != nil {
		return nil, err
	}

	// 9. target becomes the merge session
	err = tx.Model(&models.TableSession{}).Where("id = ?", target.ID).Updates(map[string]any{
		"type":       models.SessionTypeMerge,
		"status":     models.SessionActive,
		"updated_by": req.ActorID,
	}).Error
	if err != nil {
		return nil, err
	}

	invoice, err := loadInvoice(tx, targetInvoice.ID)
	if err != nil {
		return nil, err
	}
	snapshot.Result = figuresOf(invoice)
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode merge snapshot: %w", err)
	}
	record := models.SessionMerge{
		TargetSessionID: target.ID,
		TargetInvoiceID: targetInvoice.ID,
		Snapshot:        datatypes.JSON(raw),
		MergedBy:        req.ActorID,
		MergedAt:        now,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}

	refreshed, err := findSession(tx, target.ID, ErrSessionNotFound, "target_session_id")
	if err != nil {
		return nil, err
	}
	return &MergeOutcome{Invoice: invoice, MergedSessionIDs: sourceIDs, TargetSession: refreshed}, nil
}

func copyPromotions(tx *gorm.DB, fromInvoiceIDs []string, toInvoiceID, actorID string, now time.Time) (int, error) {
	var promotions []models.InvoicePromotion
	if err := tx.Where("invoice_id IN ?", fromInvoiceIDs).Order("applied_at, id").Find(&promotions).Error; err != nil {
		return 0, err
	}
	if len(promotions) == 0 {
		return 0, nil
	}

	var existing []string
	if err := tx.Model(&models.InvoicePromotion{}).Where("invoice_id = ?", toInvoiceID).Pluck("promotion_id", &existing).Error; err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}

	copied := 0
	for _, p := range promotions {
		if _, dup := seen[p.PromotionID]; dup {
			continue
		}
		seen[p.PromotionID] = struct{}{}
		row := models.InvoicePromotion{
			InvoiceID:     toInvoiceID,
			PromotionID:   p.PromotionID,
			DiscountValue: p.DiscountValue,
			AppliedAt:     now,
			CreatedBy:     actorID,
			UpdatedBy:     actorID,
		}
		if err := tx.Create(&row).Error; err != nil {
			return 0, err
		}
		copied++
	}
	return copied, nil
}

func missingIDs(want []string, found []models.TableSession) []string {
	have := make(map[string]struct{}, len(found))
	for _, s := range found {
		have[s.ID] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
