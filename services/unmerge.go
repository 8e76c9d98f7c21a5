package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/models"
)

type UnmergeRequest struct {
	MergedSessionID string
	ActorID         string
}

type UnmergeOutcome struct {
	RestoredSessions   []models.TableSession `json:"restored_sessions"`
	RestoredInvoiceIDs []string              `json:"restored_invoice_ids"`
	MovedOrders        int64                 `json:"moved_orders"`
	CancelledInvoice   *models.Invoice       `json:"cancelled_invoice"`
	CancelledSession   *models.TableSession  `json:"cancelled_session"`
}

// Unmerge reverses a merge as long as nothing has been paid on the merged
// invoice. Sources get their invoices and orders back; the merge session and
// its consolidated invoice are cancelled.
func (s *Service) Unmerge(ctx context.Context, req UnmergeRequest) (*UnmergeOutcome, error) {
	if req.MergedSessionID == "" {
		return nil, ErrInvalidRequest.with("session_id", "merged session is required")
	}

	var out *UnmergeOutcome
	fields := []zap.Field{
		zap.String("merged_session_id", req.MergedSessionID),
		zap.String("actor_id", req.ActorID),
	}
	err := s.run(ctx, "unmerge", ErrUnmergeFailed, fields, func(tx *gorm.DB) error {
		var err error
		out, err = s.unmerge(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("session unmerged", append(fields, zap.Int("restored_sessions", len(out.RestoredSessions)))...)
	return out, nil
}

func (s *Service) unmerge(tx *gorm.DB, req UnmergeRequest) (*UnmergeOutcome, error) {
	now := s.now()

	merged, err := findSession(tx, req.MergedSessionID, ErrSessionNotFound, "session_id")
	if err != nil {
		return nil, err
	}
	if merged.Type != models.SessionTypeMerge {
		return nil, ErrNotAMergedSession.with("session_id", "session %s is of type %s", merged.ID, merged.Type)
	}

	var sourceIDs []string
	err = tx.Model(&models.TableSession{}).
		Where("merged_into_session_id = ? AND status = ?", merged.ID, models.SessionMerged).
		Order("id").
		Pluck("id", &sourceIDs).Error
	if err != nil {
		return nil, err
	}
	if len(sourceIDs) == 0 {
		return nil, ErrNoSourceSessionsFound.with("session_id", "no session is merged into %s", merged.ID)
	}

	consolidated, err := mainInvoice(tx, merged.ID)
	if err != nil {
		return nil, err
	}
	var restoredInvoiceIDs []string
	if consolidated != nil {
		paid, err := totalPaid(tx, consolidated.ID)
		if err != nil {
			return nil, err
		}
		if paid.IsPositive() {
			return nil, ErrCannotUnmergeHasPayments.with("session_id", "invoice %s has %s paid", consolidated.ID, paid.StringFixed(2))
		}

		err = tx.Model(&models.Invoice{}).
			Where("merged_invoice_id = ? AND table_session_id IN ?", consolidated.ID, sourceIDs).
			Order("id").
			Pluck("id", &restoredInvoiceIDs).Error
		if err != nil {
			return nil, err
		}
		if len(restoredInvoiceIDs) > 0 {
			err = tx.Model(&models.Invoice{}).Where("id IN ?", restoredInvoiceIDs).Updates(map[string]any{
				"status":            models.InvoiceUnpaid,
				"merged_invoice_id": nil,
				"updated_by":        req.ActorID,
			}).Error
			if err != nil {
				return nil, err
			}
		}

		err = tx.Model(&models.Invoice{}).Where("id = ?", consolidated.ID).Updates(map[string]any{
			"status":     models.InvoiceCancelled,
			"updated_by": req.ActorID,
		}).Error
		if err != nil {
			return nil, err
		}
	}

	atMerge, err := mergedItemValues(tx, merged.ID)
	if err != nil {
		return nil, err
	}
	current, err := itemValues(tx, "origin_session_id",
		"orders.table_session_id = ? AND orders.origin_session_id IN ?", merged.ID, sourceIDs)
	if err != nil {
		return nil, err
	}

	err = tx.Model(&models.TableSession{}).Where("id IN ?", sourceIDs).Updates(map[string]any{
		"status":                 models.SessionActive,
		"merged_into_session_id": nil,
		"ended_at":               nil,
		"updated_by":             req.ActorID,
	}).Error
	if err != nil {
		return nil, err
	}

	// orders go back to the session they were first placed on
	res := tx.Model(&models.Order{}).
		Where("table_session_id = ? AND origin_session_id IN ?", merged.ID, sourceIDs).
		Updates(map[string]any{
			"table_session_id":  gorm.Expr("origin_session_id"),
			"origin_session_id": nil,
			"updated_by":        req.ActorID,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	// a restored invoice bills what its orders are worth now, not at merge time
	for _, id := range sourceIDs {
		before, ok := atMerge[id]
		if !ok {
			continue
		}
		delta := current[id].Sub(before)
		if delta.IsZero() {
			continue
		}
		invoice, err := mainInvoice(tx, id)
		if err != nil {
			return nil, err
		}
		if invoice == nil {
			continue
		}
		if err := reprice(tx, invoice, delta, req.ActorID); err != nil {
			return nil, err
		}
	}

	err = tx.Model(&models.TableSession{}).Where("id = ?", merged.ID).Updates(map[string]any{
		"status":     models.SessionCancelled,
		"ended_at":   now,
		"updated_by": req.ActorID,
	}).Error
	if err != nil {
		return nil, err
	}

	err = tx.Model(&models.SessionMerge{}).
		Where("target_session_id = ? AND reverted_at IS NULL", merged.ID).
		Updates(map[string]any{"reverted_at": now, "reverted_by": req.ActorID}).Error
	if err != nil {
		return nil, err
	}

	out := &UnmergeOutcome{RestoredInvoiceIDs: restoredInvoiceIDs, MovedOrders: res.RowsAffected}
	if err := tx.Where("id IN ?", sourceIDs).Order("id").Find(&out.RestoredSessions).Error; err != nil {
		return nil, err
	}
	if consolidated != nil {
		if out.CancelledInvoice, err = loadInvoice(tx, consolidated.ID); err != nil {
			return nil, err
		}
	}
	if out.CancelledSession, err = findSession(tx, merged.ID, ErrSessionNotFound, "session_id"); err != nil {
		return nil, err
	}
	return out, nil
}

// mergedItemValues collects, per source session, the order value recorded by
// the merges still in effect on mergedID.
func mergedItemValues(tx *gorm.DB, mergedID string) (map[string]decimal.Decimal, error) {
	var records []models.SessionMerge
	if err := tx.Where("target_session_id = ? AND reverted_at IS NULL", mergedID).Find(&records).Error; err != nil {
		return nil, err
	}
	values := map[string]decimal.Decimal{}
	for _, r := range records {
		var snapshot mergeSnapshot
		if err := json.Unmarshal(r.Snapshot, &snapshot); err != nil {
			return nil, fmt.Errorf("decode merge snapshot %s: %w", r.ID, err)
		}
		for id, v := range snapshot.SourceItemValues {
			values[id] = values[id].Add(v)
		}
	}
	return values, nil
}
