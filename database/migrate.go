package database

import (
	"fmt"

	"gorm.io/gorm"

	"restaurant-backend/models"
)

// Migrate applies idempotent schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - on postgres: money column types, CHECK constraints and the promotion pair index
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}
		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		// --- Enforce money columns as NUMERIC(12,2) (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE menu_items   ALTER COLUMN unit_price   TYPE numeric(12,2)`,
			`ALTER TABLE invoices     ALTER COLUMN total_amount TYPE numeric(12,2)`,
			`ALTER TABLE invoices     ALTER COLUMN final_amount TYPE numeric(12,2)`,
			`ALTER TABLE order_items  ALTER COLUMN price        TYPE numeric(12,2)`,
			`ALTER TABLE order_items  ALTER COLUMN total_price  TYPE numeric(12,2)`,
			`ALTER TABLE payments     ALTER COLUMN amount       TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_promotions_pair ON invoice_promotions (invoice_id, promotion_id)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_invoice_status ON payments (invoice_id, status)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_session_origin ON orders (table_session_id, origin_session_id)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []struct{ table, name, expr string }{
			{"invoices", "chk_invoices_discount_range", "discount >= 0 AND discount <= 100"},
			{"invoices", "chk_invoices_tax_nonneg", "tax >= 0"},
			{"invoices", "chk_invoices_merged_status", "merged_invoice_id IS NULL OR status = 'merged'"},
			{"payments", "chk_payments_amount_nonneg", "amount >= 0"},
			{"order_items", "chk_order_items_quantity_pos", "quantity > 0"},
			{"table_sessions", "chk_table_sessions_merged_target", "status <> 'merged' OR merged_into_session_id IS NOT NULL"},
		}
		for _, c := range checks {
			stmt := fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%s'::regclass
		  AND conname  = '%s'
	) THEN
		ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
	END IF;
END $$;`, c.table, c.name, c.table, c.name, c.expr)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed on %s: %w", c.name, err)
			}
		}
		return nil
	})
}
