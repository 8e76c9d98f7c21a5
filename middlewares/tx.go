package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/database"
)

// RequestTx opens a per-request DB transaction, committed when the handler
// chain succeeds and rolled back otherwise.
// Order: run AFTER IsAuthenticatedHeader() and AFTER Idempotency()
// (so idempotency records aren't tied to the handler TX).
// Handlers that call the session/invoice engine must not run under it.
func RequestTx(db *gorm.DB, log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx) (err error) {
		tx := db.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}

		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r) // re-panic after rollback so Fiber's handler can catch
			}
			if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				log.Error("tx commit failed", zap.String("path", c.Path()), zap.Error(e))
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
			}
		}()

		// Make the TX available to handlers via database.FromCtx(c).
		c.Locals(database.TxKey, tx)

		err = c.Next()
		return err
	}
}
