package database

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TxKey is the fiber Locals key holding the per-request transaction.
const TxKey = "tx"

// FromCtx returns the request transaction opened by middlewares.RequestTx,
// falling back to the shared pool.
func FromCtx(c *fiber.Ctx) (*gorm.DB, error) {
	if v := c.Locals(TxKey); v != nil {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx, nil
		}
	}
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	return DB.WithContext(c.UserContext()), nil
}
