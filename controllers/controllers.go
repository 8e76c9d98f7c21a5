// Package controllers holds the fiber handlers. CRUD handlers work on the
// request transaction from database.FromCtx; session and invoice actions call
// the services engine, which opens its own.
package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/database"
	"restaurant-backend/services"
)

type API struct {
	svc       *services.Service
	jwtSecret []byte
	log       *zap.Logger
}

func New(svc *services.Service, jwtSecret []byte, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{svc: svc, jwtSecret: jwtSecret, log: log.Named("http")}
}

func ok(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": msg,
		"errors":  map[string][]string{},
	})
}

// conn returns the request transaction.
func conn(c *fiber.Ctx) (*gorm.DB, error) {
	db, err := database.FromCtx(c)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "database unavailable")
	}
	return db, nil
}

// idParam reads :id and rejects anything that is not a UUID.
func idParam(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, what+" not found")
	}
	return err
}
