package controllers

import (
	"github.com/gofiber/fiber/v2"

	"restaurant-backend/middlewares"
	"restaurant-backend/models"
	"restaurant-backend/utils"
)

type TableInput struct {
	Name  string `json:"name" validate:"required,max=64"`
	Seats int    `json:"seats" validate:"gte=1,lte=50"`
}

func (a *API) CreateTable(c *fiber.Ctx) error {
	var data TableInput
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizeDTO(&data)
	if err := middlewares.ValidateStruct(&data); err != nil {
		return err
	}

	db, err := conn(c)
	if err != nil {
		return err
	}

	var taken int64
	if err := db.Model(&models.DiningTable{}).Where("name = ?", data.Name).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return fail(c, fiber.StatusConflict, "table name already in use")
	}

	table := models.DiningTable{Name: data.Name, Seats: data.Seats, Active: true}
	if err := db.Create(&table).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, table)
}

// GetTables lists tables with the id of the session currently seated there, if any.
func (a *API) GetTables(c *fiber.Ctx) error {
	db, err := conn(c)
	if err != nil {
		return err
	}

	var tables []models.DiningTable
	if err := db.Order("name").Find(&tables).Error; err != nil {
		return err
	}

	var open []models.TableSession
	err = db.Where("table_id IS NOT NULL AND status IN ?", []models.SessionStatus{models.SessionPending, models.SessionActive, models.SessionPaying}).
		Find(&open).Error
	if err != nil {
		return err
	}
	seated := make(map[string]string, len(open))
	for _, s := range open {
		seated[*s.TableID] = s.ID
	}

	type tableView struct {
		models.DiningTable
		SessionID *string `json:"session_id"`
	}
	out := make([]tableView, 0, len(tables))
	for _, t := range tables {
		v := tableView{DiningTable: t}
		if id, found := seated[t.ID]; found {
			v.SessionID = &id
		}
		out = append(out, v)
	}
	return ok(c, fiber.StatusOK, out)
}
