package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"restaurant-backend/middlewares"
	"restaurant-backend/models"
	"restaurant-backend/utils"
)

type PromotionInput struct {
	Code string          `json:"code" validate:"required,alphanum,max=32"`
	Name string          `json:"name" validate:"required,max=120"`
	Rate decimal.Decimal `json:"rate"`
}

func (a *API) CreatePromotion(c *fiber.Ctx) error {
	var data PromotionInput
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizeDTO(&data)
	if err := middlewares.ValidateStruct(&data); err != nil {
		return err
	}
	if !data.Rate.IsPositive() || data.Rate.GreaterThan(hundred) {
		return fail(c, fiber.StatusUnprocessableEntity, "rate must be between 0 and 100")
	}

	db, err := conn(c)
	if err != nil {
		return err
	}

	code := strings.ToUpper(data.Code)
	var taken int64
	if err := db.Model(&models.Promotion{}).Where("code = ?", code).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return fail(c, fiber.StatusConflict, "promotion code already exists")
	}

	promotion := models.Promotion{Code: code, Name: data.Name, Rate: data.Rate, Active: true}
	if err := db.Create(&promotion).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, promotion)
}

func (a *API) GetPromotions(c *fiber.Ctx) error {
	db, err := conn(c)
	if err != nil {
		return err
	}
	var promotions []models.Promotion
	if err := db.Where("active = ?", true).Order("code").Find(&promotions).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, promotions)
}
