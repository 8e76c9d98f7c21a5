package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"restaurant-backend/middlewares"
	"restaurant-backend/models"
	"restaurant-backend/utils"
)

type MenuItemInput struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Active      *bool           `json:"active"`
}

type MenuItemPatch struct {
	Name        *string          `json:"name" validate:"omitempty,max=120"`
	Description *string          `json:"description"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Active      *bool            `json:"active"`
}

// CreateMenuItems creates a batch of menu items; one bad entry rejects the batch.
func (a *API) CreateMenuItems(c *fiber.Ctx) error {
	var inputs []MenuItemInput
	if err := c.BodyParser(&inputs); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(inputs) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no menu items given")
	}

	db, err := conn(c)
	if err != nil {
		return err
	}

	created := make([]models.MenuItem, 0, len(inputs))
	for i := range inputs {
		input := &inputs[i]
		utils.NormalizeDTO(input)
		if err := middlewares.ValidateStruct(input); err != nil {
			return err
		}
		if input.UnitPrice.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid unit price at index %d", i))
		}

		item := models.MenuItem{
			Name:        input.Name,
			Description: input.Description,
			UnitPrice:   input.UnitPrice,
			Active:      input.Active == nil || *input.Active,
		}
		if err := db.Create(&item).Error; err != nil {
			return err
		}
		created = append(created, item)
	}

	return ok(c, fiber.StatusCreated, created)
}

// GetMenuItems lists menu items; ?active=true limits to what can be ordered.
func (a *API) GetMenuItems(c *fiber.Ctx) error {
	db, err := conn(c)
	if err != nil {
		return err
	}

	q := db.Model(&models.MenuItem{}).Order("name")
	if c.Query("active") == "true" {
		q = q.Where("active = ?", true)
	}
	var items []models.MenuItem
	if err := q.Find(&items).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, items)
}

func (a *API) UpdateMenuItem(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var data MenuItemPatch
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&data)
	if data.UnitPrice != nil && data.UnitPrice.IsNegative() {
		return fiber.NewError(fiber.StatusBadRequest, "invalid unit price")
	}

	db, err := conn(c)
	if err != nil {
		return err
	}

	var item models.MenuItem
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		return notFound(err, "menu item")
	}
	if updates := utils.UpdatesFromPtrDTO(&data, nil); len(updates) > 0 {
		if err := db.Model(&item).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, item)
}
