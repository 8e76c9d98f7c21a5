package controllers

import (
	"github.com/gofiber/fiber/v2"

	"restaurant-backend/middlewares"
	"restaurant-backend/models"
	"restaurant-backend/utils"
)

type CustomerInput struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number"`
	Note        string `json:"note"`
}

type CustomerPatch struct {
	FirstName   *string `json:"first_name" validate:"omitempty,min=1"`
	LastName    *string `json:"last_name" validate:"omitempty,min=1"`
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
	Note        *string `json:"note"`
}

func (a *API) CreateCustomer(c *fiber.Ctx) error {
	var data CustomerInput
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

	customer := models.Customer{
		FirstName:   data.FirstName,
		LastName:    data.LastName,
		Email:       data.Email,
		PhoneNumber: data.PhoneNumber,
		Note:        data.Note,
		Active:      true,
	}
	if err := db.Create(&customer).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, customer)
}

func (a *API) UpdateCustomer(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var data CustomerPatch
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizePtrDTO(&data)
	if err := middlewares.ValidateStruct(&data); err != nil {
		return err
	}

	db, err := conn(c)
	if err != nil {
		return err
	}

	var customer models.Customer
	if err := db.First(&customer, "id = ?", id).Error; err != nil {
		return notFound(err, "customer")
	}
	if updates := utils.UpdatesFromPtrDTO(&data, nil); len(updates) > 0 {
		if err := db.Model(&customer).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&customer, "id = ?", id).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, customer)
}

func (a *API) GetCustomers(c *fiber.Ctx) error {
	db, err := conn(c)
	if err != nil {
		return err
	}

	limit, offset := utils.Page(c.Query("limit"), c.Query("offset"), 50, 200)
	q := db.Model(&models.Customer{}).Where("active = ?", true)
	if s := c.Query("q"); s != "" {
		like := "%" + s + "%"
		q = q.Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ?", like, like, like)
	}

	var customers []models.Customer
	if err := q.Order("last_name, first_name").Limit(limit).Offset(offset).Find(&customers).Error; err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, customers)
}

func (a *API) GetCustomer(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db, err := conn(c)
	if err != nil {
		return err
	}

	var customer models.Customer
	if err := db.First(&customer, "id = ?", id).Error; err != nil {
		return notFound(err, "customer")
	}
	return ok(c, fiber.StatusOK, customer)
}
