package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restaurant-backend/middlewares"
	"restaurant-backend/models"
)

type RegisterInput struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates a staff account. The very first account becomes admin,
// every later one starts as waiter.
func (a *API) Register(c *fiber.Ctx) error {
	var data RegisterInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(data.Email))

	db, err := conn(c)
	if err != nil {
		return err
	}

	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return fail(c, fiber.StatusBadRequest, "email already exists")
	}

	var users int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	role := models.RoleWaiter
	if users == 0 {
		role = models.RoleAdmin
	}

	user := models.User{
		FirstName: strings.TrimSpace(data.FirstName),
		LastName:  strings.TrimSpace(data.LastName),
		Email:     email,
		Role:      role,
	}
	if err := user.SetPassword(data.Password); err != nil {
		return err
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	a.log.Info("user registered", zap.String("user_id", user.Id), zap.String("role", string(role)))
	return ok(c, fiber.StatusCreated, user)
}

func (a *API) Login(c *fiber.Ctx) error {
	var data LoginInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}

	db, err := conn(c)
	if err != nil {
		return err
	}

	var user models.User
	err = db.Where("email = ?", strings.ToLower(strings.TrimSpace(data.Email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, fiber.StatusBadRequest, "invalid credentials")
		}
		return err
	}
	if err := user.ComparePassword(data.Password); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid credentials")
	}

	token, err := middlewares.GenerateJWT(a.jwtSecret, user.Id, user.Role)
	if err != nil {
		return err
	}

	return ok(c, fiber.StatusOK, fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.Id,
			"name":  user.FirstName + " " + user.LastName,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func (a *API) Logout(c *fiber.Ctx) error {
	cookie := fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	}
	c.Cookie(&cookie)
	return ok(c, fiber.StatusOK, fiber.Map{"message": "success"})
}
