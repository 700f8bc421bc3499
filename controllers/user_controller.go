package controller

import (
	"errors"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"propleads/store"
	"propleads/utils"
)

type UserController struct {
	Store  store.Storage
	Logger *logrus.Logger
}

func NewUserController(st store.Storage, logger *logrus.Logger) *UserController {
	return &UserController{
		Store:  st,
		Logger: logger,
	}
}

// CreateUser registers a new account
func (uc *UserController) CreateUser(c *fiber.Ctx) error {
	var input struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name" validate:"required,max=100"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if details := utils.ValidateStruct(input); details != nil {
		return utils.ValidationErrorResponse(c, details)
	}
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return utils.ValidationErrorResponse(c, []string{"email must be a valid email"})
	}

	// Email uniqueness is the boundary's responsibility, not the store's.
	if _, err := uc.Store.GetUserByEmail(c.Context(), input.Email); err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "User with this email already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		utils.LogError("user_lookup_failed", err, map[string]interface{}{"email": input.Email})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	user, err := uc.Store.CreateUser(c.Context(), input.Email, input.Name)
	if err != nil {
		utils.LogError("user_create_failed", err, nil)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	return c.JSON(user)
}

// GetUser returns a single user by ID
func (uc *UserController) GetUser(c *fiber.Ctx) error {
	user, err := uc.Store.GetUser(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found")
		}
		utils.LogError("user_fetch_failed", err, map[string]interface{}{"id": c.Params("id")})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch user")
	}
	return c.JSON(user)
}
