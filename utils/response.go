package utils

import (
	"github.com/gofiber/fiber/v2"
)

// ErrorResponse writes a failure body. Every failure carries at least an
// "error" string; internal errors never leak details to the client.
func ErrorResponse(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// ValidationErrorResponse writes a 400 with per-field detail messages.
func ValidationErrorResponse(c *fiber.Ctx, details []string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "Validation failed",
		"details": details,
	})
}
