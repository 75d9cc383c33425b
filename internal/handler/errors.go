package handler

import (
	"errors"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/repository"
	"go-pos-ws/internal/service"
	"go-pos-ws/internal/sessionid"
	"go-pos-ws/internal/storage"
	"go-pos-ws/internal/terminal"
	"go-pos-ws/pkg/jwt"
	"go-pos-ws/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var statusByError = []struct {
	err    error
	status int
}{
	{validator.ErrValidation, fiber.StatusBadRequest},
	{cart.ErrOutOfStock, fiber.StatusBadRequest},
	{cart.ErrStockExceeded, fiber.StatusBadRequest},
	{cart.ErrUnknownVariation, fiber.StatusBadRequest},
	{cart.ErrLineNotFound, fiber.StatusBadRequest},
	{cart.ErrNegativeDiscount, fiber.StatusBadRequest},
	{cart.ErrEmptyCart, fiber.StatusBadRequest},
	{cart.ErrInsufficientPayment, fiber.StatusBadRequest},
	{cart.ErrUnknownPayment, fiber.StatusBadRequest},
	{service.ErrInvalidStock, fiber.StatusBadRequest},
	{service.ErrInvalidStatus, fiber.StatusBadRequest},
	{service.ErrInvalidDateFormat, fiber.StatusBadRequest},
	{service.ErrInvalidQuantity, fiber.StatusBadRequest},
	{service.ErrNegativeTotal, fiber.StatusBadRequest},
	{service.ErrProductNotInSession, fiber.StatusBadRequest},
	{service.ErrNotAnImage, fiber.StatusBadRequest},
	{service.ErrInvalidPrivilege, fiber.StatusBadRequest},
	{terminal.ErrNoSession, fiber.StatusBadRequest},
	{terminal.ErrProductNotFound, fiber.StatusBadRequest},

	{service.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{service.ErrUserInactive, fiber.StatusUnauthorized},
	{service.ErrSessionRevoked, fiber.StatusUnauthorized},
	{jwt.ErrInvalidToken, fiber.StatusUnauthorized},
	{jwt.ErrMissingToken, fiber.StatusUnauthorized},

	{service.ErrNotInvited, fiber.StatusForbidden},
	{service.ErrCannotModifySelf, fiber.StatusForbidden},
	{terminal.ErrNotYourTerminal, fiber.StatusForbidden},

	{service.ErrSessionNotFound, fiber.StatusNotFound},
	{service.ErrProductNotFound, fiber.StatusNotFound},
	{service.ErrUserNotFound, fiber.StatusNotFound},
	{service.ErrRoleNotFound, fiber.StatusNotFound},
	{service.ErrInvitationNotFound, fiber.StatusNotFound},
	{terminal.ErrTerminalNotFound, fiber.StatusNotFound},

	{service.ErrSessionCompleted, fiber.StatusConflict},
	{service.ErrSessionIDTaken, fiber.StatusConflict},
	{service.ErrEmailExists, fiber.StatusConflict},
	{service.ErrAlreadyInvited, fiber.StatusConflict},
	{repository.ErrInsufficientStock, fiber.StatusConflict},
	{cart.ErrCheckoutInFlight, fiber.StatusConflict},

	{sessionid.ErrIDExhausted, fiber.StatusServiceUnavailable},
	{storage.ErrStorageDisabled, fiber.StatusServiceUnavailable},
}

// errorStatus maps a service error to its HTTP status. Unknown errors are
// internal.
func errorStatus(err error) int {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

// respondError writes the error body. Internal errors are not echoed.
func respondError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
