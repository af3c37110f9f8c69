// Package httperr renders handler errors as {"error": msg}.
package httperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Handler is the app-wide fiber.ErrorHandler. Errors that are not
// *fiber.Error are logged and hidden behind a 500.
func Handler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		} else {
			log.WithFields(logrus.Fields{
				"method":     c.Method(),
				"path":       c.Path(),
				"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
			}).WithError(err).Error("unhandled error")
		}

		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
