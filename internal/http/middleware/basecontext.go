package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// BaseContext makes ctx the parent of every request's user context, so work a
// handler starts (print jobs, storage calls) is cancelled when ctx is.
// Register it before middleware that wraps the user context, such as otelfiber.
func BaseContext(ctx context.Context) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(ctx)
		return c.Next()
	}
}
