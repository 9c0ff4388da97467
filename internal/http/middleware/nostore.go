package middleware

import "github.com/gofiber/fiber/v2"

// NoStore marks responses as uncacheable. Used for views of the storage directory,
// which change whenever a phone uploads.
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Next()
	}
}
