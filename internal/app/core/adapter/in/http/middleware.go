package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// callerLocal is the fiber locals key holding the resolved caller id.
const callerLocal = "callerID"

// CallerHeader names the header carrying the already-authenticated caller
// identity. Session handling lives outside this service; the gateway in
// front of it resolves the session and injects this header.
const CallerHeader = "X-Caller-Id"

// WithCaller rejects requests without a parseable caller id and stashes
// the id for the handlers.
func WithCaller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(CallerHeader)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{"code": "missing_caller", "message": "caller identity not resolved"},
			})
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{"code": "invalid_caller", "message": "caller id must be a uuid"},
			})
		}
		c.Locals(callerLocal, id)
		return c.Next()
	}
}

func callerID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(callerLocal).(uuid.UUID)
	return id
}
