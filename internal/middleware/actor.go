package middleware

import (
	"handyhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ActorHeader carries the acting user's id, set by the upstream auth gateway.
const ActorHeader = "X-Actor-Id"

const actorLocal = "actor_id"

// ActorIdentity parses ActorHeader into Locals. A malformed id is rejected;
// a missing one leaves the request anonymous.
func ActorIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(ActorHeader)
		if raw == "" {
			return c.Next()
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return response.Error(c, "Invalid "+ActorHeader+" header", fiber.StatusBadRequest, nil)
		}
		c.Locals(actorLocal, id)
		return c.Next()
	}
}

// RequireActor returns 401 with the standard error format when no actor is set.
func RequireActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := GetActorID(c); !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetActorID returns the acting user's id, if any.
func GetActorID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(actorLocal).(uuid.UUID)
	return id, ok
}

// RequireAdminKey guards operator endpoints with the key query param or X-Admin-Key header.
func RequireAdminKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Query("key")
		if got == "" {
			got = c.Get("X-Admin-Key")
		}
		if key == "" || got != key {
			return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
