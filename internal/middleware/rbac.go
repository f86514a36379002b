package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/opvera/opvera-api/internal/utils"
)

// RequireRole ensures that the authenticated user holds one of the allowed
// roles. Role matching is case-insensitive.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals("user_role"))
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RejectBanned blocks requests whose token carries the banned role.
// Tokens minted before a ban keep working until they expire; the service
// layer re-checks the stored role for moderation-sensitive actions.
func RejectBanned() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if normalizeRoleValue(c.Locals("user_role")) == "banned" {
			return utils.SendError(c, fiber.StatusForbidden, "account is banned")
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case fmt.Stringer:
		return strings.ToLower(strings.TrimSpace(v.String()))
	default:
		if value == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
	}
}
