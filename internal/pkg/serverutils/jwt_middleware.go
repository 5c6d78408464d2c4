package serverutils

import (
	"strings"

	"docchat-client/internal/entity"

	"github.com/gofiber/fiber/v2"
)

// IdentityVerifier is the part of the identity service the bridge needs.
type IdentityVerifier interface {
	Verify(accessToken string) (entity.Identity, error)
	Current() (entity.Identity, bool)
}

// BearerToken reads the token from the Authorization header, falling back to
// the "token" query parameter browsers use for websockets.
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

// JwtMiddleware admits requests carrying a valid token of the signed-in user.
// The workspace serves one user at a time.
func JwtMiddleware(identities IdentityVerifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		identity, err := identities.Verify(tokenStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		current, ok := identities.Current()
		if !ok || current.Id != identity.Id {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Not the signed-in user"))
		}

		ctx.Locals("user_id", identity.Id.String())
		return ctx.Next()
	}
}
