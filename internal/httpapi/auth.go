package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
)

// Claims is the token payload the API trusts: the subject is the user
// id, role is advisory and re-checked against the user store for
// anything permissioned.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken validates an HMAC-signed token and returns its claims.
func ParseToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Newf(apperr.KindAuth, "unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, "parse token", err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, apperr.New(apperr.KindAuth, "invalid token")
	}
	return claims, nil
}

// RequireAuth guards API routes with a Bearer token and stores the
// caller's id and role in request locals.
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization"})
		}
		claims, err := ParseToken(secret, parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("user_id", claims.Subject)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}
