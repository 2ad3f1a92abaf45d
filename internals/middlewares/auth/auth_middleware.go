package auth

import (
	"errors"
	"log"
	"time"

	"drivingschool_backend/internals/features/users/auth/store"
	helper "drivingschool_backend/internals/helpers"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Options struct {
	DB     *gorm.DB
	Tokens store.RevokedTokenStore
	Secret string
	// Skew tolerated on exp.
	Skew time.Duration
}

// AuthMiddleware verifies the bearer JWT and stores the principal in Locals.
func AuthMiddleware(opts Options) fiber.Handler {
	if opts.Skew == 0 {
		opts.Skew = 30 * time.Second
	}
	return func(c *fiber.Ctx) error {
		tokenString, err := extractBearerToken(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		if opts.Secret == "" {
			log.Println("[ERROR] JWT_SECRET is empty")
			return fiber.NewError(fiber.StatusInternalServerError, "Missing JWT Secret")
		}

		claims := jwt.MapClaims{}
		parser := jwt.Parser{SkipClaimsValidation: true, ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
		if _, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(opts.Secret), nil
		}); err != nil {
			log.Println("[ERROR] token parse:", err)
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Token parse error")
		}

		exp, err := validateTokenExpiry(claims, opts.Skew)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Token expired")
		}

		if opts.Tokens != nil {
			revoked, err := opts.Tokens.IsRevoked(c.UserContext(), tokenString)
			if err != nil {
				log.Println("[ERROR] revoked-token lookup:", err)
				return fiber.NewError(fiber.StatusInternalServerError, "Internal Server Error")
			}
			if revoked {
				return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Token is revoked")
			}
		}

		userID, err := extractUserID(claims)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Invalid or missing user ID")
		}

		if opts.DB != nil {
			if err := ensureUserActive(opts.DB.WithContext(c.UserContext()), userID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - User not found")
				}
				return fiber.NewError(fiber.StatusForbidden, "Account is deactivated")
			}
		}

		c.Locals(helper.LocUserID, userID.String())
		c.Locals(helper.LocToken, tokenString)
		c.Locals("token_exp", exp)
		storeBasicClaimsToLocals(c, claims)
		return c.Next()
	}
}
