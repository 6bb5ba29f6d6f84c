package middleware

import (
	"strings"
	"time"

	"hrms_go/models"
	"hrms_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

// Claims are issued by the auth service; this API only verifies them.
type Claims struct {
	EmployeeID uint             `json:"employee_id"`
	Auth       models.AuthLevel `json:"auth"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for an employee.
func GenerateToken(emp *models.Employee, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		EmployeeID: emp.ID,
		Auth:       emp.Auth,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// JWTMiddleware validates the bearer token and checks the employee is still active.
func JWTMiddleware(secret string, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token claims",
			})
		}

		var emp models.Employee
		if err := db.WithContext(c.UserContext()).
			Where("id = ? AND status = ?", claims.EmployeeID, "active").
			Take(&emp).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Employee not found or inactive",
			})
		}
		// the stored level wins over a stale claim
		claims.Auth = emp.Auth

		c.Locals("employee", &emp)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// ScopeMiddleware resolves the requester's AccessScope once per request.
func ScopeMiddleware(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := GetCurrentClaims(c)
		if err != nil {
			return err
		}
		scope, err := services.ResolveAccessScope(c.UserContext(), db, claims.EmployeeID)
		if err != nil {
			if services.IsKind(err, services.KindNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "Employee not found")
			}
			return fiber.NewError(fiber.StatusServiceUnavailable, "Unable to resolve access scope")
		}
		c.Locals("scope", scope)
		return c.Next()
	}
}

// RequireRole allows only the listed auth levels.
func RequireRole(levels ...models.AuthLevel) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*Claims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing user claims",
			})
		}

		for _, level := range levels {
			if claims.Auth == level {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Insufficient permissions",
		})
	}
}

// RequireAdminOrHR allows the privileged roles.
func RequireAdminOrHR() fiber.Handler {
	return RequireRole(models.AuthAdmin, models.AuthHR)
}

// RequireManagerOrAbove allows Admin, HR and Manager.
func RequireManagerOrAbove() fiber.Handler {
	return RequireRole(models.AuthAdmin, models.AuthHR, models.AuthManager)
}

// GetCurrentClaims returns the current JWT claims
func GetCurrentClaims(c *fiber.Ctx) (*Claims, error) {
	claims, ok := c.Locals("claims").(*Claims)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Claims not found in context")
	}
	return claims, nil
}

// GetCurrentScope returns the scope stored by ScopeMiddleware.
func GetCurrentScope(c *fiber.Ctx) (*services.AccessScope, error) {
	scope, ok := c.Locals("scope").(*services.AccessScope)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Access scope not found in context")
	}
	return scope, nil
}
