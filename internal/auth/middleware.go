package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/pkg/models"
)

// actorKey is the fiber.Locals key holding the request's *Actor.
const actorKey = "actor"

/* ================================ Actor ================================= */

// Actor is the authenticated user for one request. It is resolved once by
// RequireAuth and passed explicitly to everything downstream.
type Actor struct {
	UserID uuid.UUID
	Role   models.Role
	Name   string
	// ProfileID is advocate_profiles.id or client_profiles.id depending on Role.
	ProfileID uuid.UUID
}

func (a *Actor) IsAdvocate() bool { return a.Role == models.RoleAdvocate }
func (a *Actor) IsClient() bool   { return a.Role == models.RoleClient }
func (a *Actor) IsAdmin() bool    { return a.Role == models.RoleAdmin }

// SetActor stores the actor on the request context.
func SetActor(c *fiber.Ctx, a *Actor) { c.Locals(actorKey, a) }

// MustActor reads the actor from context or panics (programming error).
func MustActor(c *fiber.Ctx) *Actor {
	if a, ok := c.Locals(actorKey).(*Actor); ok && a != nil {
		return a
	}
	panic(errors.New("actor not in context"))
}

// LoadActor resolves the role profile for a user.
func LoadActor(db *gorm.DB, userID uuid.UUID) (*Actor, error) {
	var u models.User
	if err := db.First(&u, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	a := &Actor{UserID: u.ID, Role: u.Role, Name: u.FullName}

	switch u.Role {
	case models.RoleAdvocate:
		var p models.AdvocateProfile
		if err := db.Select("id").First(&p, "user_id = ?", u.ID).Error; err != nil {
			return nil, err
		}
		a.ProfileID = p.ID
	case models.RoleClient:
		var p models.ClientProfile
		if err := db.Select("id").First(&p, "user_id = ?", u.ID).Error; err != nil {
			return nil, err
		}
		a.ProfileID = p.ID
	}
	return a, nil
}

/* ============================== JWT Claims ============================== */

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub  string `json:"sub"`  // user ID
	Role string `json:"role"` // "advocate" | "client" | "admin"
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

// Tokens signs and verifies bearer tokens with a shared secret.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
}

// Issue signs a JWT for the given user and role.
func (t Tokens) Issue(userID uuid.UUID, role models.Role) (string, error) {
	claims := &Claims{
		Sub:  userID.String(),
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.TTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

// Parse validates a token and returns its claims.
func (t Tokens) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tk *jwt.Token) (any, error) {
		return t.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}

/* ============================== Middleware ============================== */

// RequireAuth validates a Bearer JWT and injects the Actor into the context.
func RequireAuth(db *gorm.DB, tokens Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}

		claims, err := tokens.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		userID, err := uuid.Parse(claims.Sub)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		actor, err := LoadActor(db.WithContext(c.UserContext()), userID)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		SetActor(c, actor)
		return c.Next()
	}
}

// RequireRole ensures the authenticated user has one of the expected roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a := MustActor(c)
		for _, r := range roles {
			if a.Role == r {
				return c.Next()
			}
		}
		return fiber.ErrForbidden
	}
}

/* ============================ Request logging =========================== */

// RequestLogger logs one structured line per request.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if a, ok := c.Locals(actorKey).(*Actor); ok && a != nil {
			fields = append(fields, zap.String("user_id", a.UserID.String()))
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("request", append(fields, zap.Error(err))...)
		} else {
			log.Info("request", fields...)
		}
		return err
	}
}

/* =========================== Error Formatting =========================== */

// httpCodeToString converts an HTTP status code to a short, stable string.
func httpCodeToString(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusUnprocessableEntity:
		return "UNPROCESSABLE_ENTITY"
	case fiber.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

// ErrorHandler is a global Fiber error handler that returns a consistent JSON shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := fiber.ErrInternalServerError.Message

	// Fiber errors carry status codes; anything else stays a bare 500
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if strings.TrimSpace(fe.Message) != "" {
			msg = fe.Message
		}
	}

	return c.Status(code).JSON(models.ErrorResponse{
		Code:    httpCodeToString(code),
		Error:   true,
		Message: msg,
	})
}
