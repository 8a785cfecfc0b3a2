package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sincere-abayo/advocate-management-system/pkg/flash"
	"github.com/sincere-abayo/advocate-management-system/pkg/models"
	"github.com/sincere-abayo/advocate-management-system/pkg/sanitize"
	"github.com/sincere-abayo/advocate-management-system/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /signup
type SignupRequest struct {
	Role     string `json:"role" validate:"required,oneof=advocate client"`
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"max=30"`
	Address  string `json:"address" validate:"max=255"`
	// Advocates only
	LicenseNumber  string `json:"license_number" validate:"required_if=Role advocate,license"`
	Specialization string `json:"specialization" validate:"max=100"`
	// Clients only
	Occupation string `json:"occupation" validate:"max=100"`
}

// Request body for /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required"`
}

// Request body for PUT /me
type ProfileRequest struct {
	FullName       string `json:"full_name" validate:"required,min=2,max=100"`
	Phone          string `json:"phone" validate:"max=30"`
	Address        string `json:"address" validate:"max=255"`
	Specialization string `json:"specialization" validate:"max=100"`
	YearsOfExp     int    `json:"years_of_experience" validate:"gte=0,lte=80"`
	Occupation     string `json:"occupation" validate:"max=100"`
}

// Standard auth response
type AuthResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Profile response for /me
type UserProfileResponse struct {
	ID             uuid.UUID   `json:"id"`
	Email          string      `json:"email"`
	Role           models.Role `json:"role"`
	FullName       string      `json:"full_name"`
	Phone          string      `json:"phone"`
	Address        string      `json:"address"`
	ProfileID      uuid.UUID   `json:"profile_id"`
	LicenseNumber  string      `json:"license_number,omitempty"`
	Specialization string      `json:"specialization,omitempty"`
	YearsOfExp     int         `json:"years_of_experience,omitempty"`
	Occupation     string      `json:"occupation,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

/* ============================== Handler ================================= */

type Handler struct {
	db     *gorm.DB
	tokens Tokens
}

func NewHandler(db *gorm.DB, tokens Tokens) *Handler { return &Handler{db: db, tokens: tokens} }

/* =============================== Signup ================================= */

// @Summary      Sign up
// @Description  Register a new advocate or client; the role profile is created in the same transaction
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  SignupRequest  true  "Signup payload"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "email already exists"
// @Router       /signup [post]
func (h *Handler) Signup(c *fiber.Ctx) error {
	var in SignupRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	password := in.Password
	sanitize.Struct(&in)
	in.Password = password
	in.Email = strings.ToLower(in.Email)

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	u := models.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         models.Role(in.Role),
		FullName:     in.FullName,
		Phone:        in.Phone,
		Address:      in.Address,
	}
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		if u.Role == models.RoleAdvocate {
			return tx.Omit("User").Create(&models.AdvocateProfile{
				UserID:         u.ID,
				LicenseNumber:  in.LicenseNumber,
				Specialization: in.Specialization,
			}).Error
		}
		return tx.Omit("User").Create(&models.ClientProfile{UserID: u.ID, Occupation: in.Occupation}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusConflict, "email already exists")
		}
		return fiber.ErrInternalServerError
	}

	token, err := h.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, Role: string(u.Role)})
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate and receive a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.WithContext(c.UserContext()).Where("email = ?", in.Email).First(&u).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return fiber.ErrUnauthorized
	}

	token, err := h.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(AuthResponse{Token: token, Role: string(u.Role)})
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Description  Return the authenticated user with role-specific profile fields
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  UserProfileResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	resp, err := h.profile(c, MustActor(c))
	if err != nil {
		return fiber.ErrUnauthorized
	}
	return c.JSON(resp)
}

// @Summary      Update current user profile
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  ProfileRequest  true  "Profile payload"
// @Success      200  {object}  models.ActionResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /me [put]
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	actor := MustActor(c)

	var in ProfileRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	sanitize.Struct(&in)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", actor.UserID).Updates(map[string]any{
			"full_name": in.FullName,
			"phone":     in.Phone,
			"address":   in.Address,
		}).Error; err != nil {
			return err
		}
		switch actor.Role {
		case models.RoleAdvocate:
			return tx.Model(&models.AdvocateProfile{}).Where("id = ?", actor.ProfileID).Updates(map[string]any{
				"specialization": in.Specialization,
				"years_of_exp":   in.YearsOfExp,
			}).Error
		case models.RoleClient:
			return tx.Model(&models.ClientProfile{}).Where("id = ?", actor.ProfileID).
				Update("occupation", in.Occupation).Error
		}
		return nil
	})
	if err != nil {
		return flash.Error(c, fiber.StatusInternalServerError, "/me", "Failed to update profile")
	}
	return flash.Success(c, fiber.StatusOK, "/me", "Profile updated successfully", actor.UserID.String())
}

func (h *Handler) profile(c *fiber.Ctx, actor *Actor) (*UserProfileResponse, error) {
	db := h.db.WithContext(c.UserContext())

	var u models.User
	if err := db.First(&u, "id = ?", actor.UserID).Error; err != nil {
		return nil, err
	}
	resp := &UserProfileResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Address:   u.Address,
		ProfileID: actor.ProfileID,
		CreatedAt: u.CreatedAt,
	}
	switch u.Role {
	case models.RoleAdvocate:
		var p models.AdvocateProfile
		if err := db.First(&p, "id = ?", actor.ProfileID).Error; err == nil {
			resp.LicenseNumber = p.LicenseNumber
			resp.Specialization = p.Specialization
			resp.YearsOfExp = p.YearsOfExp
		}
	case models.RoleClient:
		var p models.ClientProfile
		if err := db.First(&p, "id = ?", actor.ProfileID).Error; err == nil {
			resp.Occupation = p.Occupation
		}
	}
	return resp, nil
}
