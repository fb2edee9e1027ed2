package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/dto"
	"github.com/torvix/backend/internal/httputil"
	"github.com/torvix/backend/internal/middleware"
	"github.com/torvix/backend/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user))
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}

	resp, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return err
	}

	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}

	resp, err := h.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(resp)
}

// Logout always reports success, whatever the state of the presented token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err == nil && req.RefreshToken != "" {
		h.authService.Logout(c.UserContext(), req.RefreshToken)
	}
	return c.JSON(dto.SuccessResponse{Success: true})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(dto.NewUserResponse(middleware.CurrentUser(c).User))
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}

	user, err := h.authService.UpdateProfile(c.UserContext(), middleware.CurrentUser(c).User, &req)
	if err != nil {
		return err
	}

	return c.JSON(dto.NewUserResponse(user))
}

func (h *AuthHandler) EmailExists(c *fiber.Ctx) error {
	query := dto.EmailExistsQuery{Email: c.Query("email")}
	if err := httputil.Validate(&query); err != nil {
		return err
	}

	email, exists, err := h.authService.EmailExists(c.UserContext(), query.Email)
	if err != nil {
		return err
	}

	return c.JSON(dto.EmailExistsResponse{Email: email, Exists: exists})
}
