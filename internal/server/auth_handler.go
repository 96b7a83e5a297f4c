package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"nifty-paper/internal/auth"
	"nifty-paper/internal/models"
)

// AuthHandler serves signup, login and session endpoints.
type AuthHandler struct {
	auth *auth.Service
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// LoginRequest is the login payload. Identifier accepts either the email
// address or the username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// AuthResponse is returned from signup and login.
type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Signup registers a new user and returns a session token.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}

	user, err := h.auth.Signup(c.Request().Context(), req)
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	token, err := h.auth.GenerateToken(user)
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	setTokenCookie(c, token)
	return CreatedResponse(c, AuthResponse{User: user, Token: token})
}

// Login authenticates a user by email or username and issues a token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" || req.Password == "" {
		return BadRequestResponse(c, "identifier and password are required")
	}

	user, token, err := h.auth.Login(c.Request().Context(), identifier, req.Password)
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	setTokenCookie(c, token)
	return SuccessResponse(c, AuthResponse{User: user, Token: token})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return SuccessMessageResponse(c, "logged out", nil)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	claims, ok := GetClaims(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	user, err := h.auth.User(c.Request().Context(), claims)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, user)
}

func setTokenCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
