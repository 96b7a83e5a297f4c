// Package auth provides user registration, login and JWT session handling.
package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/models"
	"nifty-paper/internal/store"
)

// Claims are the JWT claims carried by a session token.
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin"`
	jwt.RegisteredClaims
}

// Service handles signup, login and token verification.
type Service struct {
	store          store.DataStore
	secret         []byte
	tokenTTL       time.Duration
	initialBalance float64
	logger         zerolog.Logger
}

// NewService creates an auth service. New users receive a wallet funded with
// initialBalance.
func NewService(dataStore store.DataStore, secret string, tokenTTL time.Duration, initialBalance float64, logger zerolog.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		store:          dataStore,
		secret:         []byte(secret),
		tokenTTL:       tokenTTL,
		initialBalance: initialBalance,
		logger:         logger.With().Str("component", "auth").Logger(),
	}
}

// SignupRequest is the input for registering a new user.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a user and funds their wallet.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if len(req.Username) < 3 {
		return nil, apperrors.NewValidationError("username", req.Username, "must be at least 3 characters")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, apperrors.NewValidationError("email", req.Email, "invalid email address")
	}
	if len(req.Password) < 6 {
		return nil, apperrors.NewValidationError("password", "", "must be at least 6 characters")
	}

	if existing, err := s.store.GetUserByEmail(ctx, req.Email); err != nil {
		return nil, apperrors.Wrap(err, "failed to check email")
	} else if existing != nil {
		return nil, apperrors.ErrDuplicateEmail
	}
	if existing, err := s.store.GetUserByUsername(ctx, req.Username); err != nil {
		return nil, apperrors.Wrap(err, "failed to check username")
	} else if existing != nil {
		return nil, apperrors.ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	wallet := &models.Wallet{
		UserID:        user.ID,
		Balance:       s.initialBalance,
		Currency:      "INR",
		TotalDeposits: s.initialBalance,
		UpdatedAt:     now,
	}

	if err := s.store.CreateUserWithWallet(ctx, user, wallet); err != nil {
		return nil, apperrors.Wrap(err, "failed to create user")
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("User registered")

	return user, nil
}

// Login verifies credentials and returns the user with a session token.
// The identifier may be a username or an email address.
func (s *Service) Login(ctx context.Context, identifier, password string) (*models.User, string, error) {
	identifier = strings.TrimSpace(identifier)

	var user *models.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.store.GetUserByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.store.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, "", apperrors.Wrap(err, "failed to load user")
	}
	if user == nil {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("User logged in")
	return user, token, nil
}

// GenerateToken issues a signed session token for the user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperrors.NewAuthError("token", "failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a session token.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if apperrors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrSessionExpired
		}
		return nil, apperrors.NewAuthError("token", "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrNotAuthenticated
	}
	return claims, nil
}

// User loads the user for a set of verified claims.
func (s *Service) User(ctx context.Context, claims *Claims) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load user")
	}
	if user == nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	return user, nil
}
