package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tiendatec/internal/models"
	"tiendatec/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Token types carried in the token_type claim.
const (
	AccessToken  = "access"
	RefreshToken = "refresh"
)

// TokenBlacklist remembers revoked refresh tokens until they expire.
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenPair is what a successful registration or login hands out.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenClaims is the validated content of a token.
type TokenClaims struct {
	UserID    string
	Email     string
	Role      models.Role
	Type      string
	JTI       string
	ExpiresAt time.Time
}

// RegisterInput is a self sign-up request.
type RegisterInput struct {
	Email                string  `json:"email" validate:"required,email,max=255"`
	Nombre               string  `json:"nombre" validate:"required,max=45"`
	Apellido             string  `json:"apellido" validate:"required,max=50"`
	Password             string  `json:"password" validate:"required"`
	PasswordConfirmacion *string `json:"password_confirmacion"`
	// Roles is accepted for compatibility but always replaced by cliente.
	Roles string `json:"roles"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	blacklist  TokenBlacklist
	events     EventPublisher
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates a new AuthService. events may be nil.
func NewAuthService(userRepo repositories.UserRepository, blacklist TokenBlacklist, events EventPublisher, jwtSecret string, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		blacklist:  blacklist,
		events:     events,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Register creates a client account and logs it in. The requested role is
// ignored: self registration always yields a cliente.
func (s *AuthService) Register(in RegisterInput) (*models.User, *TokenPair, error) {
	email := models.NormalizeEmail(in.Email)

	verr := NewValidationError()
	if err := s.checkEmailFree(email, "", verr); err != nil {
		return nil, nil, err
	}
	for _, problem := range CheckPasswordPolicy(in.Password) {
		verr.Add("password", problem)
	}
	if in.PasswordConfirmacion != nil && *in.PasswordConfirmacion != in.Password {
		verr.Add("password_confirmacion", "Passwords do not match.")
	}
	if verr.Has() {
		return nil, nil, verr
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}
	user := &models.User{
		Email:    email,
		Nombre:   in.Nombre,
		Apellido: in.Apellido,
		Roles:    models.RoleClient,
		Password: hashed,
		IsActive: true,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, nil, fieldError("email", "user with this email already exists.")
		}
		return nil, nil, fmt.Errorf("failed to register user: %w", err)
	}

	tokens, err := s.IssueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(log.Fields{"user_id": user.ID, "email": user.Email}).Info("user registered")
	publish(s.events, EventUserRegistered, user)
	return user, tokens, nil
}

// checkEmailFree records a validation message when email belongs to another user.
func (s *AuthService) checkEmailFree(email, selfID string, verr *ValidationError) error {
	existing, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		verr.Add("email", "user with this email already exists.")
	}
	return nil
}

// Login authenticates a user by email and password and returns a fresh token pair.
func (s *AuthService) Login(email, password string) (*models.User, *TokenPair, error) {
	user, err := s.userRepo.GetByEmail(models.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			log.WithError(err).Error("login lookup failed")
		}
		return nil, nil, ErrInvalidCredentials
	}
	if user == nil || !user.IsActive || !checkPassword(user.Password, password) {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.IssueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// IssueTokens signs a new access/refresh pair for user.
func (s *AuthService) IssueTokens(user *models.User) (*TokenPair, error) {
	access, err := s.signToken(user, AccessToken, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(user, RefreshToken, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *AuthService) signToken(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    user.ID,
		"email":      user.Email,
		"role":       string(user.Roles),
		"token_type": tokenType,
		"jti":        uuid.New().String(),
		"exp":        now.Add(ttl).Unix(),
		"iat":        now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token of the expected type.
func (s *AuthService) ValidateToken(tokenString, expectedType string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.WithError(err).Debug("token validation failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims := &TokenClaims{}
	claims.UserID, _ = mapClaims["user_id"].(string)
	claims.Email, _ = mapClaims["email"].(string)
	role, _ := mapClaims["role"].(string)
	claims.Role = models.Role(role)
	claims.Type, _ = mapClaims["token_type"].(string)
	claims.JTI, _ = mapClaims["jti"].(string)
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}

	if claims.UserID == "" || claims.JTI == "" || claims.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}
	if claims.Type != expectedType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, expectedType, claims.Type)
	}
	return claims, nil
}

// Authenticate resolves an access token to an active user.
func (s *AuthService) Authenticate(tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString, AccessToken)
	if err != nil {
		return nil, err
	}
	return s.activeUser(claims.UserID)
}

func (s *AuthService) activeUser(id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
		}
		return nil, fmt.Errorf("failed to load token user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user is inactive", ErrInvalidToken)
	}
	return user, nil
}

// Logout blacklists a refresh token until it would expire on its own.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.ValidateToken(refreshToken, RefreshToken)
	if err != nil {
		return err
	}
	if err := s.blacklist.Revoke(ctx, claims.JTI, claims.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	log.WithField("user_id", claims.UserID).Info("refresh token revoked")
	return nil
}

// Refresh exchanges a valid, non-revoked refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.ValidateToken(refreshToken, RefreshToken)
	if err != nil {
		return "", err
	}
	revoked, err := s.blacklist.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return "", fmt.Errorf("failed to check token blacklist: %w", err)
	}
	if revoked {
		return "", fmt.Errorf("%w: token is blacklisted", ErrInvalidToken)
	}
	user, err := s.activeUser(claims.UserID)
	if err != nil {
		return "", err
	}
	return s.signToken(user, AccessToken, s.accessTTL)
}
