package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"love-sync-backend/internal/models"
	"love-sync-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	codeLength = 6
	codeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	jwtExpDays = 365
)

// UserService handles anonymous identities and viewer roles
type UserService struct {
	userRepo  repository.UserStore
	pairRepo  repository.PairStore
	jwtSecret string
	clock     clockwork.Clock
}

// NewUserService creates a new user service
func NewUserService(userRepo repository.UserStore, pairRepo repository.PairStore, jwtSecret string, clock clockwork.Clock) *UserService {
	return &UserService{
		userRepo:  userRepo,
		pairRepo:  pairRepo,
		jwtSecret: jwtSecret,
		clock:     clock,
	}
}

// GenerateUniqueCode generates a unique 6-character partner code
func (s *UserService) GenerateUniqueCode(ctx context.Context) (string, error) {
	maxAttempts := 10
	for i := 0; i < maxAttempts; i++ {
		code := generateCode()
		exists, err := s.userRepo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique code after %d attempts", maxAttempts)
}

func generateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		code[i] = codeChars[n.Int64()]
	}
	return string(code)
}

// GenerateJWT signs a long-lived token carrying the user id
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates a token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}
	return userID, nil
}

// CreateUser creates a new anonymous user
func (s *UserService) CreateUser(ctx context.Context) (*models.User, error) {
	code, err := s.GenerateUniqueCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	userID := uuid.New().String()
	token, err := s.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user := &models.User{
		ID:        userID,
		Code:      code,
		Token:     token,
		CreatedAt: s.clock.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser returns a user by id
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// Role derives the viewer role. An empty or unknown user is a guest; premium needs both a paid flag and a pair.
func (s *UserService) Role(ctx context.Context, userID string) (models.ViewerRole, error) {
	if userID == "" {
		return models.RoleGuest, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return models.RoleGuest, nil
		}
		return models.RoleGuest, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsPaid {
		return models.RoleAuthenticated, nil
	}

	hasPair, err := s.pairRepo.UserHasPair(ctx, userID)
	if err != nil {
		return models.RoleAuthenticated, fmt.Errorf("failed to check pair: %w", err)
	}
	if !hasPair {
		return models.RoleAuthenticated, nil
	}
	return models.RolePremiumCouple, nil
}

// UpdatePushToken registers or clears the device token. An empty token clears it.
func (s *UserService) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	pushToken = strings.TrimSpace(pushToken)
	var tok *string
	if pushToken != "" {
		tok = &pushToken
	}
	if err := s.userRepo.UpdatePushToken(ctx, userID, tok); err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}
