// Package services contains the registration and login logic.
package services

import (
	"context"
	"errors"

	"github.com/traderoom/trading-academy/internal/lib/jwt"
	"github.com/traderoom/trading-academy/internal/lib/password"
	"github.com/traderoom/trading-academy/internal/models"
)

// ErrInvalidCredentials is returned when the username or password is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository defines the user storage methods.
type UserRepository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// SubscriptionStarter puts a new user on the free plan.
type SubscriptionStarter interface {
	StartFree(ctx context.Context, userUID string) (int, error)
}

// AuthService handles registration, login and token issuing.
type AuthService struct {
	users         UserRepository
	subscriptions SubscriptionStarter
	jwtMaker      jwt.Maker
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserRepository, subscriptions SubscriptionStarter, jwtMaker jwt.Maker) *AuthService {
	return &AuthService{
		users:         users,
		subscriptions: subscriptions,
		jwtMaker:      jwtMaker,
	}
}

// Register creates a user with a hashed password and the default role,
// then starts their free subscription. Returns the new user UID.
func (s *AuthService) Register(ctx context.Context, req models.DummyRegister) (string, error) {
	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return "", err
	}
	uid, err := s.users.RegisterUser(ctx, models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hashed,
		Role:         "user",
	})
	if err != nil {
		return "", err
	}
	if _, err := s.subscriptions.StartFree(ctx, uid); err != nil {
		return "", err
	}
	return uid, nil
}

// Login checks the credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, username, rawPassword string) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.jwtMaker.GenerateToken(user.Username, user.Role, user.UID)
}
