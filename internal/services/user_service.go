package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"activation-backend/internal/auth"
	"activation-backend/internal/cache"
	"activation-backend/internal/models"
	"activation-backend/internal/repositories"

	"github.com/google/uuid"
)

type UserService struct {
	Repo       repositories.UserStore
	Sessions   cache.Store
	JWTManager *auth.JWTManager
	log        *slog.Logger
}

func NewUserService(repo repositories.UserStore, sessions cache.Store, jwtManager *auth.JWTManager, logger *slog.Logger) *UserService {
	return &UserService{
		Repo:       repo,
		Sessions:   sessions,
		JWTManager: jwtManager,
		log:        logger.With("component", "auth"),
	}
}

// CreateUser hashes password and stores the user
func (s *UserService) CreateUser(ctx context.Context, u *models.User, password string) error {
	if u.Email == "" || password == "" || u.Name == "" {
		return errors.New("name, email, and password are required")
	}
	switch u.Role {
	case "", models.RoleVendor, models.RoleSupervisor, models.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", u.Role)
	}
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.PasswordHash = hashedPassword
	return s.Repo.CreateUser(ctx, u)
}

// Login verifies credentials and opens a session behind the returned token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.Repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			auth.BurnVerify(req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	session := &models.Session{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Role:   user.Role,
	}
	token, expiresAt, err := s.JWTManager.GenerateToken(user, session.ID)
	if err != nil {
		return nil, err
	}
	session.CreatedAt = expiresAt.Add(-s.JWTManager.TTL())
	if err := s.Sessions.PutSession(ctx, session, s.JWTManager.TTL()); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.log.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return &models.AuthResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Logout drops the session so its token stops working immediately
func (s *UserService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.DeleteSession(ctx, sessionID)
}
