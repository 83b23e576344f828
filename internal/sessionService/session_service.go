package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vehicle-auction/internal/auctionerrors"
	model "vehicle-auction/internal/models"
	"vehicle-auction/internal/repository"
	"vehicle-auction/utils"

	"github.com/go-playground/validator/v10"
)

// credentials is validated before a new account is created
type credentials struct {
	Username string `validate:"required,min=3,max=32"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// SessionService registers users and manages login sessions
type SessionService struct {
	users    repository.UserStore
	sessions repository.SessionStore
	tokens   *utils.JWTUtil
	validate *validator.Validate
}

// NewSessionService creates a new SessionService instance
func NewSessionService(users repository.UserStore, sessions repository.SessionStore, tokens *utils.JWTUtil) *SessionService {
	return &SessionService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		validate: validator.New(),
	}
}

// Register creates a new bidder account
func (s *SessionService) Register(ctx context.Context, username, email, password string) (model.User, error) {
	return s.createUser(ctx, username, email, password, model.RoleBidder)
}

func (s *SessionService) createUser(ctx context.Context, username, email, password, role string) (model.User, error) {
	in := credentials{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := s.validateCredentials(in); err != nil {
		return model.User{}, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("service: %w", err)
	}

	user := model.User{
		ID:           utils.GenerateID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		Balance:      0,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("service: failed to register %s: %w", in.Username, err)
	}

	utils.Info("user registered", map[string]any{"user_id": user.ID, "username": user.Username, "role": role})
	return user, nil
}

// validateCredentials maps validator failures onto the auction error taxonomy
func (s *SessionService) validateCredentials(in credentials) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("service: %w - %v", auctionerrors.ErrInvalidInput, err)
	}
	for _, fe := range verrs {
		if fe.Field() == "Email" {
			return fmt.Errorf("service: %w - %q is not a valid address", auctionerrors.ErrInvalidEmail, in.Email)
		}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("service: %w - %s is required", auctionerrors.ErrInvalidInput, strings.ToLower(fe.Field()))
	case "min":
		return fmt.Errorf("service: %w - %s must be at least %s characters", auctionerrors.ErrInvalidInput, strings.ToLower(fe.Field()), fe.Param())
	case "max":
		return fmt.Errorf("service: %w - %s must be at most %s characters", auctionerrors.ErrInvalidInput, strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Errorf("service: %w - %s is invalid", auctionerrors.ErrInvalidInput, strings.ToLower(fe.Field()))
	}
}

// Login checks credentials and opens a new session, returning the signed session token
func (s *SessionService) Login(ctx context.Context, username, password string) (model.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, "", fmt.Errorf("service: %w - username and password are required", auctionerrors.ErrInvalidInput)
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrUserNotFound) {
			return model.User{}, "", fmt.Errorf("service: %w", auctionerrors.ErrInvalidCredentials)
		}
		return model.User{}, "", fmt.Errorf("service: failed to load user %s: %w", username, err)
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		utils.Warn("failed login attempt", map[string]any{"username": username})
		return model.User{}, "", fmt.Errorf("service: %w", auctionerrors.ErrInvalidCredentials)
	}

	sessionID := utils.GenerateID()
	if err := s.sessions.Save(ctx, sessionID, user.ID, s.tokens.TTL()); err != nil {
		return model.User{}, "", fmt.Errorf("service: failed to store session: %w", err)
	}
	token, err := s.tokens.GenerateToken(sessionID, user.ID, user.Role)
	if err != nil {
		return model.User{}, "", fmt.Errorf("service: %w", err)
	}

	utils.Info("user logged in", map[string]any{"user_id": user.ID, "username": user.Username})
	return user, token, nil
}

// Logout ends the session behind token. Unknown or already-closed sessions are not an error.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		utils.Debug("logout with unusable token", map[string]any{"error": err.Error()})
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("service: failed to delete session: %w", err)
	}
	utils.Info("user logged out", map[string]any{"user_id": claims.UserID})
	return nil
}

// CurrentSession resolves token to the logged-in user
func (s *SessionService) CurrentSession(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, fmt.Errorf("service: %w - missing session token", auctionerrors.ErrUnauthenticated)
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return model.User{}, fmt.Errorf("service: %w - %v", auctionerrors.ErrUnauthenticated, err)
	}

	userID, err := s.sessions.Lookup(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrSessionNotFound) {
			return model.User{}, fmt.Errorf("service: %w - session expired or logged out", auctionerrors.ErrUnauthenticated)
		}
		return model.User{}, fmt.Errorf("service: failed to look up session: %w", err)
	}
	if userID != claims.UserID {
		return model.User{}, fmt.Errorf("service: %w - session does not match token", auctionerrors.ErrUnauthenticated)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrUserNotFound) {
			return model.User{}, fmt.Errorf("service: %w - user no longer exists", auctionerrors.ErrUnauthenticated)
		}
		return model.User{}, fmt.Errorf("service: failed to load user: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the admin account if no user with that username exists yet
func (s *SessionService) EnsureAdmin(ctx context.Context, username, email, password string) (model.User, error) {
	existing, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		if !existing.IsAdmin() {
			utils.Warn("configured admin username belongs to a non-admin account", map[string]any{"username": username})
		}
		return existing, nil
	}
	if !errors.Is(err, auctionerrors.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("service: failed to look up admin: %w", err)
	}

	admin, err := s.createUser(ctx, username, email, password, model.RoleAdmin)
	if err != nil {
		return model.User{}, err
	}
	utils.Info("admin account seeded", map[string]any{"username": admin.Username})
	return admin, nil
}
