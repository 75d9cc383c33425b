package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/jwt"
	"go-pos-ws/pkg/validator"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrSessionRevoked     = errors.New("session expired (signed out or signed in elsewhere)")
	ErrEmailExists        = errors.New("email already exists")
	ErrNotInvited         = errors.New("this email has not been invited")
)

const (
	AuthSignedIn  = "SIGNED_IN"
	AuthSignedOut = "SIGNED_OUT"
)

// TerminalCloser closes every open terminal of a user.
// *terminal.Manager satisfies it.
type TerminalCloser interface {
	CloseForUser(userID string) int
}

type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*LoginResponse, error)
	SignUp(ctx context.Context, req *SignUpRequest) (*LoginResponse, error)
	GetSession(ctx context.Context, tokenString string) (*TokenValidationResponse, error)
	SignOut(ctx context.Context, userID uuid.UUID) error
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
}

type LoginResponse struct {
	Token      string                `json:"token"`
	User       model.ProfileResponse `json:"user"`
	Role       *model.Role           `json:"role"`
	Privileges []string              `json:"privileges"`
}

type TokenValidationResponse struct {
	User       model.ProfileResponse `json:"user"`
	Role       *model.Role           `json:"role"`
	Privileges []string              `json:"privileges"`
}

type authService struct {
	profileRepo    repository.ProfileRepository
	roleRepo       repository.RoleRepository
	invitationRepo repository.InvitationRepository
	tokens         *jwt.Manager
	terminals      TerminalCloser
	notifier       Notifier
	log            *zap.Logger
}

func NewAuthService(
	profileRepo repository.ProfileRepository,
	roleRepo repository.RoleRepository,
	invitationRepo repository.InvitationRepository,
	tokens *jwt.Manager,
	terminals TerminalCloser,
	notifier Notifier,
	log *zap.Logger,
) AuthService {
	return &authService{
		profileRepo:    profileRepo,
		roleRepo:       roleRepo,
		invitationRepo: invitationRepo,
		tokens:         tokens,
		terminals:      terminals,
		notifier:       notifier,
		log:            log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) SignIn(ctx context.Context, email, password string) (*LoginResponse, error) {
	// 1. Find profile by email
	profile, err := s.profileRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// 2. Check if profile is active
	if !profile.IsActive {
		return nil, ErrUserInactive
	}

	// 3. Verify password
	if !profile.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, profile)
}

func (s *authService) SignUp(ctx context.Context, req *SignUpRequest) (*LoginResponse, error) {
	// 1. Validate request
	req.Email = normalizeEmail(req.Email)
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	email := req.Email

	// 2. Email must be free
	if existing, _ := s.profileRepo.FindByEmail(ctx, email); existing != nil {
		return nil, ErrEmailExists
	}

	// 3. The first profile becomes admin, everyone else needs an invitation
	count, err := s.profileRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	roleCode := model.RoleAdmin
	invited := false
	if count > 0 {
		inv, err := s.invitationRepo.FindByEmail(ctx, email)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrNotInvited
			}
			return nil, err
		}
		roleCode = inv.RoleCode
		invited = true
	}

	role, err := s.roleRepo.FindByCode(ctx, roleCode)
	if err != nil {
		return nil, ErrRoleNotFound
	}

	// 4. Create profile with the role's privileges
	profile := &model.Profile{
		Email:      email,
		FullName:   strings.TrimSpace(req.FullName),
		RoleID:     &role.ID,
		Role:       role,
		IsActive:   true,
		Privileges: role.Privileges,
	}
	profile.CreatedBy = "sign-up"
	profile.UpdatedBy = "sign-up"
	if err := profile.SetPassword(req.Password); err != nil {
		return nil, errors.New("failed to hash password")
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	// 5. Consume the invitation
	if invited {
		if err := s.invitationRepo.Delete(ctx, email); err != nil {
			s.log.Warn("failed to delete used invitation", zap.String("email", email), zap.Error(err))
		}
	}

	s.log.Info("profile signed up", zap.String("email", email), zap.String("role", roleCode))
	return s.issue(ctx, profile)
}

// issue rotates the token version, so only the newest sign-in stays valid,
// and returns a fresh token.
func (s *authService) issue(ctx context.Context, profile *model.Profile) (*LoginResponse, error) {
	now := time.Now()
	profile.TokenVersion = uuid.NewString()
	profile.LastSeenAt = &now
	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, errors.New("failed to update session")
	}

	token, err := s.tokens.GenerateToken(profile.ID, profile.Email, profile.FullName, profile.RoleCode(), profile.GetPrivilegeCodes(), profile.TokenVersion)
	if err != nil {
		return nil, errors.New("failed to generate token")
	}

	s.notifyAuth(profile.ID, AuthSignedIn)

	return &LoginResponse{
		Token:      token,
		User:       profile.ToResponse(),
		Role:       profile.Role,
		Privileges: profile.GetPrivilegeCodes(),
	}, nil
}

func (s *authService) GetSession(ctx context.Context, tokenString string) (*TokenValidationResponse, error) {
	// 1. Validate JWT token
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	// 2. Find profile by ID from token claims
	profile, err := s.profileRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// 3. Check if profile is still active
	if !profile.IsActive {
		return nil, ErrUserInactive
	}

	// 4. Token must carry the current version
	if profile.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionRevoked
	}

	return &TokenValidationResponse{
		User:       profile.ToResponse(),
		Role:       profile.Role,
		Privileges: profile.GetPrivilegeCodes(),
	}, nil
}

func (s *authService) SignOut(ctx context.Context, userID uuid.UUID) error {
	// 1. Rotate token version, invalidating every issued token
	if err := s.profileRepo.UpdateTokenVersion(ctx, userID, uuid.NewString()); err != nil {
		return err
	}

	// 2. Close the user's terminals and their subscriptions
	closed := s.terminals.CloseForUser(userID.String())
	s.log.Info("profile signed out", zap.String("user_id", userID.String()), zap.Int("terminals_closed", closed))

	// 3. Let other tabs know
	s.notifyAuth(userID, AuthSignedOut)
	return nil
}

func (s *authService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	// 1. Update timestamp in DB
	if err := s.profileRepo.UpdateLastSeen(ctx, userID); err != nil {
		return err
	}

	// 2. Broadcast presence to every client
	go s.notifier.BroadcastJSON(map[string]interface{}{
		"type":         "user_status_update",
		"user_id":      userID.String(),
		"status":       "online",
		"last_seen_at": time.Now(),
	})
	return nil
}

func (s *authService) notifyAuth(userID uuid.UUID, event string) {
	go s.notifier.BroadcastJSON(map[string]interface{}{
		"type":    "auth_state_change",
		"user_id": userID.String(),
		"event":   event,
	})
}
