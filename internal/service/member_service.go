package service

import (
	"context"
	"errors"
	"fmt"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrCannotModifySelf   = errors.New("you cannot deactivate or delete your own account")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrInvalidPrivilege   = errors.New("one or more privilege codes are invalid")
	ErrAlreadyInvited     = errors.New("email is already invited")
)

type MemberService interface {
	GetAllMembers(ctx context.Context) ([]model.ProfileResponse, error)
	GetMemberByID(ctx context.Context, id uuid.UUID) (*model.ProfileResponse, error)
	UpdateMember(ctx context.Context, id uuid.UUID, req *UpdateMemberRequest, actor Actor) (*model.ProfileResponse, error)
	UpdateMemberPrivileges(ctx context.Context, id uuid.UUID, privilegeCodes []string, actor Actor) (*model.ProfileResponse, error)
	DeleteMember(ctx context.Context, id uuid.UUID, actor Actor) error

	CreateInvitation(ctx context.Context, req *model.PendingInvitation, actor Actor) (*model.PendingInvitation, error)
	GetInvitations(ctx context.Context) ([]model.PendingInvitation, error)
	DeleteInvitation(ctx context.Context, email string) error

	GetRoles(ctx context.Context) ([]model.Role, error)
	GetPrivileges(ctx context.Context) ([]model.Privilege, error)
}

type UpdateMemberRequest struct {
	FullName *string `json:"full_name"`
	RoleID   *uint   `json:"role_id"`
	IsActive *bool   `json:"is_active"`
}

type memberService struct {
	profileRepo    repository.ProfileRepository
	privilegeRepo  repository.PrivilegeRepository
	roleRepo       repository.RoleRepository
	invitationRepo repository.InvitationRepository
	terminals      TerminalCloser
	log            *zap.Logger
}

func NewMemberService(
	profileRepo repository.ProfileRepository,
	privilegeRepo repository.PrivilegeRepository,
	roleRepo repository.RoleRepository,
	invitationRepo repository.InvitationRepository,
	terminals TerminalCloser,
	log *zap.Logger,
) MemberService {
	return &memberService{
		profileRepo:    profileRepo,
		privilegeRepo:  privilegeRepo,
		roleRepo:       roleRepo,
		invitationRepo: invitationRepo,
		terminals:      terminals,
		log:            log,
	}
}

func (s *memberService) GetAllMembers(ctx context.Context) ([]model.ProfileResponse, error) {
	profiles, err := s.profileRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]model.ProfileResponse, len(profiles))
	for i, p := range profiles {
		responses[i] = p.ToResponse()
	}
	return responses, nil
}

func (s *memberService) GetMemberByID(ctx context.Context, id uuid.UUID) (*model.ProfileResponse, error) {
	profile, err := s.profileRepo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	response := profile.ToResponse()
	return &response, nil
}

func (s *memberService) UpdateMember(ctx context.Context, id uuid.UUID, req *UpdateMemberRequest, actor Actor) (*model.ProfileResponse, error) {
	// 1. Find existing profile
	profile, err := s.profileRepo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// 2. Apply updates if provided
	if req.FullName != nil {
		if *req.FullName == "" {
			return nil, validator.Failed("FullName", "required")
		}
		profile.FullName = *req.FullName
	}

	deactivated := false
	if req.IsActive != nil {
		if !*req.IsActive && id.String() == actor.ID {
			return nil, ErrCannotModifySelf
		}
		deactivated = profile.IsActive && !*req.IsActive
		profile.IsActive = *req.IsActive
	}

	// 3. Role change: privileges follow the role
	var rolePrivileges []model.Privilege
	roleChanged := false
	if req.RoleID != nil && (profile.RoleID == nil || *profile.RoleID != *req.RoleID) {
		role, err := s.roleRepo.FindByID(ctx, *req.RoleID)
		if err != nil {
			return nil, ErrRoleNotFound
		}
		profile.RoleID = &role.ID
		profile.Role = role
		rolePrivileges = role.Privileges
		roleChanged = true
	}

	// 4. A deactivated member loses every session right away
	if deactivated {
		profile.TokenVersion = uuid.NewString()
	}
	profile.UpdatedBy = actor.ID

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, err
	}
	if roleChanged {
		if err := s.profileRepo.UpdatePrivileges(ctx, id, rolePrivileges); err != nil {
			return nil, err
		}
	}
	if deactivated {
		s.terminals.CloseForUser(id.String())
		s.log.Info("member deactivated", zap.String("user_id", id.String()), zap.String("by", actor.ID))
	}

	// 5. Reload and return
	return s.GetMemberByID(ctx, id)
}

func (s *memberService) UpdateMemberPrivileges(ctx context.Context, id uuid.UUID, privilegeCodes []string, actor Actor) (*model.ProfileResponse, error) {
	// 1. Find profile
	profile, err := s.profileRepo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// 2. Resolve privileges; every code must exist
	privileges, err := s.privilegeRepo.FindByCodes(ctx, privilegeCodes)
	if err != nil {
		return nil, err
	}
	if len(privileges) != len(uniqueCodes(privilegeCodes)) {
		return nil, ErrInvalidPrivilege
	}

	// 3. Update privileges
	if err := s.profileRepo.UpdatePrivileges(ctx, id, privileges); err != nil {
		return nil, err
	}

	// 4. Update audit field
	profile.UpdatedBy = actor.ID
	profile.Privileges = privileges
	if err := s.profileRepo.Update(ctx, profile); err != nil {
		return nil, err
	}

	return s.GetMemberByID(ctx, id)
}

func uniqueCodes(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

func (s *memberService) DeleteMember(ctx context.Context, id uuid.UUID, actor Actor) error {
	if id.String() == actor.ID {
		return ErrCannotModifySelf
	}
	if err := s.profileRepo.Delete(ctx, id, actor.ID); err != nil {
		if repository.IsNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}
	s.terminals.CloseForUser(id.String())
	return nil
}

func (s *memberService) CreateInvitation(ctx context.Context, req *model.PendingInvitation, actor Actor) (*model.PendingInvitation, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	if existing, _ := s.profileRepo.FindByEmail(ctx, req.Email); existing != nil {
		return nil, ErrEmailExists
	}

	req.InvitedBy = actor.Email
	if err := s.invitationRepo.Create(ctx, req); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyInvited, req.Email)
		}
		return nil, err
	}

	s.log.Info("member invited", zap.String("email", req.Email), zap.String("role", req.RoleCode))
	return req, nil
}

func (s *memberService) GetInvitations(ctx context.Context) ([]model.PendingInvitation, error) {
	return s.invitationRepo.FindAll(ctx)
}

func (s *memberService) DeleteInvitation(ctx context.Context, email string) error {
	if err := s.invitationRepo.Delete(ctx, normalizeEmail(email)); err != nil {
		if repository.IsNotFound(err) {
			return ErrInvitationNotFound
		}
		return err
	}
	return nil
}

func (s *memberService) GetRoles(ctx context.Context) ([]model.Role, error) {
	return s.roleRepo.FindAll(ctx)
}

func (s *memberService) GetPrivileges(ctx context.Context) ([]model.Privilege, error) {
	return s.privilegeRepo.FindAll(ctx)
}
