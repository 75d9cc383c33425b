package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/validator"

	"go.uber.org/zap"
)

// Asia/Jakarta timezone
var jakartaLoc *time.Location

func init() {
	var err error
	jakartaLoc, err = time.LoadLocation("Asia/Jakarta")
	if err != nil {
		// Fallback to UTC+7 if timezone data not available
		jakartaLoc = time.FixedZone("WIB", 7*60*60)
	}
}

var (
	ErrInvalidDateFormat = errors.New("invalid date format, use YYYY-MM-DD")
	ErrInvalidStatus     = errors.New("status must be 'active' or 'completed'")
	ErrSessionIDTaken    = errors.New("session id already taken, try again")
)

// IDGenerator hands out new session ids. *sessionid.Generator satisfies it.
type IDGenerator interface {
	Generate(ctx context.Context) (string, error)
}

type SessionService interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest, actor Actor) (*model.SessionResponse, error)
	UpdateSession(ctx context.Context, id string, req *UpdateSessionRequest, actor Actor) (*model.SessionResponse, error)
	SetStatus(ctx context.Context, id string, status string, actor Actor) (*model.SessionResponse, error)
	DeleteSession(ctx context.Context, id string, actor Actor) error
	GetSession(ctx context.Context, id string) (*model.SessionResponse, error)
	GetSessions(ctx context.Context, status string) ([]model.SessionResponse, error)
}

type CreateSessionRequest struct {
	Name     string   `json:"name" validate:"required"`
	Date     string   `json:"date" validate:"required"` // YYYY-MM-DD
	Location string   `json:"location"`
	Staff    []string `json:"staff"`
}

type UpdateSessionRequest struct {
	Name     *string  `json:"name"`
	Date     *string  `json:"date"` // YYYY-MM-DD
	Location *string  `json:"location"`
	Staff    []string `json:"staff"`
}

type sessionService struct {
	sessionRepo   repository.SessionRepository
	inventoryRepo repository.InventoryRepository
	productRepo   repository.ProductRepository
	ids           IDGenerator
	notifier      Notifier
	log           *zap.Logger
}

func NewSessionService(sRepo repository.SessionRepository, iRepo repository.InventoryRepository, pRepo repository.ProductRepository, ids IDGenerator, notifier Notifier, log *zap.Logger) SessionService {
	return &sessionService{
		sessionRepo:   sRepo,
		inventoryRepo: iRepo,
		productRepo:   pRepo,
		ids:           ids,
		notifier:      notifier,
		log:           log,
	}
}

// validateDateFormat validates YYYY-MM-DD format and returns parsed date
func validateDateFormat(dateStr string) (time.Time, error) {
	parsed, err := time.ParseInLocation("2006-01-02", dateStr, jakartaLoc)
	if err != nil {
		return time.Time{}, ErrInvalidDateFormat
	}
	return parsed, nil
}

func cleanStaff(staff []string) []string {
	out := make([]string, 0, len(staff))
	for _, name := range staff {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (s *sessionService) CreateSession(ctx context.Context, req *CreateSessionRequest, actor Actor) (*model.SessionResponse, error) {
	// 1. Validate
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	date, err := validateDateFormat(req.Date)
	if err != nil {
		return nil, err
	}

	// 2. Snapshot the whole catalog with empty stock
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Generate id
	id, err := s.ids.Generate(ctx)
	if err != nil {
		return nil, err
	}

	session := &model.Session{
		ID:       id,
		Name:     strings.TrimSpace(req.Name),
		Date:     date,
		Location: req.Location,
		Staff:    cleanStaff(req.Staff),
		Status:   model.SessionActive,
		Products: make([]model.SessionProduct, len(products)),
		Sales:    []model.Sale{},
	}
	session.CreatedBy = actor.ID
	session.UpdatedBy = actor.ID

	inventory := make([]model.SessionInventory, len(products))
	for i, p := range products {
		session.Products[i] = model.SnapshotOf(p)
		inventory[i] = model.SessionInventory{SessionID: id, ProductID: p.ID}
	}

	// 4. Insert session and inventory rows together. The existence check in
	// the generator is not atomic with this insert.
	if err := s.sessionRepo.Create(ctx, session, inventory); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrSessionIDTaken
		}
		return nil, err
	}

	resp := session.ToResponse()
	s.notifySession("session_created", &resp, actor, fmt.Sprintf("%s created session '%s'", actor.Name, session.Name))
	s.log.Info("session created", zap.String("session_id", id), zap.Int("products", len(products)))
	return &resp, nil
}

func (s *sessionService) UpdateSession(ctx context.Context, id string, req *UpdateSessionRequest, actor Actor) (*model.SessionResponse, error) {
	session, err := s.findMerged(ctx, id)
	if err != nil {
		return nil, err
	}

	// Apply updates if provided
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validator.Failed("Name", "required")
		}
		session.Name = name
	}
	if req.Date != nil {
		date, err := validateDateFormat(*req.Date)
		if err != nil {
			return nil, err
		}
		session.Date = date
	}
	if req.Location != nil {
		session.Location = *req.Location
	}
	if req.Staff != nil {
		session.Staff = cleanStaff(req.Staff)
	}
	session.UpdatedBy = actor.ID

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	resp := session.ToResponse()
	s.notifySession("session_updated", &resp, actor, fmt.Sprintf("%s updated session '%s'", actor.Name, session.Name))
	return &resp, nil
}

func (s *sessionService) SetStatus(ctx context.Context, id string, status string, actor Actor) (*model.SessionResponse, error) {
	st := model.SessionStatus(status)
	if !st.Valid() {
		return nil, ErrInvalidStatus
	}

	if err := s.sessionRepo.SetStatus(ctx, id, st, actor.ID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	session, err := s.findMerged(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := session.ToResponse()
	s.notifySession("session_status_changed", &resp, actor,
		fmt.Sprintf("%s marked session '%s' as %s", actor.Name, session.Name, st))
	s.log.Info("session status changed", zap.String("session_id", id), zap.String("status", status))
	return &resp, nil
}

func (s *sessionService) DeleteSession(ctx context.Context, id string, actor Actor) error {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrSessionNotFound
		}
		return err
	}

	if err := s.sessionRepo.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return ErrSessionNotFound
		}
		return err
	}

	resp := session.ToResponse()
	s.notifySession("session_deleted", &resp, actor, fmt.Sprintf("%s deleted session '%s'", actor.Name, session.Name))
	s.log.Info("session deleted", zap.String("session_id", id), zap.String("user_id", actor.ID))
	return nil
}

func (s *sessionService) GetSession(ctx context.Context, id string) (*model.SessionResponse, error) {
	session, err := s.findMerged(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := session.ToResponse()
	return &resp, nil
}

func (s *sessionService) GetSessions(ctx context.Context, status string) ([]model.SessionResponse, error) {
	var (
		sessions []model.Session
		err      error
	)
	if status == "" {
		sessions, err = s.sessionRepo.FindAll(ctx)
	} else {
		st := model.SessionStatus(status)
		if !st.Valid() {
			return nil, ErrInvalidStatus
		}
		sessions, err = s.sessionRepo.FindByStatus(ctx, st)
	}
	if err != nil {
		return nil, err
	}

	responses := make([]model.SessionResponse, len(sessions))
	for i, session := range sessions {
		responses[i] = session.ToResponse()
	}
	return responses, nil
}

func (s *sessionService) findMerged(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	rows, err := s.inventoryRepo.FindBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Products = model.MergeInventory(session.Products, rows)
	return session, nil
}

// WebSocket notification

func (s *sessionService) notifySession(action string, session *model.SessionResponse, actor Actor, message string) {
	go s.notifier.BroadcastJSON(map[string]interface{}{
		"type":   "session_update",
		"action": action,
		"session": map[string]interface{}{
			"id":     session.ID,
			"name":   session.Name,
			"date":   session.Date,
			"status": session.Status,
		},
		"user":    actor.payload(),
		"message": message,
	})
}
