// Package terminal keeps one context object per cashier tab: who is signed
// in, which session is selected, the cart and the live subscriptions feeding
// it.
package terminal

import (
	"context"
	"errors"
	"sync"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/service"
	"go-pos-ws/internal/ws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTerminalNotFound = errors.New("terminal not found")
	ErrNotYourTerminal  = errors.New("terminal belongs to another user")
	ErrNoSession        = errors.New("no session selected")
	ErrProductNotFound  = errors.New("product is not part of the selected session")
)

// SessionReader loads a session with stock merged onto its snapshot.
type SessionReader interface {
	GetSessionWithProducts(ctx context.Context, sessionID string) (*model.Session, error)
}

// CheckoutRunner records a sale.
type CheckoutRunner interface {
	Checkout(ctx context.Context, sessionID string, req *cart.Request, actor service.Actor) (*service.CheckoutResult, error)
}

// Subscriber hands out change-feed subscriptions. *ws.Hub satisfies it.
type Subscriber interface {
	Subscribe(topic ws.Topic) *ws.Subscription
}

// Sink receives pushed terminal messages. *ws.Client satisfies it.
type Sink interface {
	Send(msg []byte) error
}

// User is the signed-in member a terminal acts for.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Manager struct {
	mu        sync.RWMutex
	terminals map[string]*Terminal

	sessions SessionReader
	checkout CheckoutRunner
	hub      Subscriber
	store    cart.Store
	log      *zap.Logger
}

func NewManager(sessions SessionReader, checkout CheckoutRunner, hub Subscriber, store cart.Store, log *zap.Logger) *Manager {
	return &Manager{
		terminals: make(map[string]*Terminal),
		sessions:  sessions,
		checkout:  checkout,
		hub:       hub,
		store:     store,
		log:       log,
	}
}

// Open creates a terminal for user. When resumeID names a cart kept in the
// store (for example across a restart), the terminal takes over that id and
// cart; the cart survives only if the same session is selected again. A
// saved cart of another user is refused, and an id held by a live terminal
// gets a fresh terminal instead.
func (m *Manager) Open(ctx context.Context, user User, staff, resumeID string) (*Terminal, error) {
	var saved *cart.Cart
	if resumeID != "" && !m.has(resumeID) {
		c, err := m.store.Load(ctx, resumeID)
		if err != nil {
			m.log.Warn("load saved cart", zap.String("terminal_id", resumeID), zap.Error(err))
		} else if c != nil {
			if c.OwnerID != user.ID {
				return nil, ErrNotYourTerminal
			}
			if c.State == cart.StateCheckingOut {
				c.State = cart.StateBuilding
			}
			saved = c
		}
	}

	if staff == "" {
		staff = user.Name
	}
	t := &Terminal{
		User:    user,
		Staff:   staff,
		mgr:     m,
		pending: ws.Pending{},
		sinks:   make(map[Sink]bool),
	}

	m.mu.Lock()
	if _, taken := m.terminals[resumeID]; saved != nil && !taken {
		t.ID, t.cart = resumeID, saved
	} else {
		t.ID, t.cart = uuid.NewString(), cart.New()
		t.cart.OwnerID = user.ID
	}
	m.terminals[t.ID] = t
	m.mu.Unlock()

	m.log.Info("terminal opened", zap.String("terminal_id", t.ID), zap.String("user_id", user.ID))
	return t, nil
}

func (m *Manager) has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.terminals[id]
	return ok
}

// Get returns the terminal if it belongs to userID.
func (m *Manager) Get(id, userID string) (*Terminal, error) {
	m.mu.RLock()
	t, ok := m.terminals[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrTerminalNotFound
	}
	if t.User.ID != userID {
		return nil, ErrNotYourTerminal
	}
	return t, nil
}

// Close shuts one terminal down and forgets its stored cart.
func (m *Manager) Close(ctx context.Context, id, userID string) error {
	t, err := m.Get(id, userID)
	if err != nil {
		return err
	}
	m.remove(t)
	t.shutdown()
	if err := m.store.Delete(ctx, id); err != nil {
		m.log.Warn("delete stored cart", zap.String("terminal_id", id), zap.Error(err))
	}
	return nil
}

// CloseForUser shuts down every terminal of userID, as on sign-out, and
// returns how many were closed.
func (m *Manager) CloseForUser(userID string) int {
	m.mu.Lock()
	var closing []*Terminal
	for id, t := range m.terminals {
		if t.User.ID == userID {
			closing = append(closing, t)
			delete(m.terminals, id)
		}
	}
	m.mu.Unlock()

	for _, t := range closing {
		t.shutdown()
		if err := m.store.Delete(context.Background(), t.ID); err != nil {
			m.log.Warn("delete stored cart", zap.String("terminal_id", t.ID), zap.Error(err))
		}
	}
	return len(closing)
}

// CloseAll stops every terminal without touching stored carts.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	closing := make([]*Terminal, 0, len(m.terminals))
	for id, t := range m.terminals {
		closing = append(closing, t)
		delete(m.terminals, id)
	}
	m.mu.Unlock()

	for _, t := range closing {
		t.shutdown()
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terminals)
}

func (m *Manager) remove(t *Terminal) {
	m.mu.Lock()
	delete(m.terminals, t.ID)
	m.mu.Unlock()
}
