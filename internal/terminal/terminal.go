package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/service"
	"go-pos-ws/internal/ws"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// refreshTimeout bounds one re-fetch triggered by a change event.
const refreshTimeout = 10 * time.Second

// saveTimeout bounds a cart save that cannot use the watch context.
const saveTimeout = 5 * time.Second

// Close reasons sent with session_closed.
const (
	ReasonCompleted = "completed"
	ReasonDeleted   = "deleted"
)

// Terminal is one cashier tab. All fields below mu are guarded by it.
type Terminal struct {
	ID    string
	User  User
	Staff string

	mgr *Manager

	mu       sync.Mutex
	session  *model.Session
	products []model.SessionProduct
	pending  ws.Pending
	cart     *cart.Cart
	sinks    map[Sink]bool
	subs     []*ws.Subscription
	cancel   context.CancelFunc
	gen      int
	closed   bool
}

// SessionInfo is the header of the selected session.
type SessionInfo struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Date     string              `json:"date"`
	Location string              `json:"location"`
	Status   model.SessionStatus `json:"status"`
}

// CartView is the cart as clients render it.
type CartView struct {
	Items    []cart.Item     `json:"items"`
	Discount decimal.Decimal `json:"discount"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
	State    cart.State      `json:"state"`
}

// State is a full snapshot of a terminal.
type State struct {
	TerminalID string                 `json:"terminal_id"`
	Staff      string                 `json:"staff"`
	Session    *SessionInfo           `json:"session"`
	Products   []model.SessionProduct `json:"products"`
	Cart       CartView               `json:"cart"`
}

func (t *Terminal) actor() service.Actor {
	return service.Actor{ID: t.User.ID, Name: t.Staff, Email: t.User.Email}
}

// SelectSession switches the terminal to an active session. Old
// subscriptions are closed first and the cart is reset unless it was saved
// against this same session.
func (t *Terminal) SelectSession(ctx context.Context, sessionID string) (*State, error) {
	// Subscribe before the fetch so no change between the two is missed.
	subs := []*ws.Subscription{
		t.mgr.hub.Subscribe(ws.Topic{Table: "sessions", SessionID: sessionID}),
		t.mgr.hub.Subscribe(ws.Topic{Table: "session_inventory", SessionID: sessionID}),
		t.mgr.hub.Subscribe(ws.Topic{Table: "products"}),
	}

	session, err := t.mgr.sessions.GetSessionWithProducts(ctx, sessionID)
	if err == nil && session.Status != model.SessionActive {
		err = service.ErrSessionCompleted
	}
	if err != nil {
		closeSubs(subs)
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		closeSubs(subs)
		return nil, ErrTerminalNotFound
	}

	t.stopWatchLocked()
	t.gen++
	t.session = session
	t.pending = ws.Pending{}
	t.products = session.Products
	if t.cart.SessionID != sessionID || t.cart.State == cart.StateCheckingOut {
		t.cart.Clear()
	}
	t.cart.SessionID = sessionID
	t.cart.UpdateStock(stockOf(t.products))
	t.saveLocked(ctx)

	watchCtx, cancel := context.WithCancel(context.Background())
	t.subs = subs
	t.cancel = cancel
	go t.watch(watchCtx, sessionID, t.gen, subs)

	t.pushSessionLocked()
	t.pushCartLocked(nil)

	t.mgr.log.Info("terminal selected session",
		zap.String("terminal_id", t.ID), zap.String("session_id", sessionID))
	return t.stateLocked(), nil
}

// LeaveSession drops the selected session, its subscriptions and the cart.
func (t *Terminal) LeaveSession(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return ErrNoSession
	}
	t.resetLocked()
	t.saveLocked(ctx)
	t.pushSessionLocked()
	t.pushCartLocked(nil)
	return nil
}

// State returns a snapshot of the terminal.
func (t *Terminal) State() *State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Attach adds a sink for pushed messages, sends it the current state and
// returns the function that detaches it.
func (t *Terminal) Attach(s Sink) func() {
	t.mu.Lock()
	t.sinks[s] = true
	t.sendLocked(s, sessionStateMsg(t.ID, t.sessionInfoLocked(), t.products))
	t.sendLocked(s, cartStateMsg(t.ID, t.cartViewLocked(), nil))
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.sinks, s)
		t.mu.Unlock()
	}
}

// watch turns change events into full re-fetches until ctx is cancelled,
// the hub stops or the terminal is evicted. It always closes subs.
func (t *Terminal) watch(ctx context.Context, sessionID string, gen int, subs []*ws.Subscription) {
	defer closeSubs(subs)

	sessionSub, inventorySub, productSub := subs[0], subs[1], subs[2]
	for {
		var (
			ev ws.ChangeEvent
			ok bool
		)
		select {
		case <-ctx.Done():
			return
		case ev, ok = <-sessionSub.C:
		case ev, ok = <-inventorySub.C:
		case ev, ok = <-productSub.C:
		}
		if !ok {
			return
		}
		if !t.refresh(ctx, sessionID, gen, ev) {
			return
		}
	}
}

// refresh re-fetches the session and applies it. It returns false once the
// watch should stop.
func (t *Terminal) refresh(ctx context.Context, sessionID string, gen int, ev ws.ChangeEvent) bool {
	if ev.Table == "sessions" && ev.Op == "DELETE" {
		t.evict(sessionID, gen, ReasonDeleted)
		return false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	session, err := t.mgr.sessions.GetSessionWithProducts(fetchCtx, sessionID)
	cancel()
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			t.evict(sessionID, gen, ReasonDeleted)
			return false
		}
		if ctx.Err() == nil {
			t.mgr.log.Warn("terminal refresh failed",
				zap.String("terminal_id", t.ID), zap.String("session_id", sessionID), zap.Error(err))
		}
		return true
	}
	if session.Status == model.SessionCompleted {
		t.evict(sessionID, gen, ReasonCompleted)
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.closed {
		return false
	}
	t.session = session
	t.products = ws.Reconcile(session.Products, t.pending)
	var clamped []uint
	// Pending values already count the lines being checked out.
	if t.cart.State != cart.StateCheckingOut {
		clamped = t.cart.UpdateStock(stockOf(t.products))
		if len(clamped) > 0 {
			t.saveLocked(ctx)
		}
	}
	t.pushSessionLocked()
	t.pushCartLocked(clamped)
	return true
}

// evict resets the terminal after its session was completed or deleted.
// resetLocked cancels the watch context, so the save runs on its own.
func (t *Terminal) evict(sessionID string, gen int, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.closed {
		return
	}
	t.resetLocked()
	saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	t.saveLocked(saveCtx)
	cancel()
	t.broadcastLocked(map[string]interface{}{
		"type":        "session_closed",
		"terminal_id": t.ID,
		"session_id":  sessionID,
		"reason":      reason,
	})
	t.pushSessionLocked()
	t.pushCartLocked(nil)

	t.mgr.log.Info("terminal evicted from session",
		zap.String("terminal_id", t.ID), zap.String("session_id", sessionID), zap.String("reason", reason))
}

func (t *Terminal) shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopWatchLocked()
	t.closed = true
	t.broadcastLocked(map[string]interface{}{
		"type":        "terminal_closed",
		"terminal_id": t.ID,
	})
	t.sinks = map[Sink]bool{}
}

func (t *Terminal) resetLocked() {
	t.stopWatchLocked()
	t.gen++
	t.session = nil
	t.products = nil
	t.pending = ws.Pending{}
	t.cart.Clear()
	t.cart.SessionID = ""
}

// stopWatchLocked cancels the watch goroutine and closes its subscriptions
// right away; the goroutine's own close is then a no-op.
func (t *Terminal) stopWatchLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	closeSubs(t.subs)
	t.subs = nil
}

func closeSubs(subs []*ws.Subscription) {
	for _, s := range subs {
		s.Close()
	}
}

func (t *Terminal) saveLocked(ctx context.Context) {
	if err := t.mgr.store.Save(ctx, t.ID, t.cart); err != nil {
		t.mgr.log.Warn("save cart", zap.String("terminal_id", t.ID), zap.Error(err))
	}
}

func (t *Terminal) sessionInfoLocked() *SessionInfo {
	if t.session == nil {
		return nil
	}
	return &SessionInfo{
		ID:       t.session.ID,
		Name:     t.session.Name,
		Date:     t.session.Date.Format("2006-01-02"),
		Location: t.session.Location,
		Status:   t.session.Status,
	}
}

func (t *Terminal) cartViewLocked() CartView {
	items := make([]cart.Item, len(t.cart.Items))
	copy(items, t.cart.Items)
	return CartView{
		Items:    items,
		Discount: t.cart.Discount,
		Subtotal: t.cart.Subtotal().Round(2),
		Total:    t.cart.Total().Round(2),
		State:    t.cart.State,
	}
}

func (t *Terminal) stateLocked() *State {
	products := make([]model.SessionProduct, len(t.products))
	copy(products, t.products)
	return &State{
		TerminalID: t.ID,
		Staff:      t.Staff,
		Session:    t.sessionInfoLocked(),
		Products:   products,
		Cart:       t.cartViewLocked(),
	}
}

func (t *Terminal) findProductLocked(id uint) (model.SessionProduct, bool) {
	for _, p := range t.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.SessionProduct{}, false
}

func stockOf(products []model.SessionProduct) map[uint]int {
	stock := make(map[uint]int, len(products))
	for _, p := range products {
		stock[p.ID] = p.CurrentStock
	}
	return stock
}

// Push messages

func sessionStateMsg(id string, session *SessionInfo, products []model.SessionProduct) map[string]interface{} {
	if products == nil {
		products = []model.SessionProduct{}
	}
	return map[string]interface{}{
		"type":        "session_state",
		"terminal_id": id,
		"session":     session,
		"products":    products,
	}
}

func cartStateMsg(id string, view CartView, clamped []uint) map[string]interface{} {
	msg := map[string]interface{}{
		"type":        "cart_state",
		"terminal_id": id,
		"cart":        view,
	}
	if len(clamped) > 0 {
		msg["clamped"] = clamped
		msg["message"] = "Some quantities were reduced to the stock that is left"
	}
	return msg
}

func (t *Terminal) pushSessionLocked() {
	t.broadcastLocked(sessionStateMsg(t.ID, t.sessionInfoLocked(), t.products))
}

func (t *Terminal) pushCartLocked(clamped []uint) {
	t.broadcastLocked(cartStateMsg(t.ID, t.cartViewLocked(), clamped))
}

func (t *Terminal) broadcastLocked(payload interface{}) {
	if len(t.sinks) == 0 {
		return
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		t.mgr.log.Error("marshal terminal message", zap.Error(err))
		return
	}
	for s := range t.sinks {
		if err := s.Send(msg); err != nil {
			t.mgr.log.Warn("terminal push failed, dropping sink", zap.String("terminal_id", t.ID), zap.Error(err))
			delete(t.sinks, s)
		}
	}
}

func (t *Terminal) sendLocked(s Sink, payload interface{}) {
	msg, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.Send(msg); err != nil {
		delete(t.sinks, s)
	}
}
