package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/service"
	"go-pos-ws/internal/ws"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func (f *fakeSessions) GetSessionWithProducts(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, service.ErrSessionNotFound
	}
	cp := *s
	cp.Products = append([]model.SessionProduct(nil), s.Products...)
	return &cp, nil
}

func (f *fakeSessions) update(id string, fn func(s *model.Session)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.sessions[id])
}

func (f *fakeSessions) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
}

type fakeCheckout struct {
	mu    sync.Mutex
	calls []*cart.Request
	err   error
	block chan struct{}
}

func (f *fakeCheckout) Checkout(_ context.Context, sessionID string, req *cart.Request, actor service.Actor) (*service.CheckoutResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &service.CheckoutResult{Sale: model.Sale{ID: "sale-1", Items: req.Items, Cashier: actor.Name}}, nil
}

func (f *fakeCheckout) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSink struct {
	mu   sync.Mutex
	msgs []map[string]interface{}
}

func (f *fakeSink) Send(msg []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		return err
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, m)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) has(typ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m["type"] == typ {
			return true
		}
	}
	return false
}

func product(id uint, name, price string, stock int) model.SessionProduct {
	return model.SessionProduct{
		ID:           id,
		Name:         name,
		Price:        decimal.RequireFromString(price),
		InitialStock: stock,
		CurrentStock: stock,
	}
}

// ctxStore fails saves on a done context, as a network-backed store does.
type ctxStore struct {
	*cart.MemoryStore
	mu     sync.Mutex
	failed []error
}

func (s *ctxStore) Save(ctx context.Context, terminalID string, c *cart.Cart) error {
	if err := ctx.Err(); err != nil {
		s.mu.Lock()
		s.failed = append(s.failed, err)
		s.mu.Unlock()
		return err
	}
	return s.MemoryStore.Save(ctx, terminalID, c)
}

func (s *ctxStore) failures() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.failed...)
}

type fixture struct {
	mgr      *Manager
	hub      *ws.Hub
	sessions *fakeSessions
	checkout *fakeCheckout
	store    cart.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, cart.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, store cart.Store) *fixture {
	t.Helper()
	hub := ws.NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	sessions := &fakeSessions{sessions: map[string]*model.Session{
		"s1": {
			ID:     "s1",
			Name:   "Sunday Market",
			Status: model.SessionActive,
			Products: []model.SessionProduct{
				product(1, "Coffee", "10.00", 10),
				product(2, "Cookie", "5.00", 1),
			},
		},
		"s2": {ID: "s2", Name: "Closed Fair", Status: model.SessionCompleted},
	}}
	checkout := &fakeCheckout{}
	mgr := NewManager(sessions, checkout, hub, store, zap.NewNop())
	t.Cleanup(mgr.CloseAll)

	return &fixture{mgr: mgr, hub: hub, sessions: sessions, checkout: checkout, store: store}
}

func (f *fixture) open(t *testing.T, userID string) *Terminal {
	t.Helper()
	term, err := f.mgr.Open(context.Background(), User{ID: userID, Name: "Rina"}, "", "")
	require.NoError(t, err)
	return term
}

func TestSelectSession(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")

	state, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, state.Session)
	assert.Equal(t, "Sunday Market", state.Session.Name)
	assert.Len(t, state.Products, 2)
	assert.Equal(t, cart.StateEmpty, state.Cart.State)
}

func TestSelectSessionRejectsCompletedAndMissing(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")

	_, err := term.SelectSession(context.Background(), "s2")
	assert.ErrorIs(t, err, service.ErrSessionCompleted)

	_, err = term.SelectSession(context.Background(), "nope")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	assert.Nil(t, term.State().Session)
}

func TestCartOpsRequireSession(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")

	_, err := term.AddItem(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = term.Checkout(context.Background(), cart.Payment{Method: model.PaymentBayarlahQR})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestAddItemLastUnitTwice(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)

	_, err = term.AddItem(context.Background(), 2, "")
	require.NoError(t, err)
	_, err = term.AddItem(context.Background(), 2, "")
	assert.ErrorIs(t, err, cart.ErrStockExceeded)

	view := term.State().Cart
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)

	_, err = term.AddItem(context.Background(), 99, "")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartPersistedToStore(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)

	_, err = term.AddItem(context.Background(), 1, "")
	require.NoError(t, err)

	saved, err := f.store.Load(context.Background(), term.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "s1", saved.SessionID)
	assert.Len(t, saved.Items, 1)
}

func TestResumeKeepsCartForSameSession(t *testing.T) {
	f := newFixture(t)
	first := f.open(t, "u1")
	_, err := first.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = first.AddItem(context.Background(), 1, "")
	require.NoError(t, err)
	id := first.ID

	// Process restart: terminals are gone, the store is not.
	f.mgr.CloseAll()

	resumed, err := f.mgr.Open(context.Background(), User{ID: "u1", Name: "Rina"}, "", id)
	require.NoError(t, err)
	assert.Equal(t, id, resumed.ID)

	state, err := resumed.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, state.Cart.Items, 1)
	assert.Equal(t, uint(1), state.Cart.Items[0].ProductID)
}

func TestResumeRefusesAnotherUsersCart(t *testing.T) {
	f := newFixture(t)
	first := f.open(t, "u1")
	_, err := first.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = first.AddItem(context.Background(), 1, "")
	require.NoError(t, err)
	f.mgr.CloseAll()

	_, err = f.mgr.Open(context.Background(), User{ID: "u2", Name: "Budi"}, "", first.ID)
	assert.ErrorIs(t, err, ErrNotYourTerminal)
	assert.Equal(t, 0, f.mgr.Count())
}

func TestConcurrentResumeGetsOneOwner(t *testing.T) {
	f := newFixture(t)
	first := f.open(t, "u1")
	_, err := first.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	f.mgr.CloseAll()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			term, err := f.mgr.Open(context.Background(), User{ID: "u1", Name: "Rina"}, "", first.ID)
			if assert.NoError(t, err) {
				ids[i] = term.ID
			}
		}(i)
	}
	wg.Wait()

	resumed := 0
	seen := map[string]bool{}
	for _, id := range ids {
		if id == first.ID {
			resumed++
		}
		seen[id] = true
	}
	assert.Equal(t, 1, resumed)
	assert.Len(t, seen, len(ids))
	assert.Equal(t, len(ids), f.mgr.Count())
}

func TestUpdateLineRejectedLeavesCartAndStore(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = term.AddItem(context.Background(), 1, "")
	require.NoError(t, err)

	qty, discount := 99, decimal.RequireFromString("5")
	_, err = term.UpdateLine(context.Background(), 0, &qty, &discount)
	assert.ErrorIs(t, err, cart.ErrStockExceeded)

	view := term.State().Cart
	require.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].Discount.IsZero())
	assert.Equal(t, "10.00", view.Total.StringFixed(2))

	saved, err := f.store.Load(context.Background(), term.ID)
	require.NoError(t, err)
	assert.True(t, saved.Items[0].Discount.IsZero())
}

func TestSessionCompletedWhileOpenResetsTerminal(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	sink := &fakeSink{}
	detach := term.Attach(sink)
	defer detach()

	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = term.AddItem(context.Background(), 1, "")
	require.NoError(t, err)

	f.sessions.update("s1", func(s *model.Session) { s.Status = model.SessionCompleted })
	f.hub.Publish(ws.ChangeEvent{Table: "sessions", Op: "UPDATE", ID: "s1", SessionID: "s1"})

	assert.Eventually(t, func() bool {
		return term.State().Session == nil
	}, time.Second, 10*time.Millisecond)

	state := term.State()
	assert.Empty(t, state.Cart.Items)
	assert.Empty(t, state.Products)
	assert.True(t, sink.has("session_closed"))
}

func TestEvictionSavesResetCart(t *testing.T) {
	store := &ctxStore{MemoryStore: cart.NewMemoryStore()}
	f := newFixtureWithStore(t, store)
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = term.AddItem(context.Background(), 1, "")
	require.NoError(t, err)

	f.sessions.update("s1", func(s *model.Session) { s.Status = model.SessionCompleted })
	f.hub.Publish(ws.ChangeEvent{Table: "sessions", Op: "UPDATE", ID: "s1", SessionID: "s1"})

	assert.Eventually(t, func() bool {
		return term.State().Session == nil
	}, time.Second, 10*time.Millisecond)

	assert.Empty(t, store.failures())
	saved, err := store.Load(context.Background(), term.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Empty(t, saved.Items)
	assert.Empty(t, saved.SessionID)

	// Reopening the session later does not bring the old cart back.
	f.sessions.update("s1", func(s *model.Session) { s.Status = model.SessionActive })
	f.mgr.CloseAll()
	resumed, err := f.mgr.Open(context.Background(), User{ID: "u1", Name: "Rina"}, "", term.ID)
	require.NoError(t, err)
	state, err := resumed.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, state.Cart.Items)
}

func TestSessionDeletedWhileOpenResetsTerminal(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)

	f.sessions.remove("s1")
	f.hub.Publish(ws.ChangeEvent{Table: "session_inventory", Op: "DELETE", ID: "1", SessionID: "s1"})

	assert.Eventually(t, func() bool {
		return term.State().Session == nil
	}, time.Second, 10*time.Millisecond)
}

func TestInventoryChangeClampsCart(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	sink := &fakeSink{}
	term.Attach(sink)

	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = term.AddItem(context.Background(), 1, "")
		require.NoError(t, err)
	}

	// Another terminal sold most of the coffee.
	f.sessions.update("s1", func(s *model.Session) { s.Products[0].CurrentStock = 2 })
	f.hub.Publish(ws.ChangeEvent{Table: "session_inventory", Op: "UPDATE", ID: "1", SessionID: "s1"})

	assert.Eventually(t, func() bool {
		items := term.State().Cart.Items
		return len(items) == 1 && items[0].Quantity == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, term.State().Products[0].CurrentStock)
}

func TestEventsForOtherSessionsIgnored(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)

	f.sessions.update("s1", func(s *model.Session) { s.Products[0].CurrentStock = 4 })
	f.hub.Publish(ws.ChangeEvent{Table: "session_inventory", Op: "UPDATE", ID: "1", SessionID: "other"})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 10, term.State().Products[0].CurrentStock)
}

func TestCheckoutSuccess(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = term.AddItem(context.Background(), 1, "")
	require.NoError(t, err)
	qty := 2
	_, err = term.UpdateLine(context.Background(), 0, &qty, nil)
	require.NoError(t, err)

	res, err := term.Checkout(context.Background(), cart.Payment{
		Method:   model.PaymentCash,
		Tendered: decimal.RequireFromString("50.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "sale-1", res.Sale.ID)
	assert.Equal(t, "Rina", res.Sale.Cashier)

	state := term.State()
	assert.Empty(t, state.Cart.Items)
	assert.Equal(t, cart.StateEmpty, state.Cart.State)
	// Optimistic stock until the feed confirms.
	assert.Equal(t, 8, state.Products[0].CurrentStock)

	// A lagging re-fetch still showing the old stock does not undo it.
	f.hub.Publish(ws.ChangeEvent{Table: "products", Op: "UPDATE", ID: "2"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 8, term.State().Products[0].CurrentStock)

	// The committed write arrives.
	f.sessions.update("s1", func(s *model.Session) { s.Products[0].CurrentStock = 8 })
	f.hub.Publish(ws.ChangeEvent{Table: "session_inventory", Op: "UPDATE", ID: "1", SessionID: "s1"})
	assert.Eventually(t, func() bool {
		term.mu.Lock()
		defer term.mu.Unlock()
		_, pending := term.pending[1]
		return !pending
	}, time.Second, 10*time.Millisecond)
}

func TestCheckoutCashUnderpaymentLeavesCart(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = term.AddItem(context.Background(), 1, "")
	require.NoError(t, err)

	_, err = term.Checkout(context.Background(), cart.Payment{
		Method:   model.PaymentCash,
		Tendered: decimal.RequireFromString("5.00"),
	})
	assert.ErrorIs(t, err, cart.ErrInsufficientPayment)
	assert.Equal(t, 0, f.checkout.callCount())

	state := term.State()
	assert.Len(t, state.Cart.Items, 1)
	assert.Equal(t, cart.StateBuilding, state.Cart.State)
}

func TestCheckoutServerFailureReturnsToBuilding(t *testing.T) {
	f := newFixture(t)
	f.checkout.err = errors.New("insufficient stock remaining")
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = term.AddItem(context.Background(), 1, "")
	require.NoError(t, err)

	_, err = term.Checkout(context.Background(), cart.Payment{Method: model.PaymentBayarlahQR})
	assert.Error(t, err)

	state := term.State()
	assert.Len(t, state.Cart.Items, 1)
	assert.Equal(t, cart.StateBuilding, state.Cart.State)
	assert.Equal(t, 10, state.Products[0].CurrentStock)
	term.mu.Lock()
	assert.Empty(t, term.pending)
	term.mu.Unlock()
}

func TestCheckoutInFlightBlocksCartEdits(t *testing.T) {
	f := newFixture(t)
	f.checkout.block = make(chan struct{})
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = term.AddItem(context.Background(), 1, "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := term.Checkout(context.Background(), cart.Payment{Method: model.PaymentBayarlahQR})
		done <- err
	}()

	assert.Eventually(t, func() bool {
		return term.State().Cart.State == cart.StateCheckingOut
	}, time.Second, 5*time.Millisecond)
	_, err = term.AddItem(context.Background(), 1, "")
	assert.ErrorIs(t, err, cart.ErrCheckoutInFlight)

	close(f.checkout.block)
	require.NoError(t, <-done)
}

func TestManagerOwnershipAndCloseForUser(t *testing.T) {
	f := newFixture(t)
	a1 := f.open(t, "alice")
	a2 := f.open(t, "alice")
	b := f.open(t, "bob")

	_, err := f.mgr.Get(a1.ID, "bob")
	assert.ErrorIs(t, err, ErrNotYourTerminal)
	_, err = f.mgr.Get("missing", "alice")
	assert.ErrorIs(t, err, ErrTerminalNotFound)

	_, err = a1.SelectSession(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, 2, f.mgr.CloseForUser("alice"))
	assert.Equal(t, 1, f.mgr.Count())

	_, err = f.mgr.Get(a2.ID, "alice")
	assert.ErrorIs(t, err, ErrTerminalNotFound)
	got, err := f.mgr.Get(b.ID, "bob")
	require.NoError(t, err)
	assert.Same(t, b, got)

	// A closed terminal cannot be pointed at a session again.
	_, err = a1.SelectSession(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrTerminalNotFound)
}

func TestCloseDeletesStoredCart(t *testing.T) {
	f := newFixture(t)
	term := f.open(t, "u1")
	_, err := term.SelectSession(context.Background(), "s1")
	require.NoError(t, err)
	_, err = term.AddItem(context.Background(), 1, "")
	require.NoError(t, err)

	require.NoError(t, f.mgr.Close(context.Background(), term.ID, "u1"))

	saved, err := f.store.Load(context.Background(), term.ID)
	require.NoError(t, err)
	assert.Nil(t, saved)
}
