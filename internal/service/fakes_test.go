package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory repositories shared by the service tests.

type fakeNotifier struct {
	mu       sync.Mutex
	payloads []map[string]interface{}
}

func (n *fakeNotifier) BroadcastJSON(payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if m, ok := payload.(map[string]interface{}); ok {
		n.payloads = append(n.payloads, m)
	}
}

func (n *fakeNotifier) count(typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, p := range n.payloads {
		if p["type"] == typ {
			c++
		}
	}
	return c
}

type fakeTerminals struct {
	mu     sync.Mutex
	closed []string
}

func (f *fakeTerminals) CloseForUser(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, userID)
	return 1
}

type fakeSessionRepo struct {
	sessions  map[string]*model.Session
	createErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*model.Session{}}
}

func (r *fakeSessionRepo) Create(_ context.Context, s *model.Session, _ []model.SessionInventory) error {
	if r.createErr != nil {
		return r.createErr
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) Update(_ context.Context, s *model.Session) error {
	existing, ok := r.sessions[s.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	existing.Name, existing.Date, existing.Location, existing.Staff = s.Name, s.Date, s.Location, s.Staff
	return nil
}

func (r *fakeSessionRepo) SetStatus(_ context.Context, id string, status model.SessionStatus, _ string) error {
	s, ok := r.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = status
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.sessions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	cp.Products = append([]model.SessionProduct(nil), s.Products...)
	cp.Sales = append([]model.Sale(nil), s.Sales...)
	return &cp, nil
}

func (r *fakeSessionRepo) FindAll(ctx context.Context) ([]model.Session, error) {
	var out []model.Session
	for id := range r.sessions {
		s, _ := r.FindByID(ctx, id)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSessionRepo) FindByStatus(ctx context.Context, status model.SessionStatus) ([]model.Session, error) {
	all, _ := r.FindAll(ctx)
	var out []model.Session
	for _, s := range all {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) Exists(_ context.Context, id string) (bool, error) {
	_, ok := r.sessions[id]
	return ok, nil
}

// fakeInventoryRepo applies the same all-or-nothing rules as the SQL one.
type fakeInventoryRepo struct {
	sessions *fakeSessionRepo
	stock    map[string]map[uint]*model.SessionInventory
	applied  int
}

func newFakeInventoryRepo(sessions *fakeSessionRepo) *fakeInventoryRepo {
	return &fakeInventoryRepo{sessions: sessions, stock: map[string]map[uint]*model.SessionInventory{}}
}

func (r *fakeInventoryRepo) set(sessionID string, productID uint, initial, current int) {
	if r.stock[sessionID] == nil {
		r.stock[sessionID] = map[uint]*model.SessionInventory{}
	}
	r.stock[sessionID][productID] = &model.SessionInventory{
		SessionID: sessionID, ProductID: productID, InitialStock: initial, CurrentStock: current,
	}
}

func (r *fakeInventoryRepo) FindBySession(_ context.Context, sessionID string) ([]model.SessionInventory, error) {
	var rows []model.SessionInventory
	for _, row := range r.stock[sessionID] {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProductID < rows[j].ProductID })
	return rows, nil
}

func (r *fakeInventoryRepo) merged(ctx context.Context, sessionID string) []model.SessionProduct {
	s := r.sessions.sessions[sessionID]
	rows, _ := r.FindBySession(ctx, sessionID)
	s.Products = model.MergeInventory(s.Products, rows)
	return s.Products
}

func (r *fakeInventoryRepo) UpsertStock(ctx context.Context, sessionID string, productID uint, initial, current int, _ string) ([]model.SessionProduct, error) {
	s, ok := r.sessions.sessions[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	known := false
	for _, p := range s.Products {
		known = known || p.ID == productID
	}
	if !known {
		return nil, gorm.ErrRecordNotFound
	}
	r.set(sessionID, productID, initial, current)
	return r.merged(ctx, sessionID), nil
}

func (r *fakeInventoryRepo) ApplySale(ctx context.Context, sessionID string, sale model.Sale) ([]model.SessionProduct, error) {
	s, ok := r.sessions.sessions[sessionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if s.Status != model.SessionActive {
		return nil, repository.ErrSessionInactive
	}
	wanted := map[uint]int{}
	for _, it := range sale.Items {
		wanted[it.ProductID] += it.Quantity
	}
	for id, qty := range wanted {
		row := r.stock[sessionID][id]
		if row == nil || row.CurrentStock < qty {
			return nil, fmt.Errorf("%w: product %d", repository.ErrInsufficientStock, id)
		}
	}
	for id, qty := range wanted {
		r.stock[sessionID][id].CurrentStock -= qty
	}
	s.Sales = append(s.Sales, sale)
	r.applied++
	return r.merged(ctx, sessionID), nil
}

type fakeProductRepo struct {
	products map[uint]*model.Product
	nextID   uint
	images   map[uint]string
}

func newFakeProductRepo(products ...model.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: map[uint]*model.Product{}, images: map[uint]string{}}
	for i := range products {
		p := products[i]
		r.products[p.ID] = &p
		if p.ID > r.nextID {
			r.nextID = p.ID
		}
	}
	return r
}

func (r *fakeProductRepo) Create(_ context.Context, p *model.Product) error {
	r.nextID++
	p.ID = r.nextID
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *fakeProductRepo) FindAll(_ context.Context) ([]model.Product, error) {
	var out []model.Product
	for _, p := range r.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeProductRepo) FindByID(_ context.Context, id uint) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) Update(_ context.Context, p *model.Product) error {
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *fakeProductRepo) UpdateImage(_ context.Context, id uint, url, _ string) error {
	p, ok := r.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Image = url
	r.images[id] = url
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id uint) error {
	if _, ok := r.products[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *fakeProductRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.products)), nil
}

type fakeProfileRepo struct {
	profiles map[uuid.UUID]*model.Profile
	deleted  []uuid.UUID
}

func newFakeProfileRepo(profiles ...*model.Profile) *fakeProfileRepo {
	r := &fakeProfileRepo{profiles: map[uuid.UUID]*model.Profile{}}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *fakeProfileRepo) FindByEmail(_ context.Context, email string) (*model.Profile, error) {
	for _, p := range r.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeProfileRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProfileRepo) FindAll(_ context.Context) ([]model.Profile, error) {
	var out []model.Profile
	for _, p := range r.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (r *fakeProfileRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.profiles)), nil
}

func (r *fakeProfileRepo) Create(_ context.Context, p *model.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.profiles[p.ID] = &cp
	return nil
}

func (r *fakeProfileRepo) Update(_ context.Context, p *model.Profile) error {
	cp := *p
	r.profiles[p.ID] = &cp
	return nil
}

func (r *fakeProfileRepo) Delete(_ context.Context, id uuid.UUID, _ string) error {
	if _, ok := r.profiles[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.profiles, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeProfileRepo) UpdatePrivileges(_ context.Context, id uuid.UUID, privileges []model.Privilege) error {
	p, ok := r.profiles[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Privileges = privileges
	return nil
}

func (r *fakeProfileRepo) UpdateTokenVersion(_ context.Context, id uuid.UUID, version string) error {
	p, ok := r.profiles[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.TokenVersion = version
	return nil
}

func (r *fakeProfileRepo) UpdateLastSeen(_ context.Context, id uuid.UUID) error {
	if _, ok := r.profiles[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type fakeRoleRepo struct {
	roles []model.Role
}

func newFakeRoleRepo() *fakeRoleRepo {
	all := model.DefaultPrivileges
	return &fakeRoleRepo{roles: []model.Role{
		{ID: 1, Code: model.RoleAdmin, Name: "Administrator", Privileges: repository.DefaultPrivilegesFor(model.RoleAdmin, all)},
		{ID: 2, Code: model.RoleCashier, Name: "Cashier", Privileges: repository.DefaultPrivilegesFor(model.RoleCashier, all)},
	}}
}

func (r *fakeRoleRepo) FindAll(_ context.Context) ([]model.Role, error) { return r.roles, nil }

func (r *fakeRoleRepo) FindByID(_ context.Context, id uint) (*model.Role, error) {
	for i := range r.roles {
		if r.roles[i].ID == id {
			role := r.roles[i]
			return &role, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRoleRepo) FindByCode(_ context.Context, code string) (*model.Role, error) {
	for i := range r.roles {
		if r.roles[i].Code == code {
			role := r.roles[i]
			return &role, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRoleRepo) SeedDefaults(context.Context, []model.Privilege) error { return nil }

type fakePrivilegeRepo struct{}

func (fakePrivilegeRepo) FindByCodes(_ context.Context, codes []string) ([]model.Privilege, error) {
	want := uniqueCodes(codes)
	var out []model.Privilege
	for _, p := range model.DefaultPrivileges {
		if want[p.Code] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (fakePrivilegeRepo) FindAll(context.Context) ([]model.Privilege, error) {
	return model.DefaultPrivileges, nil
}

func (fakePrivilegeRepo) SeedDefaults(context.Context) error { return nil }

type fakeInvitationRepo struct {
	invitations map[string]*model.PendingInvitation
}

func newFakeInvitationRepo(invs ...model.PendingInvitation) *fakeInvitationRepo {
	r := &fakeInvitationRepo{invitations: map[string]*model.PendingInvitation{}}
	for i := range invs {
		inv := invs[i]
		r.invitations[inv.Email] = &inv
	}
	return r
}

func (r *fakeInvitationRepo) Create(_ context.Context, inv *model.PendingInvitation) error {
	if _, ok := r.invitations[inv.Email]; ok {
		return gorm.ErrDuplicatedKey
	}
	cp := *inv
	r.invitations[inv.Email] = &cp
	return nil
}

func (r *fakeInvitationRepo) FindByEmail(_ context.Context, email string) (*model.PendingInvitation, error) {
	inv, ok := r.invitations[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvitationRepo) FindAll(_ context.Context) ([]model.PendingInvitation, error) {
	var out []model.PendingInvitation
	for _, inv := range r.invitations {
		out = append(out, *inv)
	}
	return out, nil
}

func (r *fakeInvitationRepo) Delete(_ context.Context, email string) error {
	if _, ok := r.invitations[email]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.invitations, email)
	return nil
}

type fakeStore struct {
	key  string
	body string
	err  error
}

func (s *fakeStore) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	b, _ := io.ReadAll(body)
	s.key, s.body = key, string(b)
	return "https://cdn.example.com/" + key, nil
}

type fixedIDs struct {
	ids []string
}

func (f *fixedIDs) Generate(context.Context) (string, error) {
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, nil
}
