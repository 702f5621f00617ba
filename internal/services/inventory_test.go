package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"nedwiyt/internal/amqp"
	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
	"nedwiyt/internal/datastore/memory"
)

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

// countingStore wraps the memory store, counts calls, and can hide a
// category from the next few category listings.
type countingStore struct {
	*memory.Store

	mu        sync.Mutex
	calls     map[string]int
	hideID    string
	hideCount int
	failList  error
}

func newCountingStore(names ...string) *countingStore {
	return &countingStore{
		Store: memory.New(names...).WithClock(func() time.Time { return testNow }),
		calls: map[string]int{},
	}
}

func (s *countingStore) count(name string) {
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()
}

func (s *countingStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *countingStore) callCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *countingStore) reset() {
	s.mu.Lock()
	s.calls = map[string]int{}
	s.mu.Unlock()
}

func (s *countingStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.count("ListCategories")
	cats, err := s.Store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hideCount > 0 {
		s.hideCount--
		out := cats[:0:0]
		for _, c := range cats {
			if c.ID != s.hideID {
				out = append(out, c)
			}
		}
		return out, nil
	}
	return cats, nil
}

func (s *countingStore) InsertCategory(ctx context.Context, c core.NewCategory) (core.Category, error) {
	s.count("InsertCategory")
	return s.Store.InsertCategory(ctx, c)
}

func (s *countingStore) DeleteCategory(ctx context.Context, id string) error {
	s.count("DeleteCategory")
	return s.Store.DeleteCategory(ctx, id)
}

func (s *countingStore) ListStockItems(ctx context.Context) ([]core.StockItem, error) {
	s.count("ListStockItems")
	return s.Store.ListStockItems(ctx)
}

func (s *countingStore) InsertStockItem(ctx context.Context, it core.NewStockItem) (core.StockItem, error) {
	s.count("InsertStockItem")
	return s.Store.InsertStockItem(ctx, it)
}

func (s *countingStore) UpdateStockItem(ctx context.Context, id string, p core.StockItemPatch) (core.StockItem, error) {
	s.count("UpdateStockItem")
	return s.Store.UpdateStockItem(ctx, id, p)
}

func (s *countingStore) ListMoneyEntries(ctx context.Context) ([]core.MoneyEntry, error) {
	s.count("ListMoneyEntries")
	s.mu.Lock()
	err := s.failList
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.ListMoneyEntries(ctx)
}

type fakeAuth struct {
	mu       sync.Mutex
	sessions map[string]datastore.Session
	signOuts int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{sessions: map[string]datastore.Session{}}
}

func (a *fakeAuth) SignIn(_ context.Context, email, password string) (datastore.Session, error) {
	if password != "pw" {
		return datastore.Session{}, core.Errorf(core.KindAuth, "sign_in", "invalid email or password")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s := datastore.Session{
		Token:     "tok-" + email,
		UserID:    "user-" + email,
		Email:     email,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	a.sessions[s.Token] = s
	return s, nil
}

func (a *fakeAuth) SignOut(_ context.Context, s datastore.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, s.Token)
	a.signOuts++
	return nil
}

func (a *fakeAuth) CurrentSession(_ context.Context, token string) (datastore.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[token]
	if !ok {
		return datastore.Session{}, core.Errorf(core.KindAuth, "current_session", "no session")
	}
	return s, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.InventoryEvent
	err    error
}

func (p *recordingPublisher) PublishInventoryEvent(_ context.Context, ev *amqp.InventoryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func newSignedInState(t *testing.T, store *countingStore, pub Publisher) *InventoryState {
	t.Helper()
	st := NewInventoryState(newFakeAuth(), datastore.StaticConnector{Store: store}, Options{
		LowStockThreshold: core.DefaultLowStockThreshold,
		Publisher:         pub,
		Now:               func() time.Time { return testNow },
	})
	if _, err := st.Login(context.Background(), "owner@example.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	store.reset()
	return st
}

func categoryID(t *testing.T, st *InventoryState, name string) string {
	t.Helper()
	for _, c := range st.Categories() {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %q not loaded", name)
	return ""
}

func validItem(catID string) core.NewStockItem {
	return core.NewStockItem{
		Name:            "Tomatoes",
		CategoryID:      catID,
		QuantityBrought: 100,
		QuantitySold:    30,
		PricePerUnit:    decimal.NewFromInt(5),
		EntryCost:       decimal.NewFromInt(2),
	}
}

func TestOperationsRequireSession(t *testing.T) {
	store := newCountingStore("Fruit")
	st := NewInventoryState(newFakeAuth(), datastore.StaticConnector{Store: store}, Options{})
	ctx := context.Background()

	if err := st.Load(ctx); !core.IsKind(err, core.KindAuth) {
		t.Errorf("Load() kind = %v, want auth", core.KindOf(err))
	}
	if _, err := st.CreateCategory(ctx, core.NewCategory{Name: "Herbs"}); !core.IsKind(err, core.KindAuth) {
		t.Errorf("CreateCategory() kind = %v, want auth", core.KindOf(err))
	}
	if err := st.DeleteMoneyEntry(ctx, "x"); !core.IsKind(err, core.KindAuth) {
		t.Errorf("DeleteMoneyEntry() kind = %v, want auth", core.KindOf(err))
	}
	if store.total() != 0 {
		t.Errorf("store calls = %d, want 0", store.total())
	}
	if st.Authenticated() {
		t.Error("state should start unauthenticated")
	}
}

func TestLoginLoadsCollections(t *testing.T) {
	store := newCountingStore("Fruit", "Vegetables")
	st := NewInventoryState(newFakeAuth(), datastore.StaticConnector{Store: store}, Options{})

	if _, err := st.Login(context.Background(), "owner@example.com", "wrong"); !core.IsKind(err, core.KindAuth) {
		t.Fatalf("Login(wrong) kind = %v, want auth", core.KindOf(err))
	}
	if st.Authenticated() {
		t.Fatal("failed login must not authenticate")
	}

	session, err := st.Login(context.Background(), "owner@example.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.Token == "" || !st.Authenticated() {
		t.Fatal("expected an authenticated session")
	}
	if got := len(st.Categories()); got != 2 {
		t.Errorf("categories = %d, want 2", got)
	}
	if st.Stats().TotalCategories != 2 {
		t.Errorf("TotalCategories = %d, want 2", st.Stats().TotalCategories)
	}
	for _, name := range []string{"ListCategories", "ListStockItems", "ListMoneyEntries"} {
		if store.callCount(name) != 1 {
			t.Errorf("%s calls = %d, want 1", name, store.callCount(name))
		}
	}
}

func TestCreateStockItemValidationSkipsStore(t *testing.T) {
	store := newCountingStore("Vegetables")
	st := newSignedInState(t, store, nil)
	catID := categoryID(t, st, "Vegetables")

	tests := []struct {
		name   string
		mutate func(*core.NewStockItem)
		field  string
	}{
		{"missing name", func(n *core.NewStockItem) { n.Name = "  " }, "name"},
		{"missing category", func(n *core.NewStockItem) { n.CategoryID = "" }, "category_id"},
		{"zero brought", func(n *core.NewStockItem) { n.QuantityBrought = 0 }, "quantity_brought"},
		{"zero price", func(n *core.NewStockItem) { n.PricePerUnit = decimal.Zero }, "price_per_unit"},
		{"negative cost", func(n *core.NewStockItem) { n.EntryCost = decimal.NewFromInt(-1) }, "entry_cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validItem(catID)
			tt.mutate(&in)
			_, err := st.CreateStockItem(context.Background(), in)
			var ce *core.Error
			if !errors.As(err, &ce) || ce.Kind != core.KindValidation || ce.Field != tt.field {
				t.Fatalf("err = %v, want validation on %s", err, tt.field)
			}
			if ce.Op != "create_stock_item" {
				t.Errorf("Op = %q", ce.Op)
			}
		})
	}
	if store.total() != 0 {
		t.Errorf("store calls = %d, want 0", store.total())
	}
}

func TestCreateStockItemRejectsUnknownLocalCategory(t *testing.T) {
	store := newCountingStore("Vegetables")
	st := newSignedInState(t, store, nil)

	_, err := st.CreateStockItem(context.Background(), validItem("not-a-local-category"))
	if !core.IsKind(err, core.KindReferential) {
		t.Fatalf("kind = %v, want referential", core.KindOf(err))
	}
	if store.total() != 0 {
		t.Errorf("store calls = %d, want 0", store.total())
	}
}

func TestCreateStockItemSucceeds(t *testing.T) {
	store := newCountingStore("Vegetables")
	pub := &recordingPublisher{}
	st := newSignedInState(t, store, pub)
	catID := categoryID(t, st, "Vegetables")

	var changes []Change
	st.OnChange(func(c Change) { changes = append(changes, c) })

	it, err := st.CreateStockItem(context.Background(), validItem(catID))
	if err != nil {
		t.Fatalf("CreateStockItem() error = %v", err)
	}
	if it.Remaining() != 70 || !it.Profit().Equal(decimal.NewFromInt(90)) {
		t.Errorf("remaining=%d profit=%s", it.Remaining(), it.Profit())
	}
	if store.callCount("ListCategories") != 1 || store.callCount("InsertStockItem") != 1 {
		t.Errorf("calls = %v", store.calls)
	}

	stats := st.Stats()
	if stats.TotalItems != 1 || !stats.TotalRevenue.Equal(decimal.NewFromInt(150)) || !stats.TotalCost.Equal(decimal.NewFromInt(200)) {
		t.Errorf("stats = %+v", stats)
	}
	if len(changes) != 1 || changes[0].Action != amqp.ActionCreated || changes[0].Stats.TotalItems != 1 {
		t.Errorf("changes = %+v", changes)
	}
	if len(pub.events) != 1 || pub.events[0].Entity != amqp.EntityStockItem || pub.events[0].EntityID != it.ID {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestCreateStockItemRefreshesCategoriesOnce(t *testing.T) {
	store := newCountingStore("Vegetables")
	st := newSignedInState(t, store, nil)
	catID := categoryID(t, st, "Vegetables")

	store.hideID, store.hideCount = catID, 1

	if _, err := st.CreateStockItem(context.Background(), validItem(catID)); err != nil {
		t.Fatalf("CreateStockItem() error = %v", err)
	}
	if got := store.callCount("ListCategories"); got != 2 {
		t.Errorf("ListCategories calls = %d, want 2", got)
	}
	if got := store.callCount("InsertStockItem"); got != 1 {
		t.Errorf("InsertStockItem calls = %d, want 1", got)
	}
}

func TestCreateStockItemFailsAfterRefresh(t *testing.T) {
	store := newCountingStore("Vegetables")
	st := newSignedInState(t, store, nil)
	catID := categoryID(t, st, "Vegetables")

	store.hideID, store.hideCount = catID, 5

	_, err := st.CreateStockItem(context.Background(), validItem(catID))
	if !core.IsKind(err, core.KindReferential) {
		t.Fatalf("kind = %v, want referential", core.KindOf(err))
	}
	if got := store.callCount("ListCategories"); got != 2 {
		t.Errorf("ListCategories calls = %d, want exactly 2", got)
	}
	if got := store.callCount("InsertStockItem"); got != 0 {
		t.Errorf("InsertStockItem calls = %d, want 0", got)
	}
	if len(st.Categories()) != 0 {
		t.Error("refresh should have replaced the local categories")
	}
}

func TestDeleteReferencedCategoryIsBlocked(t *testing.T) {
	store := newCountingStore("Vegetables", "Fruit")
	st := newSignedInState(t, store, nil)
	veg := categoryID(t, st, "Vegetables")
	if _, err := st.CreateStockItem(context.Background(), validItem(veg)); err != nil {
		t.Fatal(err)
	}
	store.reset()

	err := st.DeleteCategory(context.Background(), veg)
	if !core.IsKind(err, core.KindIntegrity) {
		t.Fatalf("kind = %v, want integrity", core.KindOf(err))
	}
	if store.total() != 0 {
		t.Errorf("store calls = %d, want 0", store.total())
	}

	fruit := categoryID(t, st, "Fruit")
	if err := st.DeleteCategory(context.Background(), fruit); err != nil {
		t.Fatalf("DeleteCategory(unreferenced) error = %v", err)
	}
	if st.Stats().TotalCategories != 1 {
		t.Errorf("TotalCategories = %d, want 1", st.Stats().TotalCategories)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	store := newCountingStore()
	st := newSignedInState(t, store, nil)
	ctx := context.Background()

	if _, err := st.CreateCategory(ctx, core.NewCategory{Name: "   "}); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("blank name kind = %v, want validation", core.KindOf(err))
	}
	if store.total() != 0 {
		t.Fatalf("store calls = %d, want 0", store.total())
	}

	c, err := st.CreateCategory(ctx, core.NewCategory{Name: "  Herbs "})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if c.Name != "Herbs" || c.Color != core.DefaultCategoryColor {
		t.Errorf("category = %+v", c)
	}

	name := "Fresh herbs"
	updated, err := st.UpdateCategory(ctx, c.ID, core.CategoryPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateCategory() error = %v", err)
	}
	if got, _ := st.Category(c.ID); got.Name != "Fresh herbs" || updated.Name != "Fresh herbs" {
		t.Errorf("local category = %+v", got)
	}

	if _, err := st.UpdateCategory(ctx, c.ID, core.CategoryPatch{}); !core.IsKind(err, core.KindValidation) {
		t.Errorf("empty patch kind = %v, want validation", core.KindOf(err))
	}
	if _, err := st.UpdateCategory(ctx, "missing", core.CategoryPatch{Name: &name}); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("missing id kind = %v, want not_found", core.KindOf(err))
	}
}

func TestRecordSale(t *testing.T) {
	store := newCountingStore("Vegetables")
	pub := &recordingPublisher{err: errors.New("broker down")}
	st := newSignedInState(t, store, pub)
	it, err := st.CreateStockItem(context.Background(), validItem(categoryID(t, st, "Vegetables")))
	if err != nil {
		t.Fatal(err)
	}

	sold, err := st.RecordSale(context.Background(), it.ID, 20)
	if err != nil {
		t.Fatalf("RecordSale() error = %v (publish failures must not surface)", err)
	}
	if sold.QuantitySold != 50 || sold.Remaining() != 50 {
		t.Errorf("sold=%d remaining=%d", sold.QuantitySold, sold.Remaining())
	}
	if local, _ := st.StockItem(it.ID); local.QuantitySold != 50 {
		t.Errorf("local QuantitySold = %d, want 50", local.QuantitySold)
	}

	tests := []struct {
		name string
		id   string
		qty  int64
		want core.Kind
	}{
		{"zero quantity", it.ID, 0, core.KindValidation},
		{"more than remaining", it.ID, 51, core.KindValidation},
		{"unknown item", "missing", 1, core.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := st.RecordSale(context.Background(), tt.id, tt.qty); core.KindOf(err) != tt.want {
				t.Errorf("kind = %v, want %v", core.KindOf(err), tt.want)
			}
		})
	}
}

func TestMoneyEntriesAndStats(t *testing.T) {
	store := newCountingStore()
	st := newSignedInState(t, store, nil)
	ctx := context.Background()

	if _, err := st.CreateMoneyEntry(ctx, core.NewMoneyEntry{Amount: decimal.NewFromInt(100), Type: core.Income, Description: "Market day"}); err != nil {
		t.Fatal(err)
	}
	expense, err := st.CreateMoneyEntry(ctx, core.NewMoneyEntry{Amount: decimal.NewFromInt(40), Type: core.Expense, Description: "Crates"})
	if err != nil {
		t.Fatal(err)
	}

	ms := st.MoneyStats(testNow)
	if !ms.DailyProfit.Equal(decimal.NewFromInt(60)) || !ms.NetProfit.Equal(decimal.NewFromInt(60)) {
		t.Errorf("daily=%s net=%s, want 60/60", ms.DailyProfit, ms.NetProfit)
	}

	if err := st.DeleteMoneyEntry(ctx, expense.ID); err != nil {
		t.Fatalf("DeleteMoneyEntry() error = %v", err)
	}
	if err := st.DeleteMoneyEntry(ctx, expense.ID); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("second delete kind = %v, want not_found", core.KindOf(err))
	}
	if len(st.MoneyEntries()) != 1 {
		t.Errorf("entries = %d, want 1", len(st.MoneyEntries()))
	}

	if _, err := st.CreateMoneyEntry(ctx, core.NewMoneyEntry{Amount: decimal.NewFromInt(5), Type: "gift", Description: "x"}); !core.IsKind(err, core.KindValidation) {
		t.Errorf("bad type kind = %v, want validation", core.KindOf(err))
	}
}

func TestLoadFailureKeepsPreviousState(t *testing.T) {
	store := newCountingStore("Fruit")
	st := newSignedInState(t, store, nil)

	store.failList = core.Errorf(core.KindUnavailable, "list_money_entries", "timeout")
	err := st.Load(context.Background())
	if !core.IsKind(err, core.KindUnavailable) {
		t.Fatalf("kind = %v, want unavailable", core.KindOf(err))
	}
	if len(st.Categories()) != 1 {
		t.Error("a failed load must not replace the collections")
	}
}

func TestStatsAreIdempotent(t *testing.T) {
	store := newCountingStore("Vegetables")
	st := newSignedInState(t, store, nil)
	if _, err := st.CreateStockItem(context.Background(), validItem(categoryID(t, st, "Vegetables"))); err != nil {
		t.Fatal(err)
	}
	if a, b := st.Stats(), st.Stats(); !a.Equal(b) {
		t.Errorf("stats differ: %+v vs %+v", a, b)
	}
	if err := st.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	fresh := core.CalculateDashboardStats(st.Categories(), st.StockItems(), core.DefaultLowStockThreshold)
	if !fresh.Equal(st.Stats()) {
		t.Errorf("cached stats %+v differ from recomputed %+v", st.Stats(), fresh)
	}
}

func TestLogoutClearsState(t *testing.T) {
	store := newCountingStore("Fruit")
	st := newSignedInState(t, store, nil)

	if err := st.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if st.Authenticated() || len(st.Categories()) != 0 || st.Stats().TotalCategories != 0 {
		t.Error("logout should drop the session and every collection")
	}
	if err := st.Logout(context.Background()); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}
}
