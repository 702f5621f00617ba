package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

func newRegistry(store *countingStore) (*SessionRegistry, *fakeAuth) {
	auth := newFakeAuth()
	reg := NewSessionRegistry(auth, datastore.StaticConnector{Store: store}, Options{
		LowStockThreshold: core.DefaultLowStockThreshold,
	}, 8, time.Hour)
	return reg, auth
}

func TestRegistryLoginResolveLogout(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore("Fruit")
	reg, auth := newRegistry(store)

	st, session, err := reg.Login(ctx, "owner@example.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	store.reset()

	got, err := reg.Resolve(ctx, session.Token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != st {
		t.Error("Resolve should return the state created at login")
	}
	if store.total() != 0 {
		t.Errorf("resolving a live session reloaded data (%d calls)", store.total())
	}

	if err := reg.Logout(ctx, session.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if auth.signOuts != 1 {
		t.Errorf("signOuts = %d, want 1", auth.signOuts)
	}
	if _, err := reg.Resolve(ctx, session.Token); !core.IsKind(err, core.KindAuth) {
		t.Errorf("Resolve() after logout kind = %v, want auth", core.KindOf(err))
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestRegistryRestoresEvictedState(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore("Fruit")
	reg, _ := newRegistry(store)

	_, session, err := reg.Login(ctx, "owner@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	reg.Cache().Delete(session.Token)
	store.reset()

	st, err := reg.Resolve(ctx, session.Token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(st.Categories()) != 1 {
		t.Errorf("restored state has %d categories, want 1", len(st.Categories()))
	}
	if store.callCount("ListCategories") != 1 {
		t.Errorf("restore should reload once, got %d category listings", store.callCount("ListCategories"))
	}
}

func TestRegistryRejectsUnknownToken(t *testing.T) {
	reg, _ := newRegistry(newCountingStore())
	for _, token := range []string{"", "forged"} {
		if _, err := reg.Resolve(context.Background(), token); !core.IsKind(err, core.KindAuth) {
			t.Errorf("Resolve(%q) kind = %v, want auth", token, core.KindOf(err))
		}
	}
}

func TestRegistryChangeHook(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(newCountingStore())

	var (
		mu   sync.Mutex
		keys []string
	)
	reg.OnChange(func(key string, c Change) {
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
	})

	st, session, err := reg.Login(ctx, "owner@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateCategory(ctx, core.NewCategory{Name: "Herbs"}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(keys) != 1 || keys[0] != SessionKey(session.Token) {
		t.Errorf("hook keys = %v, want [%s]", keys, SessionKey(session.Token))
	}
}

func TestSessionKeyIsStable(t *testing.T) {
	if SessionKey("a") != SessionKey("a") || SessionKey("a") == SessionKey("b") {
		t.Error("SessionKey must be deterministic and distinguish tokens")
	}
	if len(SessionKey("a")) != 24 {
		t.Errorf("len = %d, want 24", len(SessionKey("a")))
	}
}

func TestRegistryReloadsAfterFailedLogin(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore("Fruit")
	cats, err := store.Store.ListCategories(ctx)
	if err != nil || len(cats) != 1 {
		t.Fatalf("seed categories = %v, %v", cats, err)
	}
	fruit := cats[0].ID
	if _, err := store.Store.InsertStockItem(ctx, validItem(fruit)); err != nil {
		t.Fatal(err)
	}
	reg, _ := newRegistry(store)

	store.failList = core.Errorf(core.KindUnavailable, "list_money_entries", "timeout")
	st, session, err := reg.Login(ctx, "owner@example.com", "pw")
	if !core.IsKind(err, core.KindUnavailable) {
		t.Fatalf("Login() kind = %v, want unavailable", core.KindOf(err))
	}
	if st == nil || st.Loaded() {
		t.Fatal("login with a failed load should return an unloaded state")
	}

	store.reset()
	if err := st.DeleteCategory(ctx, fruit); !core.IsKind(err, core.KindUnavailable) {
		t.Errorf("DeleteCategory() before load kind = %v, want unavailable", core.KindOf(err))
	}
	if store.total() != 0 {
		t.Errorf("an unloaded state reached the store (%d calls)", store.total())
	}

	store.failList = nil
	got, err := reg.Resolve(ctx, session.Token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != st || !got.Loaded() {
		t.Fatal("Resolve should reload the state registered at login")
	}
	if len(got.Categories()) != 1 || len(got.StockItems()) != 1 {
		t.Fatalf("after reload: %d categories, %d items", len(got.Categories()), len(got.StockItems()))
	}

	store.reset()
	if err := got.DeleteCategory(ctx, fruit); !core.IsKind(err, core.KindIntegrity) {
		t.Errorf("DeleteCategory(referenced) kind = %v, want integrity", core.KindOf(err))
	}
	if n := store.callCount("DeleteCategory"); n != 0 {
		t.Errorf("referenced category delete reached the store %d time(s)", n)
	}
}
