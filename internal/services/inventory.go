// Package services holds the per-session application state: the loaded
// collections, the derived dashboard statistics, and the request sequences
// that keep both in step with the backing store.
package services

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nedwiyt/internal/amqp"
	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
	"nedwiyt/internal/log"
)

// Publisher announces committed changes. *amqp.Client satisfies it.
type Publisher interface {
	PublishInventoryEvent(ctx context.Context, ev *amqp.InventoryEvent) error
}

// Change describes one committed mutation and the statistics after it.
type Change struct {
	UserID   string
	Entity   string
	Action   string
	EntityID string
	Stats    core.DashboardStats
}

// Options configure an InventoryState. Nil fields get defaults and a
// negative threshold means core.DefaultLowStockThreshold.
type Options struct {
	LowStockThreshold int
	Location          *time.Location
	Publisher         Publisher
	Logger            *log.Logger
	Now               func() time.Time
}

// InventoryState is the state holder for one browser session. Its methods
// are safe for concurrent use; mutations run one at a time.
type InventoryState struct {
	auth      datastore.Authenticator
	connector datastore.Connector
	publisher Publisher
	logger    *log.Logger
	threshold int
	loc       *time.Location
	now       func() time.Time

	mu         sync.Mutex
	session    datastore.Session
	store      datastore.Store // nil while unauthenticated
	loaded     bool            // collections reflect the bound session
	categories []core.Category
	items      []core.StockItem
	entries    []core.MoneyEntry
	stats      core.DashboardStats
	listeners  []func(Change)
}

func NewInventoryState(auth datastore.Authenticator, connector datastore.Connector, opts Options) *InventoryState {
	if opts.LowStockThreshold < 0 {
		opts.LowStockThreshold = core.DefaultLowStockThreshold
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &InventoryState{
		auth:      auth,
		connector: connector,
		publisher: opts.Publisher,
		logger:    opts.Logger.WithComponent(log.ComponentInventory),
		threshold: opts.LowStockThreshold,
		loc:       opts.Location,
		now:       opts.Now,
	}
}

// OnChange registers fn to run after every committed mutation and load.
func (s *InventoryState) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Now is the current time in the configured location.
func (s *InventoryState) Now() time.Time {
	return s.now().In(s.loc)
}

// Threshold is the low-stock threshold in effect.
func (s *InventoryState) Threshold() int { return s.threshold }

// Authentication

// Login signs in and loads the user's data. A load failure leaves the user
// signed in and is returned alongside the session.
func (s *InventoryState) Login(ctx context.Context, email, password string) (datastore.Session, error) {
	session, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		s.logger.WarnContext(ctx, "Sign-in failed", log.FieldErrorKind, core.KindOf(err).String())
		return datastore.Session{}, core.Wrap(core.KindAuth, log.OpLogin, err)
	}
	s.bind(session)
	s.logger.InfoContext(ctx, "Signed in", log.FieldUserID, session.UserID)
	return session, s.Load(ctx)
}

// Resume restores a session from its token. It is a no-op when the state
// already holds that live session and its data; a session whose last load
// failed is loaded again.
func (s *InventoryState) Resume(ctx context.Context, token string) error {
	s.mu.Lock()
	current := s.store != nil && s.session.Token == token && !s.session.Expired(s.now())
	loaded := s.loaded
	s.mu.Unlock()
	if current && loaded {
		return nil
	}
	if current {
		return s.Load(ctx)
	}

	session, err := s.auth.CurrentSession(ctx, token)
	if err != nil {
		s.clear()
		return core.Wrap(core.KindAuth, "resume", err)
	}
	s.bind(session)
	return s.Load(ctx)
}

// Logout signs out and drops every loaded collection. Local state is cleared
// even when the auth service call fails.
func (s *InventoryState) Logout(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	signedIn := s.store != nil
	s.mu.Unlock()

	s.clear()
	if !signedIn {
		return nil
	}
	if err := s.auth.SignOut(ctx, session); err != nil {
		s.logger.WarnContext(ctx, "Sign-out failed", log.FieldUserID, session.UserID, "error", err)
		return core.Wrap(core.KindUnavailable, log.OpLogout, err)
	}
	s.logger.InfoContext(ctx, "Signed out", log.FieldUserID, session.UserID)
	return nil
}

// Loaded reports whether the collections were fetched for the bound session.
func (s *InventoryState) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Authenticated reports whether a session is bound.
func (s *InventoryState) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store != nil
}

// Session returns the bound session, if any.
func (s *InventoryState) Session() (datastore.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.store != nil
}

func (s *InventoryState) bind(session datastore.Session) {
	store := s.connector.Connect(session)
	s.mu.Lock()
	if s.session.Token != session.Token {
		s.loaded = false
	}
	s.session = session
	s.store = store
	s.mu.Unlock()
}

func (s *InventoryState) clear() {
	s.mu.Lock()
	s.session = datastore.Session{}
	s.store = nil
	s.loaded = false
	s.categories, s.items, s.entries = nil, nil, nil
	s.stats = core.DashboardStats{}
	s.mu.Unlock()
}

// Loading

// Load refetches every collection concurrently and replaces the local copies
// only when all three fetches succeed.
func (s *InventoryState) Load(ctx context.Context) error {
	return s.mutate(ctx, log.OpLoad, func(ctx context.Context, store datastore.Store) (Change, error) {
		var (
			cats    []core.Category
			items   []core.StockItem
			entries []core.MoneyEntry
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			cats, err = store.ListCategories(gctx)
			return err
		})
		g.Go(func() (err error) {
			items, err = store.ListStockItems(gctx)
			return err
		})
		g.Go(func() (err error) {
			entries, err = store.ListMoneyEntries(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return Change{}, err
		}
		s.categories, s.items, s.entries = cats, items, entries
		s.loaded = true
		s.logger.DebugContext(ctx, "Inventory loaded",
			"categories", len(cats), "items", len(items), "money_entries", len(entries))
		return Change{Entity: amqp.EntityInventory, Action: log.OpLoad}, nil
	})
}

// RefreshCategories refetches the categories only.
func (s *InventoryState) RefreshCategories(ctx context.Context) error {
	return s.mutate(ctx, log.OpRefresh, func(ctx context.Context, store datastore.Store) (Change, error) {
		if err := s.refreshCategoriesLocked(ctx, store); err != nil {
			return Change{}, err
		}
		return Change{Entity: amqp.EntityCategory, Action: log.OpRefresh}, nil
	})
}

func (s *InventoryState) refreshCategoriesLocked(ctx context.Context, store datastore.Store) error {
	cats, err := store.ListCategories(ctx)
	if err != nil {
		return err
	}
	s.categories = cats
	return nil
}

// Categories

func (s *InventoryState) CreateCategory(ctx context.Context, in core.NewCategory) (core.Category, error) {
	const op = "create_category"
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Category{}, withOp(op, err)
	}
	var created core.Category
	err := s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		c, err := store.InsertCategory(ctx, in)
		if err != nil {
			return Change{}, err
		}
		created = c
		s.categories = append(s.categories, c)
		return Change{Entity: amqp.EntityCategory, Action: amqp.ActionCreated, EntityID: c.ID}, nil
	})
	return created, err
}

func (s *InventoryState) UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error) {
	const op = "update_category"
	if err := p.Validate(); err != nil {
		return core.Category{}, withOp(op, err)
	}
	if p.IsEmpty() {
		return core.Category{}, core.Errorf(core.KindValidation, op, "nothing to update")
	}
	var updated core.Category
	err := s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		c, err := store.UpdateCategory(ctx, id, p)
		if err != nil {
			return Change{}, err
		}
		updated = c
		s.categories = upsert(s.categories, c, func(x core.Category) string { return x.ID })
		return Change{Entity: amqp.EntityCategory, Action: amqp.ActionUpdated, EntityID: c.ID}, nil
	})
	return updated, err
}

// DeleteCategory refuses, without contacting the store, while any loaded
// stock item still references the category.
func (s *InventoryState) DeleteCategory(ctx context.Context, id string) error {
	const op = "delete_category"
	return s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		if n := countReferences(s.items, id); n > 0 {
			return Change{}, core.Errorf(core.KindIntegrity, op,
				"Cannot delete this category: %d stock item(s) still use it. Move or delete them first", n)
		}
		if err := store.DeleteCategory(ctx, id); err != nil {
			return Change{}, err
		}
		s.categories = remove(s.categories, id, func(x core.Category) string { return x.ID })
		return Change{Entity: amqp.EntityCategory, Action: amqp.ActionDeleted, EntityID: id}, nil
	})
}

// Stock items

// CreateStockItem validates the input, then resolves the category locally,
// then remotely with at most one category refresh, before inserting.
func (s *InventoryState) CreateStockItem(ctx context.Context, in core.NewStockItem) (core.StockItem, error) {
	const op = "create_stock_item"
	in.Name = strings.TrimSpace(in.Name)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if err := in.ValidateRequired(); err != nil {
		return core.StockItem{}, withOp(op, err)
	}
	if err := in.ValidateNumbers(); err != nil {
		return core.StockItem{}, withOp(op, err)
	}

	var created core.StockItem
	err := s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		if !containsCategory(s.categories, in.CategoryID) {
			return Change{}, &core.Error{Kind: core.KindReferential, Op: op, Field: "category_id",
				Message: "The selected category is not in your category list. Refresh the page or pick another category"}
		}

		remote, err := store.ListCategories(ctx)
		if err != nil {
			return Change{}, err
		}
		if !containsCategory(remote, in.CategoryID) {
			s.logger.WarnContext(ctx, "Category missing remotely, refreshing",
				log.FieldCategoryID, in.CategoryID)
			if err := s.refreshCategoriesLocked(ctx, store); err != nil {
				return Change{}, err
			}
			if !containsCategory(s.categories, in.CategoryID) {
				return Change{}, &core.Error{Kind: core.KindReferential, Op: op, Field: "category_id",
					Message: "The selected category does not exist in the database even after a refresh. Pick another category or create a new one"}
			}
		}

		it, err := store.InsertStockItem(ctx, in)
		if err != nil {
			return Change{}, err
		}
		created = it
		s.items = append([]core.StockItem{it}, s.items...)
		return Change{Entity: amqp.EntityStockItem, Action: amqp.ActionCreated, EntityID: it.ID}, nil
	})
	return created, err
}

func (s *InventoryState) UpdateStockItem(ctx context.Context, id string, p core.StockItemPatch) (core.StockItem, error) {
	const op = "update_stock_item"
	if err := p.Validate(); err != nil {
		return core.StockItem{}, withOp(op, err)
	}
	if p.IsEmpty() {
		return core.StockItem{}, core.Errorf(core.KindValidation, op, "nothing to update")
	}
	var updated core.StockItem
	err := s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		if p.CategoryID != nil && !containsCategory(s.categories, *p.CategoryID) {
			return Change{}, &core.Error{Kind: core.KindReferential, Op: op, Field: "category_id",
				Message: "The selected category is not in your category list"}
		}
		it, err := store.UpdateStockItem(ctx, id, p)
		if err != nil {
			return Change{}, err
		}
		updated = it
		s.items = upsert(s.items, it, func(x core.StockItem) string { return x.ID })
		return Change{Entity: amqp.EntityStockItem, Action: amqp.ActionUpdated, EntityID: it.ID}, nil
	})
	return updated, err
}

// RecordSale adds qty to the sold counter of a loaded item.
func (s *InventoryState) RecordSale(ctx context.Context, id string, qty int64) (core.StockItem, error) {
	const op = "record_sale"
	if qty <= 0 {
		return core.StockItem{}, &core.Error{Kind: core.KindValidation, Op: op, Field: "quantity", Message: "Quantity must be greater than 0"}
	}
	var updated core.StockItem
	err := s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		i := slices.IndexFunc(s.items, func(x core.StockItem) bool { return x.ID == id })
		if i < 0 {
			return Change{}, core.Errorf(core.KindNotFound, op, "Stock item not found")
		}
		current := s.items[i]
		if left := current.Remaining(); qty > left {
			return Change{}, &core.Error{Kind: core.KindValidation, Op: op, Field: "quantity",
				Message: "Only " + formatInt(left) + " left in stock"}
		}
		sold := current.QuantitySold + qty
		it, err := store.UpdateStockItem(ctx, id, core.StockItemPatch{QuantitySold: &sold})
		if err != nil {
			return Change{}, err
		}
		updated = it
		s.items = upsert(s.items, it, func(x core.StockItem) string { return x.ID })
		s.logger.InfoContext(ctx, "Sale recorded",
			log.FieldEntityID, id, log.FieldItemName, it.Name, log.FieldQuantity, qty)
		return Change{Entity: amqp.EntityStockItem, Action: amqp.ActionSold, EntityID: id}, nil
	})
	return updated, err
}

func (s *InventoryState) DeleteStockItem(ctx context.Context, id string) error {
	const op = "delete_stock_item"
	return s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		if err := store.DeleteStockItem(ctx, id); err != nil {
			return Change{}, err
		}
		s.items = remove(s.items, id, func(x core.StockItem) string { return x.ID })
		return Change{Entity: amqp.EntityStockItem, Action: amqp.ActionDeleted, EntityID: id}, nil
	})
}

// Money entries

func (s *InventoryState) CreateMoneyEntry(ctx context.Context, in core.NewMoneyEntry) (core.MoneyEntry, error) {
	const op = "create_money_entry"
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return core.MoneyEntry{}, withOp(op, err)
	}
	var created core.MoneyEntry
	err := s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		e, err := store.InsertMoneyEntry(ctx, in)
		if err != nil {
			return Change{}, err
		}
		created = e
		s.entries = append([]core.MoneyEntry{e}, s.entries...)
		return Change{Entity: amqp.EntityMoneyEntry, Action: amqp.ActionCreated, EntityID: e.ID}, nil
	})
	return created, err
}

func (s *InventoryState) UpdateMoneyEntry(ctx context.Context, id string, p core.MoneyEntryPatch) (core.MoneyEntry, error) {
	const op = "update_money_entry"
	if err := p.Validate(); err != nil {
		return core.MoneyEntry{}, withOp(op, err)
	}
	var updated core.MoneyEntry
	err := s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		e, err := store.UpdateMoneyEntry(ctx, id, p)
		if err != nil {
			return Change{}, err
		}
		updated = e
		s.entries = upsert(s.entries, e, func(x core.MoneyEntry) string { return x.ID })
		return Change{Entity: amqp.EntityMoneyEntry, Action: amqp.ActionUpdated, EntityID: e.ID}, nil
	})
	return updated, err
}

func (s *InventoryState) DeleteMoneyEntry(ctx context.Context, id string) error {
	const op = "delete_money_entry"
	return s.mutate(ctx, op, func(ctx context.Context, store datastore.Store) (Change, error) {
		if err := store.DeleteMoneyEntry(ctx, id); err != nil {
			return Change{}, err
		}
		s.entries = remove(s.entries, id, func(x core.MoneyEntry) string { return x.ID })
		return Change{Entity: amqp.EntityMoneyEntry, Action: amqp.ActionDeleted, EntityID: id}, nil
	})
}

// mutate runs fn under the state lock with the bound store. On success the
// dashboard statistics are recomputed, then listeners run and the change is
// published outside the lock.
func (s *InventoryState) mutate(ctx context.Context, op string, fn func(context.Context, datastore.Store) (Change, error)) error {
	s.mu.Lock()
	if s.store == nil {
		s.mu.Unlock()
		return core.Errorf(core.KindAuth, op, "sign in to continue")
	}
	// local checks such as category references need the loaded collections
	if !s.loaded && op != log.OpLoad {
		s.mu.Unlock()
		return core.Errorf(core.KindUnavailable, op, "Your data has not loaded yet. Refresh the page and try again")
	}
	change, err := fn(ctx, s.store)
	if err != nil {
		userID := s.session.UserID
		s.mu.Unlock()
		err = core.Wrap(core.KindUnknown, op, err)
		s.logger.WarnContext(ctx, "Inventory operation failed",
			log.FieldOperation, op,
			log.FieldUserID, userID,
			log.FieldErrorKind, core.KindOf(err).String(),
			"error", err)
		return err
	}
	s.stats = core.CalculateDashboardStats(s.categories, s.items, s.threshold)
	change.Stats = s.stats
	change.UserID = s.session.UserID
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
	if change.Action != log.OpLoad && change.Action != log.OpRefresh {
		s.publish(ctx, change)
	}
	return nil
}

func (s *InventoryState) publish(ctx context.Context, c Change) {
	if s.publisher == nil {
		return
	}
	ev := amqp.NewInventoryEvent(c.UserID, c.Entity, c.Action, c.EntityID)
	if err := s.publisher.PublishInventoryEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish inventory event",
			log.FieldEventID, ev.ID,
			log.FieldEntity, c.Entity,
			"error", err)
	}
}

// withOp stamps op on a validation error raised before the store is reached.
func withOp(op string, err error) error {
	if ce, ok := err.(*core.Error); ok && ce.Op == "" {
		cp := *ce
		cp.Op = op
		return &cp
	}
	return err
}
