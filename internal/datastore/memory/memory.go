// Package memory is an in-process Store used for development and tests.
// Data is lost on restart.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	cats    []core.Category
	items   []core.StockItem
	entries []core.MoneyEntry
	users   map[string]datastore.User // by lower-cased email
}

var (
	_ datastore.Store     = (*Store)(nil)
	_ datastore.UserStore = (*Store)(nil)
	_ datastore.Pinger    = (*Store)(nil)
)

// New returns a store seeded with the given category names.
func New(categoryNames ...string) *Store {
	s := &Store{now: time.Now, users: map[string]datastore.User{}}
	for _, name := range dedupe(categoryNames) {
		now := s.now().UTC()
		s.cats = append(s.cats, core.Category{
			ID:        uuid.NewString(),
			Name:      name,
			Color:     core.DefaultCategoryColor,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, one name per
// line. Blank lines and # comments are skipped.
func NewFromFiles(base string) *Store {
	names := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(names) == 0 {
		names = []string{"Vegetables", "Fruit", "Herbs"}
	}
	return New(names...)
}

// WithClock replaces the timestamp source. Tests only.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) InsertCategory(_ context.Context, in core.NewCategory) (core.Category, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	c := core.Category{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, id string, p core.CategoryPatch) (core.Category, error) {
	if err := p.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cats {
		if s.cats[i].ID == id {
			c := p.Apply(s.cats[i])
			c.UpdatedAt = s.now().UTC()
			s.cats[i] = c
			return c, nil
		}
	}
	return core.Category{}, notFound("update_category", "category", id)
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.CategoryID == id {
			return core.Errorf(core.KindReferential, "delete_category", "category %s is still referenced by stock items", id)
		}
	}
	for i := range s.cats {
		if s.cats[i].ID == id {
			s.cats = append(s.cats[:i], s.cats[i+1:]...)
			return nil
		}
	}
	return notFound("delete_category", "category", id)
}

func (s *Store) ListStockItems(_ context.Context) ([]core.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.StockItem(nil), s.items...), nil
}

func (s *Store) InsertStockItem(_ context.Context, in core.NewStockItem) (core.StockItem, error) {
	if err := in.Validate(); err != nil {
		return core.StockItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCategory(in.CategoryID) {
		return core.StockItem{}, core.Errorf(core.KindReferential, "insert_stock_item", "category %s does not exist", in.CategoryID)
	}
	now := s.now().UTC()
	it := core.StockItem{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		CategoryID:      in.CategoryID,
		QuantityBrought: in.QuantityBrought,
		QuantitySold:    in.QuantitySold,
		PricePerUnit:    in.PricePerUnit,
		EntryCost:       in.EntryCost,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.items = append(s.items, it)
	return it, nil
}

func (s *Store) UpdateStockItem(_ context.Context, id string, p core.StockItemPatch) (core.StockItem, error) {
	if err := p.Validate(); err != nil {
		return core.StockItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CategoryID != nil && !s.hasCategory(*p.CategoryID) {
		return core.StockItem{}, core.Errorf(core.KindReferential, "update_stock_item", "category %s does not exist", *p.CategoryID)
	}
	for i := range s.items {
		if s.items[i].ID == id {
			it := p.Apply(s.items[i])
			it.UpdatedAt = s.now().UTC()
			s.items[i] = it
			return it, nil
		}
	}
	return core.StockItem{}, notFound("update_stock_item", "stock item", id)
}

func (s *Store) DeleteStockItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return notFound("delete_stock_item", "stock item", id)
}

func (s *Store) ListMoneyEntries(_ context.Context) ([]core.MoneyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MoneyEntry(nil), s.entries...), nil
}

func (s *Store) InsertMoneyEntry(_ context.Context, in core.NewMoneyEntry) (core.MoneyEntry, error) {
	if err := in.Validate(); err != nil {
		return core.MoneyEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := core.MoneyEntry{
		ID:          uuid.NewString(),
		Amount:      in.Amount,
		Type:        in.Type,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		CreatedAt:   s.now().UTC(),
	}
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *Store) UpdateMoneyEntry(_ context.Context, id string, p core.MoneyEntryPatch) (core.MoneyEntry, error) {
	if err := p.Validate(); err != nil {
		return core.MoneyEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			e := p.Apply(s.entries[i])
			e.UpdatedAt = s.now().UTC()
			s.entries[i] = e
			return e, nil
		}
	}
	return core.MoneyEntry{}, notFound("update_money_entry", "money entry", id)
}

func (s *Store) DeleteMoneyEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return notFound("delete_money_entry", "money entry", id)
}

func (s *Store) CreateUser(_ context.Context, email, passwordHash string) (datastore.User, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return datastore.User{}, core.FieldError("email", "Email is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[key]; ok {
		return datastore.User{}, core.Errorf(core.KindValidation, "create_user", "email %s is already registered", key)
	}
	u := datastore.User{
		ID:           uuid.NewString(),
		Email:        key,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	s.users[key] = u
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (datastore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return datastore.User{}, notFound("user_by_email", "user", email)
	}
	return u, nil
}

func (s *Store) hasCategory(id string) bool {
	for _, c := range s.cats {
		if c.ID == id {
			return true
		}
	}
	return false
}

func notFound(op, what, id string) error {
	return core.Errorf(core.KindNotFound, op, "%s %s not found", what, id)
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
