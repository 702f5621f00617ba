// Package datastore defines the ports between the inventory state holder and
// the systems that authenticate users and persist rows.
package datastore

import (
	"context"
	"time"

	"nedwiyt/internal/core"
)

// Session is an authenticated user session. Token is opaque to callers.
type Session struct {
	Token     string
	TokenID   string // revocation key, empty when the issuer has none
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// User is a locally stored account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Ports for outbound adapters. Update and delete match rows by id. Adapters
// return *core.Error for every failure.
type (
	Authenticator interface {
		SignIn(ctx context.Context, email, password string) (Session, error)
		SignOut(ctx context.Context, s Session) error
		// CurrentSession resolves a token. It fails with core.KindAuth when the
		// token is unknown, expired, or revoked.
		CurrentSession(ctx context.Context, token string) (Session, error)
	}

	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		InsertCategory(ctx context.Context, c core.NewCategory) (core.Category, error)
		UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) (core.Category, error)
		DeleteCategory(ctx context.Context, id string) error
	}

	StockItemStore interface {
		ListStockItems(ctx context.Context) ([]core.StockItem, error)
		InsertStockItem(ctx context.Context, it core.NewStockItem) (core.StockItem, error)
		UpdateStockItem(ctx context.Context, id string, p core.StockItemPatch) (core.StockItem, error)
		DeleteStockItem(ctx context.Context, id string) error
	}

	MoneyEntryStore interface {
		ListMoneyEntries(ctx context.Context) ([]core.MoneyEntry, error)
		InsertMoneyEntry(ctx context.Context, e core.NewMoneyEntry) (core.MoneyEntry, error)
		UpdateMoneyEntry(ctx context.Context, id string, p core.MoneyEntryPatch) (core.MoneyEntry, error)
		DeleteMoneyEntry(ctx context.Context, id string) error
	}

	Store interface {
		CategoryStore
		StockItemStore
		MoneyEntryStore
	}

	// Connector binds a data client to a user's session.
	Connector interface {
		Connect(s Session) Store
	}

	// UserStore persists local accounts for backends that issue their own sessions.
	UserStore interface {
		CreateUser(ctx context.Context, email, passwordHash string) (User, error)
		UserByEmail(ctx context.Context, email string) (User, error)
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// StaticConnector hands every session the same store. Used by backends with
// a single shared dataset.
type StaticConnector struct {
	Store Store
}

func (c StaticConnector) Connect(Session) Store { return c.Store }
