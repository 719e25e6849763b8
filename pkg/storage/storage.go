package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunsizer/sunsizer/pkg/types"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
)

// Database defines the interface for persisting planning sessions, generated
// quotes, and users.
type Database interface {
	// Sessions
	GetSession(ctx context.Context, sessionID string) (types.Session, error)
	CreateSession(ctx context.Context, session types.Session) error
	UpdateSession(ctx context.Context, session types.Session) error
	DeleteSession(ctx context.Context, sessionID string) error
	// ListSessions returns the sessions owned by ownerID. An empty ownerID
	// returns every session (admin listing / single-user mode).
	ListSessions(ctx context.Context, ownerID string) ([]types.Session, error)

	// Quotes
	InsertQuote(ctx context.Context, quote types.Quote) error
	GetQuoteHistory(ctx context.Context, sessionID string, start, end time.Time) ([]types.Quote, error)
	GetLatestQuoteTime(ctx context.Context, sessionID string) (time.Time, error)

	// Users
	GetUser(ctx context.Context, userID string) (types.User, error)
	CreateUser(ctx context.Context, user types.User) error
	UpdateUser(ctx context.Context, user types.User) error

	// Lifecycle
	Close() error
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, memory)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemoryProvider()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
