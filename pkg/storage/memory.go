package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sunsizer/sunsizer/pkg/types"
)

// MemoryProvider implements the Database interface in process memory. It is
// used for local development and single-user deployments where a Firestore
// project would be overkill. Nothing survives a restart.
type MemoryProvider struct {
	mu       sync.Mutex
	sessions map[string]types.Session
	quotes   map[string][]types.Quote
	users    map[string]types.User
}

var _ Database = (*MemoryProvider)(nil)

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		sessions: make(map[string]types.Session),
		quotes:   make(map[string][]types.Quote),
		users:    make(map[string]types.User),
	}
}

func (m *MemoryProvider) GetSession(ctx context.Context, sessionID string) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return types.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

func (m *MemoryProvider) CreateSession(ctx context.Context, session types.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session missing ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; ok {
		return fmt.Errorf("session already exists: %s", session.ID)
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryProvider) UpdateSession(ctx context.Context, session types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryProvider) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryProvider) ListSessions(ctx context.Context, ownerID string) ([]types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sessions []types.Session
	for _, s := range m.sessions {
		if ownerID == "" || s.OwnerID == ownerID {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (m *MemoryProvider) InsertQuote(ctx context.Context, quote types.Quote) error {
	if quote.SessionID == "" {
		return fmt.Errorf("quote missing sessionID")
	}
	if quote.Timestamp.IsZero() {
		return fmt.Errorf("quote missing timestamp")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	quotes := append(m.quotes[quote.SessionID], quote)
	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].Timestamp.Before(quotes[j].Timestamp)
	})
	m.quotes[quote.SessionID] = quotes
	return nil
}

func (m *MemoryProvider) GetQuoteHistory(ctx context.Context, sessionID string, start, end time.Time) ([]types.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Quote
	for _, q := range m.quotes[sessionID] {
		// match the firestore doc-ID range semantics: [start, end)
		if !q.Timestamp.Before(start) && q.Timestamp.Before(end) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *MemoryProvider) GetLatestQuoteTime(ctx context.Context, sessionID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quotes := m.quotes[sessionID]
	if len(quotes) == 0 {
		return time.Time{}, nil
	}
	return quotes[len(quotes)-1].Timestamp, nil
}

func (m *MemoryProvider) GetUser(ctx context.Context, userID string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return types.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return u, nil
}

func (m *MemoryProvider) CreateUser(ctx context.Context, user types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return fmt.Errorf("user already exists: %s", user.ID)
	}
	m.users[user.ID] = user
	return nil
}

func (m *MemoryProvider) UpdateUser(ctx context.Context, user types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
