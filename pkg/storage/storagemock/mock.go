package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/sunsizer/sunsizer/pkg/storage"
	"github.com/sunsizer/sunsizer/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSession(ctx context.Context, sessionID string) (types.Session, error) {
	args := m.Called(ctx, sessionID)
	if len(args) > 0 {
		return args.Get(0).(types.Session), args.Error(1)
	}
	return types.Session{}, nil
}

func (m *MockDatabase) CreateSession(ctx context.Context, session types.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockDatabase) UpdateSession(ctx context.Context, session types.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockDatabase) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockDatabase) ListSessions(ctx context.Context, ownerID string) ([]types.Session, error) {
	args := m.Called(ctx, ownerID)
	if len(args) > 0 {
		return args.Get(0).([]types.Session), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) InsertQuote(ctx context.Context, quote types.Quote) error {
	args := m.Called(ctx, quote)
	return args.Error(0)
}

func (m *MockDatabase) GetQuoteHistory(ctx context.Context, sessionID string, start, end time.Time) ([]types.Quote, error) {
	args := m.Called(ctx, sessionID, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.Quote), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetLatestQuoteTime(ctx context.Context, sessionID string) (time.Time, error) {
	args := m.Called(ctx, sessionID)
	if len(args) > 0 {
		return args.Get(0).(time.Time), args.Error(1)
	}
	return time.Time{}, nil
}

func (m *MockDatabase) GetUser(ctx context.Context, userID string) (types.User, error) {
	args := m.Called(ctx, userID)
	if len(args) > 0 {
		return args.Get(0).(types.User), args.Error(1)
	}
	return types.User{}, nil
}

func (m *MockDatabase) CreateUser(ctx context.Context, user types.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockDatabase) UpdateUser(ctx context.Context, user types.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
