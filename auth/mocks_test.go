package auth_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-repository-bun"
	"github.com/kalinanews/newsroom/auth"
	"github.com/stretchr/testify/mock"
)

// MockAccountStore implements auth.AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) GetByID(ctx context.Context, id string, _ ...repository.SelectCriteria) (*auth.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*auth.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) GetByUsernameOrEmail(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if u, ok := args.Get(0).(*auth.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountStore) TrackSuccessfulLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// recordingSink collects activity events
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, e auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// captureLogger records messages logged through auth.Logger
type captureLogger struct {
	mu       sync.Mutex
	messages []string
	args     [][]any
}

func (l *captureLogger) log(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	l.args = append(l.args, args)
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log(msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log(msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log(msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.log(msg, args...) }
