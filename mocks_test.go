package authclient_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/mock"
)

// MockAPI implements authclient.API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) Login(ctx context.Context, creds authclient.Credentials) (*authclient.LoginResponse, error) {
	args := m.Called(ctx, creds)
	resp, _ := args.Get(0).(*authclient.LoginResponse)
	return resp, args.Error(1)
}

func (m *MockAPI) Register(ctx context.Context, creds authclient.Credentials) (*authclient.MessageResponse, error) {
	args := m.Called(ctx, creds)
	resp, _ := args.Get(0).(*authclient.MessageResponse)
	return resp, args.Error(1)
}

func (m *MockAPI) Logout(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockAPI) GetStatus(ctx context.Context) (*authclient.StatusResponse, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*authclient.StatusResponse)
	return resp, args.Error(1)
}

func (m *MockAPI) ChangePassword(ctx context.Context, payload authclient.PasswordChange) (*authclient.MessageResponse, error) {
	args := m.Called(ctx, payload)
	resp, _ := args.Get(0).(*authclient.MessageResponse)
	return resp, args.Error(1)
}

// MockNavigator implements authclient.Navigator
type MockNavigator struct {
	mock.Mock
}

func (m *MockNavigator) Push(ctx context.Context, target string) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}

func (m *MockNavigator) HardNavigate(ctx context.Context, target string) error {
	args := m.Called(ctx, target)
	return args.Error(0)
}

// recordingNotifier keeps every notification
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(_ context.Context, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func (n *recordingNotifier) Successes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.successes...)
}

// mapStorage is a Storage that can be told to fail
type mapStorage struct {
	mu      sync.Mutex
	data    map[string]string
	failSet error
	writes  int
}

func newMapStorage(seed map[string]string) *mapStorage {
	s := &mapStorage{data: map[string]string{}}
	for k, v := range seed {
		s.data[k] = v
	}
	return s
}

func (s *mapStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failSet != nil {
		return s.failSet
	}
	s.data[key] = value
	return nil
}

func (s *mapStorage) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *mapStorage) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

func (s *mapStorage) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// gatedStorage holds every Set until open is called
type gatedStorage struct {
	*mapStorage
	entered chan string
	gate    chan struct{}
	once    sync.Once
}

func newGatedStorage(seed map[string]string) *gatedStorage {
	return &gatedStorage{
		mapStorage: newMapStorage(seed),
		entered:    make(chan string, 16),
		gate:       make(chan struct{}),
	}
}

func (s *gatedStorage) Set(ctx context.Context, key, value string) error {
	select {
	case s.entered <- key:
	default:
	}
	<-s.gate
	return s.mapStorage.Set(ctx, key, value)
}

func (s *gatedStorage) open() {
	s.once.Do(func() { close(s.gate) })
}
