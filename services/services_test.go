package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"friendsAPI/internal/auth"
	"friendsAPI/internal/ratelimit"
	"friendsAPI/internal/storage/memory"
	"friendsAPI/internal/user"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	store   *memory.Store
	users   *UserService
	friends *FriendRequestService
	tokens  *auth.TokenManager
	clock   *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	store := memory.NewStore()
	counters := ratelimit.NewMemoryStore()
	counters.SetClock(clock.Now)

	tokens := auth.NewTokenManager(auth.TokenOptions{Secret: []byte("test-secret")})
	users := NewUserService(store, &auth.PasswordHasher{Cost: bcrypt.MinCost}, tokens, logger)
	users.now = clock.Now

	friends := NewFriendRequestService(store, store, ratelimit.NewLimiter(counters, 3, time.Minute), logger)
	friends.now = clock.Now

	return &testEnv{store: store, users: users, friends: friends, tokens: tokens, clock: clock}
}

func (e *testEnv) signup(t *testing.T, name string) *user.User {
	t.Helper()
	u, err := e.users.Signup(context.Background(), &user.SignupRequest{
		Email:    fmt.Sprintf("%s@example.com", name),
		Name:     name,
		Password: "password123",
	})
	require.NoError(t, err)
	// keep created_at ordering strict
	e.clock.Advance(time.Millisecond)
	return u
}
