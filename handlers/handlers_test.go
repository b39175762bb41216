package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"friendsAPI/internal/auth"
	"friendsAPI/internal/ratelimit"
	"friendsAPI/internal/storage/memory"
	"friendsAPI/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	router *mux.Router
	store  *memory.Store
	hub    *services.EventHub
}

func newTestServer(t *testing.T, pinger Pinger) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := memory.NewStore()
	tokens := auth.NewTokenManager(auth.TokenOptions{Secret: []byte("handler-test-secret")})
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 3, time.Minute)

	userService := services.NewUserService(store, &auth.PasswordHasher{Cost: bcrypt.MinCost}, tokens, logger)
	friendService := services.NewFriendRequestService(store, store, limiter, logger)
	dispatcher := services.NewNotificationDispatcher(store, 1, logger)
	t.Cleanup(dispatcher.Stop)
	hub := services.NewEventHub(logger)
	t.Cleanup(hub.Close)
	notificationService := services.NewNotificationService(store, dispatcher, logger)
	notificationService.SetEventPublisher(hub)
	friendService.SetNotifier(notificationService)

	router := NewRouter(RouterConfig{
		Auth:           NewAuthHandler(userService, logger),
		Users:          NewUserHandler(userService, logger),
		FriendRequests: NewFriendRequestHandler(friendService, logger),
		Notifications:  NewNotificationHandler(notificationService, logger),
		Health:         NewHealthHandler(pinger, "friendsAPI"),
		Events:         NewEventsHandler(hub, tokens, logger),
		Verifier:       tokens,
		Logger:         logger,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("metrics"))
		}),
		MetricsUser: "admin",
		MetricsPass: "pass",
	})
	return &testServer{router: router, store: store, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type account struct {
	ID     string
	Email  string
	Name   string
	Access string
}

func (s *testServer) register(t *testing.T, name string) account {
	t.Helper()
	email := name + "@example.com"

	rec := s.do(t, http.MethodPost, "/api/v1/signup", "", map[string]string{
		"email": email, "name": name, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tokens map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.NotEmpty(t, tokens["access"])
	require.NotEmpty(t, tokens["refresh"])

	return account{ID: created["id"], Email: email, Name: name, Access: tokens["access"]}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, kind, body["error"])
	assert.NotEmpty(t, body["detail"])
}

func TestSignupAndLoginErrors(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/v1/signup", "", map[string]string{
		"email": "alice@example.com", "name": "again", "password": "password123",
	})
	assertError(t, rec, http.StatusBadRequest, "validation_error")

	rec = s.do(t, http.MethodPost, "/api/v1/signup", "", map[string]string{"email": "not-an-email"})
	assertError(t, rec, http.StatusBadRequest, "validation_error")

	rec = s.do(t, http.MethodPost, "/api/v1/signup", "", nil)
	assertError(t, rec, http.StatusBadRequest, "validation_error")

	rec = s.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	assertError(t, rec, http.StatusUnauthorized, "invalid_credentials")
}

func TestTokenRefresh(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email": "alice@example.com", "password": "password123",
	})
	var pair map[string]string
	decodeBody(t, rec, &pair)

	rec = s.do(t, http.MethodPost, "/api/v1/token/refresh", "", map[string]string{"refresh": pair["refresh"]})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed map[string]string
	decodeBody(t, rec, &refreshed)
	require.NotEmpty(t, refreshed["access"])
	_, hasRefresh := refreshed["refresh"]
	assert.False(t, hasRefresh)

	rec = s.do(t, http.MethodGet, "/api/v1/friends", refreshed["access"], nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/token/refresh", "", map[string]string{"refresh": "garbage"})
	assertError(t, rec, http.StatusUnauthorized, "invalid_credentials")

	// refresh tokens are not accepted as bearer credentials
	rec = s.do(t, http.MethodGet, "/api/v1/friends", pair["refresh"], nil)
	assertError(t, rec, http.StatusUnauthorized, "unauthorized")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t, nil)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/users/search?q=a"},
		{http.MethodPost, "/api/v1/friend-request/send"},
		{http.MethodPost, "/api/v1/friend-request/accept"},
		{http.MethodPost, "/api/v1/friend-request/reject"},
		{http.MethodGet, "/api/v1/friends"},
		{http.MethodGet, "/api/v1/friend-requests/pending"},
		{http.MethodPost, "/api/v1/notifications/register-device"},
	} {
		rec := s.do(t, route.method, route.path, "", nil)
		assertError(t, rec, http.StatusUnauthorized, "unauthorized")
	}
}

func TestFriendRequestFlow(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob := s.register(t, "alice"), s.register(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/v1/friend-request/send", alice.Access, map[string]string{"to_user_id": bob.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var detail map[string]string
	decodeBody(t, rec, &detail)
	assert.Equal(t, "Friend request sent.", detail["detail"])

	rec = s.do(t, http.MethodPost, "/api/v1/friend-request/send", alice.Access, map[string]string{"to_user_id": bob.ID})
	assertError(t, rec, http.StatusConflict, "duplicate_request")

	rec = s.do(t, http.MethodGet, "/api/v1/friend-requests/pending", bob.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []map[string]interface{}
	decodeBody(t, rec, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0]["from_user"])
	assert.NotEmpty(t, pending[0]["id"])
	assert.NotEmpty(t, pending[0]["timestamp"])

	rec = s.do(t, http.MethodPost, "/api/v1/friend-request/accept", bob.Access, map[string]string{"from_user_email": alice.Email})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &detail)
	assert.Equal(t, "Friend request accepted.", detail["detail"])

	rec = s.do(t, http.MethodPost, "/api/v1/friend-request/accept", bob.Access, map[string]string{"from_user_email": alice.Email})
	assertError(t, rec, http.StatusNotFound, "not_found")

	for _, viewer := range []struct {
		me     account
		friend account
	}{{alice, bob}, {bob, alice}} {
		rec = s.do(t, http.MethodGet, "/api/v1/friends", viewer.me.Access, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var friends []map[string]string
		decodeBody(t, rec, &friends)
		require.Len(t, friends, 1)
		assert.Equal(t, viewer.friend.ID, friends[0]["id"])
		assert.Equal(t, viewer.friend.Email, friends[0]["email"])
		assert.Equal(t, viewer.friend.Name, friends[0]["name"])
	}
}

func TestRejectFlow(t *testing.T) {
	s := newTestServer(t, nil)
	alice, bob := s.register(t, "alice"), s.register(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/v1/friend-request/send", alice.Access, map[string]string{"to_user_id": bob.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/friend-request/reject", bob.Access, map[string]string{"from_user_email": alice.Email})
	require.Equal(t, http.StatusOK, rec.Code)
	var detail map[string]string
	decodeBody(t, rec, &detail)
	assert.Equal(t, "Friend request rejected.", detail["detail"])

	rec = s.do(t, http.MethodGet, "/api/v1/friend-requests/pending", bob.Access, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/friends", bob.Access, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSendRequestErrors(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/v1/friend-request/send", alice.Access, map[string]string{"to_user_id": "42"})
	assertError(t, rec, http.StatusNotFound, "not_found")

	rec = s.do(t, http.MethodPost, "/api/v1/friend-request/send", alice.Access, map[string]string{"to_user_id": "8a0d7e3c-7e7a-4f35-9a4b-3a3f4e0c9b11"})
	assertError(t, rec, http.StatusNotFound, "not_found")

	rec = s.do(t, http.MethodPost, "/api/v1/friend-request/send", alice.Access, map[string]string{"to_user_id": alice.ID})
	assertError(t, rec, http.StatusBadRequest, "validation_error")
}

func TestSendRequestRateLimited(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")
	var recipients []account
	for i := 0; i < 4; i++ {
		recipients = append(recipients, s.register(t, fmt.Sprintf("user%d", i)))
	}

	for _, to := range recipients[:3] {
		rec := s.do(t, http.MethodPost, "/api/v1/friend-request/send", alice.Access, map[string]string{"to_user_id": to.ID})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, http.MethodPost, "/api/v1/friend-request/send", alice.Access, map[string]string{"to_user_id": recipients[3].ID})
	assertError(t, rec, http.StatusTooManyRequests, "rate_limited")
}

func TestSearchUsersPagination(t *testing.T) {
	s := newTestServer(t, nil)
	me := s.register(t, "searcher")
	for i := 0; i < 11; i++ {
		s.register(t, fmt.Sprintf("pal%02d", i))
	}

	rec := s.do(t, http.MethodGet, "/api/v1/users/search?q=PAL", me.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Count    int                 `json:"count"`
		Next     *string             `json:"next"`
		Previous *string             `json:"previous"`
		Results  []map[string]string `json:"results"`
	}
	decodeBody(t, rec, &page)
	assert.Equal(t, 11, page.Count)
	assert.Len(t, page.Results, 10)
	require.NotNil(t, page.Next)
	assert.Equal(t, "http://example.com/api/v1/users/search?page=2&q=PAL", *page.Next)
	assert.Nil(t, page.Previous)

	rec = s.do(t, http.MethodGet, "/api/v1/users/search?q=PAL&page=2", me.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page.Next, page.Previous = nil, nil
	decodeBody(t, rec, &page)
	assert.Len(t, page.Results, 1)
	assert.Nil(t, page.Next)
	require.NotNil(t, page.Previous)
	assert.Equal(t, "http://example.com/api/v1/users/search?q=PAL", *page.Previous)

	rec = s.do(t, http.MethodGet, "/api/v1/users/search?q=PAL&page=3", me.Access, nil)
	assertError(t, rec, http.StatusNotFound, "not_found")

	rec = s.do(t, http.MethodGet, "/api/v1/users/search?q=PAL&page=abc", me.Access, nil)
	assertError(t, rec, http.StatusNotFound, "not_found")

	rec = s.do(t, http.MethodGet, "/api/v1/users/search?q=PAL&page=1000000000000000000", me.Access, nil)
	assertError(t, rec, http.StatusNotFound, "not_found")

	rec = s.do(t, http.MethodGet, "/api/v1/users/search?q=pal03@example.com", me.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page.Results = nil
	decodeBody(t, rec, &page)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "pal03", page.Results[0]["name"])
}

func TestRegisterDevice(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/v1/notifications/register-device", alice.Access, map[string]string{
		"token": "fcm-token", "platform": "ios",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/notifications/register-device", alice.Access, map[string]string{
		"token": "fcm-token", "platform": "symbian",
	})
	assertError(t, rec, http.StatusBadRequest, "validation_error")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, stubPinger{})
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	s = newTestServer(t, stubPinger{err: errors.New("connection refused")})
	rec = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestMetricsRequireBasicAuth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("admin", "pass")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestInviteCodeRoute(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")

	rec := s.do(t, http.MethodGet, "/api/v1/users/me/qr", alice.Access, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var code map[string]string
	decodeBody(t, rec, &code)
	assert.Equal(t, alice.ID, code["user_id"])
	assert.Equal(t, "friendsapi://friend-request/send/"+alice.ID, code["qr_content"])
	assert.NotEmpty(t, code["qr_code_base64"])
}
