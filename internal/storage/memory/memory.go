// Package memory is an in-process implementation of the repositories, used by
// the service and handler tests.
package memory

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"friendsAPI/internal/apperr"
	"friendsAPI/internal/friendrequest"
	"friendsAPI/internal/notification"
	"friendsAPI/internal/user"

	"github.com/google/uuid"
)

type edge struct {
	low, high uuid.UUID
}

func newEdge(a, b uuid.UUID) edge {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return edge{low: a, high: b}
}

// Store holds every table behind one mutex so multi-row operations such as
// accepting a request are atomic.
type Store struct {
	mu       sync.RWMutex
	users    []*user.User
	requests map[uuid.UUID]*friendrequest.FriendRequest
	order    []uuid.UUID
	edges    []edge
	edgeSet  map[edge]struct{}
	devices  map[uuid.UUID][]notification.DeviceToken
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		requests: make(map[uuid.UUID]*friendrequest.FriendRequest),
		edgeSet:  make(map[edge]struct{}),
		devices:  make(map[uuid.UUID][]notification.DeviceToken),
		now:      time.Now,
	}
}

func copyUser(u *user.User) *user.User {
	c := *u
	return &c
}

func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.Validation("user with this email already exists")
		}
	}
	s.users = append(s.users, copyUser(u))
	return nil
}

func (s *Store) userByID(id uuid.UUID) *user.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u := s.userByID(id); u != nil {
		return copyUser(u), nil
	}
	return nil, apperr.NotFound("user not found")
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (s *Store) SearchUsers(_ context.Context, query string, limit, offset int) ([]*user.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var matches []*user.User
	for _, u := range s.users {
		if strings.EqualFold(u.Email, query) || strings.Contains(strings.ToLower(u.Name), needle) {
			matches = append(matches, u)
		}
	}

	total := len(matches)
	if offset < 0 || offset >= total {
		return []*user.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]*user.User, 0, end-offset)
	for _, u := range matches[offset:end] {
		page = append(page, copyUser(u))
	}
	return page, total, nil
}

func (s *Store) GetFriends(_ context.Context, userID uuid.UUID) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	friends := []*user.User{}
	for _, e := range s.edges {
		var other uuid.UUID
		switch userID {
		case e.low:
			other = e.high
		case e.high:
			other = e.low
		default:
			continue
		}
		if u := s.userByID(other); u != nil {
			friends = append(friends, copyUser(u))
		}
	}
	return friends, nil
}

func (s *Store) pending(senderID, recipientID uuid.UUID) *friendrequest.FriendRequest {
	for _, id := range s.order {
		fr := s.requests[id]
		if !fr.Accepted && fr.SenderID == senderID && fr.RecipientID == recipientID {
			return fr
		}
	}
	return nil
}

func (s *Store) CreateFriendRequest(_ context.Context, fr *friendrequest.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending(fr.SenderID, fr.RecipientID) != nil {
		return apperr.New(apperr.KindDuplicateRequest, "Friend request already sent.")
	}
	c := *fr
	s.requests[fr.ID] = &c
	s.order = append(s.order, fr.ID)
	return nil
}

func (s *Store) HasPendingFriendRequest(_ context.Context, senderID, recipientID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending(senderID, recipientID) != nil, nil
}

func (s *Store) GetPendingFriendRequest(_ context.Context, senderID, recipientID uuid.UUID) (*friendrequest.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fr := s.pending(senderID, recipientID)
	if fr == nil {
		return nil, apperr.NotFound("friend request not found")
	}
	c := *fr
	return &c, nil
}

func (s *Store) AcceptFriendRequest(_ context.Context, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fr, ok := s.requests[requestID]
	if !ok || fr.Accepted {
		return apperr.NotFound("friend request not found")
	}
	fr.Accepted = true

	e := newEdge(fr.SenderID, fr.RecipientID)
	if _, exists := s.edgeSet[e]; !exists {
		s.edgeSet[e] = struct{}{}
		s.edges = append(s.edges, e)
	}
	return nil
}

func (s *Store) DeleteFriendRequest(_ context.Context, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fr, ok := s.requests[requestID]
	if !ok || fr.Accepted {
		return apperr.NotFound("friend request not found")
	}
	delete(s.requests, requestID)
	for i, id := range s.order {
		if id == requestID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ListPendingFriendRequests(_ context.Context, recipientID uuid.UUID) ([]*friendrequest.Pending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := []*friendrequest.Pending{}
	for _, id := range s.order {
		fr := s.requests[id]
		if fr.Accepted || fr.RecipientID != recipientID {
			continue
		}
		name := ""
		if sender := s.userByID(fr.SenderID); sender != nil {
			name = sender.Name
		}
		pending = append(pending, &friendrequest.Pending{
			ID:        fr.ID,
			FromUser:  name,
			Timestamp: fr.CreatedAt,
		})
	}
	return pending, nil
}

func (s *Store) UpsertDeviceToken(_ context.Context, userID uuid.UUID, token notification.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	tokens := s.devices[userID]
	for i := range tokens {
		if tokens[i].Token == token.Token {
			tokens[i].Platform = token.Platform
			tokens[i].LastUsed = now
			return nil
		}
	}
	token.AddedAt, token.LastUsed = now, now
	s.devices[userID] = append(tokens, token)
	return nil
}

func (s *Store) GetDeviceTokens(_ context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]notification.DeviceToken, len(s.devices[userID]))
	copy(tokens, s.devices[userID])
	return tokens, nil
}
