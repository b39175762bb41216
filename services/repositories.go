package services

import (
	"context"

	"friendsAPI/internal/friendrequest"
	"friendsAPI/internal/notification"
	"friendsAPI/internal/user"

	"github.com/google/uuid"
)

// UserRepository is the user directory. Lookups that find nothing return an
// apperr not_found error.
type UserRepository interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	// SearchUsers returns one page of users whose email equals query
	// (case-insensitive) or whose name contains it, plus the total count.
	SearchUsers(ctx context.Context, query string, limit, offset int) ([]*user.User, int, error)
	// GetFriends returns the friend set of userID in the order the
	// friendships were created.
	GetFriends(ctx context.Context, userID uuid.UUID) ([]*user.User, error)
}

// FriendRequestRepository is the friend-request ledger.
type FriendRequestRepository interface {
	// CreateFriendRequest fails with duplicate_request when a pending
	// request already exists for the same (sender, recipient).
	CreateFriendRequest(ctx context.Context, fr *friendrequest.FriendRequest) error
	HasPendingFriendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (bool, error)
	GetPendingFriendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*friendrequest.FriendRequest, error)
	// AcceptFriendRequest marks a pending request accepted and records the
	// friendship edge between its two users in one atomic step. It fails
	// with not_found if the request is no longer pending.
	AcceptFriendRequest(ctx context.Context, requestID uuid.UUID) error
	// DeleteFriendRequest removes a pending request, or fails with not_found.
	DeleteFriendRequest(ctx context.Context, requestID uuid.UUID) error
	ListPendingFriendRequests(ctx context.Context, recipientID uuid.UUID) ([]*friendrequest.Pending, error)
}

type DeviceRepository interface {
	UpsertDeviceToken(ctx context.Context, userID uuid.UUID, token notification.DeviceToken) error
	GetDeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error)
}
