package friendrequest

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
)

// FriendRequest is a directed proposal from SenderID to RecipientID. Once
// Accepted it is historical; rejected requests are deleted outright.
type FriendRequest struct {
	ID          uuid.UUID `json:"id"`
	SenderID    uuid.UUID `json:"from_user"`
	RecipientID uuid.UUID `json:"to_user"`
	Accepted    bool      `json:"accepted"`
	CreatedAt   time.Time `json:"timestamp"`
}

func New(senderID, recipientID uuid.UUID, now time.Time) *FriendRequest {
	return &FriendRequest{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		CreatedAt:   now,
	}
}

func (fr *FriendRequest) State() State {
	if fr.Accepted {
		return StateAccepted
	}
	return StatePending
}

// RateLimitKey is the limiter key shared by all requests from one sender.
func RateLimitKey(senderID uuid.UUID) string {
	return "friend_request_" + senderID.String()
}
