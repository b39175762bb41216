package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeFriendRequest         NotificationType = "friend_request"
	TypeFriendRequestAccepted NotificationType = "friend_request_accepted"
)

type DeviceToken struct {
	Token    string    `json:"token"`
	Platform string    `json:"platform"`
	AddedAt  time.Time `json:"added_at"`
	LastUsed time.Time `json:"last_used"`
}

// Message is a push notification addressed to every device of one user.
type Message struct {
	UserID uuid.UUID
	Type   NotificationType
	Title  string
	Body   string
	Data   map[string]string
}

// Event is the live-stream form of a Message.
type Event struct {
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title,omitempty"`
	Body      string            `json:"body,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

const TypeConnected NotificationType = "connected"

func (m *Message) Event(at time.Time) *Event {
	return &Event{
		Type:      m.Type,
		Title:     m.Title,
		Body:      m.Body,
		Data:      m.Data,
		Timestamp: at,
	}
}
