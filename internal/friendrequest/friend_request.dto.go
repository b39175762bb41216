package friendrequest

import (
	"time"

	"github.com/google/uuid"
)

type SendRequest struct {
	ToUserID string `json:"to_user_id" validate:"required,uuid"`
}

type RespondRequest struct {
	FromUserEmail string `json:"from_user_email" validate:"required,email"`
}

// Pending is a pending request as shown to its recipient.
type Pending struct {
	ID        uuid.UUID `json:"id"`
	FromUser  string    `json:"from_user"`
	Timestamp time.Time `json:"timestamp"`
}
