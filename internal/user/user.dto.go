package user

import "github.com/google/uuid"

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Friend is the public shape of a user in friend listings and search results.
type Friend struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

func (u *User) Public() Friend {
	return Friend{ID: u.ID, Email: u.Email, Name: u.Name}
}

type SearchPage struct {
	Count    int     `json:"count"`
	Page     int     `json:"-"`
	PageSize int     `json:"-"`
	Results  []*User `json:"results"`
}

// HasNext reports whether another page follows this one.
func (p *SearchPage) HasNext() bool {
	return p.Page*p.PageSize < p.Count
}

// InviteCode lets another user send a friend request by scanning a QR code.
type InviteCode struct {
	UserID       uuid.UUID `json:"user_id"`
	Content      string    `json:"qr_content"`
	QrCodeBase64 string    `json:"qr_code_base64"`
}

func InviteContent(userID uuid.UUID) string {
	return "friendsapi://friend-request/send/" + userID.String()
}
