package postgres

import (
	"context"
	"errors"
	"fmt"

	"friendsAPI/internal/apperr"
	"friendsAPI/internal/friendrequest"
	"friendsAPI/internal/notification"
	"friendsAPI/internal/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	query := `
	INSERT INTO users (id, email, name, password_hash, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_lower_key") {
			return apperr.Validation("user with this email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `
	SELECT id, email, name, password_hash, created_at
	FROM users
	WHERE id = $1
	`
	return scanUser(s.db.QueryRow(ctx, query, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `
	SELECT id, email, name, password_hash, created_at
	FROM users
	WHERE LOWER(email) = LOWER($1)
	`
	return scanUser(s.db.QueryRow(ctx, query, email))
}

func collectUsers(rows pgx.Rows) ([]*user.User, error) {
	defer rows.Close()

	users := []*user.User{}
	for rows.Next() {
		u := &user.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return users, nil
}

func (s *Store) SearchUsers(ctx context.Context, query string, limit, offset int) ([]*user.User, int, error) {
	where := `LOWER(email) = LOWER($1) OR name ILIKE $2`
	pattern := likePattern(query)

	var total int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+where, query, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	sqlQuery := `
	SELECT id, email, name, password_hash, created_at
	FROM users
	WHERE ` + where + `
	ORDER BY created_at, id
	LIMIT $3 OFFSET $4
	`
	rows, err := s.db.Query(ctx, sqlQuery, query, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search users: %w", err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) GetFriends(ctx context.Context, userID uuid.UUID) ([]*user.User, error) {
	query := `
	SELECT u.id, u.email, u.name, u.password_hash, u.created_at
	FROM friendships f
	INNER JOIN users u ON u.id = CASE WHEN f.user_low = $1 THEN f.user_high ELSE f.user_low END
	WHERE f.user_low = $1 OR f.user_high = $1
	ORDER BY f.created_at, u.id
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get friends: %w", err)
	}
	return collectUsers(rows)
}

func (s *Store) CreateFriendRequest(ctx context.Context, fr *friendrequest.FriendRequest) error {
	query := `
	INSERT INTO friend_requests (id, sender_id, recipient_id, accepted, created_at)
	VALUES ($1, $2, $3, FALSE, $4)
	`
	_, err := s.db.Exec(ctx, query, fr.ID, fr.SenderID, fr.RecipientID, fr.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "friend_requests_pending_key") {
			return apperr.New(apperr.KindDuplicateRequest, "Friend request already sent.")
		}
		return fmt.Errorf("failed to create friend request: %w", err)
	}
	return nil
}

func (s *Store) HasPendingFriendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (bool, error) {
	query := `
	SELECT EXISTS(
		SELECT 1 FROM friend_requests
		WHERE sender_id = $1 AND recipient_id = $2 AND NOT accepted
	)
	`
	var exists bool
	if err := s.db.QueryRow(ctx, query, senderID, recipientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existing friend request: %w", err)
	}
	return exists, nil
}

func (s *Store) GetPendingFriendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*friendrequest.FriendRequest, error) {
	query := `
	SELECT id, sender_id, recipient_id, accepted, created_at
	FROM friend_requests
	WHERE sender_id = $1 AND recipient_id = $2 AND NOT accepted
	`
	fr := &friendrequest.FriendRequest{}
	err := s.db.QueryRow(ctx, query, senderID, recipientID).Scan(
		&fr.ID,
		&fr.SenderID,
		&fr.RecipientID,
		&fr.Accepted,
		&fr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("friend request not found")
		}
		return nil, fmt.Errorf("failed to get friend request: %w", err)
	}
	return fr, nil
}

func (s *Store) AcceptFriendRequest(ctx context.Context, requestID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var senderID, recipientID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE friend_requests
		SET accepted = TRUE
		WHERE id = $1 AND NOT accepted
		RETURNING sender_id, recipient_id
	`, requestID).Scan(&senderID, &recipientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("friend request not found")
		}
		return fmt.Errorf("failed to accept friend request: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO friendships (user_low, user_high, created_at)
		VALUES (LEAST($1::uuid, $2::uuid), GREATEST($1::uuid, $2::uuid), NOW())
		ON CONFLICT (user_low, user_high) DO NOTHING
	`, senderID, recipientID)
	if err != nil {
		return fmt.Errorf("failed to create friendship: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteFriendRequest(ctx context.Context, requestID uuid.UUID) error {
	result, err := s.db.Exec(ctx, `DELETE FROM friend_requests WHERE id = $1 AND NOT accepted`, requestID)
	if err != nil {
		return fmt.Errorf("failed to delete friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("friend request not found")
	}
	return nil
}

func (s *Store) ListPendingFriendRequests(ctx context.Context, recipientID uuid.UUID) ([]*friendrequest.Pending, error) {
	query := `
	SELECT fr.id, u.name, fr.created_at
	FROM friend_requests fr
	INNER JOIN users u ON u.id = fr.sender_id
	WHERE fr.recipient_id = $1 AND NOT fr.accepted
	ORDER BY fr.created_at, fr.id
	`
	rows, err := s.db.Query(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending friend requests: %w", err)
	}
	defer rows.Close()

	pending := []*friendrequest.Pending{}
	for rows.Next() {
		p := &friendrequest.Pending{}
		if err := rows.Scan(&p.ID, &p.FromUser, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return pending, nil
}

func (s *Store) UpsertDeviceToken(ctx context.Context, userID uuid.UUID, token notification.DeviceToken) error {
	query := `
	INSERT INTO device_tokens (user_id, token, platform, added_at, last_used)
	VALUES ($1, $2, $3, NOW(), NOW())
	ON CONFLICT (user_id, token)
	DO UPDATE SET platform = EXCLUDED.platform, last_used = NOW()
	`
	if _, err := s.db.Exec(ctx, query, userID, token.Token, token.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *Store) GetDeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT token, platform, added_at, last_used
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY added_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform, &t.AddedAt, &t.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
