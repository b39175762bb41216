package services

import (
	"context"
	"encoding/base64"
	"math"
	"strings"
	"time"

	"friendsAPI/internal/apperr"
	"friendsAPI/internal/auth"
	"friendsAPI/internal/user"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const SearchPageSize = 10

type UserService struct {
	users  UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenManager
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(users UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenManager, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

func (s *UserService) Signup(ctx context.Context, req *user.SignupRequest) (*user.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperr.Internal("failed to create user", err)
	}

	u := &user.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.String("user_id", u.ID.String()))
	return u, nil
}

func (s *UserService) Login(ctx context.Context, req *user.LoginRequest) (*auth.TokenPair, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	invalid := apperr.New(apperr.KindInvalidCredentials, "Invalid credentials")

	u, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, invalid
		}
		return nil, err
	}

	ok, err := s.hasher.Check(u.PasswordHash, req.Password)
	if err != nil {
		s.logger.Error("Login: password check failed", zap.String("user_id", u.ID.String()), zap.Error(err))
		return nil, invalid
	}
	if !ok {
		return nil, invalid
	}

	pair, err := s.tokens.IssuePair(u.ID)
	if err != nil {
		return nil, apperr.Internal("failed to issue tokens", err)
	}
	return pair, nil
}

func (s *UserService) Refresh(ctx context.Context, req *user.RefreshRequest) (*auth.TokenPair, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	pair, err := s.tokens.RefreshAccess(req.Refresh)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidCredentials, "Token is invalid or expired", err)
	}
	return pair, nil
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// SearchUsers returns the given 1-based page of users matching query by exact
// email or by name substring, both case-insensitive.
func (s *UserService) SearchUsers(ctx context.Context, query string, page int) (*user.SearchPage, error) {
	if page < 1 {
		page = 1
	}
	if page > (math.MaxInt-1)/SearchPageSize {
		return nil, apperr.NotFound("Invalid page.")
	}
	query = strings.TrimSpace(query)

	offset := (page - 1) * SearchPageSize
	results, total, err := s.users.SearchUsers(ctx, query, SearchPageSize, offset)
	if err != nil {
		return nil, err
	}
	if page > 1 && offset >= total {
		return nil, apperr.NotFound("Invalid page.")
	}

	return &user.SearchPage{
		Count:    total,
		Page:     page,
		PageSize: SearchPageSize,
		Results:  results,
	}, nil
}

// InviteCode renders the caller's add-friend link as a PNG QR code.
func (s *UserService) InviteCode(ctx context.Context, userID uuid.UUID) (*user.InviteCode, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	content := user.InviteContent(u.ID)
	pngBytes, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return nil, apperr.Internal("failed to generate QR png", err)
	}

	return &user.InviteCode{
		UserID:       u.ID,
		Content:      content,
		QrCodeBase64: base64.StdEncoding.EncodeToString(pngBytes),
	}, nil
}
