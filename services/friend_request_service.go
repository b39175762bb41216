package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"friendsAPI/internal/apperr"
	"friendsAPI/internal/friendrequest"
	"friendsAPI/internal/ratelimit"
	"friendsAPI/internal/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FriendRequestNotifier is told about workflow events after they are
// committed. Implementations must not block.
type FriendRequestNotifier interface {
	FriendRequestSent(ctx context.Context, sender, recipient *user.User)
	FriendRequestAccepted(ctx context.Context, sender, recipient *user.User)
}

type FriendRequestService struct {
	users    UserRepository
	requests FriendRequestRepository
	limiter  *ratelimit.Limiter
	notifier FriendRequestNotifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewFriendRequestService(users UserRepository, requests FriendRequestRepository, limiter *ratelimit.Limiter, logger *zap.Logger) *FriendRequestService {
	return &FriendRequestService{
		users:    users,
		requests: requests,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *FriendRequestService) SetNotifier(n FriendRequestNotifier) {
	s.notifier = n
}

// SendRequest creates a pending request from senderID to recipientID.
//
// The rate slot is taken before the duplicate check, so a duplicate attempt
// still counts against the sender's limit.
func (s *FriendRequestService) SendRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*friendrequest.FriendRequest, error) {
	recipient, err := s.users.GetUserByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient.ID == senderID {
		return nil, apperr.Validation("You cannot send a friend request to yourself.")
	}

	_, allowed, err := s.limiter.CheckAndIncrement(ctx, friendrequest.RateLimitKey(senderID))
	if err != nil {
		return nil, apperr.Internal("failed to check friend request rate", err)
	}
	if !allowed {
		friendRequestEvents.WithLabelValues("rate_limited").Inc()
		return nil, apperr.New(apperr.KindRateLimited, s.rateLimitMessage())
	}

	exists, err := s.requests.HasPendingFriendRequest(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if exists {
		friendRequestEvents.WithLabelValues("duplicate").Inc()
		return nil, apperr.New(apperr.KindDuplicateRequest, "Friend request already sent.")
	}

	fr := friendrequest.New(senderID, recipientID, s.now())
	if err := s.requests.CreateFriendRequest(ctx, fr); err != nil {
		if apperr.KindOf(err) == apperr.KindDuplicateRequest {
			friendRequestEvents.WithLabelValues("duplicate").Inc()
		}
		return nil, err
	}

	friendRequestEvents.WithLabelValues("sent").Inc()
	s.logger.Info("friend request sent",
		zap.String("request_id", fr.ID.String()),
		zap.String("sender_id", senderID.String()),
		zap.String("recipient_id", recipientID.String()),
	)

	if s.notifier != nil {
		if sender, err := s.users.GetUserByID(ctx, senderID); err == nil {
			s.notifier.FriendRequestSent(ctx, sender, recipient)
		} else {
			s.logger.Warn("SendRequest: sender lookup for notification failed", zap.Error(err))
		}
	}
	return fr, nil
}

func (s *FriendRequestService) rateLimitMessage() string {
	per := "minute"
	if w := s.limiter.Window(); w != time.Minute {
		per = w.String()
	}
	return fmt.Sprintf("You have exceeded the limit of %d friend requests per %s.", s.limiter.Limit(), per)
}

// resolvePending finds the pending request sent by senderEmail to
// currentUserID and checks that currentUserID may act on it.
func (s *FriendRequestService) resolvePending(ctx context.Context, currentUserID uuid.UUID, senderEmail, action string) (*user.User, *friendrequest.FriendRequest, error) {
	senderEmail = strings.TrimSpace(senderEmail)
	if senderEmail == "" {
		return nil, nil, apperr.Validation("from_user_email is required")
	}

	sender, err := s.users.GetUserByEmail(ctx, senderEmail)
	if err != nil {
		return nil, nil, err
	}

	fr, err := s.requests.GetPendingFriendRequest(ctx, sender.ID, currentUserID)
	if err != nil {
		return nil, nil, err
	}
	if fr.RecipientID != currentUserID {
		return nil, nil, apperr.Forbidden(fmt.Sprintf("Not authorized to %s this friend request.", action))
	}
	return sender, fr, nil
}

func (s *FriendRequestService) AcceptRequest(ctx context.Context, currentUserID uuid.UUID, senderEmail string) error {
	sender, fr, err := s.resolvePending(ctx, currentUserID, senderEmail, "accept")
	if err != nil {
		return err
	}

	if err := s.requests.AcceptFriendRequest(ctx, fr.ID); err != nil {
		return err
	}

	friendRequestEvents.WithLabelValues("accepted").Inc()
	s.logger.Info("friend request accepted",
		zap.String("request_id", fr.ID.String()),
		zap.String("sender_id", sender.ID.String()),
		zap.String("recipient_id", currentUserID.String()),
	)

	if s.notifier != nil {
		if recipient, err := s.users.GetUserByID(ctx, currentUserID); err == nil {
			s.notifier.FriendRequestAccepted(ctx, sender, recipient)
		} else {
			s.logger.Warn("AcceptRequest: recipient lookup for notification failed", zap.Error(err))
		}
	}
	return nil
}

func (s *FriendRequestService) RejectRequest(ctx context.Context, currentUserID uuid.UUID, senderEmail string) error {
	_, fr, err := s.resolvePending(ctx, currentUserID, senderEmail, "reject")
	if err != nil {
		return err
	}

	if err := s.requests.DeleteFriendRequest(ctx, fr.ID); err != nil {
		return err
	}

	friendRequestEvents.WithLabelValues("rejected").Inc()
	s.logger.Info("friend request rejected",
		zap.String("request_id", fr.ID.String()),
		zap.String("recipient_id", currentUserID.String()),
	)
	return nil
}

func (s *FriendRequestService) ListFriends(ctx context.Context, currentUserID uuid.UUID) ([]*user.User, error) {
	return s.users.GetFriends(ctx, currentUserID)
}

func (s *FriendRequestService) ListPendingRequests(ctx context.Context, currentUserID uuid.UUID) ([]*friendrequest.Pending, error) {
	return s.requests.ListPendingFriendRequests(ctx, currentUserID)
}
