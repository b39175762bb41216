package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"friendsAPI/internal/notification"
	"friendsAPI/internal/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationService struct {
	devices    DeviceRepository
	dispatcher *NotificationDispatcher
	events     EventPublisher
	logger     *zap.Logger
}

func NewNotificationService(devices DeviceRepository, dispatcher *NotificationDispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		devices:    devices,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SetEventPublisher also streams every notification to the user's live
// connections.
func (s *NotificationService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

func (s *NotificationService) notify(msg *notification.Message) {
	s.dispatcher.Dispatch(msg)
	if s.events != nil {
		s.events.Publish(msg.UserID, msg.Event(time.Now()))
	}
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	if err := validateRequest(req); err != nil {
		return err
	}

	token := notification.DeviceToken{
		Token:    req.Token,
		Platform: req.Platform,
	}
	if err := s.devices.UpsertDeviceToken(ctx, userID, token); err != nil {
		return err
	}

	s.logger.Info("device registered", zap.String("user_id", userID.String()), zap.String("platform", req.Platform))
	return nil
}

// FriendRequestSent pushes to the recipient of a new request.
func (s *NotificationService) FriendRequestSent(_ context.Context, sender, recipient *user.User) {
	s.notify(&notification.Message{
		UserID: recipient.ID,
		Type:   notification.TypeFriendRequest,
		Title:  "New friend request",
		Body:   fmt.Sprintf("%s sent you a friend request", sender.Name),
		Data: map[string]string{
			"from_user_id":    sender.ID.String(),
			"from_user_email": sender.Email,
		},
	})
}

// FriendRequestAccepted pushes to the sender once the recipient accepts.
func (s *NotificationService) FriendRequestAccepted(_ context.Context, sender, recipient *user.User) {
	s.notify(&notification.Message{
		UserID: sender.ID,
		Type:   notification.TypeFriendRequestAccepted,
		Title:  "Friend request accepted",
		Body:   fmt.Sprintf("%s accepted your friend request", recipient.Name),
		Data: map[string]string{
			"friend_id": recipient.ID.String(),
		},
	})
}
