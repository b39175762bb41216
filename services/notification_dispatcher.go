package services

import (
	"context"
	"sync"
	"time"

	"friendsAPI/internal/notification"

	"go.uber.org/zap"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, msg *notification.Message) error
}

// NotificationDispatcher delivers push messages from a fixed worker pool.
type NotificationDispatcher struct {
	devices DeviceRepository
	logger  *zap.Logger

	providerMu   sync.RWMutex
	pushProvider PushNotificationProvider

	workers        int
	jobQueue       chan *notification.Message
	enqueueTimeout time.Duration
	sendTimeout    time.Duration

	stateMu sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewNotificationDispatcher(devices DeviceRepository, workers int, logger *zap.Logger) *NotificationDispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &NotificationDispatcher{
		devices:        devices,
		logger:         logger,
		workers:        workers,
		jobQueue:       make(chan *notification.Message, 100),
		enqueueTimeout: 100 * time.Millisecond,
		sendTimeout:    10 * time.Second,
	}
	d.startWorkers()
	return d
}

// SetPushProvider injects the real FCM provider from main.go.
func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.providerMu.Lock()
	defer d.providerMu.Unlock()
	d.pushProvider = provider
}

func (d *NotificationDispatcher) provider() PushNotificationProvider {
	d.providerMu.RLock()
	defer d.providerMu.RUnlock()
	return d.pushProvider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.jobQueue {
		d.processJob(msg)
	}
}

func (d *NotificationDispatcher) processJob(msg *notification.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	provider := d.provider()
	if provider == nil {
		d.logger.Debug("skipping push: no provider configured",
			zap.String("user_id", msg.UserID.String()),
			zap.String("type", string(msg.Type)),
		)
		return
	}

	tokens, err := d.devices.GetDeviceTokens(ctx, msg.UserID)
	if err != nil {
		d.logger.Error("failed to load device tokens", zap.String("user_id", msg.UserID.String()), zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := provider.SendPush(ctx, tokens, msg); err != nil {
		d.logger.Warn("push failed", zap.String("user_id", msg.UserID.String()), zap.Error(err))
	}
}

// Dispatch queues msg for delivery. It gives up and returns false when the
// queue stays full for the enqueue timeout or the dispatcher is stopped.
func (d *NotificationDispatcher) Dispatch(msg *notification.Message) bool {
	d.stateMu.RLock()
	defer d.stateMu.RUnlock()

	if d.stopped {
		d.logger.Warn("dropping notification: dispatcher stopped", zap.String("type", string(msg.Type)))
		return false
	}

	select {
	case d.jobQueue <- msg:
		return true
	case <-time.After(d.enqueueTimeout):
		d.logger.Warn("dropping notification: queue full", zap.String("type", string(msg.Type)))
		return false
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (d *NotificationDispatcher) Stop() {
	d.stateMu.Lock()
	if d.stopped {
		d.stateMu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobQueue)
	d.stateMu.Unlock()

	d.logger.Info("stopping notification dispatcher")
	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}
