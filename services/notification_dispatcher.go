package services

import (
	"context"
	"log"
	"sync"
	"time"

	"marchFitnessAPI/internal/notification"
)

// PushNotificationProvider is implemented by the FCM client.
type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// NotificationDispatcher fans persisted notifications out to push devices
// on a small worker pool, keeping delivery latency off the ingestion path.
type NotificationDispatcher struct {
	service      *NotificationService
	pushProvider PushNotificationProvider
	jobQueue     chan *notification.Notification
	stopChan     chan struct{}
	wg           sync.WaitGroup
	mu           sync.RWMutex
}

func NewNotificationDispatcher(service *NotificationService) *NotificationDispatcher {
	d := &NotificationDispatcher{
		service:  service,
		jobQueue: make(chan *notification.Notification, 100),
		stopChan: make(chan struct{}),
	}

	for i := 0; i < 5; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushProvider = provider
}

func (d *NotificationDispatcher) provider() PushNotificationProvider {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pushProvider
}

// Dispatch queues a notification for push delivery. Drops the push (the
// in-app notification is already persisted) rather than blocking when the
// queue is full.
func (d *NotificationDispatcher) Dispatch(notif *notification.Notification) {
	select {
	case d.jobQueue <- notif:
	default:
		log.Printf("Notification dispatcher queue full, dropping push for user %s", notif.UserID)
	}
}

func (d *NotificationDispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case notif := <-d.jobQueue:
			d.process(notif)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) process(notif *notification.Notification) {
	provider := d.provider()
	if provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := d.service.getDeviceTokens(ctx, notif.UserID)
	if err != nil {
		log.Printf("Dispatcher: failed to load device tokens for %s: %v", notif.UserID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := provider.SendPush(ctx, tokens, notif.Title, notif.Message, notif.Data); err != nil {
		log.Printf("Dispatcher: push delivery failed for %s: %v", notif.UserID, err)
	}
}

// Stop signals the workers and waits up to timeout for them to finish.
func (d *NotificationDispatcher) Stop(timeout time.Duration) {
	close(d.stopChan)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Println("Notification dispatcher stop timed out")
	}
}
