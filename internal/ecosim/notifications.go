package ecosim

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// GenerationEvent is published after each committed generation.
type GenerationEvent struct {
	SimulationID SimulationID  `json:"simulation_id"`
	Generation   int           `json:"generation"`
	Statistics   StatsSnapshot `json:"statistics"`
	Timestamp    time.Time     `json:"timestamp"`
}

// JSON encodes the event for transport.
func (e GenerationEvent) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Notifier is a push channel for generation events.
type Notifier interface {
	// ID returns a unique identifier for this notifier.
	ID() string

	// Notify delivers one event. The context can be used for
	// cancellation and timeout.
	Notify(ctx context.Context, event GenerationEvent) error

	// Close releases the notifier's resources.
	Close() error
}

type notificationJob struct {
	event GenerationEvent
}

// NotificationManager fans generation events out to registered notifiers
// on a background worker, so a slow viewer never stalls the engine.
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	jobs      chan notificationJob
	closed    bool
	wg        sync.WaitGroup
	logger    Logger
}

// NewNotificationManager creates a manager with a no-op logger.
func NewNotificationManager() *NotificationManager {
	return NewNotificationManagerWithLogger(NewNoOpLogger())
}

// NewNotificationManagerWithLogger creates a manager using the given logger.
func NewNotificationManagerWithLogger(logger Logger) *NotificationManager {
	mgr := &NotificationManager{
		notifiers: make(map[string]Notifier),
		jobs:      make(chan notificationJob, 1024),
		logger:    logger,
	}
	mgr.wg.Add(1)
	go mgr.worker()
	return mgr
}

// RegisterNotifier registers a notifier with the manager.
func (nm *NotificationManager) RegisterNotifier(n Notifier) error {
	if n == nil {
		return fmt.Errorf("notifier cannot be nil")
	}
	if n.ID() == "" {
		return fmt.Errorf("notifier ID cannot be empty")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.notifiers[n.ID()]; exists {
		return fmt.Errorf("notifier with ID %s already exists", n.ID())
	}
	nm.notifiers[n.ID()] = n
	return nil
}

// UnregisterNotifier removes and closes a notifier.
func (nm *NotificationManager) UnregisterNotifier(id string) error {
	nm.mu.Lock()
	n, exists := nm.notifiers[id]
	delete(nm.notifiers, id)
	nm.mu.Unlock()

	if !exists {
		return fmt.Errorf("notifier with ID %s not found", id)
	}
	return n.Close()
}

// Publish enqueues an event for delivery. Events are dropped with a log
// line when the queue is full.
func (nm *NotificationManager) Publish(event GenerationEvent) {
	// The send stays under the read lock: Close marks closed and closes
	// the channel under the write lock, so a publisher either sees the
	// flag or finds the channel still open. The non-blocking send keeps
	// the lock hold short.
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	if nm.closed {
		return
	}

	select {
	case nm.jobs <- notificationJob{event: event}:
	default:
		nm.logger.Warnf("notification queue full, dropping generation %d event for %s",
			event.Generation, event.SimulationID)
	}
}

func (nm *NotificationManager) worker() {
	defer nm.wg.Done()
	for job := range nm.jobs {
		nm.mu.RLock()
		targets := make([]Notifier, 0, len(nm.notifiers))
		for _, n := range nm.notifiers {
			targets = append(targets, n)
		}
		nm.mu.RUnlock()

		for _, n := range targets {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := n.Notify(ctx, job.event); err != nil {
				nm.logger.Warnf("notifier %s failed: %v", n.ID(), err)
			}
			cancel()
		}
	}
}

// Close stops the worker and closes all notifiers.
func (nm *NotificationManager) Close() {
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return
	}
	nm.closed = true
	notifiers := make([]Notifier, 0, len(nm.notifiers))
	for _, n := range nm.notifiers {
		notifiers = append(notifiers, n)
	}
	nm.notifiers = make(map[string]Notifier)
	close(nm.jobs)
	nm.mu.Unlock()

	nm.wg.Wait()
	for _, n := range notifiers {
		_ = n.Close()
	}
}
