package sync

import (
	"context"
	"sync"
	"time"

	"github.com/existflow/goalpost/internal/logger"
)

// Refreshable is anything whose view can be reloaded from the store
type Refreshable interface {
	Refresh(ctx context.Context) error
}

// Refresher reloads a view periodically in the background
type Refresher struct {
	target       Refreshable
	pollInterval time.Duration
	mu           sync.Mutex
	stopCh       chan struct{}
	stopped      bool
	onError      func(error) // Callback when a refresh fails
	log          *logger.Logger
}

// NewRefresher starts polling target every interval. A non-positive interval
// returns a Refresher that never polls.
func NewRefresher(target Refreshable, interval time.Duration, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.Default()
	}
	r := &Refresher{
		target:       target,
		pollInterval: interval,
		stopCh:       make(chan struct{}),
		log:          log.WithFields(logger.F("component", "refresher")),
	}

	// Start background polling for remote changes
	if interval > 0 {
		go r.pollLoop()
	}

	return r
}

// SetOnError sets a callback function to be called when a background refresh fails
func (r *Refresher) SetOnError(callback func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = callback
}

// pollLoop periodically reloads the view
func (r *Refresher) pollLoop() {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RefreshNow()
		case <-r.stopCh:
			return
		}
	}
}

// RefreshNow reloads immediately and returns the error, if any
func (r *Refresher) RefreshNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()

	err := r.target.Refresh(ctx)
	if err != nil {
		r.log.Debug("Background refresh failed", logger.Err(err))

		r.mu.Lock()
		callback := r.onError
		r.mu.Unlock()

		if callback != nil {
			callback(err)
		}
	}
	return err
}

func (r *Refresher) timeout() time.Duration {
	if r.pollInterval > 0 && r.pollInterval < 30*time.Second {
		return r.pollInterval
	}
	return 30 * time.Second
}

// Stop stops the refresher. It is safe to call more than once.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.stopped = true
		close(r.stopCh)
	}
}
