package services

import (
	"context"
	"sync"
	"time"

	"payam-chat/internal/repository"
	"payam-chat/pkg/logger"
)

// StaleSource reports users whose presence heartbeat expired and clears them
// in the fast store. Implemented by redis.PresenceStore.
type StaleSource interface {
	CleanupStale(ctx context.Context, now time.Time, maxAge time.Duration) ([]string, error)
}

// PresenceSweeper flips users to offline in the users table once their
// heartbeat is older than maxAge. Clients that vanish without closing the
// websocket would otherwise stay online forever.
type PresenceSweeper struct {
	db       repository.DBTX
	repos    repository.Manager
	source   StaleSource
	clock    Clock
	log      *logger.Logger
	interval time.Duration
	maxAge   time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewPresenceSweeper(db repository.DBTX, repos repository.Manager, source StaleSource, maxAge time.Duration, clock Clock, log *logger.Logger) *PresenceSweeper {
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &PresenceSweeper{
		db:       db,
		repos:    repos,
		source:   source,
		clock:    clock,
		log:      log,
		interval: maxAge / 2,
		maxAge:   maxAge,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop
func (w *PresenceSweeper) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop waits for an in-flight sweep to finish.
func (w *PresenceSweeper) Stop() {
	close(w.stopChan)
	w.wg.Wait()
}

func (w *PresenceSweeper) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			if _, err := w.Sweep(context.Background()); err != nil {
				w.log.Warnf("Presence sweep failed: %v", err)
			}
		}
	}
}

// Sweep runs one pass and returns the ids that went offline.
func (w *PresenceSweeper) Sweep(ctx context.Context) ([]string, error) {
	stale, err := w.source.CleanupStale(ctx, now(ctx, w.clock), w.maxAge)
	if err != nil {
		return nil, err
	}
	users := w.repos.Users(w.db)
	offline := make([]string, 0, len(stale))
	for _, userID := range stale {
		if err := users.SetOffline(ctx, userID); err != nil {
			w.log.WithContext(ctx).Warnf("Failed to mark %s offline: %v", userID, err)
			continue
		}
		offline = append(offline, userID)
	}
	if len(offline) > 0 {
		w.log.WithContext(ctx).Infof("Marked %d stale users offline", len(offline))
	}
	return offline, nil
}
