package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"storefront/internal/domain"
)

// SessionState is the syncer's view of the user session.
type SessionState int

const (
	SessionLoading SessionState = iota
	SessionUnauthenticated
	SessionAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionUnauthenticated:
		return "unauthenticated"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

const (
	defaultDebounce = 750 * time.Millisecond
	maxPushAttempts = 3
)

// Syncer reconciles the local cart store with the server-side cart across
// session transitions, and pushes local changes up after a debounce quiet
// period. Failed pushes are retried with a doubled delay up to
// maxPushAttempts, then dropped with a log entry; the server keeps its last
// successfully pushed state.
type Syncer struct {
	store    *Store
	client   *Client
	debounce time.Duration

	mu      sync.Mutex
	state   SessionState
	timer   *time.Timer
	pending []domain.CartItem
	closed  bool

	wg sync.WaitGroup
}

func NewSyncer(store *Store, client *Client, debounce time.Duration) *Syncer {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	s := &Syncer{
		store:    store,
		client:   client,
		debounce: debounce,
		state:    SessionLoading,
	}
	store.OnChange(s.onStoreChange)

	return s
}

// SetSession informs the syncer of a session transition. Entering
// authenticated fetches the server cart and merges it with whatever was
// added anonymously (union by product id, quantities summed); the merged
// list then syncs back up through the normal debounced push. Entering
// unauthenticated discards the local cart.
func (s *Syncer) SetSession(ctx context.Context, next SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev == next {
		return
	}

	switch next {
	case SessionAuthenticated:
		serverItems, err := s.client.FetchCart(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("cart fetch at login failed, keeping local items")
			return
		}
		merged := domain.MergeItems(append(serverItems, s.store.Items()...))
		s.store.SetItems(merged)
	case SessionUnauthenticated:
		s.stopTimer()
		s.store.Clear()
	}
}

// Flush pushes the current local state immediately, bypassing the debounce.
// Used before shutdown so the last edits are not lost to a pending timer.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionAuthenticated {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()
	s.pending = nil
	s.mu.Unlock()

	return s.client.PushCart(ctx, s.store.Items())
}

// Close stops the debounce timer and waits for any in-flight push to finish.
func (s *Syncer) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Syncer) onStoreChange(items []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != SessionAuthenticated {
		return
	}

	// An emptied cart must still sync; nil marks "nothing pending".
	if items == nil {
		items = []domain.CartItem{}
	}
	s.pending = items
	if s.timer != nil {
		s.timer.Reset(s.debounce)
		return
	}
	s.timer = time.AfterFunc(s.debounce, s.firePush)
}

func (s *Syncer) firePush() {
	s.mu.Lock()
	items := s.pending
	s.pending = nil
	s.timer = nil
	if s.closed || s.state != SessionAuthenticated || items == nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.pushWithRetry(items)
	}()
}

func (s *Syncer) pushWithRetry(items []domain.CartItem) {
	delay := s.debounce

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.client.PushCart(ctx, items)
		cancel()
		if err == nil {
			return
		}

		if attempt >= maxPushAttempts {
			log.Error().Err(err).Int("attempts", attempt).Msg("cart push dropped after retries")
			return
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("cart push failed, retrying")
		time.Sleep(delay)
		delay *= 2

		// A newer push supersedes this one; let it carry the fresher state.
		s.mu.Lock()
		superseded := s.closed || s.timer != nil || s.state != SessionAuthenticated
		s.mu.Unlock()
		if superseded {
			return
		}
	}
}

func (s *Syncer) stopTimer() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()
}

func (s *Syncer) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
}
