package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lumeno-study/lumeno/internal/session"
)

// Synchronizer mirrors the provider's session stream into the session store.
// It is the store's primary writer.
type Synchronizer struct {
	provider Provider
	store    *session.Store
	logger   *slog.Logger

	startOnce   sync.Once
	closeOnce   sync.Once
	mu          sync.Mutex
	unsubscribe func()
}

func NewSynchronizer(provider Provider, store *session.Store, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		provider: provider,
		store:    store,
		logger:   logger.With("component", "auth-sync"),
	}
}

// Start subscribes to the provider. Only the first call subscribes.
func (s *Synchronizer) Start() {
	s.startOnce.Do(func() {
		unsubscribe := s.provider.Subscribe(s.handle)
		s.mu.Lock()
		s.unsubscribe = unsubscribe
		s.mu.Unlock()
		s.logger.Info("subscribed to identity provider")
	})
}

// Close unsubscribes exactly once. Closing before Start is a no-op that
// also prevents a later Start from leaking a subscription.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		s.startOnce.Do(func() {})

		s.mu.Lock()
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
			s.logger.Info("unsubscribed from identity provider")
		}
	})
}

// Run starts the synchronizer and holds the subscription until ctx ends.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.Start()
	defer s.Close()
	<-ctx.Done()
	return nil
}

func (s *Synchronizer) handle(sess *Session) {
	if sess != nil {
		identity := IdentityFromUser(sess.User)
		s.store.Set(identity)
		s.logger.Info("session active", "uid", identity.UID)
	} else {
		s.store.Clear()
		s.logger.Info("no active session")
	}
	s.store.MarkChecked()
}
