package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/octabyte/sitemon/enums"
	"github.com/octabyte/sitemon/models"
	"github.com/octabyte/sitemon/storage"
	"github.com/octabyte/sitemon/utils/logger"
)

// Rehydrate restores a persisted token and fetches its user in the
// background. It returns at once; the channel receives the result of the
// restore (nil when nothing was persisted) and is then closed. While the fetch
// runs the session is pending.
func (s *Store) Rehydrate(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	state, err := s.storage.Load(ctx)
	if err != nil {
		logger.LogWarn("loading persisted session failed", zap.Error(err))
		if errors.Is(err, storage.ErrCorrupted) {
			s.clear(ctx)
		}
		done <- err
		close(done)
		return done
	}

	if state.Token == "" {
		close(done)
		return done
	}

	s.mu.Lock()
	s.epoch.Add(1)
	s.setTokenLocked(state.Token)
	change := s.commitLocked()
	s.mu.Unlock()
	s.publish(change)

	go func() {
		defer close(done)
		if err := s.FetchUser(ctx); err != nil {
			done <- err
		}
	}()

	return done
}

// WaitSettled blocks until the session is no longer pending and returns it.
func (s *Store) WaitSettled(ctx context.Context) (models.Session, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := s.Subscribe(func(models.Session) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		if snap := s.Snapshot(); settled(snap) {
			return snap, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

func settled(session models.Session) bool {
	return session.Status() != enums.AuthStatusPending && !session.IsLoading
}
