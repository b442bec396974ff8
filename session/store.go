package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/octabyte/sitemon/enums"
	"github.com/octabyte/sitemon/models"
	otellogger "github.com/octabyte/sitemon/otel/logger"
	"github.com/octabyte/sitemon/storage"
	ctxutil "github.com/octabyte/sitemon/utils/context"
	"github.com/octabyte/sitemon/utils/logger"
)

// Store owns the session state. Fields change only through its actions, and
// every committed change is published to the subscribers.
type Store struct {
	mu    sync.Mutex
	state models.Session
	// epoch changes whenever the session is replaced or cleared outside of a
	// refresh. Refreshes and profile fetches commit only within the epoch they
	// started in, so a logout always wins over them. Written under mu, read
	// without it.
	epoch   atomic.Uint64
	version uint64

	holder    *credentialHolder
	client    *Client
	refresher *refreshCoordinator
	storage   storage.Storage
	persistMu sync.Mutex

	subsMu    sync.Mutex
	subs      map[uint64]func(models.Session)
	nextSub   uint64
	notifyMu  sync.Mutex
	published uint64
}

func New(cfg Config) (*Store, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("session: base url is required")
	}

	holder := &credentialHolder{}
	client, err := newClient(cfg, holder)
	if err != nil {
		return nil, err
	}

	st := cfg.Storage
	if st == nil {
		st = storage.NewMemoryStorage()
	}

	s := &Store{
		holder:  holder,
		client:  client,
		storage: st,
		subs:    make(map[uint64]func(models.Session)),
	}
	s.refresher = &refreshCoordinator{client: client, store: s, navigator: cfg.Navigator}
	client.refresh = s.refresher

	return s, nil
}

// Client returns the API client sharing this session's token and refresh cycle.
func (s *Store) Client() *Client {
	return s.client
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every state change and returns a function that
// removes it. Calls are serialized and never deliver an older state after a
// newer one; fn must not block on store actions.
func (s *Store) Subscribe(fn func(models.Session)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// Login exchanges email and password for a token and loads the profile.
// A rejected exchange is returned as is and leaves the session untouched.
func (s *Store) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, enums.PathLogin, models.Credentials{Email: email, Password: password})
}

// Register creates an account and signs in with it, like Login.
func (s *Store) Register(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, enums.PathRegister, models.Credentials{Email: email, Password: password})
}

func (s *Store) authenticate(ctx context.Context, path string, creds models.Credentials) error {
	s.setLoading(true)
	defer s.setLoading(false)

	token, err := s.client.exchangeToken(ctx, path, creds)
	if err != nil {
		logger.LogInfo("credential exchange rejected", zap.String("path", path), zap.Error(err))
		return err
	}

	s.SetToken(ctx, token)
	return s.FetchUser(ctx)
}

// Logout asks the backend to end the session and clears the local session
// whatever the answer was. It cannot fail.
func (s *Store) Logout(ctx context.Context) {
	if err := s.client.Post(ctxutil.WithSkipRefresh(ctx), enums.PathLogout, nil, nil); err != nil {
		otellogger.WarnCtx(ctx, "server logout failed, clearing local session anyway", zap.Error(err))
	}
	s.clear(ctx)
	logger.LogInfo("logged out")
}

// Refresh exchanges the refresh cookie for a new token, joining a refresh
// that is already running. On failure the session is cleared without calling
// the logout endpoint.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.refresher.await(ctx, "", false)
	return err
}

// FetchUser loads the profile for the current token. It is the only action
// that marks the session authenticated; a failure clears the session.
func (s *Store) FetchUser(ctx context.Context) error {
	epoch := s.currentEpoch()

	var user models.User
	if err := s.client.Get(ctx, enums.PathMe, &user); err != nil {
		// The caller giving up says nothing about the token.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("fetch user: %w", err)
		}
		otellogger.WarnCtx(ctx, "fetching user failed, clearing session", zap.Error(err))
		s.clearIn(ctx, epoch)
		return fmt.Errorf("fetch user: %w", err)
	}

	s.mu.Lock()
	if s.epoch.Load() != epoch {
		s.mu.Unlock()
		return fmt.Errorf("fetch user: %w", ErrSessionEnded)
	}
	s.state.User = &user
	s.state.IsAuthenticated = true
	change := s.commitLocked()
	s.mu.Unlock()

	s.publish(change)
	logger.LogDebug("user loaded", zap.String("user_id", user.ID))
	return nil
}

// SetToken replaces the credential and persists it; an empty token clears
// it. A new token does not authenticate the session by itself: until
// FetchUser resolves the session is pending.
func (s *Store) SetToken(ctx context.Context, token string) {
	s.mu.Lock()
	s.epoch.Add(1)
	s.setTokenLocked(token)
	change := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx)
	s.publish(change)
}

// setTokenLocked is the single writer of the credential holder.
func (s *Store) setTokenLocked(token string) {
	s.holder.set(token)
	s.state.Token = token
	if token == "" {
		s.state.IsAuthenticated = false
	}
}

func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	s.state.IsLoading = loading
	change := s.commitLocked()
	s.mu.Unlock()
	s.publish(change)
}

func (s *Store) clear(ctx context.Context) {
	s.mu.Lock()
	s.clearLocked()
	change := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx)
	s.publish(change)
}

// clearIn clears the session only if it is still the one of epoch.
func (s *Store) clearIn(ctx context.Context, epoch uint64) bool {
	s.mu.Lock()
	if s.epoch.Load() != epoch {
		s.mu.Unlock()
		return false
	}
	s.clearLocked()
	change := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx)
	s.publish(change)
	return true
}

func (s *Store) clearLocked() {
	s.epoch.Add(1)
	s.setTokenLocked("")
	s.state.User = nil
	s.state.IsAuthenticated = false
}

func (s *Store) currentEpoch() uint64 {
	return s.epoch.Load()
}

// commitRefresh installs a refreshed token unless the session changed since
// the refresh started. The user and authentication flag are kept.
func (s *Store) commitRefresh(ctx context.Context, epoch uint64, token string) bool {
	s.mu.Lock()
	if s.epoch.Load() != epoch {
		s.mu.Unlock()
		return false
	}
	s.setTokenLocked(token)
	change := s.commitLocked()
	s.mu.Unlock()

	s.persist(ctx)
	s.publish(change)
	return true
}

// expire clears the session after a failed refresh.
func (s *Store) expire(ctx context.Context, epoch uint64) bool {
	return s.clearIn(ctx, epoch)
}

// persist writes the token held now, so concurrent callers always leave the
// latest token behind. Storage failures are logged, never returned.
func (s *Store) persist(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	var err error
	if token := s.holder.get(); token != "" {
		err = s.storage.Save(ctx, storage.State{Token: token})
	} else {
		err = s.storage.Clear(ctx)
	}
	if err != nil {
		logger.LogWarn("persisting session failed", zap.Error(err))
	}
}

// stateChange is a committed state with its position in the commit order.
type stateChange struct {
	version uint64
	session models.Session
}

func (s *Store) commitLocked() stateChange {
	s.version++
	return stateChange{version: s.version, session: s.snapshotLocked()}
}

func (s *Store) snapshotLocked() models.Session {
	snap := s.state
	if s.state.User != nil {
		user := *s.state.User
		snap.User = &user
	}
	return snap
}

func (s *Store) publish(change stateChange) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if change.version <= s.published {
		return
	}
	s.published = change.version

	s.subsMu.Lock()
	fns := make([]func(models.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(change.session)
	}
}
