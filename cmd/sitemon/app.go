package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/octabyte/sitemon/config"
	redisdb "github.com/octabyte/sitemon/db/redis"
	"github.com/octabyte/sitemon/enums"
	"github.com/octabyte/sitemon/models"
	"github.com/octabyte/sitemon/session"
	"github.com/octabyte/sitemon/storage"
	"github.com/octabyte/sitemon/utils"
)

const usage = `usage: sitemon <command> [args]

commands:
  login <email> [password]      sign in and remember the session
  register <email> [password]   create an account and sign in
  whoami                        show the signed-in user
  status                        show the session state
  refresh                       exchange the saved refresh cookie for a new token
  logout                        end the session
  reset-request <email>         ask for a password reset mail
  reset <token> <new-password>  set a new password from a reset mail
  passwd <current> <new>        change the password
  onboard                       mark the onboarding as completed
  demo                          run a full session against an in-process backend`

var errUsage = errors.New(usage)

type app struct {
	store   *session.Store
	storage storage.Backend
	out     io.Writer
	errOut  io.Writer
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, out, errOut io.Writer) (*app, error) {
	a := &app{out: out, errOut: errOut}

	st, err := a.openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.storage = st

	store, err := session.New(session.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Storage: st,
		Cookies: st,
		Navigator: session.NavigatorFunc(func(route string) {
			fmt.Fprintf(errOut, "session expired, sign in again (%s)\n", route)
		}),
		Tracing:     cfg.TracingEnabled,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = store

	return a, nil
}

func (a *app) openStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case enums.StorageBackendMemory:
		return storage.NewMemoryStorage(), nil
	case enums.StorageBackendFile:
		return storage.NewFileStorage(cfg.StoragePath, cfg.StorageKey)
	case enums.StorageBackendRedis:
		client, err := redisdb.NewRedisClient(ctx, redisdb.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return storage.NewRedisStorage(client, cfg.StorageKey, 0), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c()
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "login", "register":
		if len(args) == 1 {
			pw, err := promptPassword(a.errOut)
			if err != nil {
				return err
			}
			args = append(args, pw)
		}
		if len(args) != 2 {
			return errUsage
		}
		var err error
		if cmd == "login" {
			err = a.store.Login(ctx, args[0], args[1])
		} else {
			err = a.store.Register(ctx, args[0], args[1])
		}
		if err != nil {
			return err
		}
		return a.printSession(a.store.Snapshot())

	case "reset-request":
		if len(args) != 1 {
			return errUsage
		}
		msg, err := a.store.RequestPasswordReset(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, msg)
		return nil

	case "reset":
		if len(args) != 2 {
			return errUsage
		}
		msg, err := a.store.ResetPassword(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, msg)
		return nil
	}

	snap, err := a.restore(ctx)
	if err != nil {
		return err
	}

	switch cmd {
	case "status":
		persisted, err := a.storage.Exists(ctx)
		if err != nil {
			return err
		}
		return a.printView(a.view(snap), &persisted)

	case "whoami":
		if session.RequireAuth(snap).Decision != session.Allow {
			return errors.New("not signed in")
		}
		fmt.Fprintf(a.out, "%s (id %s, last login %s)\n", snap.User.Email, snap.User.ID,
			utils.FormatOptionalTime(snap.User.LastLoginAt, "Local"))
		return nil

	case "refresh":
		if err := a.store.Refresh(ctx); err != nil {
			return err
		}
		return a.printSession(a.store.Snapshot())

	case "logout":
		a.store.Logout(ctx)
		return a.printSession(a.store.Snapshot())

	case "passwd":
		if len(args) != 2 {
			return errUsage
		}
		if err := a.store.ChangePassword(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "password changed")
		return nil

	case "onboard":
		if err := a.store.CompleteOnboarding(ctx); err != nil {
			return err
		}
		return a.printSession(a.store.Snapshot())

	default:
		return errUsage
	}
}

// restore rehydrates the persisted session and waits until it is settled.
// A persisted token that no longer works is not an error here: the session
// is simply anonymous afterwards.
func (a *app) restore(ctx context.Context) (models.Session, error) {
	if err := <-a.store.Rehydrate(ctx); err != nil && errors.Is(err, context.Canceled) {
		return models.Session{}, err
	}
	return a.store.WaitSettled(ctx)
}

type sessionView struct {
	Status    enums.AuthStatus `json:"status"`
	Email     string           `json:"email,omitempty"`
	UserID    string           `json:"user_id,omitempty"`
	Onboarded *bool            `json:"onboarded,omitempty"`
	LastLogin string           `json:"last_login,omitempty"`
	Token     string           `json:"token,omitempty"`
	Persisted *bool            `json:"persisted,omitempty"`
}

func (a *app) view(snap models.Session) sessionView {
	view := sessionView{Status: snap.Status(), Token: maskToken(snap.Token)}
	if snap.User != nil {
		view.Email = snap.User.Email
		view.UserID = snap.User.ID
		view.Onboarded = &snap.User.HasCompletedOnboarding
		view.LastLogin = utils.FormatOptionalTime(snap.User.LastLoginAt, "Local")
	}
	return view
}

func (a *app) printSession(snap models.Session) error {
	return a.printView(a.view(snap), nil)
}

// printView writes the view as JSON; persisted is only reported by status.
func (a *app) printView(view sessionView, persisted *bool) error {
	view.Persisted = persisted
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

// maskToken keeps the first characters of a token for display.
func maskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + strings.Repeat("*", 4)
}
