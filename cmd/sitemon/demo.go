package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/octabyte/sitemon/config"
	"github.com/octabyte/sitemon/enums"
	"github.com/octabyte/sitemon/fakeapi"
)

const (
	demoEmail    = "demo@sitemon.dev"
	demoPassword = "demo-password"
)

// runDemo walks through a whole session against an in-process backend and an
// in-process Redis: register, an expired token refreshed under concurrent
// requests, a restart restoring the session, and logout.
func runDemo(ctx context.Context, out io.Writer) error {
	mr, err := miniredis.Run()
	if err != nil {
		return fmt.Errorf("start redis: %w", err)
	}
	defer mr.Close()

	api := fakeapi.New(fakeapi.WithTracing("sitemon-fakeapi"))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(out, "backend stopped: %v\n", err)
		}
	}()
	defer srv.Close()

	cfg := &config.Config{
		APIBaseURL:     "http://" + ln.Addr().String() + fakeapi.Prefix,
		RequestTimeout: 10 * time.Second,
		StorageBackend: enums.StorageBackendRedis,
		StorageKey:     "sitemon-demo",
		RedisAddr:      mr.Addr(),
		ServiceName:    config.DefaultServiceName,
	}

	first, err := newApp(ctx, cfg, out, out)
	if err != nil {
		return err
	}
	defer first.close()

	fmt.Fprintln(out, "# register")
	if err := first.run(ctx, []string{"register", demoEmail, demoPassword}); err != nil {
		return err
	}

	fmt.Fprintln(out, "# access token expires, three requests share one refresh")
	api.ExpireAccessTokens()
	api.SetRefreshDelay(100 * time.Millisecond)
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			errs <- first.store.Client().Get(ctx, "/monitors", nil)
		}()
	}
	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "refresh calls: %d\n", api.RefreshCalls())

	fmt.Fprintln(out, "# restart restores the session from redis")
	second, err := newApp(ctx, cfg, out, out)
	if err != nil {
		return err
	}
	defer second.close()
	if err := second.run(ctx, []string{"whoami"}); err != nil {
		return err
	}

	fmt.Fprintln(out, "# logout")
	if err := second.run(ctx, []string{"logout"}); err != nil {
		return err
	}
	return nil
}
