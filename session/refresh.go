package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/octabyte/sitemon/enums"
	otellogger "github.com/octabyte/sitemon/otel/logger"
	"github.com/octabyte/sitemon/otel/metrics"
)

// pendingRefresh is the shared handle of one refresh exchange. Everyone who
// needs the refreshed token waits on done.
type pendingRefresh struct {
	done chan struct{}
	// epoch is the session the refresh was requested for. A logout after the
	// request, even one before the exchange starts, voids the result.
	epoch uint64
	token string
	err   error
	// fromRequest is set when a failed request joined the cycle; only then a
	// failure sends the user to the login route.
	fromRequest bool
}

func (p *pendingRefresh) wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.token, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refreshCoordinator serializes refreshes: it is REFRESHING while inflight is
// set and IDLE otherwise.
type refreshCoordinator struct {
	mu        sync.Mutex
	inflight  *pendingRefresh
	client    *Client
	store     *Store
	navigator Navigator
}

// await joins the running refresh or starts one and waits for its token.
// sent is the token the failed request carried. If a newer token is already
// held no exchange is made and the current token is returned; if the session
// was cleared since the request went out it stays cleared.
func (rc *refreshCoordinator) await(ctx context.Context, sent string, fromRequest bool) (string, error) {
	rc.mu.Lock()
	p := rc.inflight
	if p == nil {
		if fromRequest {
			current := rc.client.holder.get()
			switch {
			case current != "" && current != sent:
				rc.mu.Unlock()
				return current, nil
			case current == "" && sent != "":
				rc.mu.Unlock()
				return "", fmt.Errorf("%w: %w", ErrRefreshExhausted, ErrSessionEnded)
			}
		}

		p = &pendingRefresh{done: make(chan struct{}), epoch: rc.store.currentEpoch()}
		rc.inflight = p
		go rc.run(context.WithoutCancel(ctx), p)
	}
	if fromRequest {
		p.fromRequest = true
	}
	rc.mu.Unlock()

	return p.wait(ctx)
}

func (rc *refreshCoordinator) run(ctx context.Context, p *pendingRefresh) {
	start := time.Now()

	otellogger.DebugCtx(ctx, "refreshing access token")
	token, err := rc.client.exchangeToken(ctx, enums.PathRefresh, nil)

	outcome := metrics.OutcomeSuccess
	cleared := false
	switch {
	case err != nil:
		otellogger.WarnCtx(ctx, "token refresh failed", zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrRefreshExhausted, err)
		token = ""
		outcome = metrics.OutcomeFailure
		cleared = rc.store.expire(ctx, p.epoch)
	case !rc.store.commitRefresh(ctx, p.epoch, token):
		otellogger.InfoCtx(ctx, "refreshed token discarded, session ended meanwhile")
		err = fmt.Errorf("%w: %w", ErrRefreshExhausted, ErrSessionEnded)
		token = ""
		outcome = metrics.OutcomeDiscarded
	}
	metrics.RecordRefresh(ctx, outcome, time.Since(start))

	rc.mu.Lock()
	rc.inflight = nil
	redirect := cleared && p.fromRequest
	rc.mu.Unlock()

	if redirect && rc.navigator != nil {
		rc.navigator.Navigate(enums.RouteLogin)
	}

	p.token, p.err = token, err
	close(p.done)
}
