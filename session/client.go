package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/octabyte/sitemon/enums"
	sitemonotel "github.com/octabyte/sitemon/otel"
	otellogger "github.com/octabyte/sitemon/otel/logger"
	"github.com/octabyte/sitemon/otel/metrics"
	"github.com/octabyte/sitemon/utils"
	ctxutil "github.com/octabyte/sitemon/utils/context"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// Client is the authenticated API client. Every request carries the token
// held at dispatch time; a 401 answer goes through the refresh coordinator
// and the request is replayed once.
type Client struct {
	rc      *resty.Client
	holder  *credentialHolder
	refresh *refreshCoordinator
}

func newClient(cfg Config, holder *credentialHolder) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	jar, err := newPersistentJar(cfg.Cookies, timeout)
	if err != nil {
		return nil, err
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetCookieJar(jar).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	rc.JSONMarshal = json.Marshal
	rc.JSONUnmarshal = json.Unmarshal
	if cfg.Transport != nil {
		rc.SetTransport(cfg.Transport)
	}

	c := &Client{rc: rc, holder: holder}
	rc.OnBeforeRequest(c.authenticate)

	if cfg.Tracing {
		sitemonotel.InstrumentClient(rc, cfg.ServiceName, "sitemon-api")
	}

	return c, nil
}

// authenticate is the request authenticator: it reads the holder for every
// dispatch and never keeps the token on the request beyond it.
func (c *Client) authenticate(_ *resty.Client, r *resty.Request) error {
	if token := c.holder.get(); token != "" {
		r.SetHeader(authorizationHeader, bearerPrefix+token)
	} else {
		r.Header.Del(authorizationHeader)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) Put(ctx context.Context, path string, body, result interface{}) error {
	return c.Do(ctx, http.MethodPut, path, body, result)
}

func (c *Client) Patch(ctx context.Context, path string, body, result interface{}) error {
	return c.Do(ctx, http.MethodPatch, path, body, result)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do sends the request and decodes a 2xx JSON answer into result (when
// non-nil). A 401 on a request that has not been retried and is not a
// credential exchange waits for a refresh and is replayed exactly once.
func (c *Client) Do(ctx context.Context, method, path string, body, result interface{}) error {
	resp, err := c.dispatch(ctx, method, path, body, result)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusUnauthorized || !c.refreshable(ctx, path) {
		return responseError(method, path, resp)
	}

	metrics.RecordAuthFailure(ctx, path)
	otellogger.DebugCtx(ctx, "request rejected, waiting for refresh", zap.String("method", method), zap.String("path", path))

	if _, err := c.refresh.await(ctx, sentToken(resp), true); err != nil {
		return err
	}

	ctx = ctxutil.WithRetried(ctx)
	resp, err = c.dispatch(ctx, method, path, body, result)
	if err != nil {
		metrics.RecordReplay(ctx, path, false)
		return err
	}
	err = responseError(method, path, resp)
	metrics.RecordReplay(ctx, path, err == nil)
	return err
}

func (c *Client) refreshable(ctx context.Context, path string) bool {
	return path != enums.PathRefresh && !ctxutil.SkipsRefresh(ctx) && !ctxutil.IsRetried(ctx)
}

// dispatch builds a fresh resty request for one attempt.
func (c *Client) dispatch(ctx context.Context, method, path string, body, result interface{}) (*resty.Response, error) {
	req := c.rc.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	return resp, nil
}

// exchangeToken posts a credential exchange and returns the new access token.
// Exchanges never enter the refresh flow.
func (c *Client) exchangeToken(ctx context.Context, path string, body interface{}) (string, error) {
	resp, err := c.dispatch(ctxutil.WithSkipRefresh(ctx), http.MethodPost, path, body, nil)
	if err != nil {
		return "", err
	}
	if err := responseError(http.MethodPost, path, resp); err != nil {
		return "", err
	}

	token, err := utils.AccessToken(resp.Body())
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return token, nil
}

func responseError(method, path string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode(),
		Detail:     utils.ErrorDetail(resp.Body()),
		Body:       resp.Body(),
	}
}

// sentToken is the credential the request carried when it was dispatched.
func sentToken(resp *resty.Response) string {
	return strings.TrimPrefix(resp.Request.Header.Get(authorizationHeader), bearerPrefix)
}
