package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/octabyte/sitemon/storage"
	"github.com/octabyte/sitemon/utils/logger"
)

// persistentJar is the cookie jar of the API client. With a cookie storage
// configured every cookie the API sets is written through, and a new jar
// starts with the cookies an earlier process saved, so the refresh cookie
// survives restarts like it does in a browser.
type persistentJar struct {
	jar     *cookiejar.Jar
	store   storage.CookieStorage
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]storage.Cookie
}

func newPersistentJar(store storage.CookieStorage, timeout time.Duration) (*persistentJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	j := &persistentJar{
		jar:     jar,
		store:   store,
		timeout: timeout,
		entries: make(map[string]storage.Cookie),
	}
	if store != nil {
		j.restore()
	}
	return j, nil
}

func (j *persistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if j.store == nil {
		return
	}

	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		saved := toStoredCookie(u, c, now)
		key := cookieKey(u, saved)
		if c.MaxAge < 0 || (!saved.Expires.IsZero() && !saved.Expires.After(now)) {
			delete(j.entries, key)
			continue
		}
		j.entries[key] = saved
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.store.SaveCookies(ctx, j.listLocked()); err != nil {
		logger.LogWarn("persisting cookies failed", zap.Error(err))
	}
}

// restore replays the saved cookies into the jar. Cookies that expired
// meanwhile are dropped; a storage failure leaves the jar empty.
func (j *persistentJar) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	saved, err := j.store.LoadCookies(ctx)
	if err != nil {
		logger.LogWarn("loading cookies failed", zap.Error(err))
		return
	}

	now := time.Now()
	for _, c := range saved {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		u, err := url.Parse(c.URL)
		if err != nil {
			logger.LogDebug("skipping saved cookie", zap.String("name", c.Name), zap.Error(err))
			continue
		}
		j.jar.SetCookies(u, []*http.Cookie{{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}})
		j.entries[cookieKey(u, c)] = c
	}
}

func (j *persistentJar) listLocked() []storage.Cookie {
	keys := make([]string, 0, len(j.entries))
	for k := range j.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]storage.Cookie, 0, len(keys))
	for _, k := range keys {
		list = append(list, j.entries[k])
	}
	return list
}

// toStoredCookie turns a relative Max-Age into an absolute expiry so the
// cookie keeps its lifetime when replayed later.
func toStoredCookie(u *url.URL, c *http.Cookie, now time.Time) storage.Cookie {
	expires := c.Expires
	if c.MaxAge > 0 {
		expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	return storage.Cookie{
		URL:      u.String(),
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  expires.UTC(),
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
}

func cookieKey(u *url.URL, c storage.Cookie) string {
	domain := c.Domain
	if domain == "" {
		domain = u.Hostname()
	}
	return domain + ";" + c.Path + ";" + c.Name
}
