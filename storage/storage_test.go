package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type StorageTestSuite struct {
	suite.Suite
	ctx     context.Context
	newFunc func(t *testing.T) Backend
	storage Backend
}

func (s *StorageTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.storage = s.newFunc(s.T())
}

func (s *StorageTestSuite) TestLoadEmpty() {
	state, err := s.storage.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(State{}, state)
}

func (s *StorageTestSuite) TestSaveLoadClear() {
	s.Require().NoError(s.storage.Save(s.ctx, State{Token: "T1"}))

	state, err := s.storage.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal("T1", state.Token)

	s.Require().NoError(s.storage.Save(s.ctx, State{Token: "T2"}))
	state, err = s.storage.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal("T2", state.Token)

	s.Require().NoError(s.storage.Clear(s.ctx))
	state, err = s.storage.Load(s.ctx)
	s.Require().NoError(err)
	s.Empty(state.Token)

	s.Require().NoError(s.storage.Clear(s.ctx), "clearing twice is not an error")
}

func (s *StorageTestSuite) TestExists() {
	found, err := s.storage.Exists(s.ctx)
	s.Require().NoError(err)
	s.False(found)

	s.Require().NoError(s.storage.Save(s.ctx, State{Token: "T1"}))
	found, err = s.storage.Exists(s.ctx)
	s.Require().NoError(err)
	s.True(found)

	s.Require().NoError(s.storage.Clear(s.ctx))
	found, err = s.storage.Exists(s.ctx)
	s.Require().NoError(err)
	s.False(found)
}

func (s *StorageTestSuite) TestCookiesOutliveClear() {
	cookies, err := s.storage.LoadCookies(s.ctx)
	s.Require().NoError(err)
	s.Empty(cookies)

	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	saved := []Cookie{{
		URL:      "http://127.0.0.1:8000/api/v1/auth/login",
		Name:     "refresh_token",
		Value:    "r1",
		Path:     "/api/v1/auth",
		Expires:  expires,
		HttpOnly: true,
	}}
	s.Require().NoError(s.storage.SaveCookies(s.ctx, saved))
	s.Require().NoError(s.storage.Save(s.ctx, State{Token: "T1"}))
	s.Require().NoError(s.storage.Clear(s.ctx))

	cookies, err = s.storage.LoadCookies(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(cookies, 1)
	s.Equal("r1", cookies[0].Value)
	s.Equal("/api/v1/auth", cookies[0].Path)
	s.True(expires.Equal(cookies[0].Expires))
	s.True(cookies[0].HttpOnly)

	s.Require().NoError(s.storage.SaveCookies(s.ctx, nil))
	cookies, err = s.storage.LoadCookies(s.ctx)
	s.Require().NoError(err)
	s.Empty(cookies)
}

func TestMemoryStorage(t *testing.T) {
	suite.Run(t, &StorageTestSuite{newFunc: func(t *testing.T) Backend {
		return NewMemoryStorage()
	}})
}

func TestFileStorage(t *testing.T) {
	suite.Run(t, &StorageTestSuite{newFunc: func(t *testing.T) Backend {
		fs, err := NewFileStorage(filepath.Join(t.TempDir(), "state"), "")
		if err != nil {
			t.Fatalf("new file storage: %v", err)
		}
		return fs
	}})
}

func TestRedisStorage(t *testing.T) {
	suite.Run(t, &StorageTestSuite{newFunc: func(t *testing.T) Backend {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisStorage(client, "", 0)
	}})
}

func TestFileStorageLayout(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Save(context.Background(), State{Token: "T1"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(fs.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"token":"T1"}` {
		t.Fatalf("unexpected persisted layout %s", data)
	}
	if filepath.Base(fs.Path()) != DefaultKey+".json" {
		t.Fatalf("unexpected file name %s", fs.Path())
	}
}

func TestFileStorageCorrupted(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), "auth")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fs.Path(), []byte("{token"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err = fs.Load(context.Background())
	if err == nil {
		t.Fatal("expected an error for a corrupted file")
	}
}

func TestRedisStorageTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rs := NewRedisStorage(client, "sitemon:auth", 0)
	if err := rs.Save(context.Background(), State{Token: "T1"}); err != nil {
		t.Fatal(err)
	}
	raw, err := mr.Get("sitemon:auth")
	if err != nil {
		t.Fatal(err)
	}
	if raw != `{"token":"T1"}` {
		t.Fatalf("unexpected persisted layout %s", raw)
	}
	if mr.TTL("sitemon:auth") != 0 {
		t.Fatal("expected no ttl")
	}

	mr.Set("sitemon:auth", "garbage")
	if _, err := rs.Load(context.Background()); err == nil {
		t.Fatal("expected an error for a corrupted value")
	}
}

func TestRedisCookiesKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rs := NewRedisStorage(client, "sitemon:auth", time.Hour)
	if err := rs.SaveCookies(context.Background(), []Cookie{{URL: "http://api", Name: "a", Value: "b"}}); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("sitemon:auth:cookies") {
		t.Fatal("expected cookies under their own key")
	}
	if mr.TTL("sitemon:auth:cookies") != 0 {
		t.Fatal("expected no ttl on cookies")
	}
}
