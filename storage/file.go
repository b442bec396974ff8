package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/octabyte/sitemon/utils"
)

// FileStorage writes the state as JSON to <dir>/<key>.json and the cookies
// to <dir>/<key>.cookies.json.
type FileStorage struct {
	mu          sync.Mutex
	path        string
	cookiesPath string
}

func NewFileStorage(dir, key string) (*FileStorage, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{
		path:        filepath.Join(dir, key+".json"),
		cookiesPath: filepath.Join(dir, key+".cookies.json"),
	}, nil
}

func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Load(_ context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var state State
	if err := readJSON(f.path, &state); err != nil {
		return State{}, err
	}
	return state, nil
}

func (f *FileStorage) Save(_ context.Context, state State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(f.path, state)
}

func (f *FileStorage) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStorage) Exists(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", f.path, err)
	}
	return true, nil
}

func (f *FileStorage) LoadCookies(_ context.Context) ([]Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var file cookieFile
	if err := readJSON(f.cookiesPath, &file); err != nil {
		return nil, err
	}
	return file.Cookies, nil
}

func (f *FileStorage) SaveCookies(_ context.Context, cookies []Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(f.cookiesPath, cookieFile{Cookies: cookies})
}

// readJSON leaves v untouched when the file does not exist.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := utils.BytesToStruct(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return nil
}

// writeJSON replaces the file atomically through a temp file in the same
// directory.
func writeJSON(path string, v interface{}) error {
	data, err := utils.StructToBytes(v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".auth-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
