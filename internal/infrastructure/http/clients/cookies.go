package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// cookieStore keeps the backend session cookies in a jar and mirrors them to
// a file so the CLI stays logged in between invocations.
type cookieStore struct {
	mu   sync.Mutex
	jar  *cookiejar.Jar
	base *url.URL
	path string
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func newCookieStore(base *url.URL, path string) (*cookieStore, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	s := &cookieStore{jar: jar, base: base, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *cookieStore) load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cookie file: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse cookie file %s: %w", s.path, err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	s.jar.SetCookies(s.base, cookies)
	return nil
}

// save writes the current cookies for the base URL. No-op without a path.
func (s *cookieStore) save() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cookies := s.jar.Cookies(s.base)
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create cookie directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

func (s *cookieStore) value(name string) string {
	for _, c := range s.jar.Cookies(s.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// clear drops every cookie for the base URL.
func (s *cookieStore) clear() error {
	expired := make([]*http.Cookie, 0)
	for _, c := range s.jar.Cookies(s.base) {
		expired = append(expired, &http.Cookie{Name: c.Name, Path: "/", MaxAge: -1})
	}
	s.jar.SetCookies(s.base, expired)
	return s.save()
}
