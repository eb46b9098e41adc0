package shipping

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// tokenLifetime is what Shiprocket issues; we stop using a token a day
	// early so a request never races the real expiry.
	tokenLifetime = 240 * time.Hour
	tokenMargin   = 24 * time.Hour
)

var ErrNotConfigured = errors.New("shiprocket credentials are not configured")

// Session owns the process-wide bearer token. Concurrent callers that find
// the token missing share a single login call.
type Session struct {
	httpClient *http.Client
	baseURL    string
	email      string
	password   string
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	logins    singleflight.Group
}

func NewSession(httpClient *http.Client, baseURL, email, password string) *Session {
	return &Session{
		httpClient: httpClient,
		baseURL:    baseURL,
		email:      email,
		password:   password,
		now:        time.Now,
	}
}

// Token returns a cached token or logs in for a fresh one.
func (s *Session) Token(ctx context.Context) (string, error) {
	if token, ok := s.cached(); ok {
		return token, nil
	}

	v, err, shared := s.logins.Do("login", func() (interface{}, error) {
		// A login that finished between our check and Do already refreshed it.
		if token, ok := s.cached(); ok {
			return token, nil
		}
		return s.login(ctx)
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Println("[SHIPROCKET] [DEBUG] reused in-flight login")
	}
	return v.(string), nil
}

func (s *Session) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, true
	}
	return "", false
}

// Invalidate drops the cached token if it is still the one that failed, so a
// token refreshed by another caller in the meantime survives.
func (s *Session) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		s.token = ""
		s.expiresAt = time.Time{}
	}
}

func (s *Session) login(ctx context.Context) (string, error) {
	if s.email == "" || s.password == "" {
		return "", ErrNotConfigured
	}

	var out struct {
		Token string `json:"token"`
	}
	payload := map[string]string{"email": s.email, "password": s.password}
	status, body, err := send(ctx, s.httpClient, http.MethodPost, s.baseURL+"/auth/login", "", payload, &out)
	if err != nil {
		return "", fmt.Errorf("shiprocket login: %w", err)
	}
	if status != http.StatusOK || out.Token == "" {
		return "", &APIError{StatusCode: status, Body: body}
	}

	expiresAt := s.now().Add(tokenLifetime - tokenMargin)
	s.mu.Lock()
	s.token = out.Token
	s.expiresAt = expiresAt
	s.mu.Unlock()

	log.Println("[SHIPROCKET] [INFO] authenticated, token cached until", expiresAt.Format(time.RFC3339))
	return out.Token, nil
}
