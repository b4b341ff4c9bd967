package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/agentclick/internal/config"
)

// Auth modes.
const (
	AuthToken = "token"
	AuthNone  = "none"
)

// TokenEnv overrides an empty gateway.auth.token.
const TokenEnv = "AGENTCLICK_GATEWAY_TOKEN"

// ResolvedAuth is the effective gateway authentication.
type ResolvedAuth struct {
	Mode  string
	Token string
}

// AuthResult reports whether a presented credential was accepted.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// ResolveAuth picks the configured token, falling back to TokenEnv. With
// neither set the gateway accepts every request.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	for _, tok := range []string{cfg.Token, os.Getenv(TokenEnv)} {
		if tok = strings.TrimSpace(tok); tok != "" {
			return ResolvedAuth{Mode: AuthToken, Token: tok}
		}
	}
	return ResolvedAuth{Mode: AuthNone}
}

// Authorize checks presented against the resolved auth.
func Authorize(auth ResolvedAuth, presented string) AuthResult {
	switch {
	case auth.Mode == AuthNone:
		return AuthResult{OK: true}
	case auth.Mode != AuthToken:
		return AuthResult{Reason: "unknown auth mode: " + auth.Mode}
	case presented == "":
		return AuthResult{Reason: "token required"}
	case !safeEqual(presented, auth.Token):
		return AuthResult{Reason: "token_mismatch"}
	}
	return AuthResult{OK: true}
}

// presentedToken reads a bearer Authorization header, or ?token= for
// WebSocket clients that cannot set headers. A non-bearer header yields "".
func presentedToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return r.URL.Query().Get("token")
	}
	if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(tok)
	}
	return ""
}

// safeEqual compares digests so timing depends on neither content nor length.
func safeEqual(a, b string) bool {
	da, db := sha256.Sum256([]byte(a)), sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxHosts = 10000
)

// strike counts failures in the window opened by the first one.
type strike struct {
	first time.Time
	count int
}

// authRateLimiter blocks a host after authRateMaxFails failures until the
// window opened by its first failure closes.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string]*strike
	now      func() time.Time
}

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string]*strike), now: time.Now}
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// live returns the host's strike if its window is still open. The caller
// holds l.mu.
func (l *authRateLimiter) live(host string) *strike {
	s, ok := l.failures[host]
	if !ok {
		return nil
	}
	if l.now().Sub(s.first) > authRateWindow {
		delete(l.failures, host)
		return nil
	}
	return s
}

func (l *authRateLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.live(remoteHost(addr))
	return s == nil || s.count < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(addr string) {
	host := remoteHost(addr)
	l.mu.Lock()
	defer l.mu.Unlock()

	if s := l.live(host); s != nil {
		s.count++
		return
	}
	if len(l.failures) >= authRateMaxHosts {
		l.evictOldest()
	}
	l.failures[host] = &strike{first: l.now(), count: 1}
}

func (l *authRateLimiter) evictOldest() {
	var victim string
	var oldest time.Time
	for host, s := range l.failures {
		if victim == "" || s.first.Before(oldest) {
			victim, oldest = host, s.first
		}
	}
	delete(l.failures, victim)
}

// sweep drops hosts whose window has closed.
func (l *authRateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for host := range l.failures {
		l.live(host)
	}
}
