package agent

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/llm"
	"github.com/soyeahso/agentclick/internal/logging"
)

// transientMarkers are provider messages that indicate a connection-level
// problem worth retrying.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"timed out",
	"overloaded",
	"rate limit",
	"temporarily unavailable",
}

// isTransient reports whether err is a connection-level failure. Parent
// context cancellation is never transient.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var startErr *llm.StartError
	if errors.As(err, &startErr) {
		return !missingBinary(err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch {
		case provErr.Code == 429, provErr.Code == 529, provErr.Code >= 500 && provErr.Code < 600:
			return true
		case provErr.Code >= 400 && provErr.Code < 500:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// missingBinary reports a provider command that is absent or not
// executable. Retrying cannot fix it.
func missingBinary(err error) bool {
	var startErr *llm.StartError
	if !errors.As(err, &startErr) {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

// Classify converts a provider error into the execution error taxonomy.
func Classify(agentID string, err error) error {
	if err == nil {
		return nil
	}
	var execErr *domain.AgentExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	if isTransient(err) {
		return domain.NewTransientError(agentID, err)
	}
	return &domain.AgentExecutionError{AgentID: agentID, Err: err}
}

// newBreaker builds the circuit breaker around the provider, or nil when
// disabled.
func newBreaker(name string, cfg config.BreakerConfig, log *logging.Logger) *gobreaker.CircuitBreaker {
	if !cfg.IsEnabled() {
		return nil
	}
	failures := uint32(cfg.Failures)
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// A missing binary says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled) || missingBinary(err)
		},
	})
}

// newBackOff builds the retry policy. MaxRetries counts retries after the
// first attempt.
func newBackOff(ctx context.Context, cfg config.RetryConfig) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		exp.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		exp.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		exp.Multiplier = cfg.Multiplier
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}
