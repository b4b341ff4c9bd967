// Package agent runs catalog agents through the configured execution
// provider with retry and circuit breaking.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/soyeahso/agentclick/internal/config"
	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/llm"
	"github.com/soyeahso/agentclick/internal/logging"
)

// RunnerConfig configures the agent runner.
type RunnerConfig struct {
	PermissionMode string
	// Timeout bounds each attempt. Zero means no per-attempt limit.
	Timeout time.Duration
	Retry   config.RetryConfig
	Breaker config.BreakerConfig
}

// RunnerConfigFrom maps settings onto a RunnerConfig.
func RunnerConfigFrom(cfg config.Config) RunnerConfig {
	return RunnerConfig{
		PermissionMode: cfg.Agent.PermissionMode,
		Timeout:        cfg.Agent.Timeout,
		Retry:          cfg.Pipeline.Retry,
		Breaker:        cfg.Pipeline.Breaker,
	}
}

// Invocation is one agent run.
type Invocation struct {
	Agent   *domain.Agent
	Body    string // loaded definition body; blank selects the generated prompt
	Prompt  string // rendered input
	WorkDir string
}

// RunResult is the outcome of a successful run.
type RunResult struct {
	Response *llm.Response `json:"response"`
	Provider string        `json:"provider"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// Runner executes invocations against one provider.
type Runner struct {
	cfg     RunnerConfig
	client  llm.Client
	breaker *gobreaker.CircuitBreaker
	log     *logging.Logger
}

// NewRunner creates a runner around client.
func NewRunner(cfg RunnerConfig, client llm.Client, log *logging.Logger) *Runner {
	l := log.Sub("agent")
	return &Runner{
		cfg:     cfg,
		client:  client,
		breaker: newBreaker("agent."+client.Name(), cfg.Breaker, l),
		log:     l,
	}
}

// Provider returns the provider name.
func (r *Runner) Provider() string { return r.client.Name() }

// Run executes inv. Only transient connection errors are retried; every
// error returned is an *domain.AgentExecutionError or wraps one.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*RunResult, error) {
	a := inv.Agent
	req, err := BuildRequest(a, inv.Body, inv.Prompt, inv.WorkDir, r.cfg.PermissionMode)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	attempts := 0
	var resp *llm.Response

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(&domain.AgentExecutionError{AgentID: a.ID, Message: "cancelled", Err: ctx.Err()})
		}
		attempts++

		out, err := r.attempt(ctx, req)
		if err == nil {
			resp = out
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(&domain.AgentExecutionError{AgentID: a.ID, Message: "provider circuit open", Err: err})
		}

		classified := Classify(a.ID, err)
		if !domain.IsTransient(classified) {
			return backoff.Permanent(classified)
		}
		return classified
	}

	notify := func(err error, wait time.Duration) {
		r.log.Warn().
			Str("agent", a.ID).
			Int("attempt", attempts).
			Dur("retryIn", wait).
			Err(err).
			Msg("transient agent failure, retrying")
	}

	r.log.Info().
		Str("agent", a.ID).
		Str("kind", string(a.Kind)).
		Str("provider", r.client.Name()).
		Str("dir", inv.WorkDir).
		Strs("tools", req.AllowedTools).
		Msg("running agent")

	if err := backoff.RetryNotify(operation, newBackOff(ctx, r.cfg.Retry), notify); err != nil {
		var execErr *domain.AgentExecutionError
		if !errors.As(err, &execErr) {
			err = &domain.AgentExecutionError{AgentID: a.ID, Err: err}
		}
		r.log.Error().Str("agent", a.ID).Int("attempts", attempts).Err(err).Msg("agent run failed")
		return nil, err
	}

	res := &RunResult{
		Response: resp,
		Provider: r.client.Name(),
		Attempts: attempts,
		Duration: time.Since(start),
	}
	r.log.Info().
		Str("agent", a.ID).
		Int("attempts", attempts).
		Dur("duration", res.Duration).
		Int("outputLen", len(resp.Output)).
		Msg("agent run finished")
	return res, nil
}

func (r *Runner) attempt(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	call := func() (*llm.Response, error) {
		resp, err := r.client.Run(ctx, req)
		if err == nil && resp == nil {
			err = fmt.Errorf("%s returned no response", r.client.Name())
		}
		return resp, err
	}
	if r.breaker == nil {
		return call()
	}

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		return nil, err
	}
	return out.(*llm.Response), nil
}

// BreakerState reports the circuit state, or "disabled".
func (r *Runner) BreakerState() string {
	if r.breaker == nil {
		return "disabled"
	}
	return r.breaker.State().String()
}
