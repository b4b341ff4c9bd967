package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/agentclick/internal/logging"
)

// Codec adapts one agent CLI: which flags carry a Request and how its
// stdout becomes a Response.
type Codec interface {
	Args(req Request) []string
	Decode(stdout []byte) (*Response, error)
}

// Subprocess is a Client that runs an agent CLI once per request. The
// prompt goes to stdin and the request's WorkDir becomes the cwd.
type Subprocess struct {
	name    string
	command string
	codec   Codec
	log     *logging.Logger
}

// NewSubprocess wires command to codec under the provider name.
func NewSubprocess(name, command string, codec Codec, log *logging.Logger) *Subprocess {
	if log == nil {
		log = logging.Nop()
	}
	return &Subprocess{name: name, command: command, codec: codec, log: log.Sub("llm").With("provider", name)}
}

func (p *Subprocess) Name() string { return p.name }

// Command is the binary this provider executes.
func (p *Subprocess) Command() string { return p.command }

// Available reports whether Command resolves on PATH.
func (p *Subprocess) Available() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

func (p *Subprocess) Run(ctx context.Context, req Request) (*Response, error) {
	args := p.codec.Args(req)
	p.log.Debug().Str("cmd", p.command).Strs("args", clipArgs(args)).Str("dir", req.WorkDir).Msg("starting agent process")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Dir = req.WorkDir
	cmd.Stdin = strings.NewReader(req.Prompt)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, p.failure(ctx, err, stdout.Bytes(), stderr.String())
	}

	resp, err := p.codec.Decode(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("decoding %s output: %w", p.name, err)
	}
	resp.Duration = time.Since(start)
	p.log.Debug().
		Dur("took", resp.Duration).
		Int("in", resp.Usage.InputTokens).
		Int("out", resp.Usage.OutputTokens).
		Bool("completed", resp.Completed).
		Msg("agent process finished")
	return resp, nil
}

// failure classifies a failed process. Cancellation wins, then a structured
// error the CLI printed on stdout, then the exit status with whatever the
// process said.
func (p *Subprocess) failure(ctx context.Context, err error, stdout []byte, stderr string) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", p.command, ctx.Err())
	}
	var exit *exec.ExitError
	if !errors.As(err, &exit) {
		return &StartError{Command: p.command, Err: err}
	}
	var perr *ProviderError
	if _, derr := p.codec.Decode(stdout); errors.As(derr, &perr) {
		return perr
	}
	said := strings.TrimSpace(stderr)
	if said == "" {
		said = strings.TrimSpace(string(stdout))
	}
	return &ProviderError{Provider: p.name, Message: fmt.Sprintf("exited %d: %s", exit.ExitCode(), said)}
}

// clipArgs keeps long values such as instructions out of the debug log.
func clipArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if len(a) > 80 {
			a = a[:77] + "..."
		}
		out[i] = a
	}
	return out
}
