package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/soyeahso/agentclick/internal/logging"
)

const claudeMaxTurns = "error_max_turns"

// claudeEnvelope is one object printed by `claude -p --output-format json`.
type claudeEnvelope struct {
	Type      string  `json:"type"`
	Subtype   string  `json:"subtype"`
	IsError   bool    `json:"is_error"`
	Result    string  `json:"result"`
	SessionID string  `json:"session_id"`
	CostUSD   float64 `json:"total_cost_usd"`
	Usage     struct {
		Input      int `json:"input_tokens"`
		Output     int `json:"output_tokens"`
		CacheRead  int `json:"cache_read_input_tokens"`
		CacheWrite int `json:"cache_creation_input_tokens"`
	} `json:"usage"`
}

func (e *claudeEnvelope) isResult() bool { return e.Type == "result" || e.Result != "" }

// claudeStatus finds the HTTP-ish status in "API Error: 529 {...}".
var claudeStatus = regexp.MustCompile(`(?i)api error:?\s*(\d{3})`)

// NewClaudeClient runs the claude CLI in print mode. An empty command
// means "claude" on PATH.
func NewClaudeClient(command string, log *logging.Logger) *Subprocess {
	if command == "" {
		command = "claude"
	}
	return NewSubprocess("claude", command, claudeCodec{}, log)
}

type claudeCodec struct{}

func (claudeCodec) Args(req Request) []string {
	args := []string{"-p", "--output-format", "json"}
	flag := func(name, value string) {
		if value != "" {
			args = append(args, name, value)
		}
	}
	flag("--append-system-prompt", req.Instruction)
	flag("--allowedTools", strings.Join(req.AllowedTools, ","))
	flag("--permission-mode", req.PermissionMode)
	flag("--model", req.Model)
	return args
}

func (claudeCodec) Decode(data []byte) (*Response, error) {
	env := findClaudeEnvelope(data)
	if env == nil {
		preview := string(data)
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		return nil, fmt.Errorf("no claude result in %d bytes of output: %q", len(data), preview)
	}

	// A turn limit still carries usable output.
	if env.IsError && env.Subtype != claudeMaxTurns {
		msg := env.Result
		if msg == "" {
			msg = env.Subtype
		}
		perr := &ProviderError{Provider: "claude", Message: msg}
		if m := claudeStatus.FindStringSubmatch(msg); m != nil {
			perr.Code, _ = strconv.Atoi(m[1])
		}
		return nil, perr
	}

	return &Response{
		Output:    env.Result,
		SessionID: env.SessionID,
		CostUSD:   env.CostUSD,
		Completed: !env.IsError,
		Usage: Usage{
			InputTokens:  env.Usage.Input,
			OutputTokens: env.Usage.Output,
			CacheRead:    env.Usage.CacheRead,
			CacheWrite:   env.Usage.CacheWrite,
		},
	}, nil
}

// findClaudeEnvelope prefers the last result object in the output and falls
// back to the last object of any type. Output that is not a clean JSON
// stream (progress lines, warnings) is rescanned line by line.
func findClaudeEnvelope(data []byte) *claudeEnvelope {
	var best, last *claudeEnvelope
	keep := func(e *claudeEnvelope) {
		last = e
		if e.isResult() {
			best = e
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var err error
	for {
		e := new(claudeEnvelope)
		if err = dec.Decode(e); err != nil {
			break
		}
		keep(e)
	}
	if !errors.Is(err, io.EOF) && best == nil {
		for _, line := range bytes.Split(data, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 || line[0] != '{' {
				continue
			}
			e := new(claudeEnvelope)
			if json.Unmarshal(line, e) == nil {
				keep(e)
			}
		}
	}
	if best != nil {
		return best
	}
	return last
}
