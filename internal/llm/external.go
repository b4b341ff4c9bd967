package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/soyeahso/agentclick/internal/logging"
)

// ExternalCLIConfig describes an arbitrary agent CLI that reads the prompt
// on stdin. Its stdout is either plain text or one JSON object.
type ExternalCLIConfig struct {
	Command  string
	Name     string
	BaseArgs []string

	// Flags for the optional request fields. Empty flags are not passed.
	SystemFlag string
	ToolsFlag  string
	ModelFlag  string

	// ResultField is checked first when the output is JSON.
	ResultField string
}

// resultKeys are tried after ResultField.
var resultKeys = []string{"result", "content", "output", "text"}

// NewExternalCLIClient runs a generic agent CLI.
func NewExternalCLIClient(cfg ExternalCLIConfig, log *logging.Logger) *Subprocess {
	if cfg.Name == "" {
		cfg.Name = "external"
	}
	return NewSubprocess(cfg.Name, cfg.Command, externalCodec{cfg}, log)
}

type externalCodec struct{ cfg ExternalCLIConfig }

func (c externalCodec) Args(req Request) []string {
	args := append([]string(nil), c.cfg.BaseArgs...)
	add := func(flag, value string) {
		if flag != "" && value != "" {
			args = append(args, flag, value)
		}
	}
	add(c.cfg.SystemFlag, req.Instruction)
	add(c.cfg.ToolsFlag, strings.Join(req.AllowedTools, ","))
	add(c.cfg.ModelFlag, req.Model)
	return args
}

func (c externalCodec) Decode(data []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(data)
	var obj map[string]any
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &obj) != nil {
		return &Response{Output: strings.TrimRight(string(data), "\r\n"), Completed: true}, nil
	}

	if msg, _ := obj["error"].(string); msg != "" {
		code, _ := obj["code"].(float64)
		return nil, &ProviderError{Provider: c.cfg.Name, Message: msg, Code: int(code)}
	}

	keys := resultKeys
	if c.cfg.ResultField != "" {
		keys = append([]string{c.cfg.ResultField}, resultKeys...)
	}
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return &Response{Output: s, Completed: true}, nil
		}
	}
	return &Response{Completed: true}, nil
}
