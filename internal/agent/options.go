package agent

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/llm"
)

// BaseTools is the tool set every agent kind starts from.
var BaseTools = []string{"Read", "Write", "Edit", "Grep", "Glob"}

// AllowedTools returns the tools an agent may use. An explicit tools list
// wins for any kind; otherwise skills add their custom tools to the base set
// and agents use their allowed_tools list when they declare one.
func AllowedTools(a *domain.Agent) []string {
	if len(a.Tools) > 0 {
		return slices.Clone(a.Tools)
	}
	switch a.Kind {
	case domain.KindSkill:
		out := slices.Clone(BaseTools)
		for _, t := range a.CustomTools {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
		return out
	case domain.KindAgent:
		if len(a.Allowed) > 0 {
			return slices.Clone(a.Allowed)
		}
	}
	return slices.Clone(BaseTools)
}

// SystemPrompt returns body, or a generated identity prompt when the body
// is blank.
func SystemPrompt(a *domain.Agent, body string) string {
	if strings.TrimSpace(body) != "" {
		return body
	}
	return a.SystemPrompt()
}

// BuildRequest assembles the execution request for one run. workDir must
// be an existing directory.
func BuildRequest(a *domain.Agent, body, prompt, workDir, permissionMode string) (llm.Request, error) {
	info, err := os.Stat(workDir)
	if err != nil {
		return llm.Request{}, &domain.AgentExecutionError{
			AgentID: a.ID,
			Message: fmt.Sprintf("working directory %s is not accessible", workDir),
			Err:     err,
		}
	}
	if !info.IsDir() {
		return llm.Request{}, &domain.AgentExecutionError{
			AgentID: a.ID,
			Message: fmt.Sprintf("working directory %s is not a directory", workDir),
		}
	}

	return llm.Request{
		Instruction:    SystemPrompt(a, body),
		Prompt:         prompt,
		WorkDir:        workDir,
		AllowedTools:   AllowedTools(a),
		PermissionMode: permissionMode,
	}, nil
}
