package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// LegacyAgent is one entry of the v1 agent_config.json map.
type LegacyAgent struct {
	Name          string `json:"name"`
	SystemPrompt  string `json:"system_prompt"`
	Enabled       bool   `json:"enabled"`
	ContextFolder string `json:"context_folder"`
}

// LegacyEntry pairs a v1 agent with its id, in file order.
type LegacyEntry struct {
	ID    string
	Agent LegacyAgent
}

var requiredFields = []string{"name", "system_prompt", "enabled", "context_folder"}

// LoadLegacy reads a v1 config, keeping the file's agent order.
func LoadLegacy(path string) ([]LegacyEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Op: "load", Message: "legacy config not found: " + path, Err: err}
		}
		return nil, &Error{Op: "load", Message: "reading legacy config", Err: err}
	}
	return ParseLegacy(data)
}

// ParseLegacy decodes v1 config JSON and checks every required field.
func ParseLegacy(data []byte) ([]LegacyEntry, error) {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, &Error{Op: "load", Message: "malformed legacy config JSON", Err: err}
	}
	if raw.Len() == 0 {
		return nil, &Error{Op: "load", Message: "legacy config has no agents"}
	}

	entries := make([]LegacyEntry, 0, raw.Len())
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(pair.Value, &fields); err != nil {
			return nil, &Error{Op: "load", Message: fmt.Sprintf("agent '%s' config must be an object", pair.Key)}
		}
		for _, f := range requiredFields {
			if _, ok := fields[f]; !ok {
				return nil, &Error{Op: "load", Message: fmt.Sprintf("agent '%s' missing required field: %s", pair.Key, f)}
			}
		}
		var a LegacyAgent
		if err := json.Unmarshal(pair.Value, &a); err != nil {
			return nil, &Error{Op: "load", Message: fmt.Sprintf("agent '%s' has invalid fields", pair.Key), Err: err}
		}
		entries = append(entries, LegacyEntry{ID: pair.Key, Agent: a})
	}
	return entries, nil
}

var kebabSeparators = regexp.MustCompile(`[_\s]+`)

// KebabID converts a v1 agent id to a command file id.
func KebabID(id string) string {
	return strings.ToLower(kebabSeparators.ReplaceAllString(id, "-"))
}

// ConvertPrompt rewrites v1 single-brace placeholders to template variables.
func ConvertPrompt(a LegacyAgent) string {
	body := strings.ReplaceAll(a.SystemPrompt, "{input}", "{{input}}")
	body = strings.ReplaceAll(body, "{context_folder}", "{{context_folder}}")
	if a.ContextFolder != "" {
		body += "\n\nContext: {{context_folder}}"
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body
}
