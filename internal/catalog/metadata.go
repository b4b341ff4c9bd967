package catalog

import (
	"fmt"
	"strings"

	"github.com/soyeahso/agentclick/internal/domain"
	"github.com/soyeahso/agentclick/internal/logging"
)

// Header keys mapped onto Agent fields. Anything else lands in Extra.
var knownKeys = map[string]bool{
	"id": true, "name": true, "description": true, "version": true,
	"emoji": true, "color": true, "enabled": true, "workspace": true,
	"tools": true, "custom_tools": true, "allowed_tools": true,
}

func buildAgent(cand candidate, meta map[string]any, log *logging.Logger) *domain.Agent {
	a := &domain.Agent{
		Kind:    cand.kind,
		Source:  cand.path,
		Enabled: true,
	}

	id, ok := stringField(meta, "id")
	if !ok {
		if _, present := meta["id"]; present {
			log.Warn().Str("path", cand.path).Msg("invalid id in header, deriving from file name")
		}
		id = cand.stemID
	}
	a.ID = id

	name, ok := stringField(meta, "name")
	if !ok {
		if _, present := meta["name"]; present {
			log.Warn().Str("path", cand.path).Msg("invalid name in header, using id")
		}
		name = id
	}
	a.Name = name

	a.Description, _ = stringField(meta, "description")
	a.Workspace, _ = stringField(meta, "workspace")
	if v, present := meta["version"]; present && v != nil {
		a.Version = fmt.Sprint(v)
	}

	a.Emoji, _ = stringField(meta, "emoji")
	if a.Emoji == "" {
		a.Emoji = cand.kind.DefaultEmoji()
	}
	a.Color, _ = stringField(meta, "color")
	if a.Color == "" {
		a.Color = cand.kind.DefaultColor()
	}

	if v, present := meta["enabled"]; present {
		if b, isBool := v.(bool); isBool {
			a.Enabled = b
		} else {
			log.Warn().Str("path", cand.path).Msg("enabled must be a boolean, assuming true")
		}
	}

	a.Tools = stringList(meta["tools"])
	a.CustomTools = stringList(meta["custom_tools"])
	a.Allowed = stringList(meta["allowed_tools"])

	for k, v := range meta {
		if knownKeys[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[k] = v
	}
	return a
}

// stringField returns a non-blank string value for key.
func stringField(meta map[string]any, key string) (string, bool) {
	v, ok := meta[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// stringList accepts a YAML list or a comma-separated string.
func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
