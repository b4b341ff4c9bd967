package domain

// Template variable names understood by the renderer.
const (
	VarInput         = "input"
	VarContextFolder = "context_folder"
	VarFocusFile     = "focus_file"
)

// KnownVariables is the fixed template vocabulary.
var KnownVariables = []string{VarInput, VarContextFolder, VarFocusFile}

// IsKnownVariable reports whether name belongs to KnownVariables.
func IsKnownVariable(name string) bool {
	for _, v := range KnownVariables {
		if v == name {
			return true
		}
	}
	return false
}

// TemplateDefinition is the per-agent rendering rule.
type TemplateDefinition struct {
	AgentID   string   `json:"agentId"`
	Text      string   `json:"template"`
	Enabled   bool     `json:"enabled"`
	Variables []string `json:"variables,omitempty"` // names referenced by Text, in first-use order
}
