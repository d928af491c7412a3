package schema

// ToolDefinition describes a tool to a chat model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolChoiceMode controls whether and how a model calls tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceSpecific ToolChoiceMode = "specific"
)

// ToolChoice is the tool selection policy of a chat request. Name is only
// meaningful for ToolChoiceSpecific.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode"`
	Name string         `json:"name,omitempty"`
}

func AutoToolChoice() *ToolChoice { return &ToolChoice{Mode: ToolChoiceAuto} }

func RequiredToolChoice() *ToolChoice { return &ToolChoice{Mode: ToolChoiceRequired} }

func NoToolChoice() *ToolChoice { return &ToolChoice{Mode: ToolChoiceNone} }

// SpecificToolChoice forces the model to call the named tool.
func SpecificToolChoice(name string) *ToolChoice {
	return &ToolChoice{Mode: ToolChoiceSpecific, Name: name}
}
