package builtin

// UnitMetadata describes a unit type offered by a Registry.
type UnitMetadata struct {
	Type        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
	// Shorthand names the config key filled by the argument of a
	// "type:argument" step.
	Shorthand    string         `json:"shorthand,omitempty"`
	ConfigSchema map[string]any `json:"configSchema"`
	Examples     []Example      `json:"examples,omitempty"`
}

// Example shows how to use a unit.
type Example struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Config      map[string]any `json:"config"`
	Input       any            `json:"input,omitempty"`
	Output      any            `json:"output,omitempty"`
}
