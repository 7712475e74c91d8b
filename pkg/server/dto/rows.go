package dto

// Connection is one decoded connection of a previewed row
type Connection struct {
	Target       string            `json:"target"`
	RelationType string            `json:"relation_type"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// NormalizeResponse previews how a submitted record will be converted
type NormalizeResponse struct {
	// Record is the submitted payload as it would appear in an exported table
	Record      map[string]any    `json:"record"`
	Identity    string            `json:"identity"`
	Attributes  map[string]string `json:"attributes"`
	Connections []Connection      `json:"connections"`
	Diagnostic  string            `json:"diagnostic,omitempty"`
}
