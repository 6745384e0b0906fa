package domain

import "encoding/json"

// Outbound command types understood by the server, over both the websocket
// channel and the REST fallback.
const (
	CommandUpdateParam = "update_param"
	CommandToggleStep  = "toggle_step"
	CommandRerun       = "rerun"
)

// MessageTypePipelineUpdate is the only inbound message type; anything else
// is ignored by clients.
const MessageTypePipelineUpdate = "pipeline_update"

// Command is a user intent sent to the server. Fields beyond Type are
// populated per command kind: update_param carries StepID/ParamName/Value,
// toggle_step carries StepID/Enabled, rerun carries nothing.
type Command struct {
	Type      string `json:"type"`
	StepID    string `json:"step_id,omitempty"`
	ParamName string `json:"param_name,omitempty"`
	Value     any    `json:"value,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

// UpdateParam builds an update_param command.
func UpdateParam(stepID, paramName string, value any) Command {
	return Command{Type: CommandUpdateParam, StepID: stepID, ParamName: paramName, Value: value}
}

// ToggleStep builds a toggle_step command.
func ToggleStep(stepID string, enabled bool) Command {
	return Command{Type: CommandToggleStep, StepID: stepID, Enabled: Bool(enabled)}
}

// Rerun builds a rerun command.
func Rerun() Command {
	return Command{Type: CommandRerun}
}

// Envelope is the framing for every message on the persistent channel.
// Data stays raw so receivers can decode (or drop) the payload per Type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
