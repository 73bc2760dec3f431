// Package cnc implements the command-and-control request abstraction: the
// decoded command, the correlation-scoped request wrapper, and the reply
// envelopes written back through the delivering cloud connector.
package cnc

import (
	"errors"
	"fmt"
)

// DefaultRequestID substitutes for an absent requestId on incoming commands.
const DefaultRequestID = "na"

// ErrMissingAction marks a batch element without a usable action string.
var ErrMissingAction = errors.New("command has no action")

// Command is a decoded CnC command. Optional fields are zero when absent.
type Command struct {
	Action     string
	RequestID  string
	Category   string
	ID         string
	Type       string
	ModulePath string
	Config     map[string]any
	Data       map[string]any

	// Raw is the original command mapping, for actions that carry
	// arguments outside the decoded fields.
	Raw map[string]any
}

// Decode converts a raw command mapping into a Command. The action is
// required; an absent requestId becomes DefaultRequestID.
func Decode(raw map[string]any) (Command, error) {
	action, ok := raw["action"].(string)
	if !ok || action == "" {
		return Command{}, fmt.Errorf("%w: %v", ErrMissingAction, raw)
	}

	cmd := Command{
		Action:    action,
		RequestID: DefaultRequestID,
		Raw:       raw,
	}
	if v, ok := raw["requestId"].(string); ok && v != "" {
		cmd.RequestID = v
	}
	if v, ok := raw["category"].(string); ok {
		cmd.Category = v
	}
	if v, ok := raw["id"].(string); ok {
		cmd.ID = v
	}
	if v, ok := raw["type"].(string); ok {
		cmd.Type = v
	}
	if v, ok := raw["modulePath"].(string); ok {
		cmd.ModulePath = v
	}
	if v, ok := raw["config"].(map[string]any); ok {
		cmd.Config = v
	}
	if v, ok := raw["data"].(map[string]any); ok {
		cmd.Data = v
	}
	return cmd, nil
}
