package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/scope"
)

// Command operations.
const (
	OpObserve   = "observe"
	OpUnobserve = "unobserve"
	OpAssign    = "assign"
	OpInspect   = "inspect"
)

// Command is an inbound panel request.
type Command struct {
	Op    string          `json:"op"`
	ID    scope.ID        `json:"id"`
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

var (
	errUnknownOp    = errors.New("unknown op")
	errMissingValue = errors.New("assign needs a value")
	errReadOnly     = errors.New("feed is read-only")
	errStopped      = errors.New("scope loop stopped")
)

// DecodeCommand parses and validates a command.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	switch cmd.Op {
	case OpObserve, OpUnobserve, OpInspect:
	case OpAssign:
		if len(cmd.Value) == 0 {
			return cmd, errMissingValue
		}
	default:
		return cmd, fmt.Errorf("%w %q", errUnknownOp, cmd.Op)
	}
	return cmd, nil
}

// Apply runs cmd against tree. It must be called on the tree's goroutine.
func Apply(tree *hint.Tree, cmd Command) error {
	switch cmd.Op {
	case OpObserve:
		return tree.Observe(cmd.ID, cmd.Path)
	case OpUnobserve:
		tree.Unobserve(cmd.ID, cmd.Path)
		return nil
	case OpAssign:
		var value any
		if err := json.Unmarshal(cmd.Value, &value); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		return tree.Assign(cmd.ID, cmd.Path, value)
	case OpInspect:
		tree.Inspect(cmd.ID)
		return nil
	}
	return fmt.Errorf("%w %q", errUnknownOp, cmd.Op)
}
