package rules

import (
	"strings"

	"github.com/gateflow/gateflow/pkg/models"
)

// Intent is one side effect produced by applying automation rules. Intents
// are collected while the engine holds the instance lock and acted on after
// release; they are best-effort and never part of the transition's atomicity
// boundary.
type Intent interface {
	intent()
}

// SetFieldIntent writes a value into the instance state data. Field paths are
// relative to the state data root ("state." prefix optional in documents).
type SetFieldIntent struct {
	Field string
	Value any
}

func (SetFieldIntent) intent() {}

// NotifyIntent asks the notification dispatcher to deliver a message.
type NotifyIntent struct {
	Channel   string
	Recipient string
	Template  string
	Metadata  map[string]any
}

func (NotifyIntent) intent() {}

// ApprovalRequestIntent asks a party to prepare an upcoming gated transition.
type ApprovalRequestIntent struct {
	Recipient string
	Template  string
	Metadata  map[string]any
}

func (ApprovalRequestIntent) intent() {}

// Apply executes automation rules against the context and returns the side
// effect intents. Malformed actions are skipped and logged; automation is
// fire and forget with manual retry, so a bad action never aborts the batch.
func (e *Evaluator) Apply(actions []*models.Action, evalCtx Context) []Intent {
	intents := make([]Intent, 0, len(actions))

	for _, action := range actions {
		if err := action.Validate(); err != nil {
			e.logger.Error("Skipping malformed automation action", "error", err)

			continue
		}

		switch action.Kind {
		case models.ActionSetField:
			intents = append(intents, SetFieldIntent{
				Field: strings.TrimPrefix(action.Field, sourceStateData+"."),
				Value: action.Value,
			})
		case models.ActionNotify:
			intents = append(intents, NotifyIntent{
				Channel:   action.Channel,
				Recipient: action.Recipient,
				Template:  action.Template,
				Metadata:  action.Metadata,
			})
		case models.ActionRequestApproval:
			intents = append(intents, ApprovalRequestIntent{
				Recipient: action.Recipient,
				Template:  action.Template,
				Metadata:  action.Metadata,
			})
		}
	}

	return intents
}

// ApplySetFields mutates state data with every set-field intent and returns
// the data map together with the remaining intents for post-release dispatch.
// Instances decoded from storage carry a nil map when no data has been
// written yet; a nil map is allocated here so writes always land.
func ApplySetFields(intents []Intent, stateData map[string]any) (map[string]any, []Intent) {
	if stateData == nil {
		stateData = make(map[string]any)
	}

	remaining := make([]Intent, 0, len(intents))

	for _, intent := range intents {
		if setField, ok := intent.(SetFieldIntent); ok {
			setNested(stateData, setField.Field, setField.Value)

			continue
		}

		remaining = append(remaining, intent)
	}

	return stateData, remaining
}

// setNested writes a dotted path into nested maps, creating intermediate
// levels as needed.
func setNested(root map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := root

	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}

		current = next
	}

	current[segments[len(segments)-1]] = value
}
