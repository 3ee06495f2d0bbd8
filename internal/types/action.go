package types

import "encoding/json"

// ActionType names a state transition.
type ActionType string

const (
	ActionMessagesAdd              ActionType = "MESSAGES_ADD"
	ActionMessagesClear            ActionType = "MESSAGES_CLEAR"
	ActionMessagesClearEvaluations ActionType = "MESSAGES_CLEAR_EVALUATIONS"
	ActionMessagesClearEvaluation  ActionType = "MESSAGES_CLEAR_EVALUATION"
	ActionMessagesClearLogpoint    ActionType = "MESSAGES_CLEAR_LOGPOINT"
	ActionMessageOpen              ActionType = "MESSAGE_OPEN"
	ActionMessageClose             ActionType = "MESSAGE_CLOSE"
	ActionMessageUpdatePayload     ActionType = "MESSAGE_UPDATE_PAYLOAD"
	ActionPausedExecutionPoint     ActionType = "PAUSED_EXECUTION_POINT"
	ActionFilterToggle             ActionType = "FILTER_TOGGLE"
	ActionFilterTextSet            ActionType = "FILTER_TEXT_SET"
	ActionFiltersClear             ActionType = "FILTERS_CLEAR"
	ActionDefaultFiltersReset      ActionType = "DEFAULT_FILTERS_RESET"
)

// IsFilterChange reports whether t changes the filter state.
func (t ActionType) IsFilterChange() bool {
	switch t {
	case ActionFilterToggle, ActionFilterTextSet, ActionFiltersClear, ActionDefaultFiltersReset:
		return true
	}
	return false
}

// Action is a single dispatched state transition. Only the fields relevant to
// Type are set. An Action with an unrecognised Type is valid and leaves every
// reducer's state unchanged.
type Action struct {
	Type ActionType `json:"type"`

	// MESSAGES_ADD
	Messages []Message `json:"messages,omitempty"`

	// MESSAGE_OPEN / MESSAGE_CLOSE / MESSAGE_UPDATE_PAYLOAD / MESSAGES_CLEAR_EVALUATION
	ID string `json:"id,omitempty"`

	// MESSAGE_UPDATE_PAYLOAD
	Data json.RawMessage `json:"data,omitempty"`

	// MESSAGES_CLEAR_LOGPOINT
	LogpointID string `json:"logpointId,omitempty"`

	// PAUSED_EXECUTION_POINT; an empty point means "not paused".
	ExecutionPoint string  `json:"executionPoint,omitempty"`
	Time           float64 `json:"time,omitempty"`

	// FILTER_TOGGLE
	Filter string `json:"filter,omitempty"`
	// FILTER_TEXT_SET
	Text string `json:"text,omitempty"`
}

// AddMessages builds a MESSAGES_ADD action.
func AddMessages(msgs ...Message) Action {
	return Action{Type: ActionMessagesAdd, Messages: msgs}
}

// ClearMessages builds a MESSAGES_CLEAR action.
func ClearMessages() Action { return Action{Type: ActionMessagesClear} }

// ClearEvaluations builds a MESSAGES_CLEAR_EVALUATIONS action.
func ClearEvaluations() Action { return Action{Type: ActionMessagesClearEvaluations} }

// ClearEvaluation builds a MESSAGES_CLEAR_EVALUATION action for a command id.
func ClearEvaluation(commandID string) Action {
	return Action{Type: ActionMessagesClearEvaluation, ID: commandID}
}

// ClearLogpoint builds a MESSAGES_CLEAR_LOGPOINT action.
func ClearLogpoint(logpointID string) Action {
	return Action{Type: ActionMessagesClearLogpoint, LogpointID: logpointID}
}

// OpenMessage builds a MESSAGE_OPEN action.
func OpenMessage(id string) Action { return Action{Type: ActionMessageOpen, ID: id} }

// CloseMessage builds a MESSAGE_CLOSE action.
func CloseMessage(id string) Action { return Action{Type: ActionMessageClose, ID: id} }

// UpdatePayload builds a MESSAGE_UPDATE_PAYLOAD action.
func UpdatePayload(id string, data json.RawMessage) Action {
	return Action{Type: ActionMessageUpdatePayload, ID: id, Data: data}
}

// SetPausedPoint builds a PAUSED_EXECUTION_POINT action.
func SetPausedPoint(point string, time float64) Action {
	return Action{Type: ActionPausedExecutionPoint, ExecutionPoint: point, Time: time}
}

// ToggleFilter builds a FILTER_TOGGLE action.
func ToggleFilter(name string) Action { return Action{Type: ActionFilterToggle, Filter: name} }

// SetFilterText builds a FILTER_TEXT_SET action.
func SetFilterText(text string) Action { return Action{Type: ActionFilterTextSet, Text: text} }

// ClearFilters builds a FILTERS_CLEAR action.
func ClearFilters() Action { return Action{Type: ActionFiltersClear} }

// ResetDefaultFilters builds a DEFAULT_FILTERS_RESET action.
func ResetDefaultFilters() Action { return Action{Type: ActionDefaultFiltersReset} }
