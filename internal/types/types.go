// Package types contains the core domain types shared across all replayconsole
// internal packages. It deliberately has zero imports of other replayconsole
// packages so that the console core, the filters reducer, and the storage layer
// can all import from it without creating import cycles.
package types

import (
	"bytes"
	"encoding/json"
)

// MessageType identifies what kind of console entry a Message represents.
type MessageType string

const (
	TypeLog                 MessageType = "log"
	TypeDir                 MessageType = "dir"
	TypeTable               MessageType = "table"
	TypeTrace               MessageType = "trace"
	TypeClear               MessageType = "clear"
	TypeAssert              MessageType = "assert"
	TypeDebug               MessageType = "debug"
	TypeStartGroup          MessageType = "startGroup"
	TypeStartGroupCollapsed MessageType = "startGroupCollapsed"
	TypeEndGroup            MessageType = "endGroup"
	TypeCommand             MessageType = "command"
	TypeResult              MessageType = "result"
	TypeNavigationMarker    MessageType = "navigationMarker"
	TypeNull                MessageType = "nullMessage"

	// Synthetic warning-group headers. Never emitted by the runtime.
	TypeContentBlockingGroup    MessageType = "contentBlockingWarningGroup"
	TypeStorageIsolationGroup   MessageType = "storageIsolationWarningGroup"
	TypeTrackingProtectionGroup MessageType = "trackingProtectionWarningGroup"
	TypeCookieSameSiteGroup     MessageType = "cookieSameSiteWarningGroup"
	TypeCSPGroup                MessageType = "cspWarningGroup"
	TypeCORSGroup               MessageType = "corsWarningGroup"
)

// IsGroupStart reports whether t opens a console.group.
func (t MessageType) IsGroupStart() bool {
	return t == TypeStartGroup || t == TypeStartGroupCollapsed
}

// IsWarningGroup reports whether t is one of the synthetic warning-group
// header types.
func (t MessageType) IsWarningGroup() bool {
	switch t {
	case TypeContentBlockingGroup, TypeStorageIsolationGroup, TypeTrackingProtectionGroup,
		TypeCookieSameSiteGroup, TypeCSPGroup, TypeCORSGroup:
		return true
	}
	return false
}

// Level is the severity a message was logged with.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelLog   Level = "log"
)

// Source names the subsystem that produced a message.
type Source string

const (
	SourceConsoleAPI      Source = "console-api"
	SourceJavaScript      Source = "javascript"
	SourceNetwork         Source = "network"
	SourceConsoleFrontend Source = "console-frontend"
)

// LastExecutionPoint is the ordering key synthesized for a message that has no
// genuine execution point. Messages evaluated at the same replay pause share
// Point and are told apart by MessageCount.
type LastExecutionPoint struct {
	Point        string  `json:"point"`
	Time         float64 `json:"time"`
	MessageCount int     `json:"messageCount"`
}

// Frame is a source location.
type Frame struct {
	Source       string `json:"source"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
	FunctionName string `json:"functionName,omitempty"`
}

// StackFrame is one entry of a message's stack trace.
type StackFrame struct {
	FunctionName string `json:"functionName,omitempty"`
	Filename     string `json:"filename"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// Request is the network request a network message refers to.
type Request struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// Note is an additional annotation attached to an error message.
type Note struct {
	MessageBody string `json:"messageBody,omitempty"`
	Frame       *Frame `json:"frame,omitempty"`
}

// ValueKind classifies a logged parameter.
type ValueKind string

const (
	ValuePrimitive ValueKind = "primitive"
	ValueObject    ValueKind = "object"
	ValueOther     ValueKind = "other"
)

// Value is a logged parameter as the replay runtime previews it. Objects only
// carry their class name and the preview items rendered inline.
type Value struct {
	Kind         ValueKind `json:"kind"`
	Primitive    any       `json:"primitive,omitempty"`
	ClassName    string    `json:"className,omitempty"`
	PreviewItems []Value   `json:"previewItems,omitempty"`
}

func (v Value) clone() Value {
	if len(v.PreviewItems) == 0 {
		return v
	}
	items := make([]Value, len(v.PreviewItems))
	for i, it := range v.PreviewItems {
		items[i] = it.clone()
	}
	v.PreviewItems = items
	return v
}

// MessageText is a plain string, a long-string grip of which only the initial
// part was sent, or some other object grip kept as received.
//
// On the wire it is a JSON string, an object {"type":"longString","initial":...}
// or any other JSON object.
type MessageText struct {
	Text       string
	LongString bool
	// Grip holds an object grip that is neither a string nor a long string.
	// Its text is unknown, so it matches every search.
	Grip json.RawMessage
}

// IsGrip reports whether t is an object grip other than a long string.
func (t MessageText) IsGrip() bool { return len(t.Grip) > 0 }

// MarshalJSON implements json.Marshaler.
func (t MessageText) MarshalJSON() ([]byte, error) {
	if t.IsGrip() {
		return t.Grip, nil
	}
	if t.LongString {
		return json.Marshal(struct {
			Type    string `json:"type"`
			Initial string `json:"initial"`
		}{"longString", t.Text})
	}
	return json.Marshal(t.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *MessageText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var grip struct {
			Type    string `json:"type"`
			Initial string `json:"initial"`
		}
		if err := json.Unmarshal(data, &grip); err != nil {
			return err
		}
		if grip.Type == "longString" {
			*t = MessageText{Text: grip.Initial, LongString: true}
			return nil
		}
		*t = MessageText{Grip: bytes.Clone(data)}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = MessageText{Text: s}
	return nil
}

// Message is the canonical console entry.
//
// Design rules:
//   - A stored Message is immutable. Only GroupID, Indent and
//     LastExecutionPoint are written, exactly once, when it is ingested.
//   - IDs are numeric strings assigned by the transport in arrival order.
//   - ExecutionPoint is set only when the runtime supplied genuine causal
//     order information; in that case ExecutionPointTime must be set too.
type Message struct {
	ID     string      `json:"id"`
	Type   MessageType `json:"type"`
	Level  Level       `json:"level"`
	Source Source      `json:"source"`

	// Category is the runtime's error category (e.g. "CORS", "CSP").
	Category string `json:"category,omitempty"`
	// InnerWindowID identifies the document the message was logged from.
	InnerWindowID string `json:"innerWindowID,omitempty"`

	TimeStamp float64 `json:"timeStamp"`

	ExecutionPoint     string   `json:"executionPoint,omitempty"`
	ExecutionPointTime *float64 `json:"executionPointTime,omitempty"`

	// LogpointID ties the message to a live logpoint.
	LogpointID string `json:"logpointId,omitempty"`

	// --- bookkeeping, set at insertion ---
	GroupID            string              `json:"groupId,omitempty"`
	Indent             int                 `json:"indent"`
	LastExecutionPoint *LastExecutionPoint `json:"lastExecutionPoint,omitempty"`

	// --- payload, opaque to ordering and grouping ---
	Parameters  []Value      `json:"parameters,omitempty"`
	Frame       *Frame       `json:"frame,omitempty"`
	Stacktrace  []StackFrame `json:"stacktrace,omitempty"`
	Request     *Request     `json:"request,omitempty"`
	MessageText *MessageText `json:"messageText,omitempty"`
	Notes       []Note       `json:"notes,omitempty"`
	Prefix      string       `json:"prefix,omitempty"`
}

// Clone returns a deep copy of the message. Stored messages are only ever
// handed out as clones.
func (m *Message) Clone() *Message {
	c := *m
	if m.ExecutionPointTime != nil {
		t := *m.ExecutionPointTime
		c.ExecutionPointTime = &t
	}
	if m.LastExecutionPoint != nil {
		lp := *m.LastExecutionPoint
		c.LastExecutionPoint = &lp
	}
	if m.Parameters != nil {
		c.Parameters = make([]Value, len(m.Parameters))
		for i, p := range m.Parameters {
			c.Parameters[i] = p.clone()
		}
	}
	if m.Frame != nil {
		f := *m.Frame
		c.Frame = &f
	}
	if m.Stacktrace != nil {
		c.Stacktrace = append([]StackFrame(nil), m.Stacktrace...)
	}
	if m.Request != nil {
		r := *m.Request
		c.Request = &r
	}
	if m.MessageText != nil {
		mt := *m.MessageText
		mt.Grip = bytes.Clone(mt.Grip)
		c.MessageText = &mt
	}
	if m.Notes != nil {
		c.Notes = make([]Note, len(m.Notes))
		for i, n := range m.Notes {
			if n.Frame != nil {
				f := *n.Frame
				n.Frame = &f
			}
			c.Notes[i] = n
		}
	}
	return &c
}

// Filters is the filter bar state the console core reads visibility rules
// from. Level fields are true when messages of that level are shown.
type Filters struct {
	Error       bool   `json:"error"`
	Warn        bool   `json:"warn"`
	Info        bool   `json:"info"`
	Debug       bool   `json:"debug"`
	Log         bool   `json:"log"`
	Text        string `json:"text"`
	NodeModules bool   `json:"nodemodules"`
}

// Filter names, as used by FILTER_TOGGLE and as hidden-message causes.
const (
	FilterError       = "error"
	FilterWarn        = "warn"
	FilterInfo        = "info"
	FilterDebug       = "debug"
	FilterLog         = "log"
	FilterText        = "text"
	FilterNodeModules = "nodemodules"
)
