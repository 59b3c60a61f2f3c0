package hooks

import (
	"time"
)

// HookEvent defines the type of event that can trigger a hook.
type HookEvent string

const (
	EventRequestReceived       HookEvent = "request_received"
	EventRoutingDecision       HookEvent = "routing_decision"
	EventClarificationNeeded   HookEvent = "clarification_needed"
	EventCapabilityUnavailable HookEvent = "capability_unavailable"
	EventRoutingFailed         HookEvent = "routing_failed"
	EventDispatchFailed        HookEvent = "dispatch_failed"
	EventEvaluationCompleted   HookEvent = "evaluation_completed"
)

// AllEvents lists every event the router publishes.
func AllEvents() []HookEvent {
	return []HookEvent{
		EventRequestReceived, EventRoutingDecision, EventClarificationNeeded,
		EventCapabilityUnavailable, EventRoutingFailed, EventDispatchFailed,
		EventEvaluationCompleted,
	}
}

// HookAction defines the action to be performed when a hook is triggered.
type HookAction string

const (
	ActionLogWarning    HookAction = "log_warning"
	ActionNotifyWebhook HookAction = "notify_webhook"
	ActionRunCommand    HookAction = "run_command"
)

// Hook represents a single automation rule.
type Hook struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Event       HookEvent      `yaml:"event" json:"event"`
	Condition   string         `yaml:"condition" json:"condition"`
	Action      HookAction     `yaml:"action" json:"action"`
	Params      map[string]any `yaml:"params" json:"params"`
	Enabled     bool           `yaml:"enabled" json:"enabled"`

	// FilePath is the source file (not in YAML)
	FilePath string `yaml:"-" json:"-"`
}

// EventContext provides the environment for hook execution.
type EventContext struct {
	Event        HookEvent              `json:"event"`
	Timestamp    time.Time              `json:"timestamp"`
	RequestID    string                 `json:"request_id,omitempty"`
	Handler      string                 `json:"handler,omitempty"`
	Method       string                 `json:"method,omitempty"`
	Language     string                 `json:"language,omitempty"`
	Confidence   float64                `json:"confidence"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Error        error                  `json:"-"`
	ErrorMessage string                 `json:"error,omitempty"`
}

// ActionHandler is a function that executes a hook action.
type ActionHandler func(hook *Hook, ctx *EventContext) error
