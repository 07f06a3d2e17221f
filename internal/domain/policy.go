package domain

import "context"

const (
	ActionRecordsRead   = "records:read"
	ActionRecordsWrite  = "records:write"
	ActionRecordsExport = "records:export"
	ActionKeysRead      = "keys:read"
)

type PolicyInput struct {
	Action string `json:"action"`
	Role   string `json:"role"`
}

type PolicyDecision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

// PolicyEngine decides whether a caller role may perform an action.
type PolicyEngine interface {
	Evaluate(ctx context.Context, input PolicyInput) (PolicyDecision, error)
}
