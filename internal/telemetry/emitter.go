// Package telemetry carries security events to an external sink (OTel logs) off the request path.
package telemetry

import (
	"context"
	"time"
)

// Event is one security-relevant occurrence, e.g. a login or an impersonation start.
type Event struct {
	Type          string
	ActorUserID   string
	SubjectUserID string
	SessionID     string
	Source        string
	Metadata      []byte // JSON object
	CreatedAt     time.Time
}

// EventEmitter emits events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
