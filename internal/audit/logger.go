package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"truledgr/backend/internal/audit/domain"
	auditrepo "truledgr/backend/internal/audit/repository"
	"truledgr/backend/internal/db"
	"truledgr/backend/internal/telemetry"
)

// ProvenanceExtractor returns the client IP and user agent recorded for the request in ctx.
type ProvenanceExtractor func(context.Context) (ip, userAgent string)

// Event describes one audit entry. Metadata is encoded as a JSON object.
type Event struct {
	ActorUserID   string
	SubjectUserID string
	Action        string
	Resource      string
	ResourceID    string
	Metadata      map[string]any
}

// AuditLogger records security events. LogEvent is best-effort: failures are logged and never
// affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, ev Event)
}

// Logger persists events to the audit repository and mirrors them to a telemetry emitter.
type Logger struct {
	repo       auditrepo.Repository
	provenance ProvenanceExtractor
	emitter    telemetry.EventEmitter
	log        *slog.Logger
	now        func() time.Time
}

// NewLogger returns a Logger. provenance and emitter may be nil; then IP is recorded as
// "unknown" and nothing is mirrored.
func NewLogger(repo auditrepo.Repository, provenance ProvenanceExtractor, emitter telemetry.EventEmitter, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{repo: repo, provenance: provenance, emitter: emitter, log: log, now: time.Now}
}

// LogEvent writes one audit entry.
func (l *Logger) LogEvent(ctx context.Context, ev Event) {
	if l == nil {
		return
	}
	ip, ua := "unknown", ""
	if l.provenance != nil {
		if gotIP, gotUA := l.provenance(ctx); gotIP != "" {
			ip, ua = gotIP, gotUA
		}
	}
	meta := "{}"
	if len(ev.Metadata) > 0 {
		if b, err := json.Marshal(ev.Metadata); err == nil {
			meta = string(b)
		}
	}
	entry := &domain.AuditLog{
		ID:            db.NewID(),
		ActorUserID:   ev.ActorUserID,
		SubjectUserID: ev.SubjectUserID,
		Action:        ev.Action,
		Resource:      ev.Resource,
		ResourceID:    ev.ResourceID,
		IP:            ip,
		UserAgent:     ua,
		Metadata:      meta,
		CreatedAt:     l.now().UTC(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			l.log.ErrorContext(ctx, "audit: failed to log event", "action", ev.Action, "resource", ev.Resource, "error", err)
		}
	}
	telemetry.EmitAsync(l.emitter, ctx, &telemetry.Event{
		Type:          ev.Action,
		ActorUserID:   ev.ActorUserID,
		SubjectUserID: ev.SubjectUserID,
		SessionID:     ev.ResourceID,
		Source:        "auth",
		Metadata:      []byte(meta),
		CreatedAt:     entry.CreatedAt,
	})
}
