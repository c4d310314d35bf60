// Package activitymap turns account activity events into flat audit
// records and writes them to the structured log.
package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/kalinanews/newsroom/auth"
	"go.uber.org/zap"
)

const (
	MetaActorRole  = "actor_role"
	MetaFromStatus = "from_status"
	MetaToStatus   = "to_status"
)

// SystemActor is used when an event carries neither an actor nor a subject
const SystemActor = "system"

// Record is the audit shape of an activity event
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	Subject    string         `json:"subject,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Normalize flattens an event. Anonymous events, such as failed logins,
// are attributed to the subject account or to SystemActor.
func Normalize(event auth.ActivityEvent) Record {
	actor := strings.TrimSpace(event.Actor.ID)
	if actor == "" {
		actor = strings.TrimSpace(event.UserID)
	}
	if actor == "" {
		actor = SystemActor
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	return Record{
		ActorID:    actor,
		Verb:       string(event.EventType),
		Subject:    strings.TrimSpace(event.UserID),
		Metadata:   metadata(event),
		OccurredAt: at.UTC(),
	}
}

func metadata(event auth.ActivityEvent) map[string]any {
	out := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		out[k] = v
	}
	if role := strings.TrimSpace(event.Actor.Type); role != "" {
		if _, ok := out[MetaActorRole]; !ok {
			out[MetaActorRole] = role
		}
	}
	if event.FromStatus != "" {
		out[MetaFromStatus] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		out[MetaToStatus] = string(event.ToStatus)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// AuditSink logs every event as one audit line
func AuditSink(logger *zap.Logger) auth.ActivitySink {
	if logger == nil {
		logger = zap.L()
	}
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		r := Normalize(event)
		logger.Info("audit",
			zap.String("verb", r.Verb),
			zap.String("actor_id", r.ActorID),
			zap.String("subject", r.Subject),
			zap.Any("metadata", r.Metadata),
			zap.Time("occurred_at", r.OccurredAt),
		)
		return nil
	})
}
