// Package activitymap flattens session activity into a record shape that log
// pipelines and audit stores can index without importing authclient.
package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-auth-client"
	"go.uber.org/zap"
)

const (
	MetadataKeyFromStatus = "from_status"
	MetadataKeyToStatus   = "to_status"
	MetadataKeyMessage    = "message"
)

const (
	defaultChannel = "session"
	anonymousActor = "anonymous"
)

// Record is the normalized activity shape.
type Record struct {
	Actor      string         `json:"actor"`
	Verb       string         `json:"verb"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes Normalize.
type Option func(*options)

type options struct {
	channel string
	now     func() time.Time
}

// WithChannel overrides the "session" channel.
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithClock sets the timestamp source for events that carry none.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Normalize converts a session event into a Record.
func Normalize(event authclient.ActivityEvent, opts ...Option) Record {
	o := options{channel: defaultChannel, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	actor := strings.TrimSpace(event.Identity)
	if actor == "" {
		actor = anonymousActor
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = o.now()
	}

	return Record{
		Actor:      actor,
		Verb:       string(event.EventType),
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: at.UTC(),
	}
}

func metadata(event authclient.ActivityEvent) map[string]any {
	out := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		out[k] = v
	}

	if event.FromStatus != "" {
		out[MetadataKeyFromStatus] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		out[MetadataKeyToStatus] = string(event.ToStatus)
	}
	if event.Message != "" {
		if _, ok := out[MetadataKeyMessage]; !ok {
			out[MetadataKeyMessage] = event.Message
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// ZapSink logs every normalized record at debug level on logger.
func ZapSink(logger *zap.Logger, opts ...Option) authclient.ActivitySink {
	return authclient.ActivitySinkFunc(func(_ context.Context, e authclient.ActivityEvent) error {
		r := Normalize(e, opts...)
		logger.Debug("session activity",
			zap.String("actor", r.Actor),
			zap.String("verb", r.Verb),
			zap.String("channel", r.Channel),
			zap.Time("occurred_at", r.OccurredAt),
			zap.Any("metadata", r.Metadata),
		)
		return nil
	})
}
