package store

import (
	"context"
	"time"
)

// Event kinds.
const (
	KindIssue    = "issue"
	KindValidate = "validate"
)

// Event outcomes.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Event is an audit record of an issuance or validation attempt.
// It never carries the token itself: validation is stateless and
// must not be able to look a token up.
type Event struct {
	ID         string
	Kind       string
	Outcome    string
	Reason     string
	Identity   string
	ClientIP   string
	UserAgent  string
	Browser    string
	OS         string
	DeviceType string
	City       string
	Country    string
	CreatedAt  time.Time
}

// EventStore defines the interface for audit event sinks.
// Implementations must be safe for concurrent use.
type EventStore interface {
	// Save appends an event.
	Save(ctx context.Context, event *Event) error

	// Recent returns up to limit events for an identity, newest first.
	// An empty identity matches every event.
	Recent(ctx context.Context, identity string, limit int) ([]*Event, error)

	// Close releases any resources held by the store.
	Close() error
}

// RateStore counts hits per key inside a sliding window.
// Implementations must be safe for concurrent use.
type RateStore interface {
	// Record registers one hit for key and returns the number of hits
	// that fall inside the trailing window, this one included.
	Record(ctx context.Context, key string, window time.Duration) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
