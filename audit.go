package bifrost

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/aadithya-v/bifrost/store"
)

// record writes an audit event when an event store is configured.
// Failures are logged and never alter the outcome of the request.
func (b *Bifrost) record(ctx context.Context, kind string, info RequestInfo, identity string, opErr error) {
	if b.events == nil {
		return
	}

	device := ParseDevice(info.ClientIP, info.UserAgent)
	loc := b.geoip.LookupWithFallback(info.ClientIP)

	event := &store.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Outcome:    eventOutcome(opErr),
		Identity:   identity,
		ClientIP:   info.ClientIP,
		UserAgent:  info.UserAgent,
		Browser:    device.Browser,
		OS:         device.OS,
		DeviceType: device.DeviceType,
		City:       loc.City,
		Country:    loc.Country,
		CreatedAt:  b.config.Now().UTC(),
	}
	if opErr != nil {
		event.Reason = outcomeLabel(opErr)
	}

	if err := b.events.Save(ctx, event); err != nil {
		b.log.WithError(err).WithField("kind", kind).Warn("failed to save audit event")
	}
}

// RecentEvents returns up to limit audit events for identity, newest first.
// It returns nil when auditing is disabled.
func (b *Bifrost) RecentEvents(ctx context.Context, identity string, limit int) ([]*store.Event, error) {
	if b.events == nil {
		return nil, nil
	}
	return b.events.Recent(ctx, identity, limit)
}

func eventOutcome(err error) string {
	switch {
	case err == nil:
		return store.OutcomeAllowed
	case errors.Is(err, ErrSecretNotConfigured):
		return store.OutcomeError
	default:
		if _, _, ok := statusFor(err); ok {
			return store.OutcomeDenied
		}
		return store.OutcomeError
	}
}
