package store

import (
	"context"
	"database/sql"
	"fmt"
)

// eventColumns is the column list shared by every SQL event store.
const eventColumns = `id, kind, outcome, reason, identity, client_ip, user_agent,
		browser, os, device_type, loc_city, loc_country, created_at`

func eventArgs(e *Event) []any {
	return []any{
		e.ID,
		e.Kind,
		e.Outcome,
		e.Reason,
		e.Identity,
		e.ClientIP,
		e.UserAgent,
		e.Browser,
		e.OS,
		e.DeviceType,
		e.City,
		e.Country,
		e.CreatedAt,
	}
}

// queryEvents runs query and scans every row into an Event.
// driver prefixes error messages.
func queryEvents(ctx context.Context, db *sql.DB, driver, query string, args ...any) ([]*Event, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query events: %w", driver, err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		err := rows.Scan(
			&e.ID,
			&e.Kind,
			&e.Outcome,
			&e.Reason,
			&e.Identity,
			&e.ClientIP,
			&e.UserAgent,
			&e.Browser,
			&e.OS,
			&e.DeviceType,
			&e.City,
			&e.Country,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan event: %w", driver, err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: error iterating events: %w", driver, err)
	}
	return events, nil
}
