// Package telemetry wires Sentry error reporting into the HTTP server.
// With an empty DSN every function is a no-op apart from panic recovery.
package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitSentry initializes the Sentry SDK. dsn may be empty, which leaves
// Sentry disabled.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		Tags:             map[string]string{"service": "bifrost"},
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			// Validator URLs carry tokens; never ship them.
			if event.Request != nil {
				event.Request.QueryString = ""
				event.Request.Cookies = ""
			}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	return nil
}

// Flush waits for buffered Sentry events to be sent.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// Recoverer catches panics, reports them to Sentry and answers with a
// generic 500 so nothing escapes the request boundary.
func Recoverer(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}

				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(r)
				hub.Scope().SetTag("panic", "true")
				hub.CaptureException(err)

				log.WithError(err).WithField("path", r.URL.Path).Error("panic recovered")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"ok":false,"reason":"Internal server error"}`))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
