package observability

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

// scrubbedHeaders never leave the process: they carry bearer tokens and
// session material.
var scrubbedHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		BeforeSend:       scrubEvent,
	})
}

func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event == nil || event.Request == nil {
		return event
	}

	for name := range event.Request.Headers {
		for _, scrubbed := range scrubbedHeaders {
			if http.CanonicalHeaderKey(name) == scrubbed {
				event.Request.Headers[name] = "[redacted]"
			}
		}
	}
	event.Request.Cookies = ""

	return event
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
