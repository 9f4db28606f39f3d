package metrics

import "time"

// Recorder tracks webhook deliveries and directory API traffic. Implementations
// must be safe for concurrent use.
type Recorder interface {
	// RecordWebhook counts one delivery. outcome is "granted", "skipped",
	// "rejected" or "failed".
	RecordWebhook(event, outcome string)
	RecordWebhookDuration(event string, d time.Duration)

	// RecordDirectoryCall counts one outbound call. op is "lookup" or
	// "invite"; status is the HTTP status code, or "error" on transport
	// failure.
	RecordDirectoryCall(op, status string)
	RecordDirectoryCallDuration(op string, d time.Duration)

	RecordBreakerState(name, state string)
}

type Noop struct{}

func (Noop) RecordWebhook(_, _ string)                             {}
func (Noop) RecordWebhookDuration(_ string, _ time.Duration)       {}
func (Noop) RecordDirectoryCall(_, _ string)                       {}
func (Noop) RecordDirectoryCallDuration(_ string, _ time.Duration) {}
func (Noop) RecordBreakerState(_, _ string)                        {}

