package queue

import "context"

// Job handles one message type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job consumes.
	Type() string

	// Handle processes one payload. Payloads arrive as json.RawMessage; use
	// ParsePayload to decode them.
	Handle(ctx context.Context, payload interface{}) error
}
