package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind indicates an envelope named a kind outside the closed set.
var ErrUnknownKind = errors.New("unknown event kind")

// Envelope is the wire form accepted by the ingest adapters. It is the
// Event itself plus a free-form kind string, so producers do not need to
// match the enum's casing.
type Envelope struct {
	Kind string `json:"kind"`
	Event
}

// Decode parses an ingest payload into an Event, validating the kind.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	k, ok := ParseKind(env.Kind)
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	ev := env.Event
	ev.Kind = k
	return ev, nil
}
