package protocol

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire framing for all event variants. Exactly one
// payload field is populated, selected by Type.
type envelope struct {
	Type  EventType       `json:"type"`
	Event json.RawMessage `json:"event"`
}

// Marshal encodes an event into its JSON wire form:
//
//	{"type":"edit","event":{"fileVersion":{"path":...,"version":...},...}}
func Marshal(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Type(), err)
	}
	return json.Marshal(envelope{Type: ev.Type(), Event: payload})
}

// Unmarshal decodes a JSON wire frame back into its event variant.
func Unmarshal(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var ev Event
	switch env.Type {
	case EventOpen:
		var e Open
		if err := json.Unmarshal(env.Event, &e); err != nil {
			return nil, fmt.Errorf("%w: open: %v", ErrMalformedEvent, err)
		}
		ev = e
	case EventEdit:
		var e Edit
		if err := json.Unmarshal(env.Event, &e); err != nil {
			return nil, fmt.Errorf("%w: edit: %v", ErrMalformedEvent, err)
		}
		ev = e
	case EventSync:
		var e Sync
		if err := json.Unmarshal(env.Event, &e); err != nil {
			return nil, fmt.Errorf("%w: sync: %v", ErrMalformedEvent, err)
		}
		ev = e
	case EventClose:
		var e Close
		if err := json.Unmarshal(env.Event, &e); err != nil {
			return nil, fmt.Errorf("%w: close: %v", ErrMalformedEvent, err)
		}
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
	return ev, nil
}
