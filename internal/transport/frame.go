package transport

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/bufsync/internal/protocol"
)

// EncodeFrame wraps a marshaled event with a sequence number:
//
//	{"type":"edit","event":{...},"seq":7}
func EncodeFrame(seq int64, ev protocol.Event) ([]byte, error) {
	data, err := protocol.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(data, "seq", seq)
}

// DecodeFrame extracts the sequence number and event from a frame.
func DecodeFrame(data []byte) (int64, protocol.Event, error) {
	seq := gjson.GetBytes(data, "seq")
	if !seq.Exists() {
		return 0, nil, fmt.Errorf("%w: missing seq", ErrMalformedFrame)
	}
	ev, err := protocol.Unmarshal(data)
	if err != nil {
		return 0, nil, err
	}
	return seq.Int(), ev, nil
}

// EncodeAck builds a reply frame for a sequence number. A non-empty
// reason marks the frame as a rejection explanation; it is advisory
// only, the ok flag alone decides the verdict.
func EncodeAck(seq int64, ok bool, reason string) []byte {
	frame := []byte(`{}`)
	frame, _ = sjson.SetBytes(frame, "seq", seq)
	frame, _ = sjson.SetBytes(frame, "ok", ok)
	if reason != "" {
		frame, _ = sjson.SetBytes(frame, "error", reason)
	}
	return frame
}

// DecodeAck parses a reply frame.
func DecodeAck(data []byte) (seq int64, ok bool, reason string, err error) {
	seqRes := gjson.GetBytes(data, "seq")
	if !seqRes.Exists() {
		return 0, false, "", fmt.Errorf("%w: missing seq", ErrMalformedFrame)
	}
	return seqRes.Int(), gjson.GetBytes(data, "ok").Bool(), gjson.GetBytes(data, "error").String(), nil
}
