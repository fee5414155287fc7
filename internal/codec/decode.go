package codec

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/crealink/crealink/internal/printererr"
)

// InboundEvent is one decoded (key, value) pair extracted from a status
// frame. Events are transient: the reconciler consumes them immediately.
// Values are the decoded JSON forms: json.Number for numbers, string,
// bool, nil, or nested map[string]any / []any structures.
type InboundEvent struct {
	Key   string
	Value any
}

// Decode parses one inbound text frame into events.
//
// The printer sends partial updates, so a frame is a flat-ish JSON object
// with an arbitrary subset of status keys. Unknown keys are preserved as
// opaque events rather than dropped so the reconciler (or a future
// extension) can still observe them.
//
// Malformed JSON yields a codec.malformed_message error; callers log and
// drop the frame, never abort the receive loop. Events are returned in
// sorted key order so downstream processing is deterministic regardless
// of map iteration order.
func Decode(frame []byte) ([]InboundEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, printererr.Malformed(err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	events := make([]InboundEvent, 0, len(keys))
	for _, k := range keys {
		events = append(events, InboundEvent{Key: k, Value: fields[k]})
	}
	return events, nil
}
