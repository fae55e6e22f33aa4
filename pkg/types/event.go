package types

import (
	"encoding/json"
	"fmt"
)

// Delimiter terminates every record in the event log. Compact JSON never
// contains a raw newline, so the sequence can only appear as a terminator.
const Delimiter = ",\n"

// Event is an opaque structured payload. The log never inspects its fields;
// it only requires that the event serializes to compact JSON.
type Event map[string]any

// EncodeRecord serializes an event into its on-disk record form:
// compact JSON followed by the delimiter.
func EncodeRecord(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return append(data, Delimiter...), nil
}

// EncodeBatch serializes an ordered batch into one contiguous byte slice,
// ready to be appended as a unit.
func EncodeBatch(events []Event) ([]byte, error) {
	var out []byte
	for i, e := range events {
		rec, err := EncodeRecord(e)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, rec...)
	}
	return out, nil
}
