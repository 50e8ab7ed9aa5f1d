package bridge

import (
	"encoding/json"
	"strconv"
	"time"
)

// Kind identifies how a Value renders as an MQTT payload.
type Kind uint8

const (
	// KindText renders as the raw string.
	KindText Kind = iota

	// KindNumber renders as the shortest decimal form ("215", "0.4").
	KindNumber

	// KindJSON renders as a pre-encoded compact JSON document.
	KindJSON

	// KindReading renders as {"Value","Location","Timestamp"} where the
	// timestamp is taken when the payload is rendered.
	KindReading
)

// Value is one derived signal value.
//
// Value is comparable with ==, which is how the diff decides whether a
// signal changed. A reading's timestamp is not stored, so two readings with
// the same value and location are equal.
type Value struct {
	Kind     Kind
	Text     string
	Number   float64
	Location string
}

// Text returns a text value.
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Number: f}
}

// Document returns a JSON value from an already encoded document.
func Document(encoded string) Value {
	return Value{Kind: KindJSON, Text: encoded}
}

// Reading returns a location-tagged numeric value.
func Reading(f float64, location string) Value {
	return Value{Kind: KindReading, Number: f, Location: location}
}

// reading is the wire form of a KindReading value.
type reading struct {
	Value     float64 `json:"Value"`
	Location  string  `json:"Location"`
	Timestamp string  `json:"Timestamp"`
}

// Payload renders the value for publishing. now stamps readings.
func (v Value) Payload(now time.Time) []byte {
	switch v.Kind {
	case KindNumber:
		return []byte(formatNumber(v.Number))
	case KindJSON:
		return []byte(v.Text)
	case KindReading:
		data, err := json.Marshal(reading{
			Value:     v.Number,
			Location:  v.Location,
			Timestamp: now.UTC().Format(time.RFC3339),
		})
		if err != nil {
			// Only NaN or Inf get here.
			return []byte(`{}`)
		}
		return data
	default:
		return []byte(v.Text)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Snapshot is the full set of signal values produced by one poll cycle.
//
// It is a fixed array indexed by Signal, so every signal is always present.
// A Snapshot is never modified after derive returns it.
type Snapshot struct {
	values [signalCount]Value
}

// Get returns the value of s.
func (s *Snapshot) Get(sig Signal) Value {
	if !sig.valid() {
		return Value{}
	}
	return s.values[sig]
}

// Equal reports whether every signal in s equals the same signal in o.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.values == o.values
}

// Payloads renders every signal keyed by its configuration key.
func (s *Snapshot) Payloads(now time.Time) map[string]string {
	out := make(map[string]string, signalCount)
	for _, sig := range AllSignals() {
		out[sig.Key()] = string(s.values[sig].Payload(now))
	}
	return out
}
