package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Message is an outbound event. Target restricts delivery to one connection; an
// empty Target reaches every connected client.
type Message struct {
	Event  string `json:"type"`
	Data   any    `json:"data"`
	Target string `json:"-"`
}

func (m Message) Type() string {
	return m.Event
}

// Publisher accepts outbound messages. event.Bus[Message] is the production
// implementation.
type Publisher interface {
	Publish(Message)
}

// Envelope is an inbound frame before its payload is decoded.
type Envelope struct {
	Event string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

func DecodeEnvelope(frame []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	envelope.Event = strings.TrimSpace(envelope.Event)
	if envelope.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	return envelope, nil
}

// Decode unmarshals the payload into target. An absent payload leaves target
// untouched.
func (e Envelope) Decode(target any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}

// Ident is a rid or channel name. Clients send either JSON strings or numbers.
type Ident string

func (i *Ident) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*i = Ident(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("ident must be a string or number: %w", err)
	}
	*i = Ident(number.String())
	return nil
}

func (i Ident) String() string {
	return string(i)
}

// IsNumericRID reports whether rid is a non-empty string of ASCII digits.
func IsNumericRID(rid string) bool {
	if rid == "" {
		return false
	}
	for _, r := range rid {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
