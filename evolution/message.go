package evolution

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind names a message variant.
type Kind string

const (
	KindText     Kind = "text"
	KindButtons  Kind = "buttons"
	KindPoll     Kind = "poll"
	KindMedia    Kind = "media"
	KindAudio    Kind = "audio"
	KindSticker  Kind = "sticker"
	KindLocation Kind = "location"
	KindList     Kind = "list"
	KindReaction Kind = "reaction"
)

// Message is one of the variants declared in this package: Text, Buttons,
// Poll, Media, Audio, Sticker, Location, List or Reaction. The set is closed.
type Message interface {
	Kind() Kind
	// Recipient is the phone number or JID the message is addressed to.
	Recipient() string
	// Validate checks the message against the upstream constraints.
	Validate() error

	path() string
	payload() any
}

const (
	minNumberLen = 5
	maxNumberLen = 32
)

func validateNumber(kind Kind, number string) error {
	n := len(strings.TrimSpace(number))
	if n < minNumberLen || n > maxNumberLen {
		return invalid(kind, "number", fmt.Sprintf("must be %d-%d characters", minNumberLen, maxNumberLen))
	}
	return nil
}

func validateDelay(kind Kind, delay int) error {
	if delay < 0 {
		return invalid(kind, "delay", "must not be negative")
	}
	return nil
}

func validateLen(kind Kind, field, value string, minLen, maxLen int) error {
	n := len([]rune(value))
	if n < minLen {
		if minLen == 1 {
			return invalid(kind, field, "is required")
		}
		return invalid(kind, field, fmt.Sprintf("must be at least %d characters", minLen))
	}
	if maxLen > 0 && n > maxLen {
		return invalid(kind, field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
	return nil
}

// MarshalMessage encodes m as a self-describing envelope:
// the variant's own fields plus a "type" discriminator.
func MarshalMessage(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("evolution: cannot marshal nil message")
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", m.Kind(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", m.Kind(), err)
	}
	kind, _ := json.Marshal(m.Kind())
	fields["type"] = kind

	return json.Marshal(fields)
}

// UnmarshalMessage decodes an envelope produced by MarshalMessage (or sent
// by an API client) and validates the result. Unknown fields are ignored.
func UnmarshalMessage(data []byte) (Message, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode message envelope: %w", err)
	}

	switch head.Type {
	case KindText:
		return decodeAs(data, NewText)
	case KindButtons:
		return decodeAs(data, NewButtons)
	case KindPoll:
		return decodeAs(data, NewPoll)
	case KindMedia:
		return decodeAs(data, NewMedia)
	case KindAudio:
		return decodeAs(data, NewAudio)
	case KindSticker:
		return decodeAs(data, NewSticker)
	case KindLocation:
		return decodeAs(data, NewLocation)
	case KindList:
		return decodeAs(data, NewList)
	case KindReaction:
		return decodeAs(data, NewReaction)
	case "":
		return nil, &ValidationError{Kind: "unknown", Field: "type", Reason: "is required"}
	default:
		return nil, &ValidationError{Kind: head.Type, Field: "type", Reason: "is not a supported message type"}
	}
}

func decodeAs[M Message](data []byte, build func(M) (M, error)) (Message, error) {
	var m M
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %s message: %w", m.Kind(), err)
	}
	built, err := build(m)
	if err != nil {
		return nil, err
	}
	return built, nil
}
