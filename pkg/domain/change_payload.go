package domain

import "encoding/json"

// ChangePayload carries the JSON image of an entity before or after a change.
// The zero value is "undefined", which rules treat as "no image" (a create has
// no Before, a delete has no After).
type ChangePayload struct {
	defined bool
	raw     json.RawMessage
}

// NewChangePayload wraps raw JSON, cloning the bytes.
func NewChangePayload(raw json.RawMessage) ChangePayload {
	payload := ChangePayload{defined: true}
	if raw != nil {
		payload.raw = append(json.RawMessage(nil), raw...)
	}
	return payload
}

// PayloadOf marshals an entity snapshot into a payload. Entities in this
// package always marshal, so a failure yields an undefined payload.
func PayloadOf[T any](value T) ChangePayload {
	raw, err := json.Marshal(value)
	if err != nil {
		return ChangePayload{}
	}
	return NewChangePayload(raw)
}

// Defined reports whether the payload has been initialized.
func (p ChangePayload) Defined() bool { return p.defined }

// Raw returns a copy of the underlying JSON bytes.
func (p ChangePayload) Raw() json.RawMessage {
	if !p.defined || len(p.raw) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), p.raw...)
}

// DecodePayload unmarshals a defined payload into T. The boolean is false for
// undefined, empty or malformed payloads.
func DecodePayload[T any](p ChangePayload) (T, bool) {
	var out T
	if !p.defined || len(p.raw) == 0 {
		return out, false
	}
	if err := json.Unmarshal(p.raw, &out); err != nil {
		return out, false
	}
	return out, true
}
