package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeMessage decodes a single inbound frame. The frame must be a
// JSON object; null, scalars, and arrays are all rejected. Unknown
// fields are ignored for forward compatibility.
func DecodeMessage(data []byte) (*Message, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("frame is not a JSON object")
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return &msg, nil
}

// EncodeCommand encodes an outbound command frame.
func EncodeCommand(cmd *Command) ([]byte, error) {
	data, err := marshalCompact(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return data, nil
}

// EncodeActionData builds the double-encoded data payload of a message
// command: a JSON object holding the action name under "action" plus
// the caller's extra fields, serialized to a string. The action
// argument overrides any "action" key in extra.
func EncodeActionData(action string, extra map[string]any) (string, error) {
	obj := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		obj[k] = v
	}
	obj["action"] = action

	data, err := marshalCompact(obj)
	if err != nil {
		return "", fmt.Errorf("failed to encode action data: %w", err)
	}
	return string(data), nil
}

// marshalCompact serializes v without HTML escaping or a trailing
// newline, matching the framing the peer produces.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
