package identifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Encode builds the canonical identifier for a channel name and its
// parameters. The name is stored under the "channel" key and overrides
// any caller-supplied parameter of that name. Returns an error only if
// a parameter value is not JSON-serializable.
func Encode(name string, params map[string]any) (string, error) {
	obj := make(map[string]any, len(params)+1)
	for k, v := range params {
		obj[k] = v
	}
	obj["channel"] = name
	return marshalCanonical(obj)
}

// Normalize decodes a raw identifier string received from the peer and
// re-encodes it canonically. Fails if the input is not a single JSON
// object; the caller decides whether that is fatal.
func Normalize(raw string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return "", fmt.Errorf("invalid identifier %q: %w", raw, err)
	}
	if obj == nil {
		return "", fmt.Errorf("invalid identifier %q: not a JSON object", raw)
	}
	if dec.More() {
		return "", fmt.Errorf("invalid identifier %q: trailing data", raw)
	}
	return marshalCanonical(obj)
}

// marshalCanonical serializes obj compactly. encoding/json sorts map
// keys at every nesting level, so lexicographic ordering falls out of
// the map representation. HTML escaping is disabled to keep the output
// byte-compatible with identifiers produced by the peer.
func marshalCanonical(obj map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return "", fmt.Errorf("encode identifier: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
