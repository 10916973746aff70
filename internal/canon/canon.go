// Package canon produces deterministic, byte-identical JSON serialization
// and content hashes for plan records.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal renders v as canonical JSON: object keys sorted lexicographically
// at every depth, arrays preserved in authored order, two-space indentation,
// trailing newline. Marshal is idempotent — canonicalizing the output of a
// previous Marshal call reproduces the same bytes.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canon: re-decode: %w", err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, generic, ""); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Hash returns the hex-encoded SHA-256 digest of v's canonical serialization.
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func encode(buf *bytes.Buffer, v any, indent string) error {
	switch val := v.(type) {
	case map[string]any:
		return encodeObject(buf, val, indent)
	case []any:
		return encodeArray(buf, val, indent)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("canon: marshal scalar: %w", err)
		}
		buf.Write(b)
		return nil
	}
}

func encodeObject(buf *bytes.Buffer, obj map[string]any, indent string) error {
	if len(obj) == 0 {
		buf.WriteString("{}")
		return nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	childIndent := indent + "  "
	buf.WriteString("{\n")
	for i, k := range keys {
		buf.WriteString(childIndent)
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return fmt.Errorf("canon: marshal key: %w", err)
		}
		buf.Write(keyBytes)
		buf.WriteString(": ")
		if err := encode(buf, obj[k], childIndent); err != nil {
			return err
		}
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(indent)
	buf.WriteByte('}')
	return nil
}

func encodeArray(buf *bytes.Buffer, arr []any, indent string) error {
	if len(arr) == 0 {
		buf.WriteString("[]")
		return nil
	}

	childIndent := indent + "  "
	buf.WriteString("[\n")
	for i, item := range arr {
		buf.WriteString(childIndent)
		if err := encode(buf, item, childIndent); err != nil {
			return err
		}
		if i < len(arr)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(indent)
	buf.WriteByte(']')
	return nil
}
